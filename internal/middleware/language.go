// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alrawaj/rawaj-web/internal/i18n"
)

// Language applies an explicit ?lang=XX switch to the visitor's
// language and persists it. Unsupported codes are ignored.
func Language(catalog *i18n.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang")))
			if code == "" || !catalog.IsSupported(code) {
				next.ServeHTTP(w, r)
				return
			}

			if v := GetVisitor(r); v != nil && v.Language.Language() != code {
				if err := v.Language.Set(r.Context(), code); err != nil {
					slog.Warn("failed to switch language", "visitor", v.ID, "lang", code, "error", err)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetLanguage returns the visitor's language, or the default language
// when no visitor is bound.
func GetLanguage(r *http.Request) string {
	if v := GetVisitor(r); v != nil {
		return v.Language.Language()
	}
	return i18n.DefaultLanguage
}
