// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"

	"github.com/alrawaj/rawaj-web/internal/util"
)

// SiteHandler handles the language switch and the cookie banner.
type SiteHandler struct {
	base
}

// NewSiteHandler creates a new SiteHandler.
func NewSiteHandler(d Deps) *SiteHandler {
	return &SiteHandler{base: newBase(d)}
}

// ToggleLanguage handles POST /language. The visitor returns to the
// local path in the "next" field.
func (h *SiteHandler) ToggleLanguage(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}

	lang, err := v.Language.Toggle(r.Context())
	if err != nil {
		// The switch still applies to this visitor; only persistence failed.
		h.logger.Warn("saving language failed", "lang", lang, "error", err)
	}
	http.Redirect(w, r, backPath(r, "/"), http.StatusSeeOther)
}

// AcceptConsent handles POST /consent.
func (h *SiteHandler) AcceptConsent(w http.ResponseWriter, r *http.Request) {
	v, ok := requireVisitor(w, r)
	if !ok {
		return
	}

	if h.consent != nil {
		if err := h.consent.Accept(r.Context(), v.KV, r.UserAgent(), util.ClientIP(r)); err != nil {
			h.logger.Error("recording consent failed", "error", err)
		}
	}
	http.Redirect(w, r, backPath(r, "/"), http.StatusSeeOther)
}
