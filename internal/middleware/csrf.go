// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"filippo.io/csrf/gorilla"
)

// CSRFConfig holds configuration for CSRF protection.
// filippo.io/csrf checks Fetch metadata and Origin headers, so forms
// carry no token field.
type CSRFConfig struct {
	// AuthKey is the 32-byte session secret.
	AuthKey []byte

	// ErrorHandler is called when validation fails. Defaults to a
	// plain 403.
	ErrorHandler http.Handler

	// TrustedOrigins are host:port values allowed to post cross-origin.
	TrustedOrigins []string
}

// DefaultCSRFConfig trusts the local dev server origins in development.
func DefaultCSRFConfig(authKey []byte, isDev bool, port int) CSRFConfig {
	cfg := CSRFConfig{AuthKey: authKey}
	if isDev {
		p := strconv.Itoa(port)
		cfg.TrustedOrigins = []string{"localhost:" + p, "127.0.0.1:" + p}
	}
	return cfg
}

// CSRF returns a middleware that rejects cross-origin state-changing
// requests.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	errorHandler := cfg.ErrorHandler
	if errorHandler == nil {
		errorHandler = http.HandlerFunc(csrfErrorHandler)
	}

	opts := []csrf.Option{csrf.ErrorHandler(errorHandler)}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	return csrf.Protect(cfg.AuthKey, opts...)
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	slog.Warn("CSRF validation failed",
		"reason", reason,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)

	msg := "Forbidden"
	if v := GetVisitor(r); v != nil {
		msg = v.Language.T("errors.csrf")
	}
	http.Error(w, msg, http.StatusForbidden)
}

// SkipCSRF disables the check for the given exact paths.
func SkipCSRF(paths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(paths))
	for _, p := range paths {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				r = csrf.UnsafeSkipCheck(r)
			}
			next.ServeHTTP(w, r)
		})
	}
}
