// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/state"
)

// GuardState is the outcome of evaluating a protected request.
type GuardState int

const (
	GuardChecking GuardState = iota
	GuardAuthorized
	GuardDenied
)

func (s GuardState) String() string {
	switch s {
	case GuardChecking:
		return "checking"
	case GuardAuthorized:
		return "authorized"
	case GuardDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// DefaultGuardWait bounds how long a request waits for an outstanding
// admin check before the checking page is shown.
const DefaultGuardWait = 2 * time.Second

// EvaluateGuard maps the session and admin flag to a guard state. A
// signed-out visitor is denied at once; a pending check is checking.
func EvaluateGuard(sess *backend.Session, flag state.AdminFlag) GuardState {
	switch {
	case sess == nil:
		return GuardDenied
	case flag.Loading:
		return GuardChecking
	case flag.IsAdmin:
		return GuardAuthorized
	default:
		return GuardDenied
	}
}

// LoginRedirect returns the login URL carrying the path to return to.
func LoginRedirect(r *http.Request) string {
	return "/login?from=" + url.QueryEscape(r.URL.RequestURI())
}

var checkingPage = template.Must(template.New("checking").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="1">
<meta name="robots" content="noindex">
<title>{{.Message}}</title>
<link rel="stylesheet" href="/static/css/site.css">
</head>
<body class="guard-checking">
<div class="spinner" role="status" aria-live="polite">{{.Message}}</div>
</body>
</html>
`))

// Guard protects admin routes. Each request waits up to wait for the
// visitor's admin check to settle, then passes through, redirects to the
// login page, or renders a self-refreshing checking page.
func Guard(wait time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if wait <= 0 {
		wait = DefaultGuardWait
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := GetVisitor(r)
			if v == nil {
				http.Redirect(w, r, LoginRedirect(r), http.StatusSeeOther)
				return
			}

			sess := v.Session.Session()
			flag := v.Admin.Flag()
			if sess != nil && flag.Loading {
				ctx, cancel := context.WithTimeout(r.Context(), wait)
				flag, _ = v.Admin.WaitSettled(ctx)
				cancel()
				sess = v.Session.Session()
			}

			switch EvaluateGuard(sess, flag) {
			case GuardAuthorized:
				next.ServeHTTP(w, r)
			case GuardChecking:
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				lang := v.Language.Language()
				if err := checkingPage.Execute(w, map[string]string{
					"Lang":    lang,
					"Dir":     i18n.Direction(lang),
					"Message": v.Language.T("guard.checking"),
				}); err != nil {
					logger.Error("rendering guard page failed", "error", err)
				}
			default:
				if sess != nil {
					logger.Warn("non-admin denied admin route",
						"user_id", sess.User.ID,
						"path", r.URL.Path,
					)
				}
				http.Redirect(w, r, LoginRedirect(r), http.StatusSeeOther)
			}
		})
	}
}

// SafeRedirectPath returns from when it is a local path, or fallback.
// Protocol-relative and absolute URLs are rejected.
func SafeRedirectPath(from, fallback string) string {
	if from == "" || from[0] != '/' || len(from) > 1 && (from[1] == '/' || from[1] == '\\') {
		return fallback
	}
	u, err := url.Parse(from)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return from
}
