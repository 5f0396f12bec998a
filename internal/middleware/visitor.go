// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package middleware provides HTTP middleware for visitor binding,
// language selection, admin route protection, and request hardening.
package middleware

import (
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"

	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/visitor"
)

// SessionKeyVisitorID is the scs key holding the visitor id.
const SessionKeyVisitorID = "visitor_id"

// Visitors binds every request to its visitor. The id lives in the scs
// session; a new one is issued on the first request. A freshly built
// visitor picks its language from storage, then Accept-Language; an
// active one has its session refreshed.
//
// Must run inside sm.LoadAndSave.
func Visitors(sm *scs.SessionManager, registry *visitor.Registry, catalog *i18n.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id := sm.GetString(ctx, SessionKeyVisitorID)
			if id == "" {
				id = uuid.NewString()
				sm.Put(ctx, SessionKeyVisitorID, id)
			}

			v, created := registry.Get(ctx, id)
			if created {
				v.Language.Load(ctx, catalog.Match(r.Header.Get("Accept-Language")))
			} else {
				// Refresh logs its own failures.
				_ = v.Session.Refresh(ctx)
			}

			next.ServeHTTP(w, r.WithContext(visitor.NewContext(ctx, v)))
		})
	}
}

// GetVisitor returns the visitor bound to r, or nil outside Visitors.
func GetVisitor(r *http.Request) *visitor.Visitor {
	return visitor.FromContext(r.Context())
}

// GetUserID returns the signed-in user id, or "" when signed out.
func GetUserID(r *http.Request) string {
	if v := GetVisitor(r); v != nil {
		return v.Session.UserID()
	}
	return ""
}
