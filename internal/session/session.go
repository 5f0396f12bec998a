// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures the cookie session that identifies a
// visitor across requests and restarts.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// CookieName is the visitor cookie.
const CookieName = "rawaj_session"

// Lifetime is how long a visitor keeps its id, language and sign-in
// without coming back.
const Lifetime = 365 * 24 * time.Hour

// New creates a session manager backed by the sessions table.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = Lifetime
	sm.Cookie.Name = CookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev // Secure cookies in production only

	return sm
}
