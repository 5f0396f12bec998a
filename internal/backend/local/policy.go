// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

// access describes who is running a table request.
type access struct {
	ctx    context.Context
	db     *sqlx.DB
	userID string
	admin  bool
}

func (a *access) owns(row backend.Row) bool {
	return a.userID != "" && fmt.Sprint(row["id"]) == a.userID
}

// registeredUser reports whether the row id names an account, so a profile
// can be written right after sign-up even before the address is confirmed.
func (a *access) registeredUser(row backend.Row) bool {
	id, ok := row["id"].(string)
	if !ok || id == "" {
		return false
	}
	var exists bool
	err := a.db.GetContext(a.ctx, &exists, `SELECT EXISTS(SELECT 1 FROM auth_users WHERE id = ?)`, id)
	return err == nil && exists
}

type rule func(a *access, row backend.Row) bool

// policy is the row-level access rule set of one exposed table. A nil
// insert rule falls back to write.
type policy struct {
	read   rule
	insert rule
	write  rule
}

func (p policy) canInsert(a *access, row backend.Row) bool {
	if p.insert != nil {
		return p.insert(a, row)
	}
	return p.write(a, row)
}

func anyone(*access, backend.Row) bool { return true }

func adminOnly(a *access, _ backend.Row) bool { return a.admin }

func ownerOrAdmin(a *access, row backend.Row) bool { return a.admin || a.owns(row) }

// defaultPolicies lists the tables reachable through Client.From. Auth
// tables are deliberately absent.
func defaultPolicies() map[string]policy {
	return map[string]policy{
		"properties":    {read: anyone, write: adminOnly},
		"site_settings": {read: anyone, write: adminOnly},
		"admins":        {read: ownerOrAdmin, write: adminOnly},
		"user_profiles": {
			read:   ownerOrAdmin,
			insert: func(a *access, row backend.Row) bool { return ownerOrAdmin(a, row) || a.registeredUser(row) },
			write:  ownerOrAdmin,
		},
		"user_consents": {read: adminOnly, insert: anyone, write: adminOnly},
	}
}
