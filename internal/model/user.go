// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// UserProfile is the public profile written at sign-up.
type UserProfile struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"created_at"`
}

// Matches reports whether the profile matches a search term: name and
// email case-insensitively, phone number by substring.
func (u UserProfile) Matches(term string) bool {
	term = strings.TrimSpace(term)
	if term == "" {
		return true
	}
	lower := strings.ToLower(term)
	return strings.Contains(strings.ToLower(u.FullName), lower) ||
		strings.Contains(strings.ToLower(u.Email), lower) ||
		strings.Contains(u.PhoneNumber, term)
}

// UserWithRole is a profile together with its admin membership.
type UserWithRole struct {
	UserProfile
	IsAdmin bool
}

// AdminMembership is a row of the admins table.
type AdminMembership struct {
	ID string `json:"id"`
}
