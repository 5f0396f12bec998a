// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend declares the contract of the backend service the site
// delegates all data access to: password authentication with a session
// event stream, row-oriented tables addressed by name, and object storage.
package backend

import (
	"context"
	"io"
	"time"
)

// AuthStorageKey is the key under which a client persists its session.
const AuthStorageKey = "rawaj-auth-token"

// TimeLayout is the fixed-width UTC layout used for stored timestamps, so
// that lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Event is an auth state change kind.
type Event string

// Auth events emitted to OnAuthStateChange subscribers.
const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
	EventUserUpdated    Event = "USER_UPDATED"
)

// User is an authenticated identity.
type User struct {
	ID               string            `json:"id"`
	Email            string            `json:"email"`
	Metadata         map[string]string `json:"user_metadata,omitempty"`
	EmailConfirmedAt *time.Time        `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Session is an issued credential pair for a user.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// SignUpResult is returned by Auth.SignUp. Session is nil when the account
// must confirm its email before it can sign in.
type SignUpResult struct {
	User    *User
	Session *Session
}

// Subscription is a handle to an auth state listener.
type Subscription interface {
	Unsubscribe()
}

// Auth is the authentication half of a client.
type Auth interface {
	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*Session, error)
	// OnAuthStateChange registers fn for every later auth event.
	OnAuthStateChange(fn func(Event, *Session)) Subscription
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*SignUpResult, error)
	SignOut(ctx context.Context) error
}

// Storage is the object storage half of a client.
type Storage interface {
	Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error
	PublicURL(bucket, path string) string
}

// Client is one visitor's handle on the backend.
type Client interface {
	Auth() Auth
	From(table string) *Query
	Storage() Storage
}

// KeyValueStore persists small client-side values such as the session.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
