// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/alrawaj/rawaj-web/internal/auth"
	"github.com/alrawaj/rawaj-web/internal/backend"
)

var (
	errInvalidCredentials = &backend.Error{
		Code:    backend.CodeInvalidCredentials,
		Message: "Invalid login credentials",
		Status:  http.StatusBadRequest,
	}
	errEmailNotConfirmed = &backend.Error{
		Code:    backend.CodeEmailNotConfirmed,
		Message: "Email not confirmed",
		Status:  http.StatusBadRequest,
	}
	errUserExists = &backend.Error{
		Code:    backend.CodeUserExists,
		Message: "User already registered",
		Status:  http.StatusUnprocessableEntity,
	}
	errInvalidEmail = &backend.Error{
		Code:    backend.CodeValidation,
		Message: "Unable to validate email address: invalid format",
		Status:  http.StatusBadRequest,
	}
	errLinkExpired = &backend.Error{
		Code:    backend.CodeLinkExpired,
		Message: "Email link is invalid or has expired",
		Status:  http.StatusForbidden,
	}
)

type userRow struct {
	ID                string         `db:"id"`
	Email             string         `db:"email"`
	PasswordHash      string         `db:"password_hash"`
	UserMetadata      string         `db:"user_metadata"`
	ConfirmationToken sql.NullString `db:"confirmation_token"`
	EmailConfirmedAt  sql.NullString `db:"email_confirmed_at"`
	LastSignInAt      sql.NullString `db:"last_sign_in_at"`
	CreatedAt         string         `db:"created_at"`
	UpdatedAt         string         `db:"updated_at"`
}

func (u userRow) toUser() backend.User {
	user := backend.User{ID: u.ID, Email: u.Email}
	if u.UserMetadata != "" {
		_ = json.Unmarshal([]byte(u.UserMetadata), &user.Metadata)
	}
	if t, err := time.Parse(time.RFC3339Nano, u.CreatedAt); err == nil {
		user.CreatedAt = t
	}
	if u.EmailConfirmedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, u.EmailConfirmedAt.String); err == nil {
			user.EmailConfirmedAt = &t
		}
	}
	return user
}

// Auth implements backend.Auth for one client. The session is persisted in
// the client's key/value store under backend.AuthStorageKey.
type Auth struct {
	backend *Backend
	kv      backend.KeyValueStore
	events  *broadcaster

	// mu serializes session reads and writes so concurrent requests of one
	// visitor never refresh the same token twice.
	mu sync.Mutex
}

var _ backend.Auth = (*Auth)(nil)

// OnAuthStateChange registers fn for later auth events.
func (a *Auth) OnAuthStateChange(fn func(backend.Event, *backend.Session)) backend.Subscription {
	return a.events.subscribe(fn)
}

// GetSession returns the persisted session, refreshing it when the access
// token is within a minute of expiry. An unusable refresh token signs the
// client out and yields a nil session.
func (a *Auth) GetSession(ctx context.Context) (*backend.Session, error) {
	a.mu.Lock()
	s, err := a.load(ctx)
	if err != nil || s == nil {
		a.mu.Unlock()
		return nil, err
	}

	if a.backend.now().Add(refreshMargin).Before(s.ExpiresAt) {
		if _, err := a.backend.tokens.Parse(s.AccessToken); err == nil {
			a.mu.Unlock()
			return s, nil
		}
	}

	refreshed, err := a.refresh(ctx, s)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if refreshed == nil {
		a.events.emit(backend.EventSignedOut, nil)
		return nil, nil
	}
	a.events.emit(backend.EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// SignInWithPassword authenticates and stores a new session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*backend.Session, error) {
	email = normalizeEmail(email)

	var u userRow
	err := a.backend.db.GetContext(ctx, &u, `SELECT * FROM auth_users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := auth.CheckPassword(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("checking password: %w", err)
	}
	if !ok {
		return nil, errInvalidCredentials
	}
	if a.backend.requireConfirm && !u.EmailConfirmedAt.Valid {
		return nil, errEmailNotConfirmed
	}

	a.mu.Lock()
	s, err := a.startSession(ctx, u)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	a.events.emit(backend.EventSignedIn, s)
	return s, nil
}

// SignUp creates an account. With email confirmation required it returns
// the user without a session; otherwise the new user is signed in.
func (a *Auth) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*backend.SignUpResult, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, errInvalidEmail
	}
	if err := auth.ValidatePassword(password); err != nil {
		return nil, &backend.Error{Code: backend.CodeWeakPassword, Message: err.Error(), Status: http.StatusUnprocessableEntity}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}

	now := backend.FormatTime(a.backend.now())
	u := userRow{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		UserMetadata: string(meta),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if a.backend.requireConfirm {
		token, err := auth.RandomToken(24)
		if err != nil {
			return nil, err
		}
		u.ConfirmationToken = sql.NullString{String: token, Valid: true}
	} else {
		u.EmailConfirmedAt = sql.NullString{String: now, Valid: true}
	}

	_, err = a.backend.db.NamedExecContext(ctx, `
		INSERT INTO auth_users (id, email, password_hash, user_metadata, confirmation_token,
			email_confirmed_at, created_at, updated_at)
		VALUES (:id, :email, :password_hash, :user_metadata, :confirmation_token,
			:email_confirmed_at, :created_at, :updated_at)`, u)
	if isUniqueViolation(err) {
		return nil, errUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user := u.toUser()
	if a.backend.requireConfirm {
		link := u.ConfirmationToken.String
		if a.backend.confirmURL != nil {
			link = a.backend.confirmURL(link)
		}
		a.backend.logger.Info("email confirmation required", "user_id", u.ID, "email", email, "confirm_url", link)
		return &backend.SignUpResult{User: &user}, nil
	}

	a.mu.Lock()
	s, err := a.startSession(ctx, u)
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}

	a.events.emit(backend.EventSignedIn, s)
	return &backend.SignUpResult{User: &user, Session: s}, nil
}

// SignOut revokes the refresh token and always drops the local session.
func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	s, _ := a.load(ctx)

	var remoteErr error
	if s != nil {
		if _, err := a.backend.db.ExecContext(ctx,
			`UPDATE auth_refresh_tokens SET revoked = 1 WHERE token = ?`, s.RefreshToken); err != nil {
			remoteErr = fmt.Errorf("revoking refresh token: %w", err)
		}
	}
	localErr := a.kv.Delete(ctx, backend.AuthStorageKey)
	a.mu.Unlock()

	a.events.emit(backend.EventSignedOut, nil)
	return errors.Join(remoteErr, localErr)
}

// callerID returns the user id behind the persisted session, or "". An
// access token near expiry is refreshed first, as in GetSession.
func (a *Auth) callerID(ctx context.Context) string {
	s, err := a.GetSession(ctx)
	if err != nil || s == nil {
		return ""
	}
	claims, err := a.backend.tokens.Parse(s.AccessToken)
	if err != nil {
		return ""
	}
	return claims.Subject
}

// startSession issues tokens and persists them. Callers hold a.mu.
func (a *Auth) startSession(ctx context.Context, u userRow) (*backend.Session, error) {
	s, err := a.backend.issueSession(ctx, a.backend.db, u)
	if err != nil {
		return nil, err
	}
	if err := a.store(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// refresh rotates the refresh token. A nil session means the token can no
// longer be used and the local session was dropped. Callers hold a.mu.
func (a *Auth) refresh(ctx context.Context, s *backend.Session) (*backend.Session, error) {
	tx, err := a.backend.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning refresh: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var tok struct {
		UserID    string `db:"user_id"`
		ExpiresAt string `db:"expires_at"`
		Revoked   bool   `db:"revoked"`
	}
	err = tx.GetContext(ctx, &tok,
		`SELECT user_id, expires_at, revoked FROM auth_refresh_tokens WHERE token = ?`, s.RefreshToken)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading refresh token: %w", err)
	}
	expired := true
	if t, perr := time.Parse(time.RFC3339Nano, tok.ExpiresAt); perr == nil {
		expired = !a.backend.now().Before(t)
	}
	if errors.Is(err, sql.ErrNoRows) || tok.Revoked || expired {
		return nil, a.kv.Delete(ctx, backend.AuthStorageKey)
	}

	var u userRow
	err = tx.GetContext(ctx, &u, `SELECT * FROM auth_users WHERE id = ?`, tok.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a.kv.Delete(ctx, backend.AuthStorageKey)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE auth_refresh_tokens SET revoked = 1 WHERE token = ?`, s.RefreshToken); err != nil {
		return nil, fmt.Errorf("revoking refresh token: %w", err)
	}
	next, err := a.backend.issueSession(ctx, tx, u)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing refresh: %w", err)
	}

	if err := a.store(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

func (a *Auth) load(ctx context.Context) (*backend.Session, error) {
	raw, ok, err := a.kv.Get(ctx, backend.AuthStorageKey)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var s backend.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		return nil, a.kv.Delete(ctx, backend.AuthStorageKey)
	}
	return &s, nil
}

func (a *Auth) store(ctx context.Context, s *backend.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := a.kv.Set(ctx, backend.AuthStorageKey, string(data)); err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// issueSession signs an access token and records a fresh refresh token.
func (b *Backend) issueSession(ctx context.Context, db execer, u userRow) (*backend.Session, error) {
	access, expires, err := b.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.RandomToken(32)
	if err != nil {
		return nil, err
	}

	now := b.now()
	if _, err := db.ExecContext(ctx, `
		INSERT INTO auth_refresh_tokens (token, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`,
		refresh, u.ID, backend.FormatTime(now.Add(RefreshTokenTTL)), backend.FormatTime(now)); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		`UPDATE auth_users SET last_sign_in_at = ? WHERE id = ?`, backend.FormatTime(now), u.ID); err != nil {
		return nil, fmt.Errorf("updating last sign-in: %w", err)
	}

	return &backend.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expires,
		User:         u.toUser(),
	}, nil
}

// ConfirmEmail marks the account holding token as confirmed.
func (b *Backend) ConfirmEmail(ctx context.Context, token string) error {
	if token == "" {
		return errLinkExpired
	}
	now := backend.FormatTime(b.now())
	res, err := b.db.ExecContext(ctx, `
		UPDATE auth_users SET email_confirmed_at = ?, confirmation_token = NULL, updated_at = ?
		WHERE confirmation_token = ? AND email_confirmed_at IS NULL`, now, now, token)
	if err != nil {
		return fmt.Errorf("confirming email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errLinkExpired
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
