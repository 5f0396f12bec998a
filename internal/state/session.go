// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package state holds the per-visitor client state (session, admin role,
// language) and the process-wide property catalog. Each store is the only
// writer of its own fields; readers get copies.
package state

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// Profile is the extra sign-up information stored in user_profiles.
type Profile struct {
	FullName    string
	PhoneNumber string
}

// SessionListener is called after every session change. s is nil when
// signed out.
type SessionListener func(s *backend.Session)

// SessionState tracks the signed-in user of one visitor. The backend
// event stream is the source of truth; direct login results are applied
// too and converge on the same value.
type SessionState struct {
	client backend.Client
	logger *slog.Logger

	// notifyMu serializes apply so listeners see changes in order.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	session   *backend.Session
	sub       backend.Subscription
	listeners map[int]SessionListener
	nextID    int
	closed    bool
}

// NewSessionState creates a signed-out SessionState. Call Restore to load
// the persisted session and start following auth events.
func NewSessionState(client backend.Client, logger *slog.Logger) *SessionState {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionState{
		client:    client,
		logger:    logger,
		listeners: make(map[int]SessionListener),
	}
}

// Restore loads the current session from the backend and subscribes to
// auth events. Listeners are notified even when there is no session, so
// derived state can settle. A backend failure leaves the visitor signed
// out and is returned.
func (s *SessionState) Restore(ctx context.Context) error {
	s.mu.Lock()
	if s.sub == nil && !s.closed {
		s.sub = s.client.Auth().OnAuthStateChange(s.onAuthEvent)
	}
	s.mu.Unlock()

	sess, err := s.client.Auth().GetSession(ctx)
	if err != nil {
		s.logger.Warn("restoring session failed", "error", err)
		sess = nil
	}
	s.apply(sess, true)
	return err
}

// Refresh re-reads the session of a signed-in visitor so an access token
// near expiry is renewed before it is used. A refresh the backend rejects
// signs the visitor out; a failed call keeps the current session.
func (s *SessionState) Refresh(ctx context.Context) error {
	if s.Session() == nil {
		return nil
	}

	sess, err := s.client.Auth().GetSession(ctx)
	if err != nil {
		s.logger.Warn("refreshing session failed", "error", err)
		return err
	}
	s.apply(sess, false)
	return nil
}

func (s *SessionState) onAuthEvent(event backend.Event, sess *backend.Session) {
	s.logger.Debug("auth event", "event", event, "signed_in", sess != nil)
	if event == backend.EventSignedOut {
		sess = nil
	}
	s.apply(sess, false)
}

// apply stores sess and notifies listeners. Applying the session already
// held is a no-op unless force is set.
func (s *SessionState) apply(sess *backend.Session, force bool) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.closed || (!force && sameSession(s.session, sess)) {
		s.mu.Unlock()
		return
	}
	s.session = sess
	listeners := make([]SessionListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(sess)
	}
}

func sameSession(a, b *backend.Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.AccessToken == b.AccessToken && a.User.ID == b.User.ID
}

// Session returns the current session or nil.
func (s *SessionState) Session() *backend.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// UserID returns the signed-in user id, or "".
func (s *SessionState) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return ""
	}
	return s.session.User.ID
}

// Subscribe registers fn for later session changes. The returned function
// removes it.
func (s *SessionState) Subscribe(fn SessionListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// SignUp creates an account and then writes its profile row. A failed
// profile write is logged and does not fail the sign-up. Backend errors
// from account creation are returned unchanged.
func (s *SessionState) SignUp(ctx context.Context, email, password string, p Profile) (*backend.SignUpResult, error) {
	res, err := s.client.Auth().SignUp(ctx, email, password, map[string]string{
		"full_name":    p.FullName,
		"phone_number": p.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	if res.User != nil {
		profile := model.UserProfile{
			ID:          res.User.ID,
			FullName:    p.FullName,
			PhoneNumber: p.PhoneNumber,
			Email:       email,
		}
		row, err := backend.ToRow(profile)
		if err == nil {
			delete(row, "created_at")
			err = s.client.From("user_profiles").Upsert(ctx, row, "id")
		}
		if err != nil {
			s.logger.Warn("user profile write failed", "user_id", res.User.ID, "error", err)
		}
	}

	if res.Session != nil {
		s.apply(res.Session, false)
	}
	return res, nil
}

// Login signs in with a password. On success the session has already
// been applied when Login returns.
func (s *SessionState) Login(ctx context.Context, email, password string) error {
	sess, err := s.client.Auth().SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	s.apply(sess, false)
	return nil
}

// Logout signs out. The local session is cleared even when the backend
// call fails; that error is still returned.
func (s *SessionState) Logout(ctx context.Context) error {
	err := s.client.Auth().SignOut(ctx)
	if err != nil {
		s.logger.Warn("remote sign out failed", "error", err)
	}
	s.apply(nil, false)
	return err
}

// Close stops following auth events and drops every listener.
func (s *SessionState) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.closed = true
	s.listeners = make(map[int]SessionListener)
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}
