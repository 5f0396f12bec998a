// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// adminCheckTimeout bounds a background membership check.
const adminCheckTimeout = 10 * time.Second

// AdminFlag is the admin status of the current session. Loading is true
// while a membership check is outstanding.
type AdminFlag struct {
	IsAdmin bool
	Loading bool
}

// LoginResult is the outcome of AdminRoleState.Login.
type LoginResult struct {
	Session *backend.Session
	IsAdmin bool
}

// AdminRoleState derives the admin flag from the session. Every session
// change starts a fresh membership check; only the check issued last may
// set the flag.
type AdminRoleState struct {
	session *SessionState
	client  backend.Client
	logger  *slog.Logger

	mu      sync.Mutex
	flag    AdminFlag
	userID  string
	gen     uint64
	settled chan struct{}
	closed  bool

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewAdminRoleState subscribes to session. The flag stays loading until
// the first session change is observed (normally from Restore).
func NewAdminRoleState(session *SessionState, client backend.Client, logger *slog.Logger) *AdminRoleState {
	if logger == nil {
		logger = slog.Default()
	}
	a := &AdminRoleState{
		session: session,
		client:  client,
		logger:  logger,
		flag:    AdminFlag{Loading: true},
		settled: make(chan struct{}),
	}
	a.unsubscribe = session.Subscribe(a.onSessionChange)
	return a
}

func (a *AdminRoleState) onSessionChange(sess *backend.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.gen++
	if sess == nil {
		a.userID = ""
		a.settle(false)
		return
	}

	gen, id := a.gen, sess.User.ID
	if id != a.userID {
		a.flag.IsAdmin = false
	}
	a.userID = id
	a.markLoading()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), adminCheckTimeout)
		defer cancel()
		a.resolve(gen, a.isMember(ctx, id))
	}()
}

// markLoading sets Loading and opens a new settled channel. Caller holds mu.
func (a *AdminRoleState) markLoading() {
	if !a.flag.Loading {
		a.settled = make(chan struct{})
	}
	a.flag.Loading = true
}

// settle stores the final flag and wakes waiters. Caller holds mu.
func (a *AdminRoleState) settle(isAdmin bool) {
	wasLoading := a.flag.Loading
	a.flag = AdminFlag{IsAdmin: isAdmin}
	if wasLoading {
		close(a.settled)
	}
}

// resolve applies a check result unless a newer check was issued since.
func (a *AdminRoleState) resolve(gen uint64, isAdmin bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || a.closed {
		a.logger.Debug("discarding stale admin check", "generation", gen, "current", a.gen)
		return false
	}
	a.settle(isAdmin)
	return true
}

// isMember looks the user up in the admins table. A missing row means
// not an admin; any other failure is logged and also means not an admin.
func (a *AdminRoleState) isMember(ctx context.Context, userID string) bool {
	var m model.AdminMembership
	err := a.client.From("admins").Select("id").Eq("id", userID).Single(ctx, &m)
	switch {
	case err == nil:
		return true
	case backend.IsNotFound(err):
		return false
	default:
		a.logger.Error("admin membership check failed", "user_id", userID, "error", err)
		return false
	}
}

// Flag returns the current admin flag.
func (a *AdminRoleState) Flag() AdminFlag {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flag
}

// IsAdmin reports whether the settled flag grants admin access.
func (a *AdminRoleState) IsAdmin() bool {
	f := a.Flag()
	return f.IsAdmin && !f.Loading
}

// WaitSettled blocks until no check is outstanding or ctx is done, and
// returns the flag at that moment.
func (a *AdminRoleState) WaitSettled(ctx context.Context) (AdminFlag, error) {
	for {
		a.mu.Lock()
		if !a.flag.Loading || a.closed {
			f := a.flag
			a.mu.Unlock()
			return f, nil
		}
		ch := a.settled
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return a.Flag(), ctx.Err()
		}
	}
}

// Login authenticates and then checks membership before returning, so
// the caller can route the user on the correct flag. A failed membership
// check never fails the login; it resolves to a non-admin.
func (a *AdminRoleState) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if err := a.session.Login(ctx, email, password); err != nil {
		return LoginResult{}, err
	}

	sess := a.session.Session()
	if sess == nil {
		return LoginResult{}, errors.New("signed in without a session")
	}

	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.userID = sess.User.ID
	a.markLoading()
	a.mu.Unlock()

	isAdmin := a.isMember(ctx, sess.User.ID)
	a.resolve(gen, isAdmin)

	return LoginResult{Session: sess, IsAdmin: isAdmin}, nil
}

// Recheck re-runs the membership check for the current session and
// waits for it. It is used when a write is rejected, since a revoked role
// is otherwise only noticed on the next session change.
func (a *AdminRoleState) Recheck(ctx context.Context) bool {
	sess := a.session.Session()
	if sess == nil {
		return false
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false
	}
	a.gen++
	gen := a.gen
	a.userID = sess.User.ID
	a.markLoading()
	a.mu.Unlock()

	isAdmin := a.isMember(ctx, sess.User.ID)
	a.resolve(gen, isAdmin)
	return isAdmin
}

// Logout signs out and clears the flag without waiting for the session
// event. The backend error, if any, is returned after local state is
// cleared.
func (a *AdminRoleState) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)

	a.mu.Lock()
	a.gen++
	a.userID = ""
	a.settle(false)
	a.mu.Unlock()

	return err
}

// Close unsubscribes from the session and waits for running checks.
func (a *AdminRoleState) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	if a.flag.Loading {
		a.flag.Loading = false
		close(a.settled)
	}
	a.mu.Unlock()

	a.unsubscribe()
	a.wg.Wait()
}
