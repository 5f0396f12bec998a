// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

// FakeBackend is an in-memory backend.Client for tests. Tables hold
// backend.Row values; Hook runs before every table request and can delay
// or fail it.
type FakeBackend struct {
	FakeAuth    *FakeAuth
	FakeStorage *FakeStorage

	// Hook, when set, runs before each table request. A non-nil error is
	// returned to the caller instead of executing the request.
	Hook func(ctx context.Context, req *backend.Request) error

	mu     sync.Mutex
	tables map[string][]backend.Row
	seq    int
	base   time.Time
	calls  []backend.Request
	closed atomic.Bool
}

var _ backend.Client = (*FakeBackend)(nil)

// DefaultTables are the tables a FakeBackend starts with.
var DefaultTables = []string{"properties", "admins", "user_profiles", "site_settings", "user_consents"}

// NewFakeBackend returns a backend with empty DefaultTables.
func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		FakeAuth:    NewFakeAuth(),
		FakeStorage: NewFakeStorage(),
		tables:      make(map[string][]backend.Row),
		base:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, t := range DefaultTables {
		fb.tables[t] = nil
	}
	return fb
}

// Auth returns the fake auth API.
func (fb *FakeBackend) Auth() backend.Auth { return fb.FakeAuth }

// Storage returns the fake object store.
func (fb *FakeBackend) Storage() backend.Storage { return fb.FakeStorage }

// From starts a query against an in-memory table.
func (fb *FakeBackend) From(table string) *backend.Query {
	return backend.NewQuery(backend.ExecutorFunc(fb.execute), table)
}

// Close marks the backend closed. Tables stay readable.
func (fb *FakeBackend) Close() { fb.closed.Store(true) }

// Closed reports whether Close was called.
func (fb *FakeBackend) Closed() bool { return fb.closed.Load() }

// DropTable removes a table so later requests fail with an undefined table error.
func (fb *FakeBackend) DropTable(name string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	delete(fb.tables, name)
}

// Seed inserts rows directly, filling id and created_at like an insert.
func (fb *FakeBackend) Seed(table string, values ...any) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	for _, v := range values {
		row, err := backend.ToRow(v)
		if err != nil {
			panic(err)
		}
		fb.tables[table] = append(fb.tables[table], fb.fill(row))
	}
}

// Rows returns a copy of a table's rows in insertion order.
func (fb *FakeBackend) Rows(table string) []backend.Row {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]backend.Row, len(fb.tables[table]))
	copy(out, fb.tables[table])
	return out
}

// Calls returns every table request received so far.
func (fb *FakeBackend) Calls() []backend.Request {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	out := make([]backend.Request, len(fb.calls))
	copy(out, fb.calls)
	return out
}

// CountCalls returns how many requests hit table with action.
func (fb *FakeBackend) CountCalls(table string, action backend.Action) int {
	n := 0
	for _, c := range fb.Calls() {
		if c.Table == table && c.Action == action {
			n++
		}
	}
	return n
}

func (fb *FakeBackend) execute(ctx context.Context, req *backend.Request) ([]backend.Row, error) {
	fb.mu.Lock()
	fb.calls = append(fb.calls, *req)
	hook := fb.Hook
	fb.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, req); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()

	rows, ok := fb.tables[req.Table]
	if !ok {
		return nil, &backend.Error{
			Code:    backend.CodeUndefinedTable,
			Message: fmt.Sprintf("relation %q does not exist", req.Table),
			Status:  404,
		}
	}

	switch req.Action {
	case backend.ActionSelect:
		return fb.selectRows(rows, req), nil
	case backend.ActionInsert:
		for _, r := range req.Rows {
			fb.tables[req.Table] = append(fb.tables[req.Table], fb.fill(r))
		}
		return nil, nil
	case backend.ActionUpdate:
		for i, r := range rows {
			if matches(r, req.Filters) {
				rows[i] = merge(r, req.Patch)
			}
		}
		return nil, nil
	case backend.ActionUpsert:
		key := req.OnConflict
		if key == "" {
			key = "id"
		}
		for _, in := range req.Rows {
			replaced := false
			for i, r := range fb.tables[req.Table] {
				if fmt.Sprint(r[key]) == fmt.Sprint(in[key]) {
					fb.tables[req.Table][i] = merge(r, in)
					replaced = true
					break
				}
			}
			if !replaced {
				fb.tables[req.Table] = append(fb.tables[req.Table], fb.fill(in))
			}
		}
		return nil, nil
	case backend.ActionDelete:
		kept := rows[:0:0]
		for _, r := range rows {
			if !matches(r, req.Filters) {
				kept = append(kept, r)
			}
		}
		fb.tables[req.Table] = kept
		return nil, nil
	}
	return nil, fmt.Errorf("fake backend: unsupported action %q", req.Action)
}

func (fb *FakeBackend) selectRows(rows []backend.Row, req *backend.Request) []backend.Row {
	var out []backend.Row
	for _, r := range rows {
		if !matches(r, req.Filters) {
			continue
		}
		if len(req.Columns) == 0 {
			out = append(out, merge(r, nil))
			continue
		}
		picked := make(backend.Row, len(req.Columns))
		for _, c := range req.Columns {
			picked[c] = r[c]
		}
		out = append(out, picked)
	}

	if len(req.Orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range req.Orders {
				a, b := fmt.Sprint(out[i][o.Column]), fmt.Sprint(out[j][o.Column])
				if a == b {
					continue
				}
				if o.Desc {
					return a > b
				}
				return a < b
			}
			return false
		})
	}
	return out
}

// fill assigns id and created_at to rows that lack them. Each filled
// timestamp is one second after the previous one.
func (fb *FakeBackend) fill(r backend.Row) backend.Row {
	row := merge(r, nil)
	if _, ok := row["id"]; !ok {
		row["id"] = uuid.NewString()
	}
	if _, ok := row["created_at"]; !ok {
		fb.seq++
		row["created_at"] = backend.FormatTime(fb.base.Add(time.Duration(fb.seq) * time.Second))
	}
	return row
}

func matches(r backend.Row, filters []backend.Filter) bool {
	for _, f := range filters {
		if fmt.Sprint(r[f.Column]) != fmt.Sprint(f.Value) {
			return false
		}
	}
	return true
}

func merge(r, patch backend.Row) backend.Row {
	out := make(backend.Row, len(r)+len(patch))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// FakeUser is an account known to FakeAuth.
type FakeUser struct {
	ID        string
	Email     string
	Password  string
	Metadata  map[string]string
	Confirmed bool
}

// FakeAuth is an in-memory backend.Auth. Events are delivered
// synchronously to listeners, like the local backend does.
type FakeAuth struct {
	// RequireConfirm makes SignUp return no session and SignIn reject
	// unconfirmed users.
	RequireConfirm bool
	// SignOutErr is returned by SignOut after the session is cleared.
	SignOutErr error
	// GetSessionErr is returned by GetSession when set.
	GetSessionErr error

	mu        sync.Mutex
	users     map[string]*FakeUser
	session   *backend.Session
	listeners map[int]func(backend.Event, *backend.Session)
	nextID    int
	tokens    int
}

// NewFakeAuth returns an auth API with no users.
func NewFakeAuth() *FakeAuth {
	return &FakeAuth{
		users:     make(map[string]*FakeUser),
		listeners: make(map[int]func(backend.Event, *backend.Session)),
	}
}

// AddUser registers a confirmed account and returns its id.
func (a *FakeAuth) AddUser(email, password string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := uuid.NewString()
	a.users[email] = &FakeUser{ID: id, Email: email, Password: password, Confirmed: true}
	return id
}

// SessionFor builds a session for a registered user without emitting events.
func (a *FakeAuth) SessionFor(email string) *backend.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.users[email]
	if !ok {
		return nil
	}
	return a.newSession(u)
}

// SetSession replaces the stored session without emitting events.
func (a *FakeAuth) SetSession(s *backend.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session = s
}

// Emit delivers an event to every listener.
func (a *FakeAuth) Emit(event backend.Event, s *backend.Session) {
	a.mu.Lock()
	fns := make([]func(backend.Event, *backend.Session), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(event, s)
	}
}

// ListenerCount returns the number of active subscriptions.
func (a *FakeAuth) ListenerCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

// GetSession returns the stored session. A done ctx fails like a real
// backend call would.
func (a *FakeAuth) GetSession(ctx context.Context) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.GetSessionErr != nil {
		return nil, a.GetSessionErr
	}
	return a.session, nil
}

// OnAuthStateChange registers fn.
func (a *FakeAuth) OnAuthStateChange(fn func(backend.Event, *backend.Session)) backend.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.listeners[id] = fn
	return fakeSubscription(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.listeners, id)
	})
}

// SignInWithPassword checks the password and starts a session.
func (a *FakeAuth) SignInWithPassword(_ context.Context, email, password string) (*backend.Session, error) {
	a.mu.Lock()
	u, ok := a.users[email]
	if !ok || u.Password != password {
		a.mu.Unlock()
		return nil, &backend.Error{Code: backend.CodeInvalidCredentials, Message: "Invalid login credentials", Status: 400}
	}
	if a.RequireConfirm && !u.Confirmed {
		a.mu.Unlock()
		return nil, &backend.Error{Code: backend.CodeEmailNotConfirmed, Message: "Email not confirmed", Status: 400}
	}
	s := a.newSession(u)
	a.session = s
	a.mu.Unlock()

	a.Emit(backend.EventSignedIn, s)
	return s, nil
}

// SignUp registers a user and, unless RequireConfirm is set, signs it in.
func (a *FakeAuth) SignUp(_ context.Context, email, password string, metadata map[string]string) (*backend.SignUpResult, error) {
	a.mu.Lock()
	if _, ok := a.users[email]; ok {
		a.mu.Unlock()
		return nil, &backend.Error{Code: backend.CodeUserExists, Message: "User already registered", Status: 422}
	}
	if len(password) < 6 {
		a.mu.Unlock()
		return nil, &backend.Error{Code: backend.CodeWeakPassword, Message: "Password should be at least 6 characters.", Status: 422}
	}
	u := &FakeUser{ID: uuid.NewString(), Email: email, Password: password, Metadata: metadata, Confirmed: !a.RequireConfirm}
	a.users[email] = u
	user := backend.User{ID: u.ID, Email: u.Email, Metadata: metadata}
	if a.RequireConfirm {
		a.mu.Unlock()
		return &backend.SignUpResult{User: &user}, nil
	}
	s := a.newSession(u)
	a.session = s
	a.mu.Unlock()

	a.Emit(backend.EventSignedIn, s)
	return &backend.SignUpResult{User: &user, Session: s}, nil
}

// SignOut clears the session, emits SIGNED_OUT and returns SignOutErr.
func (a *FakeAuth) SignOut(_ context.Context) error {
	a.mu.Lock()
	a.session = nil
	err := a.SignOutErr
	a.mu.Unlock()

	a.Emit(backend.EventSignedOut, nil)
	return err
}

func (a *FakeAuth) newSession(u *FakeUser) *backend.Session {
	a.tokens++
	return &backend.Session{
		AccessToken:  fmt.Sprintf("access-%d", a.tokens),
		RefreshToken: fmt.Sprintf("refresh-%d", a.tokens),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         backend.User{ID: u.ID, Email: u.Email, Metadata: u.Metadata},
	}
}

type fakeSubscription func()

func (f fakeSubscription) Unsubscribe() { f() }

// FakeStorage is an in-memory backend.Storage.
type FakeStorage struct {
	// UploadErr fails every upload when set.
	UploadErr error

	mu      sync.Mutex
	objects map[string][]byte
}

// NewFakeStorage returns an empty store.
func NewFakeStorage() *FakeStorage {
	return &FakeStorage{objects: make(map[string][]byte)}
}

// Upload stores the object.
func (s *FakeStorage) Upload(_ context.Context, bucket, path string, r io.Reader, _ string) error {
	if s.UploadErr != nil {
		return s.UploadErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+path] = buf.Bytes()
	return nil
}

// PublicURL returns a fixed-host URL for the object.
func (s *FakeStorage) PublicURL(bucket, path string) string {
	return "https://cdn.test/storage/" + bucket + "/" + path
}

// Objects returns the stored object keys ("bucket/path").
func (s *FakeStorage) Objects() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
