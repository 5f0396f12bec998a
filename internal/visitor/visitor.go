// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package visitor keeps the client state of every active visitor: its
// backend client, session, admin role and language. Visitors idle for
// longer than the configured TTL are closed and rebuilt from their
// persisted storage on the next request.
package visitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/localstore"
	"github.com/alrawaj/rawaj-web/internal/state"
)

// DefaultIdleTTL is used when no idle TTL is configured.
const DefaultIdleTTL = 30 * time.Minute

// restoreTimeout bounds the session restore of a new visitor. It is not
// tied to the request that happened to build it.
const restoreTimeout = 10 * time.Second

// Client is a backend client that can drop its auth listeners.
type Client interface {
	backend.Client
	Close()
}

// ClientFactory builds a client whose session lives in kv.
type ClientFactory func(kv backend.KeyValueStore) Client

// Visitor is the state of one browser.
type Visitor struct {
	ID       string
	KV       backend.KeyValueStore
	Client   backend.Client
	Session  *state.SessionState
	Admin    *state.AdminRoleState
	Language *state.LanguageState

	client   Client
	lastSeen time.Time
	ready    chan struct{}
}

func (v *Visitor) close() {
	v.Admin.Close()
	v.Session.Close()
	v.client.Close()
}

// Options configures a Registry.
type Options struct {
	Store     *localstore.Store
	NewClient ClientFactory
	Catalog   *i18n.Catalog
	IdleTTL   time.Duration
	Logger    *slog.Logger
}

// Registry maps visitor ids to their state.
type Registry struct {
	store     *localstore.Store
	newClient ClientFactory
	catalog   *i18n.Catalog
	idleTTL   time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[string]*Visitor
	lastSweep time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		store:     opts.Store,
		newClient: opts.NewClient,
		catalog:   opts.Catalog,
		idleTTL:   opts.IdleTTL,
		logger:    opts.Logger,
		now:       time.Now,
		visitors:  make(map[string]*Visitor),
	}
}

// Get returns the visitor with id, building and restoring it when it is
// not active. created reports whether it was built by this call. A
// failed session restore is logged and leaves the visitor signed out.
func (r *Registry) Get(ctx context.Context, id string) (v *Visitor, created bool) {
	r.sweep()

	r.mu.Lock()
	if v, ok := r.visitors[id]; ok {
		v.lastSeen = r.now()
		r.mu.Unlock()
		<-v.ready
		return v, false
	}
	v = &Visitor{ID: id, lastSeen: r.now(), ready: make(chan struct{})}
	r.visitors[id] = v
	r.mu.Unlock()

	r.build(ctx, v)
	close(v.ready)
	return v, true
}

func (r *Registry) build(ctx context.Context, v *Visitor) {
	logger := r.logger.With("visitor", v.ID)

	kv := r.store.For(v.ID)
	client := r.newClient(kv)

	v.KV = kv
	v.client = client
	v.Client = client
	v.Session = state.NewSessionState(client, logger)
	v.Admin = state.NewAdminRoleState(v.Session, client, logger)
	v.Language = state.NewLanguageState(kv, r.catalog, logger)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), restoreTimeout)
	defer cancel()
	if err := v.Session.Restore(ctx); err != nil {
		logger.Warn("visitor session restore failed", "error", err)
	}
}

// sweep closes visitors idle for longer than the TTL. It runs at most
// once per quarter TTL.
func (r *Registry) sweep() {
	now := r.now()

	r.mu.Lock()
	if now.Sub(r.lastSweep) < r.idleTTL/4 {
		r.mu.Unlock()
		return
	}
	r.lastSweep = now

	var idle []*Visitor
	for id, v := range r.visitors {
		if now.Sub(v.lastSeen) > r.idleTTL {
			idle = append(idle, v)
			delete(r.visitors, id)
		}
	}
	r.mu.Unlock()

	for _, v := range idle {
		r.closeVisitor(v)
	}
	if len(idle) > 0 {
		r.logger.Debug("closed idle visitors", "count", len(idle))
	}
}

func (r *Registry) closeVisitor(v *Visitor) {
	<-v.ready
	v.close()
	if err := r.store.DropCache(context.Background(), v.ID); err != nil {
		r.logger.Warn("dropping visitor cache failed", "visitor", v.ID, "error", err)
	}
}

// Len returns the number of active visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Close closes every visitor.
func (r *Registry) Close() {
	r.mu.Lock()
	visitors := r.visitors
	r.visitors = make(map[string]*Visitor)
	r.mu.Unlock()

	for _, v := range visitors {
		r.closeVisitor(v)
	}
}

type contextKey struct{}

// NewContext returns ctx carrying v.
func NewContext(ctx context.Context, v *Visitor) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the visitor stored in ctx, or nil.
func FromContext(ctx context.Context) *Visitor {
	v, _ := ctx.Value(contextKey{}).(*Visitor)
	return v
}
