// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package local is a self-hosted implementation of the backend contract
// on top of the site's SQLite database and a directory of storage buckets.
package local

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/auth"
	"github.com/alrawaj/rawaj-web/internal/backend"
)

// RefreshTokenTTL is the lifetime of a refresh token.
const RefreshTokenTTL = 30 * 24 * time.Hour

// refreshMargin is how close to expiry an access token gets refreshed.
const refreshMargin = 60 * time.Second

// Options configures a Backend.
type Options struct {
	DB     *sqlx.DB
	Tokens *auth.TokenService
	Logger *slog.Logger

	// StorageDir holds one sub-directory per bucket.
	StorageDir string
	// PublicURL prefixes storage URLs; empty yields site-relative URLs.
	PublicURL string
	// Buckets lists the buckets that accept uploads.
	Buckets []string
	// MaxUploadBytes caps a single object.
	MaxUploadBytes int64

	// RequireEmailConfirm withholds sessions until the address is confirmed.
	RequireEmailConfirm bool
	// ConfirmURL builds the link sent to a new user; nil logs the raw token.
	ConfirmURL func(token string) string
}

// Backend owns the shared resources behind every client.
type Backend struct {
	db             *sqlx.DB
	tokens         *auth.TokenService
	logger         *slog.Logger
	tables         *tableEngine
	storage        *FileStorage
	requireConfirm bool
	confirmURL     func(string) string
	now            func() time.Time
}

// New creates a Backend.
func New(opts Options) (*Backend, error) {
	if opts.DB == nil {
		return nil, errors.New("local backend: database is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("local backend: token service is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	storage, err := NewFileStorage(opts.StorageDir, opts.PublicURL, opts.MaxUploadBytes, opts.Buckets...)
	if err != nil {
		return nil, fmt.Errorf("local backend: %w", err)
	}

	b := &Backend{
		db:             opts.DB,
		tokens:         opts.Tokens,
		logger:         opts.Logger,
		storage:        storage,
		requireConfirm: opts.RequireEmailConfirm,
		confirmURL:     opts.ConfirmURL,
		now:            time.Now,
	}
	b.tables = newTableEngine(opts.DB, defaultPolicies(), func() time.Time { return b.now() })
	return b, nil
}

// NewClient returns a client whose session lives in kv.
func (b *Backend) NewClient(kv backend.KeyValueStore) *Client {
	c := &Client{backend: b}
	c.auth = &Auth{backend: b, kv: kv, events: newBroadcaster()}
	return c
}

// FileStorage returns the bucket store, used to serve public objects.
func (b *Backend) FileStorage() *FileStorage {
	return b.storage
}

// Client is one visitor's view of the backend. It implements backend.Client.
type Client struct {
	backend *Backend
	auth    *Auth
}

var _ backend.Client = (*Client)(nil)

// Auth returns the client's auth API.
func (c *Client) Auth() backend.Auth {
	return c.auth
}

// From starts a query on a table, executed with the client's identity.
func (c *Client) From(table string) *backend.Query {
	return backend.NewQuery(backend.ExecutorFunc(c.execute), table)
}

// Storage returns the object storage API.
func (c *Client) Storage() backend.Storage {
	return c.backend.storage
}

// Close drops every auth listener registered on the client.
func (c *Client) Close() {
	c.auth.events.clear()
}

func (c *Client) execute(ctx context.Context, req *backend.Request) ([]backend.Row, error) {
	return c.backend.tables.execute(ctx, c.auth.callerID(ctx), req)
}
