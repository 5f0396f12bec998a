// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package localstore keeps small per-visitor values that must survive
// restarts: the chosen language, the consent flag and the backend session.
// Values live in the visitor_storage table with a read-through cache.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/cache"
)

// Well-known keys.
const (
	KeyLanguage = "lang"
	KeyConsent  = "rawaj_consent"
	KeyAuth     = backend.AuthStorageKey
)

// Cached values carry a one-byte tag so misses can be cached too.
const (
	tagPresent = '1'
	tagAbsent  = '0'
)

// Store is the shared per-visitor key/value store.
type Store struct {
	db     *sqlx.DB
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Store. c may be nil to disable caching.
func New(db *sqlx.DB, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, cache: c, ttl: ttl, logger: logger, now: time.Now}
}

// For returns the key/value view of one visitor.
func (s *Store) For(visitorID string) *Visitor {
	return &Visitor{store: s, id: visitorID}
}

// DropCache forgets the cached values of a visitor. Stored rows are kept.
func (s *Store) DropCache(ctx context.Context, visitorID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.DeleteByPrefix(ctx, cachePrefix(visitorID))
}

func cachePrefix(visitorID string) string {
	return "visitor:" + visitorID + ":"
}

// Visitor is one visitor's storage. It implements backend.KeyValueStore.
type Visitor struct {
	store *Store
	id    string
}

var _ backend.KeyValueStore = (*Visitor)(nil)

// ID returns the visitor id.
func (v *Visitor) ID() string {
	return v.id
}

// Get returns the value under key.
func (v *Visitor) Get(ctx context.Context, key string) (string, bool, error) {
	s := v.store
	ck := cachePrefix(v.id) + key

	if s.cache != nil {
		if b, err := s.cache.Get(ctx, ck); err == nil && len(b) > 0 {
			if b[0] == tagAbsent {
				return "", false, nil
			}
			return string(b[1:]), true, nil
		} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("visitor cache read failed", "error", err)
		}
	}

	var value string
	err := s.db.GetContext(ctx, &value,
		`SELECT value FROM visitor_storage WHERE visitor_id = ? AND key = ?`, v.id, key)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		v.remember(ctx, ck, []byte{tagAbsent})
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}

	v.remember(ctx, ck, append([]byte{tagPresent}, value...))
	return value, true, nil
}

// Set stores value under key.
func (v *Visitor) Set(ctx context.Context, key, value string) error {
	s := v.store
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitor_storage (visitor_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(visitor_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		v.id, key, value, backend.FormatTime(s.now()))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	v.remember(ctx, cachePrefix(v.id)+key, append([]byte{tagPresent}, value...))
	return nil
}

// Delete removes key.
func (v *Visitor) Delete(ctx context.Context, key string) error {
	s := v.store
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM visitor_storage WHERE visitor_id = ? AND key = ?`, v.id, key); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	v.remember(ctx, cachePrefix(v.id)+key, []byte{tagAbsent})
	return nil
}

func (v *Visitor) remember(ctx context.Context, key string, value []byte) {
	s := v.store
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("visitor cache write failed", "error", err)
		_ = s.cache.Delete(ctx, key)
	}
}
