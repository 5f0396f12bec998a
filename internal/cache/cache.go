// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cache provides the byte-oriented cache tier in front of the
// per-visitor store, backed by process memory or Redis.
package cache

import (
	"context"
	"time"
)

// Cache is implemented by every cache backend. Implementations are safe
// for concurrent use.
type Cache interface {
	// Get returns ErrCacheMiss when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl; a zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key starting with prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Stats holds hit/miss counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	HitRate float64
}

func newStats(hits, misses, sets int64) Stats {
	s := Stats{Hits: hits, Misses: misses, Sets: sets}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total) * 100
	}
	return s
}

// Error represents an error type for cache operations.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	// ErrCacheMiss indicates the key was not found in cache or has expired.
	ErrCacheMiss Error = "cache miss"

	// ErrCacheClosed indicates the cache has been closed.
	ErrCacheClosed Error = "cache closed"
)
