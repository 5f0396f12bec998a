// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process cache. Expired entries are dropped when
// touched, and the oldest entry is evicted once MaxEntries is reached.
type MemoryCache struct {
	mu         sync.Mutex
	data       map[string]memoryEntry
	defaultTTL time.Duration
	maxEntries int
	closed     atomic.Bool
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL time.Duration
	MaxEntries int // 0 = unlimited
}

// NewMemoryCache creates a MemoryCache.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	return &MemoryCache{
		data:       make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxEntries: opts.MaxEntries,
		now:        time.Now,
	}
}

// Get retrieves a copy of the cached value.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	e, ok := c.data[key]
	if ok && !c.now().Before(e.expiresAt) {
		delete(c.data, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return append([]byte(nil), e.value...), nil
}

// Set stores a copy of value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.evictLocked()
	}
	c.data[key] = memoryEntry{value: append([]byte(nil), value...), expiresAt: c.now().Add(ttl)}
	c.sets.Add(1)
	return nil
}

// Delete removes a key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix removes all keys starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Stats returns hit/miss counters.
func (c *MemoryCache) Stats() Stats {
	return newStats(c.hits.Load(), c.misses.Load(), c.sets.Load())
}

// Close marks the cache closed and drops its contents.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.mu.Lock()
		c.data = make(map[string]memoryEntry)
		c.mu.Unlock()
	}
	return nil
}

// evictLocked drops expired entries, or the entry closest to expiry when
// none has expired.
func (c *MemoryCache) evictLocked() {
	now := c.now()
	var oldestKey string
	var oldest time.Time
	removed := false
	for k, e := range c.data {
		if !now.Before(e.expiresAt) {
			delete(c.data, k)
			removed = true
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if !removed && oldestKey != "" {
		delete(c.data, oldestKey)
	}
}

var _ Cache = (*MemoryCache)(nil)
