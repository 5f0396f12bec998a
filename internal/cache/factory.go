// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"log/slog"
	"time"
)

// Config selects and configures a cache backend.
type Config struct {
	// RedisURL selects Redis when set; otherwise memory is used.
	RedisURL   string
	Prefix     string
	DefaultTTL time.Duration
	MaxEntries int
}

// New creates the configured cache. An unreachable Redis falls back to
// memory with a warning so the site still starts.
func New(cfg Config, logger *slog.Logger) Cache {
	if cfg.RedisURL != "" {
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}

		rc, err := NewRedisCache(opts)
		if err == nil {
			logger.Info("using redis cache", "prefix", opts.Prefix)
			return rc
		}
		logger.Warn("redis unavailable, falling back to memory cache", "error", err)
	}

	return NewMemoryCache(MemoryCacheOptions{DefaultTTL: cfg.DefaultTTL, MaxEntries: cfg.MaxEntries})
}
