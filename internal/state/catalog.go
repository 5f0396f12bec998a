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

// DefaultCatalogTimeout is used when no timeout is configured.
const DefaultCatalogTimeout = 15 * time.Second

// ErrCatalogTimeout is reported when the backend does not answer in time.
var ErrCatalogTimeout = errors.New("Connection timed out. Please check your internet or try again later.") //nolint:staticcheck // shown to users

// CatalogSnapshot is a copy of the catalog state.
type CatalogSnapshot struct {
	Properties []model.Property
	Loading    bool
	Err        error
	// Fetched is true once any fetch has completed.
	Fetched bool
}

// CatalogState is the process-wide in-memory list of all properties.
type CatalogState struct {
	client  backend.Client
	timeout time.Duration
	logger  *slog.Logger

	mu         sync.RWMutex
	properties []model.Property
	loading    bool
	err        error
	fetched    bool
	gen        uint64
	inflight   *catalogFetch
}

// NewCatalogState creates an empty catalog. A non-positive timeout uses
// DefaultCatalogTimeout.
func NewCatalogState(client backend.Client, timeout time.Duration, logger *slog.Logger) *CatalogState {
	if timeout <= 0 {
		timeout = DefaultCatalogTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogState{client: client, timeout: timeout, logger: logger}
}

type fetchResult struct {
	props []model.Property
	err   error
}

// catalogFetch is one run against the backend. done closes once the run
// has finished and err is set.
type catalogFetch struct {
	done chan struct{}
	err  error
}

// Fetch loads every property, newest first, and replaces the catalog. On
// failure or timeout the previous properties are kept and the error is
// stored and returned. The run is detached from ctx: a caller that gives
// up gets ctx.Err() while the shared catalog still receives the result.
// A result that arrives after the timeout, or after a newer Fetch
// started, is dropped.
func (c *CatalogState) Fetch(ctx context.Context) error {
	c.mu.Lock()
	f := c.startLocked(ctx)
	c.mu.Unlock()
	return f.wait(ctx)
}

// EnsureFetched fetches unless the last completed fetch succeeded. A
// fetch already in flight is joined rather than restarted.
func (c *CatalogState) EnsureFetched(ctx context.Context) error {
	c.mu.Lock()
	if c.fetched && c.err == nil {
		c.mu.Unlock()
		return nil
	}
	f := c.inflight
	if f == nil {
		f = c.startLocked(ctx)
	}
	c.mu.Unlock()
	return f.wait(ctx)
}

// startLocked begins a new generation. Caller holds mu.
func (c *CatalogState) startLocked(ctx context.Context) *catalogFetch {
	c.gen++
	gen := c.gen
	c.loading = true
	f := &catalogFetch{done: make(chan struct{})}
	c.inflight = f

	go c.run(context.WithoutCancel(ctx), gen, f)
	return f
}

func (c *CatalogState) run(ctx context.Context, gen uint64, f *catalogFetch) {
	results := make(chan fetchResult, 1)
	go func() {
		var props []model.Property
		err := c.client.From("properties").Select("*").Order("created_at", true).Rows(ctx, &props)
		results <- fetchResult{props: props, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	var res fetchResult
	select {
	case res = <-results:
	case <-timer.C:
		res.err = ErrCatalogTimeout
	}

	c.finish(gen, res)
	f.err = res.err
	close(f.done)
}

func (f *catalogFetch) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CatalogState) finish(gen uint64, res fetchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("discarding superseded catalog fetch", "generation", gen, "current", c.gen)
		return
	}

	c.loading = false
	c.fetched = true
	c.inflight = nil
	if res.err != nil {
		c.err = res.err
		c.logger.Error("fetching properties failed", "error", res.err)
		return
	}
	if res.props == nil {
		res.props = []model.Property{}
	}
	c.properties = res.props
	c.err = nil
}

// Snapshot returns a copy of the current state.
func (c *CatalogState) Snapshot() CatalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	props := make([]model.Property, len(c.properties))
	copy(props, c.properties)
	return CatalogSnapshot{Properties: props, Loading: c.loading, Err: c.err, Fetched: c.fetched}
}

// Lookup loads one property from the backend under the catalog timeout.
// The catalog itself is not changed.
func (c *CatalogState) Lookup(ctx context.Context, id string) (model.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var p model.Property
	err := c.client.From("properties").Select("*").Eq("id", id).Single(ctx, &p)
	if errors.Is(err, context.DeadlineExceeded) {
		return model.Property{}, ErrCatalogTimeout
	}
	return p, err
}
