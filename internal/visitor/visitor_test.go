// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package visitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/cache"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/localstore"
	"github.com/alrawaj/rawaj-web/internal/testutil"
)

type fixture struct {
	registry *Registry
	cache    cache.Cache
	mu       sync.Mutex
	clients  []*testutil.FakeBackend
	// prepare configures each new fake before it is returned.
	prepare func(*testutil.FakeBackend)
}

func newFixture(t *testing.T, ttl time.Duration) *fixture {
	t.Helper()
	catalog, err := i18n.Load(nil)
	require.NoError(t, err)

	f := &fixture{cache: cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})}
	store := localstore.New(testutil.TestDB(t), f.cache, time.Minute, testutil.TestLoggerSilent())
	f.registry = NewRegistry(Options{
		Store: store,
		NewClient: func(kv backend.KeyValueStore) Client {
			c := testutil.NewFakeBackend()
			if f.prepare != nil {
				f.prepare(c)
			}
			f.mu.Lock()
			f.clients = append(f.clients, c)
			f.mu.Unlock()
			return c
		},
		Catalog: catalog,
		IdleTTL: ttl,
		Logger:  testutil.TestLoggerSilent(),
	})
	t.Cleanup(func() {
		f.registry.Close()
		_ = f.cache.Close()
	})
	return f
}

func TestRegistry_GetBuildsOnce(t *testing.T) {
	f := newFixture(t, time.Hour)
	ctx := context.Background()

	v1, created := f.registry.Get(ctx, "v1")
	require.True(t, created)
	require.NotNil(t, v1.Session)
	require.NotNil(t, v1.Admin)
	require.NotNil(t, v1.Language)

	again, created := f.registry.Get(ctx, "v1")
	assert.False(t, created)
	assert.Same(t, v1, again)
	assert.Equal(t, 1, f.registry.Len())
	assert.Len(t, f.clients, 1)
}

func TestRegistry_RestoresSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.prepare = func(fb *testutil.FakeBackend) {
		fb.FakeAuth.AddUser("user@example.com", "secret1")
		fb.FakeAuth.SetSession(fb.FakeAuth.SessionFor("user@example.com"))
	}

	v, _ := f.registry.Get(context.Background(), "v1")
	require.NotNil(t, v.Session.Session())
	assert.Equal(t, "user@example.com", v.Session.Session().User.Email)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	flag, err := v.Admin.WaitSettled(ctx)
	require.NoError(t, err)
	assert.False(t, flag.IsAdmin)
}

func TestRegistry_RestoreOutlivesCancelledRequest(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.prepare = func(fb *testutil.FakeBackend) {
		fb.FakeAuth.AddUser("user@example.com", "secret1")
		fb.FakeAuth.SetSession(fb.FakeAuth.SessionFor("user@example.com"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v, created := f.registry.Get(ctx, "v1")
	require.True(t, created)
	require.NotNil(t, v.Session.Session())
	assert.Equal(t, "user@example.com", v.Session.Session().User.Email)
}

func TestRegistry_ConcurrentGetSharesVisitor(t *testing.T) {
	f := newFixture(t, time.Hour)

	var wg sync.WaitGroup
	got := make([]*Visitor, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = f.registry.Get(context.Background(), "same")
		}(i)
	}
	wg.Wait()

	for _, v := range got {
		assert.Same(t, got[0], v)
	}
	assert.Len(t, f.clients, 1)
}

func TestRegistry_EvictsIdleVisitors(t *testing.T) {
	f := newFixture(t, time.Minute)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	f.registry.now = func() time.Time { return now }

	old, _ := f.registry.Get(context.Background(), "old")
	require.NoError(t, old.Language.Set(context.Background(), "ar"))

	now = now.Add(2 * time.Minute)
	fresh, created := f.registry.Get(context.Background(), "fresh")
	require.True(t, created)
	require.NotNil(t, fresh)

	assert.Equal(t, 1, f.registry.Len())
	assert.True(t, f.clients[0].Closed())
	assert.Equal(t, 0, f.clients[0].FakeAuth.ListenerCount())

	// Rebuilt from persisted storage on the next request.
	rebuilt, created := f.registry.Get(context.Background(), "old")
	require.True(t, created)
	assert.NotSame(t, old, rebuilt)
	assert.Equal(t, "ar", rebuilt.Language.Load(context.Background(), "en"))
}

func TestRegistry_Close(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.registry.Get(context.Background(), "a")
	f.registry.Get(context.Background(), "b")

	f.registry.Close()
	assert.Equal(t, 0, f.registry.Len())
	for _, c := range f.clients {
		assert.True(t, c.Closed())
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	v := &Visitor{ID: "v1"}
	assert.Same(t, v, FromContext(NewContext(context.Background(), v)))
}
