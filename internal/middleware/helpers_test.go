// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/cache"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/localstore"
	"github.com/alrawaj/rawaj-web/internal/testutil"
	"github.com/alrawaj/rawaj-web/internal/visitor"
)

// testEnv wires a visitor registry whose clients are fake backends.
type testEnv struct {
	registry *visitor.Registry
	catalog  *i18n.Catalog
	// prepare runs on every new fake backend.
	prepare func(*testutil.FakeBackend)
	last    *testutil.FakeBackend
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := i18n.Load(nil)
	if err != nil {
		t.Fatalf("i18n.Load() error: %v", err)
	}

	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	store := localstore.New(testutil.TestDB(t), c, time.Minute, testutil.TestLoggerSilent())

	env := &testEnv{catalog: catalog}
	env.registry = visitor.NewRegistry(visitor.Options{
		Store: store,
		NewClient: func(backend.KeyValueStore) visitor.Client {
			fb := testutil.NewFakeBackend()
			if env.prepare != nil {
				env.prepare(fb)
			}
			env.last = fb
			return fb
		},
		Catalog: catalog,
		IdleTTL: time.Hour,
		Logger:  testutil.TestLoggerSilent(),
	})
	t.Cleanup(func() {
		env.registry.Close()
		_ = c.Close()
	})
	return env
}

// signedIn makes every new visitor start signed in as email, optionally
// as an admin.
func (e *testEnv) signedIn(email string, admin bool) {
	e.prepare = func(fb *testutil.FakeBackend) {
		id := fb.FakeAuth.AddUser(email, "secret123")
		fb.FakeAuth.SetSession(fb.FakeAuth.SessionFor(email))
		if admin {
			fb.Seed("admins", backend.Row{"id": id})
		}
	}
}

// withVisitor returns a request carrying the visitor with id.
func (e *testEnv) withVisitor(t *testing.T, r *http.Request, id string) (*http.Request, *visitor.Visitor) {
	t.Helper()
	v, _ := e.registry.Get(context.Background(), id)
	return r.WithContext(visitor.NewContext(r.Context(), v)), v
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}
