// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/cache"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/localstore"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/render"
	"github.com/alrawaj/rawaj-web/internal/service"
	"github.com/alrawaj/rawaj-web/internal/state"
	"github.com/alrawaj/rawaj-web/internal/testutil"
	"github.com/alrawaj/rawaj-web/internal/visitor"
	"github.com/alrawaj/rawaj-web/web"
)

const testPassword = "secret123"

// testEnv is a full site stack over one shared fake backend. Every
// visitor's client is that backend, so tests can seed and inspect it.
type testEnv struct {
	fb         *testutil.FakeBackend
	i18n       *i18n.Catalog
	sm         *scs.SessionManager
	registry   *visitor.Registry
	catalog    *state.CatalogState
	protection *middleware.LoginProtection
	confirmer  *fakeConfirmer
	handler    http.Handler
}

type fakeConfirmer struct {
	tokens map[string]bool
}

func (c *fakeConfirmer) ConfirmEmail(_ context.Context, token string) error {
	if !c.tokens[token] {
		return &backend.Error{Code: backend.CodeLinkExpired, Message: "Email link is invalid or has expired", Status: 403}
	}
	delete(c.tokens, token)
	return nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	catalog, err := i18n.Load(nil)
	if err != nil {
		t.Fatalf("i18n.Load() error: %v", err)
	}

	logger := testutil.TestLoggerSilent()
	c := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Minute})
	store := localstore.New(testutil.TestDB(t), c, time.Minute, logger)

	env := &testEnv{
		fb:        testutil.NewFakeBackend(),
		i18n:      catalog,
		sm:        scs.New(),
		confirmer: &fakeConfirmer{tokens: map[string]bool{}},
	}
	env.catalog = state.NewCatalogState(env.fb, time.Second, logger)
	env.registry = visitor.NewRegistry(visitor.Options{
		Store:     store,
		NewClient: func(backend.KeyValueStore) visitor.Client { return env.fb },
		Catalog:   catalog,
		IdleTTL:   time.Hour,
		Logger:    logger,
	})
	env.protection = middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       100,
		IPBurst:           100,
		MaxFailedAttempts: 3,
	})
	t.Cleanup(func() {
		env.registry.Close()
		env.protection.Close()
		_ = c.Close()
	})

	templates, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		t.Fatalf("fs.Sub() error: %v", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templates,
		SessionManager: env.sm,
		Catalog:        catalog,
	})
	if err != nil {
		t.Fatalf("render.New() error: %v", err)
	}

	deps := Deps{
		Renderer: renderer,
		I18n:     catalog,
		Settings: service.NewSettingsService(env.fb, logger),
		Consent:  service.NewConsentService(env.fb, nil, logger),
		Logger:   logger,
	}

	public := NewPublicHandler(deps, env.catalog)
	auth := NewAuthHandler(deps, env.sm, env.protection, env.confirmer)
	admin := NewAdminHandler(deps, env.catalog, nil, 1<<20)
	site := NewSiteHandler(deps)

	r := chi.NewRouter()
	r.Use(env.sm.LoadAndSave)
	r.Use(middleware.Visitors(env.sm, env.registry, catalog))
	r.Use(middleware.Language(catalog))
	r.NotFound(public.NotFound)

	r.Get("/", public.Home)
	r.Get("/properties", public.Properties)
	r.Get("/properties/{id}", public.Property)
	r.Get("/about", public.About)
	r.Get("/contact", public.Contact)
	r.Get("/privacy", public.Privacy)
	r.Post("/language", site.ToggleLanguage)
	r.Post("/consent", site.AcceptConsent)

	r.Get("/login", auth.LoginForm)
	r.Post("/login", auth.Login)
	r.Get("/signup", auth.SignupForm)
	r.Post("/signup", auth.Signup)
	r.Post("/logout", auth.Logout)
	r.Get("/auth/confirm", auth.Confirm)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Guard(2*time.Second, logger))
		r.Get("/", admin.Dashboard)
		r.Post("/refresh", admin.Refresh)
		r.Get("/properties/new", admin.NewProperty)
		r.Post("/properties/new", admin.CreateProperty)
		r.Get("/properties/{id}", admin.EditProperty)
		r.Post("/properties/{id}", admin.UpdateProperty)
		r.Get("/properties/{id}/delete", admin.DeleteConfirm)
		r.Post("/properties/{id}/delete", admin.DeleteProperty)
		r.Get("/settings", admin.Settings)
		r.Post("/settings", admin.SaveSettings)
		r.Get("/users", admin.Users)
		r.Post("/users/{id}/admin", admin.ToggleAdmin)
	})

	env.handler = r
	return env
}

// addUser registers a confirmed account, optionally as an admin, and
// returns its id.
func (e *testEnv) addUser(email string, admin bool) string {
	id := e.fb.FakeAuth.AddUser(email, testPassword)
	e.fb.Seed("user_profiles", model.UserProfile{ID: id, Email: email, FullName: strings.Split(email, "@")[0]})
	if admin {
		e.fb.Seed("admins", model.AdminMembership{ID: id})
	}
	return id
}

// signIn makes visitors built from now on start signed in as email.
func (e *testEnv) signIn(email string) {
	e.fb.FakeAuth.SetSession(e.fb.FakeAuth.SessionFor(email))
}

// seedProperty inserts a listing and returns its id.
func (e *testEnv) seedProperty(titleEN, areaEN string) string {
	e.fb.Seed("properties", model.PropertyFields{
		TitleEN:       titleEN,
		DescriptionEN: "A fine **property**.",
		AreaEN:        areaEN,
		CityEN:        "Salalah",
		Price:         125000,
		Type:          model.TypeHouse,
		Status:        model.StatusAvailable,
	})
	rows := e.fb.Rows("properties")
	return rows[len(rows)-1]["id"].(string)
}

// browser keeps the session cookie between requests.
type browser struct {
	env     *testEnv
	cookies map[string]*http.Cookie
	lang    string
}

func (e *testEnv) browser() *browser {
	return &browser{env: e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	if b.lang != "" {
		req.Header.Set("Accept-Language", b.lang)
	}
	rec := httptest.NewRecorder()
	b.env.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form map[string]string) *httptest.ResponseRecorder {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	return b.postBody(target, "application/x-www-form-urlencoded", strings.NewReader(values.Encode()))
}

func (b *browser) postBody(target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", contentType)
	return b.do(req)
}

// visitor returns the visitor behind the browser's session.
func (b *browser) visitor(t *testing.T) *visitor.Visitor {
	t.Helper()
	var v *visitor.Visitor
	h := b.env.sm.LoadAndSave(middleware.Visitors(b.env.sm, b.env.registry, b.env.i18n)(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			v = middleware.GetVisitor(r)
		})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	h.ServeHTTP(httptest.NewRecorder(), req)
	if v == nil {
		t.Fatal("no visitor bound")
	}
	return v
}

func assertStatus(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status = %d, want %d", got, want)
	}
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	assertStatus(t, rec.Code, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

func assertContains(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(body, w) {
			t.Errorf("body does not contain %q", w)
		}
	}
}
