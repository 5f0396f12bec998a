// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"

	"github.com/alrawaj/rawaj-web/internal/visitor"
)

// visitorStack returns Visitors + Language behind scs, recording the
// visitor of the last request.
func visitorStack(env *testEnv, got **visitor.Visitor) http.Handler {
	sm := scs.New()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetVisitor(r)
		w.WriteHeader(http.StatusOK)
	})
	return sm.LoadAndSave(Visitors(sm, env.registry, env.catalog)(Language(env.catalog)(inner)))
}

func TestVisitors_IssuesAndReusesID(t *testing.T) {
	env := newTestEnv(t)
	var got *visitor.Visitor
	handler := visitorStack(env, &got)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	if got == nil {
		t.Fatal("GetVisitor() = nil")
	}
	first := got

	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie issued")
	}

	req := httptest.NewRequest(http.MethodGet, "/properties", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	serve(handler, req)

	if got != first {
		t.Errorf("second request visitor = %q, want %q", got.ID, first.ID)
	}
	if env.registry.Len() != 1 {
		t.Errorf("registry Len() = %d, want 1", env.registry.Len())
	}
}

func TestVisitors_LanguageFromAcceptLanguage(t *testing.T) {
	tests := []struct {
		accept string
		want   string
	}{
		{"ar-OM,ar;q=0.9,en;q=0.8", "ar"},
		{"en-GB,en;q=0.9", "en"},
		{"fr-FR", "en"},
		{"", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			env := newTestEnv(t)
			var got *visitor.Visitor
			handler := visitorStack(env, &got)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Accept-Language", tt.accept)
			serve(handler, req)

			if lang := got.Language.Language(); lang != tt.want {
				t.Errorf("Language() = %q, want %q", lang, tt.want)
			}
		})
	}
}

func TestLanguage_QuerySwitch(t *testing.T) {
	env := newTestEnv(t)
	var got *visitor.Visitor
	handler := visitorStack(env, &got)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/?lang=AR", nil))
	if lang := got.Language.Language(); lang != "ar" {
		t.Fatalf("Language() = %q, want ar", lang)
	}

	stored, ok, err := got.KV.Get(context.Background(), "lang")
	if err != nil || !ok || stored != "ar" {
		t.Errorf("stored lang = (%q, %v, %v), want ar", stored, ok, err)
	}

	// Unsupported codes leave the language alone.
	req := httptest.NewRequest(http.MethodGet, "/?lang=fr", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	serve(handler, req)
	if lang := got.Language.Language(); lang != "ar" {
		t.Errorf("Language() after ?lang=fr = %q, want ar", lang)
	}
}

func TestGetLanguage_NoVisitor(t *testing.T) {
	if got := GetLanguage(httptest.NewRequest(http.MethodGet, "/", nil)); got != "en" {
		t.Errorf("GetLanguage() = %q, want en", got)
	}
	if got := GetUserID(httptest.NewRequest(http.MethodGet, "/", nil)); got != "" {
		t.Errorf("GetUserID() = %q, want empty", got)
	}
}

func TestVisitors_RefreshesActiveSession(t *testing.T) {
	env := newTestEnv(t)
	env.signedIn("owner@alrawaj.com", false)
	var got *visitor.Visitor
	handler := visitorStack(env, &got)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	first := got.Session.Session()
	if first == nil {
		t.Fatal("visitor should start signed in")
	}

	// The backend renews the access token between requests.
	fb := env.last
	renewed := fb.FakeAuth.SessionFor("owner@alrawaj.com")
	fb.FakeAuth.SetSession(renewed)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	serve(handler, req)

	if s := got.Session.Session(); s == nil || s.AccessToken != renewed.AccessToken {
		t.Errorf("Session() after second request = %v, want token %q", s, renewed.AccessToken)
	}
}
