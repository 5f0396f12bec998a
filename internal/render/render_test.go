// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/alexedwards/scs/v2"

	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/model"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": {Data: []byte(
			`{{define "base"}}<html lang="{{.Lang}}" dir="{{.Dir}}">{{template "flash" .}}{{template "content" .}}</html>{{end}}`)},
		"layouts/admin.html": {Data: []byte(
			`{{define "content"}}<nav>{{T .Lang "admin.title"}}</nav>{{template "admin-content" .}}{{end}}`)},
		"partials/flash.html": {Data: []byte(
			`{{define "flash"}}{{with .Flash}}<p class="flash-{{$.FlashType}}">{{.}}</p>{{end}}{{end}}`)},
		"pages/home.html": {Data: []byte(
			`{{define "content"}}<h1>{{T .Lang "nav.home"}}</h1><span>{{price .Lang .Data}}</span>{{end}}`)},
		"auth/login.html": {Data: []byte(
			`{{define "content"}}<form>{{T .Lang "auth.loginTitle"}}</form>{{end}}`)},
		"admin/settings.html": {Data: []byte(
			`{{define "admin-content"}}<h2>{{.Settings.CompanyName .Lang}}</h2>{{end}}`)},
	}
}

func newTestRenderer(t *testing.T, sm *scs.SessionManager) *Renderer {
	t.Helper()
	catalog, err := i18n.Load(nil)
	if err != nil {
		t.Fatalf("i18n.Load() error: %v", err)
	}
	r, err := New(Config{TemplatesFS: testFS(), SessionManager: sm, Catalog: catalog})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return r
}

func TestNew_ParsesEveryDirectory(t *testing.T) {
	r := newTestRenderer(t, nil)

	for _, name := range []string{"pages/home", "auth/login", "admin/settings"} {
		if !r.Has(name) {
			t.Errorf("template %s not parsed", name)
		}
	}
	if r.Has("partials/flash") {
		t.Error("partials should not be pages")
	}
}

func TestNew_ParseError(t *testing.T) {
	fsys := testFS()
	fsys["pages/broken.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}{{.Unclosed`)}

	catalog, _ := i18n.Load(nil)
	if _, err := New(Config{TemplatesFS: fsys, Catalog: catalog}); err == nil {
		t.Fatal("New() should fail on a broken template")
	}
}

func TestRender(t *testing.T) {
	r := newTestRenderer(t, nil)

	tests := []struct {
		name string
		data TemplateData
		want []string
	}{
		{
			name: "english",
			data: TemplateData{Lang: "en", Data: 125000.0},
			want: []string{`lang="en"`, `dir="ltr"`, "<h1>Home</h1>", "125,000 OMR"},
		},
		{
			name: "arabic",
			data: TemplateData{Lang: "ar", Data: 125000.0},
			want: []string{`lang="ar"`, `dir="rtl"`, "الرئيسية"},
		},
		{
			name: "default language",
			data: TemplateData{Data: 1.0},
			want: []string{`lang="en"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if err := r.Render(rec, req, "pages/home", tt.data); err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			for _, w := range tt.want {
				if !strings.Contains(rec.Body.String(), w) {
					t.Errorf("body = %q, want it to contain %q", rec.Body.String(), w)
				}
			}
		})
	}
}

func TestRender_AdminLayout(t *testing.T) {
	r := newTestRenderer(t, nil)

	rec := httptest.NewRecorder()
	err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil), "admin/settings", TemplateData{
		Lang:     "ar",
		Settings: model.DefaultSiteSettings(),
	})
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "<nav>") {
		t.Error("admin layout missing")
	}
	if !strings.Contains(body, "الروّاج للعقارات") {
		t.Errorf("body = %q, want Arabic company name", body)
	}
}

func TestRenderStatus(t *testing.T) {
	r := newTestRenderer(t, nil)

	rec := httptest.NewRecorder()
	if err := r.RenderStatus(rec, httptest.NewRequest(http.MethodGet, "/login", nil), http.StatusUnprocessableEntity, "auth/login", TemplateData{}); err != nil {
		t.Fatalf("RenderStatus() error: %v", err)
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	r := newTestRenderer(t, nil)

	rec := httptest.NewRecorder()
	if err := r.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), "pages/missing", TemplateData{}); err == nil {
		t.Fatal("Render() should fail for an unknown template")
	}
	if rec.Body.Len() != 0 {
		t.Error("nothing should be written on failure")
	}
}

func TestRender_Flash(t *testing.T) {
	sm := scs.New()
	r := newTestRenderer(t, sm)

	var body string
	handler := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.SetFlash(req, "Settings saved.", FlashSuccess)
		rec := httptest.NewRecorder()
		if err := r.Render(rec, req, "pages/home", TemplateData{Data: 1.0}); err != nil {
			t.Errorf("Render() error: %v", err)
		}
		body = rec.Body.String()

		// Popped: a second render shows nothing.
		rec = httptest.NewRecorder()
		_ = r.Render(rec, req, "pages/home", TemplateData{Data: 1.0})
		if strings.Contains(rec.Body.String(), "Settings saved.") {
			t.Error("flash shown twice")
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(body, `<p class="flash-success">Settings saved.</p>`) {
		t.Errorf("body = %q, want flash", body)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"hello world", 5, "hello…"},
		{"فيلا فاخرة في صلالة", 4, "فيلا…"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		notWant string
	}{
		{"emphasis", "**Sea view** villa", "<strong>Sea view</strong>", ""},
		{"line breaks kept", "Line one\nLine two", "<br", ""},
		{"script stripped", "Nice <script>alert(1)</script>", "Nice", "<script>"},
		{"link sanitized", `[x](javascript:alert(1))`, "x", "javascript:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Markdown(tt.in))
			if !strings.Contains(got, tt.want) {
				t.Errorf("Markdown(%q) = %q, want it to contain %q", tt.in, got, tt.want)
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("Markdown(%q) = %q, must not contain %q", tt.in, got, tt.notWant)
			}
		})
	}
}
