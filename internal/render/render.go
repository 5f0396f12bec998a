// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package render parses the site templates and renders pages with the
// visitor's language and flash messages.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/alexedwards/scs/v2"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// Flash types.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Renderer handles template rendering with caching.
type Renderer struct {
	templates      map[string]*template.Template
	sessionManager *scs.SessionManager
	catalog        *i18n.Catalog
	isDev          bool
}

// Config holds renderer configuration.
type Config struct {
	TemplatesFS    fs.FS
	SessionManager *scs.SessionManager
	Catalog        *i18n.Catalog
	IsDev          bool
}

// New creates a new Renderer with parsed templates.
func New(cfg Config) (*Renderer, error) {
	r := &Renderer{
		templates:      make(map[string]*template.Template),
		sessionManager: cfg.SessionManager,
		catalog:        cfg.Catalog,
		isDev:          cfg.IsDev,
	}

	if err := r.parseTemplates(cfg.TemplatesFS); err != nil {
		return nil, err
	}
	return r, nil
}

// layoutSets lists page directories and the layouts each is parsed with,
// outermost first.
var layoutSets = []struct {
	dir     string
	layouts []string
}{
	{"pages", []string{"layouts/base.html"}},
	{"auth", []string{"layouts/base.html"}},
	{"admin", []string{"layouts/base.html", "layouts/admin.html"}},
}

func (r *Renderer) parseTemplates(templatesFS fs.FS) error {
	partials, err := templateFiles(templatesFS, "partials")
	if err != nil {
		return fmt.Errorf("getting partials: %w", err)
	}

	for _, set := range layoutSets {
		pages, err := templateFiles(templatesFS, set.dir)
		if err != nil {
			return fmt.Errorf("getting %s templates: %w", set.dir, err)
		}

		for _, page := range pages {
			name := set.dir + "/" + strings.TrimSuffix(path.Base(page), ".html")

			files := append([]string{}, set.layouts...)
			files = append(files, partials...)
			files = append(files, page)

			tmpl, err := template.New("").Funcs(r.templateFuncs()).ParseFS(templatesFS, files...)
			if err != nil {
				return fmt.Errorf("parsing template %s: %w", name, err)
			}
			r.templates[name] = tmpl
		}
	}
	return nil
}

// templateFiles returns the .html files in dir. A missing directory
// yields no files.
func templateFiles(templatesFS fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(templatesFS, dir)
	if err != nil {
		return nil, nil
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".html") {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// Has reports whether a template called name was parsed.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

func (r *Renderer) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"T": func(lang, key string, args ...any) string {
			return r.catalog.T(lang, key, args...)
		},
		"price": func(lang string, v float64) string {
			return r.catalog.FormatPrice(lang, v)
		},
		"number": func(lang string, v float64) string {
			return r.catalog.FormatNumber(lang, v)
		},
		"dir": i18n.Direction,
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"markdown": Markdown,
		"truncate": truncate,
		"add": func(a, b int) int {
			return a + b
		},
		"card": func(lang string, p model.Property) map[string]any {
			return map[string]any{"Lang": lang, "Property": p}
		},
		"primeAreas": func() []model.Area {
			return model.PrimeAreas
		},
		"propertyTypes": func() []model.PropertyType {
			return model.PropertyTypes
		},
		"propertyStatuses": func() []model.PropertyStatus {
			return model.PropertyStatuses
		},
	}
}

// truncate cuts s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// TemplateData holds data passed to templates.
type TemplateData struct {
	Title       string
	Lang        string
	Dir         string
	Path        string
	Data        any
	Flash       string
	FlashType   string
	CurrentYear int

	// Session is the signed-in user's session, nil when signed out.
	Session *backend.Session
	IsAdmin bool
	// ShowConsent shows the cookie banner.
	ShowConsent bool
	Settings    model.SiteSettings
}

// Render renders a page with status 200.
func (r *Renderer) Render(w http.ResponseWriter, req *http.Request, name string, data TemplateData) error {
	return r.RenderStatus(w, req, http.StatusOK, name, data)
}

// RenderStatus renders a page with the given status. The page is
// rendered to a buffer first so a template error never sends a partial
// response.
func (r *Renderer) RenderStatus(w http.ResponseWriter, req *http.Request, status int, name string, data TemplateData) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}

	data.CurrentYear = time.Now().Year()
	if data.Lang == "" {
		data.Lang = r.catalog.Default()
	}
	data.Dir = i18n.Direction(data.Lang)
	if data.Path == "" {
		data.Path = req.URL.Path
	}

	if r.sessionManager != nil && data.Flash == "" {
		if flash := r.sessionManager.PopString(req.Context(), "flash"); flash != "" {
			data.Flash = flash
			data.FlashType = r.sessionManager.PopString(req.Context(), "flash_type")
			if data.FlashType == "" {
				data.FlashType = FlashInfo
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// SetFlash stores a flash message shown on the next rendered page.
func (r *Renderer) SetFlash(req *http.Request, message, flashType string) {
	if r.sessionManager != nil {
		r.sessionManager.Put(req.Context(), "flash", message)
		r.sessionManager.Put(req.Context(), "flash_type", flashType)
	}
}
