// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/state"
)

// latestCount is the number of listings shown on the home page.
const latestCount = 3

// PublicHandler serves the public pages.
type PublicHandler struct {
	base
	catalog *state.CatalogState
}

// NewPublicHandler creates a new PublicHandler.
func NewPublicHandler(d Deps, catalog *state.CatalogState) *PublicHandler {
	return &PublicHandler{base: newBase(d), catalog: catalog}
}

// HomeData holds data for the home page.
type HomeData struct {
	Latest  []model.Property
	Areas   []model.Area
	Loading bool
	Error   string
}

// PropertiesData holds data for the property list.
type PropertiesData struct {
	Properties []model.Property
	Area       string
	AreaName   string
	Loading    bool
	Error      string
}

// PropertyData holds data for a property detail page.
type PropertyData struct {
	Property model.Property
	Found    bool
	Error    string
}

// catalogError turns a catalog failure into the inline message shown in
// place of the list.
func (h *PublicHandler) catalogError(r *http.Request, err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, state.ErrCatalogTimeout):
		return h.t(r, "errors.timeout")
	default:
		return h.t(r, "errors.loadFailed") + ": " + err.Error()
	}
}

// snapshot fetches the catalog once and returns its state.
func (h *PublicHandler) snapshot(r *http.Request) state.CatalogSnapshot {
	if err := h.catalog.EnsureFetched(r.Context()); err != nil {
		h.logger.Warn("catalog fetch failed", "error", err)
	}
	return h.catalog.Snapshot()
}

// Home handles GET /.
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r)
	data := HomeData{
		Latest:  model.Latest(snap.Properties, latestCount),
		Areas:   model.PrimeAreas,
		Loading: snap.Loading,
		Error:   h.catalogError(r, snap.Err),
	}
	h.render(w, r, "pages/home", h.page(r, "nav.home", data))
}

// Properties handles GET /properties. An ?area= value filters the list by
// area name.
func (h *PublicHandler) Properties(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r)
	lang := middleware.GetLanguage(r)

	area := strings.TrimSpace(r.URL.Query().Get("area"))
	data := PropertiesData{
		Properties: model.FilterByArea(snap.Properties, area),
		Area:       area,
		AreaName:   area,
		Loading:    snap.Loading,
		Error:      h.catalogError(r, snap.Err),
	}
	if a, ok := model.FindArea(area); ok {
		data.AreaName = a.Name(lang)
	}

	h.render(w, r, "pages/properties", h.page(r, "properties.title", data))
}

// Property handles GET /properties/{id}.
func (h *PublicHandler) Property(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.catalog.Lookup(r.Context(), id)
	switch {
	case err == nil:
		td := h.page(r, "properties.title", PropertyData{Property: p, Found: true})
		td.Title = p.Title(td.Lang)
		h.render(w, r, "pages/property", td)
	case backend.IsNotFound(err):
		td := h.page(r, "property.notFound", PropertyData{Error: h.t(r, "property.notFound")})
		h.renderStatus(w, r, http.StatusNotFound, "pages/property", td)
	default:
		h.logger.Warn("property lookup failed", "id", id, "error", err)
		msg := err.Error()
		if errors.Is(err, state.ErrCatalogTimeout) {
			msg = h.t(r, "errors.timeout")
		}
		td := h.page(r, "properties.title", PropertyData{Error: msg})
		h.render(w, r, "pages/property", td)
	}
}

// About handles GET /about.
func (h *PublicHandler) About(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/about", h.page(r, "about.title", nil))
}

// Contact handles GET /contact.
func (h *PublicHandler) Contact(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/contact", h.page(r, "contact.title", nil))
}

// Privacy handles GET /privacy.
func (h *PublicHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/privacy", h.page(r, "privacy.title", nil))
}

// NotFound renders the 404 page.
func (h *PublicHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderStatus(w, r, http.StatusNotFound, "pages/notfound", h.page(r, "errors.notFound", nil))
}
