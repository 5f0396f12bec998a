// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/imaging"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/service"
	"github.com/alrawaj/rawaj-web/internal/state"
)

// formOverhead is added to the upload limit for the non-file fields.
const formOverhead = 1 << 20

// AdminHandler serves the admin dashboard. Mutations run with the
// visitor's own client so the backend sees the admin's identity.
type AdminHandler struct {
	base
	catalog        *state.CatalogState
	processor      *imaging.Processor
	maxUploadBytes int64
}

// NewAdminHandler creates a new AdminHandler. processor may be nil.
func NewAdminHandler(d Deps, catalog *state.CatalogState, processor *imaging.Processor, maxUploadBytes int64) *AdminHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &AdminHandler{
		base:           newBase(d),
		catalog:        catalog,
		processor:      processor,
		maxUploadBytes: maxUploadBytes,
	}
}

// DashboardData holds data for the property table.
type DashboardData struct {
	Properties []model.Property
	Loading    bool
	Error      string
}

// PropertyFormData holds data for the create and edit forms.
type PropertyFormData struct {
	ID    string
	Input service.PropertyInput
	IsNew bool
	Error string
}

// DeleteData holds data for the delete confirmation page.
type DeleteData struct {
	Property model.Property
}

// properties returns an AdminService bound to the visitor's client.
func (h *AdminHandler) properties(r *http.Request) (*service.AdminService, bool) {
	v := middleware.GetVisitor(r)
	if v == nil {
		return nil, false
	}
	return service.NewAdminService(v.Client, h.catalog, h.processor, h.logger), true
}

// Dashboard handles GET /admin.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.EnsureFetched(r.Context()); err != nil {
		h.logger.Warn("catalog fetch failed", "error", err)
	}
	snap := h.catalog.Snapshot()

	data := DashboardData{Properties: snap.Properties, Loading: snap.Loading}
	if snap.Err != nil {
		data.Error = snap.Err.Error()
	}
	h.render(w, r, "admin/dashboard", h.page(r, "admin.title", data))
}

// Refresh handles POST /admin/refresh.
func (h *AdminHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Fetch(r.Context()); err != nil {
		flashError(w, r, h.renderer, "/admin", err.Error())
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// NewProperty handles GET /admin/properties/new.
func (h *AdminHandler) NewProperty(w http.ResponseWriter, r *http.Request) {
	data := PropertyFormData{
		IsNew: true,
		Input: service.PropertyInput{
			Type:   string(model.TypeHouse),
			Status: string(model.StatusAvailable),
		},
	}
	h.render(w, r, "admin/property_form", h.page(r, "admin.addProperty", data))
}

// CreateProperty handles POST /admin/properties/new.
func (h *AdminHandler) CreateProperty(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.properties(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	in, cleanup, err := h.parsePropertyForm(w, r)
	defer cleanup()
	data := PropertyFormData{IsNew: true, Input: in}
	if err != nil {
		data.Error = err.Error()
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "admin/property_form", h.page(r, "admin.addProperty", data))
		return
	}

	if err := svc.CreateProperty(r.Context(), in); err != nil {
		h.logger.Warn("creating property failed", "error", err)
		h.recheckIfDenied(r, err)
		data.Error = err.Error()
		data.Input.Image = nil
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "admin/property_form", h.page(r, "admin.addProperty", data))
		return
	}

	flashSuccess(w, r, h.renderer, "/admin", h.t(r, "admin.created"))
}

// EditProperty handles GET /admin/properties/{id}.
func (h *AdminHandler) EditProperty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := h.lookup(w, r, id)
	if !ok {
		return
	}

	data := PropertyFormData{ID: id, Input: service.InputFromProperty(p)}
	h.render(w, r, "admin/property_form", h.page(r, "admin.editProperty", data))
}

// UpdateProperty handles POST /admin/properties/{id}.
func (h *AdminHandler) UpdateProperty(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.properties(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "id")

	in, cleanup, err := h.parsePropertyForm(w, r)
	defer cleanup()
	data := PropertyFormData{ID: id, Input: in}
	if err != nil {
		data.Error = err.Error()
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "admin/property_form", h.page(r, "admin.editProperty", data))
		return
	}

	if err := svc.UpdateProperty(r.Context(), id, in); err != nil {
		h.logger.Warn("updating property failed", "id", id, "error", err)
		h.recheckIfDenied(r, err)
		data.Error = err.Error()
		data.Input.Image = nil
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "admin/property_form", h.page(r, "admin.editProperty", data))
		return
	}

	flashSuccess(w, r, h.renderer, "/admin", h.t(r, "admin.updated"))
}

// DeleteConfirm handles GET /admin/properties/{id}/delete.
func (h *AdminHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.render(w, r, "admin/delete", h.page(r, "admin.delete", DeleteData{Property: p}))
}

// DeleteProperty handles POST /admin/properties/{id}/delete. The operator
// confirms by submitting confirm=yes.
func (h *AdminHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.properties(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	id := chi.URLParam(r, "id")

	confirm := service.ConfirmFunc(func(_ context.Context, _ string) bool {
		return r.PostFormValue("confirm") == "yes"
	})

	err := svc.DeleteProperty(r.Context(), id, confirm)
	switch {
	case err == nil:
		h.logger.Info("property deleted", "id", id)
		flashSuccess(w, r, h.renderer, "/admin", h.t(r, "admin.deleted"))
	case errors.Is(err, service.ErrNotConfirmed):
		flashInfo(w, r, h.renderer, "/admin", h.t(r, "admin.notConfirmed"))
	default:
		h.logger.Warn("deleting property failed", "id", id, "error", err)
		h.recheckIfDenied(r, err)
		flashError(w, r, h.renderer, "/admin", err.Error())
	}
}

// lookup loads a property for an admin page, redirecting to the
// dashboard with a flash when it cannot be loaded.
func (h *AdminHandler) lookup(w http.ResponseWriter, r *http.Request, id string) (model.Property, bool) {
	p, err := h.catalog.Lookup(r.Context(), id)
	if err != nil {
		if backend.IsNotFound(err) {
			flashError(w, r, h.renderer, "/admin", h.t(r, "property.notFound"))
		} else {
			h.logger.Warn("property lookup failed", "id", id, "error", err)
			flashError(w, r, h.renderer, "/admin", err.Error())
		}
		return model.Property{}, false
	}
	return p, true
}

// parsePropertyForm reads the property form, with an optional image in
// the "image" field. cleanup closes the uploaded file and is never nil.
func (h *AdminHandler) parsePropertyForm(w http.ResponseWriter, r *http.Request) (service.PropertyInput, func(), error) {
	cleanup := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+formOverhead)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(formOverhead)
	} else {
		err = r.ParseForm()
	}
	in := service.PropertyInput{
		TitleEN:       r.FormValue("title_en"),
		TitleAR:       r.FormValue("title_ar"),
		DescriptionEN: r.FormValue("description_en"),
		DescriptionAR: r.FormValue("description_ar"),
		AreaEN:        r.FormValue("area_en"),
		AreaAR:        r.FormValue("area_ar"),
		CityEN:        r.FormValue("city_en"),
		CityAR:        r.FormValue("city_ar"),
		Price:         r.FormValue("price"),
		Size:          r.FormValue("size"),
		Type:          r.FormValue("type"),
		Status:        r.FormValue("status"),
		ImageURL:      r.FormValue("image_url"),
	}
	if err != nil {
		return in, cleanup, err
	}

	if r.MultipartForm == nil {
		return in, cleanup, nil
	}
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, cleanup, nil
	}
	if err != nil {
		return in, cleanup, err
	}
	if header.Size == 0 {
		_ = file.Close()
		return in, cleanup, nil
	}

	in.Image = imageFile(file, header)
	return in, func() { _ = file.Close() }, nil
}

func imageFile(file multipart.File, header *multipart.FileHeader) *service.ImageFile {
	return &service.ImageFile{
		Reader:      file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}
}
