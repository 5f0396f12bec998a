// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers for the public site, sign-in
// and the admin dashboard.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/render"
	"github.com/alrawaj/rawaj-web/internal/service"
	"github.com/alrawaj/rawaj-web/internal/visitor"
)

// Deps are the collaborators shared by every page handler.
type Deps struct {
	Renderer *render.Renderer
	I18n     *i18n.Catalog
	// Settings reads site settings with the anonymous client.
	Settings *service.SettingsService
	Consent  *service.ConsentService
	Logger   *slog.Logger
}

// base renders pages with the data every layout needs.
type base struct {
	renderer *render.Renderer
	i18n     *i18n.Catalog
	settings *service.SettingsService
	consent  *service.ConsentService
	logger   *slog.Logger
}

func newBase(d Deps) base {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		renderer: d.Renderer,
		i18n:     d.I18n,
		settings: d.Settings,
		consent:  d.Consent,
		logger:   logger,
	}
}

// t translates key into the request's language.
func (b *base) t(r *http.Request, key string, args ...any) string {
	return b.i18n.T(middleware.GetLanguage(r), key, args...)
}

// page builds the template data for r. The title is a locale key.
func (b *base) page(r *http.Request, titleKey string, data any) render.TemplateData {
	td := render.TemplateData{
		Title:    b.t(r, titleKey),
		Lang:     middleware.GetLanguage(r),
		Data:     data,
		Settings: model.DefaultSiteSettings(),
	}

	if v := middleware.GetVisitor(r); v != nil {
		td.Session = v.Session.Session()
		td.IsAdmin = v.Admin.IsAdmin()
		if b.consent != nil && r.URL.Query().Get("consent") != "dismissed" {
			td.ShowConsent = !b.consent.HasConsented(r.Context(), v.KV)
		}
	}

	if b.settings != nil {
		// Get logs failures and falls back to the defaults.
		td.Settings, _ = b.settings.Get(r.Context())
	}
	return td
}

func (b *base) render(w http.ResponseWriter, r *http.Request, name string, td render.TemplateData) {
	b.renderStatus(w, r, http.StatusOK, name, td)
}

func (b *base) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, td render.TemplateData) {
	if err := b.renderer.RenderStatus(w, r, status, name, td); err != nil {
		logAndInternalError(w, "failed to render template", "template", name, "error", err)
	}
}

// requireVisitor returns the request's visitor or answers 500.
func requireVisitor(w http.ResponseWriter, r *http.Request) (*visitor.Visitor, bool) {
	v := middleware.GetVisitor(r)
	if v == nil {
		logAndInternalError(w, "no visitor bound to request", "path", r.URL.Path)
		return nil, false
	}
	return v, true
}

// recheckIfDenied re-derives the admin flag when the backend rejected a
// write for lack of access, so the guard stops admitting a revoked admin.
func (b *base) recheckIfDenied(r *http.Request, err error) {
	if backend.ErrorCode(err) != backend.CodeInsufficientAccess {
		return
	}
	if v := middleware.GetVisitor(r); v != nil && !v.Admin.Recheck(r.Context()) {
		b.logger.Warn("admin role revoked during session", "user_id", v.Session.UserID())
	}
}

// backPath returns the form's "next" path when it is local, else fallback.
func backPath(r *http.Request, fallback string) string {
	return middleware.SafeRedirectPath(r.FormValue("next"), fallback)
}
