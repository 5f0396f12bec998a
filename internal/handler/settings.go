// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"

	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/service"
)

// SettingsData holds data for the site settings form.
type SettingsData struct {
	Settings model.SiteSettings
	Error    string
}

// settingsService returns a SettingsService bound to the visitor's client.
func (h *AdminHandler) settingsService(r *http.Request) (*service.SettingsService, bool) {
	v := middleware.GetVisitor(r)
	if v == nil {
		return nil, false
	}
	return service.NewSettingsService(v.Client, h.logger), true
}

// Settings handles GET /admin/settings.
func (h *AdminHandler) Settings(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.settingsService(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	settings, err := svc.Get(r.Context())
	data := SettingsData{Settings: settings}
	if err != nil {
		data.Error = err.Error()
	}
	h.render(w, r, "admin/settings", h.page(r, "admin.settings", data))
}

// SaveSettings handles POST /admin/settings.
func (h *AdminHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.settingsService(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		flashError(w, r, h.renderer, "/admin/settings", h.t(r, "errors.generic"))
		return
	}

	settings := model.SiteSettings{
		ID:             model.SettingsID,
		CompanyNameEN:  strings.TrimSpace(r.PostFormValue("company_name_en")),
		CompanyNameAR:  strings.TrimSpace(r.PostFormValue("company_name_ar")),
		PhonePrimary:   strings.TrimSpace(r.PostFormValue("phone_primary")),
		PhoneSecondary: strings.TrimSpace(r.PostFormValue("phone_secondary")),
		Email:          strings.TrimSpace(r.PostFormValue("email")),
		AddressEN:      strings.TrimSpace(r.PostFormValue("address_en")),
		AddressAR:      strings.TrimSpace(r.PostFormValue("address_ar")),
	}

	if err := svc.Save(r.Context(), settings); err != nil {
		h.logger.Warn("saving site settings failed", "error", err)
		h.recheckIfDenied(r, err)
		data := SettingsData{Settings: settings, Error: err.Error()}
		h.renderStatus(w, r, http.StatusUnprocessableEntity, "admin/settings", h.page(r, "admin.settings", data))
		return
	}

	flashSuccess(w, r, h.renderer, "/admin/settings", h.t(r, "admin.settingsSaved"))
}
