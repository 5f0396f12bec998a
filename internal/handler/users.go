// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/service"
)

// UsersData holds data for the user management page.
type UsersData struct {
	Users []model.UserWithRole
	Query string
	Error string
}

func (h *AdminHandler) userService(r *http.Request) (*service.UserService, bool) {
	v := middleware.GetVisitor(r)
	if v == nil {
		return nil, false
	}
	return service.NewUserService(v.Client, h.logger), true
}

// Users handles GET /admin/users. ?q= filters by name, email or phone.
func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.userService(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	users, err := svc.List(r.Context(), query)
	data := UsersData{Users: users, Query: query}
	if err != nil {
		h.logger.Warn("listing users failed", "error", err)
		data.Error = err.Error()
	}
	h.render(w, r, "admin/users", h.page(r, "admin.users", data))
}

// ToggleAdmin handles POST /admin/users/{id}/admin.
func (h *AdminHandler) ToggleAdmin(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.userService(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	back := "/admin/users"
	if q := strings.TrimSpace(r.PostFormValue("q")); q != "" {
		back += "?q=" + url.QueryEscape(q)
	}

	id := chi.URLParam(r, "id")
	isAdmin, err := svc.ToggleAdmin(r.Context(), id)
	if err != nil {
		h.logger.Warn("toggling admin role failed", "user_id", id, "error", err)
		h.recheckIfDenied(r, err)
		flashError(w, r, h.renderer, back, err.Error())
		return
	}

	if isAdmin {
		flashSuccess(w, r, h.renderer, back, h.t(r, "admin.roleGranted"))
	} else {
		flashSuccess(w, r, h.renderer, back, h.t(r, "admin.roleRevoked"))
	}
}
