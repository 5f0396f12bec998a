// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

func TestAdminHandler_SettingsDefaults(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	rec := b.get("/admin/settings")
	assertStatus(t, rec.Code, http.StatusOK)
	assertContains(t, rec.Body.String(), `value="Al-Rawaj Real Estate"`, `value="99493888"`)
}

func TestAdminHandler_SaveSettings(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	rec := b.post("/admin/settings", map[string]string{
		"company_name_en": "Rawaj Homes",
		"company_name_ar": "رواج",
		"phone_primary":   "91112222",
		"email":           "hello@rawaj.test",
		"address_en":      "Salalah",
	})
	assertRedirect(t, rec, "/admin/settings")

	rows := env.fb.Rows("site_settings")
	if len(rows) != 1 {
		t.Fatalf("site_settings rows = %d, want 1", len(rows))
	}

	body := b.get("/admin/settings").Body.String()
	assertContains(t, body, "Settings saved.", `value="Rawaj Homes"`, `value="91112222"`)

	// Saving again updates the single row.
	assertRedirect(t, b.post("/admin/settings", map[string]string{"company_name_en": "Rawaj Two"}), "/admin/settings")
	if n := len(env.fb.Rows("site_settings")); n != 1 {
		t.Errorf("site_settings rows = %d, want 1", n)
	}
}

func TestAdminHandler_SaveSettingsError(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)
	env.fb.Hook = func(_ context.Context, req *backend.Request) error {
		if req.Table == "site_settings" && req.Action != backend.ActionSelect {
			return errors.New("permission denied for table site_settings")
		}
		return nil
	}

	rec := b.post("/admin/settings", map[string]string{"company_name_en": "Rawaj Homes"})
	assertStatus(t, rec.Code, http.StatusUnprocessableEntity)
	assertContains(t, rec.Body.String(), "permission denied for table site_settings", `value="Rawaj Homes"`)
}
