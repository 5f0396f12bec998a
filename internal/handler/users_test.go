// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"net/http"
	"strings"
	"testing"
)

func TestAdminHandler_Users(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("fatma@alrawaj.com", false)
	env.addUser("khalid@alrawaj.com", false)
	b := adminBrowser(t, env)

	rec := b.get("/admin/users")
	assertStatus(t, rec.Code, http.StatusOK)
	assertContains(t, rec.Body.String(), "3 users", "fatma@alrawaj.com", "khalid@alrawaj.com", "Remove Admin")

	rec = b.get("/admin/users?q=FATMA")
	body := rec.Body.String()
	assertContains(t, body, "1 users", "fatma@alrawaj.com", `value="FATMA"`)
	if strings.Contains(body, "khalid@alrawaj.com") {
		t.Error("search should filter out khalid")
	}
}

func TestAdminHandler_ToggleAdmin(t *testing.T) {
	env := newTestEnv(t)
	id := env.addUser("fatma@alrawaj.com", false)
	b := adminBrowser(t, env)

	rec := b.post("/admin/users/"+id+"/admin", map[string]string{"q": "fatma"})
	assertRedirect(t, rec, "/admin/users?q=fatma")
	assertContains(t, b.get("/admin/users?q=fatma").Body.String(), "Admin role granted.", "Remove Admin")

	assertRedirect(t, b.post("/admin/users/"+id+"/admin", nil), "/admin/users")
	assertContains(t, b.get("/admin/users?q=fatma").Body.String(), "Admin role removed.", "Make Admin")
}
