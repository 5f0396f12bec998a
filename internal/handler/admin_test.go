// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/service"
)

// adminBrowser returns a browser signed in as an admin.
func adminBrowser(t *testing.T, env *testEnv) *browser {
	t.Helper()
	env.addUser("owner@alrawaj.com", true)
	b := env.browser()
	rec := b.post("/login", map[string]string{"email": "owner@alrawaj.com", "password": testPassword})
	assertRedirect(t, rec, "/admin")
	return b
}

func validPropertyForm() map[string]string {
	return map[string]string{
		"title_en":       "Garden Villa",
		"title_ar":       "فيلا الحديقة",
		"description_en": "Five bedrooms.",
		"area_en":        "Al Saadah",
		"city_en":        "Salalah",
		"price":          "98000",
		"size":           "450",
		"type":           "house",
		"status":         "available",
	}
}

func TestAdminHandler_GuardRedirects(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("member@alrawaj.com", false)

	t.Run("signed out", func(t *testing.T) {
		assertRedirect(t, env.browser().get("/admin/settings"), "/login?from=%2Fadmin%2Fsettings")
	})

	t.Run("member", func(t *testing.T) {
		b := env.browser()
		b.post("/login", map[string]string{"email": "member@alrawaj.com", "password": testPassword})
		rec := b.get("/admin")
		assertStatus(t, rec.Code, http.StatusSeeOther)
	})
}

func TestAdminHandler_Dashboard(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedProperty("Sea View Villa", "Hawana Salalah")
	b := adminBrowser(t, env)

	rec := b.get("/admin")
	assertStatus(t, rec.Code, http.StatusOK)
	assertContains(t, rec.Body.String(),
		"Admin Dashboard",
		"Sea View Villa",
		`href="/admin/properties/`+id+`"`,
	)
}

func TestAdminHandler_CreateProperty(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	assertStatus(t, b.get("/admin/properties/new").Code, http.StatusOK)

	rec := b.post("/admin/properties/new", validPropertyForm())
	assertRedirect(t, rec, "/admin")

	rows := env.fb.Rows("properties")
	if len(rows) != 1 {
		t.Fatalf("properties rows = %d, want 1", len(rows))
	}
	if rows[0]["title_en"] != "Garden Villa" {
		t.Errorf("title_en = %v, want %q", rows[0]["title_en"], "Garden Villa")
	}

	body := b.get("/admin").Body.String()
	assertContains(t, body, "Property created.", "Garden Villa")
}

func TestAdminHandler_CreatePropertyInvalid(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	form := validPropertyForm()
	form["title_en"] = ""
	form["title_ar"] = ""

	rec := b.post("/admin/properties/new", form)
	assertStatus(t, rec.Code, http.StatusUnprocessableEntity)
	assertContains(t, rec.Body.String(), "title is required", `value="Al Saadah"`)

	if n := len(env.fb.Rows("properties")); n != 0 {
		t.Errorf("properties rows = %d, want 0", n)
	}
}

func TestAdminHandler_DeniedWriteDropsRevokedAdmin(t *testing.T) {
	env := newTestEnv(t)
	var revoked atomic.Bool
	env.fb.Hook = func(_ context.Context, req *backend.Request) error {
		if !revoked.Load() {
			return nil
		}
		switch {
		case req.Table == "admins":
			return backend.ErrNotFound
		case req.Action == backend.ActionInsert:
			return &backend.Error{Code: backend.CodeInsufficientAccess, Message: "new row violates row-level security policy", Status: 403}
		}
		return nil
	}
	b := adminBrowser(t, env)
	assertStatus(t, b.get("/admin").Code, http.StatusOK)

	revoked.Store(true)
	rec := b.post("/admin/properties/new", validPropertyForm())
	assertStatus(t, rec.Code, http.StatusUnprocessableEntity)

	if v := b.visitor(t); v.Admin.IsAdmin() {
		t.Error("IsAdmin() = true after a denied write by a revoked admin")
	}
	assertStatus(t, b.get("/admin").Code, http.StatusSeeOther)
}

func TestAdminHandler_CreatePropertyWithImage(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range validPropertyForm() {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error: %v", err)
		}
	}
	part, err := mw.CreateFormFile("image", "villa.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile() error: %v", err)
	}
	_, _ = part.Write([]byte("not really a jpeg"))
	if err := mw.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	rec := b.postBody("/admin/properties/new", mw.FormDataContentType(), &body)
	assertRedirect(t, rec, "/admin")

	objects := env.fb.FakeStorage.Objects()
	if len(objects) != 1 || !strings.HasPrefix(objects[0], service.PropertyImagesBucket+"/") {
		t.Fatalf("objects = %v, want one in %s", objects, service.PropertyImagesBucket)
	}
	rows := env.fb.Rows("properties")
	url, _ := rows[0]["image_url"].(string)
	if !strings.HasSuffix(url, strings.TrimPrefix(objects[0], service.PropertyImagesBucket)) {
		t.Errorf("image_url = %q, want the uploaded object", url)
	}
}

func TestAdminHandler_EditAndUpdateProperty(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedProperty("Sea View Villa", "Hawana Salalah")
	b := adminBrowser(t, env)

	rec := b.get("/admin/properties/" + id)
	assertStatus(t, rec.Code, http.StatusOK)
	assertContains(t, rec.Body.String(), `value="Sea View Villa"`, `value="125000"`)

	form := validPropertyForm()
	form["title_en"] = "Sea View Villa (Reduced)"
	form["price"] = "110000"
	form["status"] = "reserved"
	assertRedirect(t, b.post("/admin/properties/"+id, form), "/admin")

	row := env.fb.Rows("properties")[0]
	if row["title_en"] != "Sea View Villa (Reduced)" || row["status"] != "reserved" {
		t.Errorf("row = %v", row)
	}
}

func TestAdminHandler_EditMissingProperty(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	assertRedirect(t, b.get("/admin/properties/missing"), "/admin")
	assertContains(t, b.get("/admin").Body.String(), "Property not found.")
}

func TestAdminHandler_DeleteProperty(t *testing.T) {
	env := newTestEnv(t)
	id := env.seedProperty("Sea View Villa", "Hawana Salalah")
	b := adminBrowser(t, env)

	rec := b.get("/admin/properties/" + id + "/delete")
	assertStatus(t, rec.Code, http.StatusOK)
	assertContains(t, rec.Body.String(), "Are you sure you want to delete this property?")

	assertRedirect(t, b.post("/admin/properties/"+id+"/delete", nil), "/admin")
	assertContains(t, b.get("/admin").Body.String(), "Deletion cancelled.")
	if n := len(env.fb.Rows("properties")); n != 1 {
		t.Fatalf("properties rows = %d, want 1 after declining", n)
	}

	assertRedirect(t, b.post("/admin/properties/"+id+"/delete", map[string]string{"confirm": "yes"}), "/admin")
	body := b.get("/admin").Body.String()
	assertContains(t, body, "Property deleted.", "No properties yet.")
	if n := len(env.fb.Rows("properties")); n != 0 {
		t.Errorf("properties rows = %d, want 0", n)
	}
}

func TestAdminHandler_Refresh(t *testing.T) {
	env := newTestEnv(t)
	b := adminBrowser(t, env)

	assertContains(t, b.get("/admin").Body.String(), "No properties yet.")

	env.seedProperty("Added Elsewhere", "Awqad")
	assertRedirect(t, b.post("/admin/refresh", nil), "/admin")
	assertContains(t, b.get("/admin").Body.String(), "Added Elsewhere")
}
