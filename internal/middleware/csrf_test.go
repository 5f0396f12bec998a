// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

var testAuthKey = []byte("12345678901234567890123456789012")

func TestDefaultCSRFConfig(t *testing.T) {
	tests := []struct {
		name  string
		isDev bool
		port  int
		want  []string
	}{
		{"development trusts local origins", true, 3000, []string{"localhost:3000", "127.0.0.1:3000"}},
		{"production trusts nothing", false, 3000, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultCSRFConfig(testAuthKey, tt.isDev, tt.port)

			if len(cfg.AuthKey) != 32 {
				t.Errorf("AuthKey length = %d, want 32", len(cfg.AuthKey))
			}
			if len(cfg.TrustedOrigins) != len(tt.want) {
				t.Fatalf("TrustedOrigins = %v, want %v", cfg.TrustedOrigins, tt.want)
			}
			for i, origin := range cfg.TrustedOrigins {
				if origin != tt.want[i] {
					t.Errorf("TrustedOrigins[%d] = %q, want %q", i, origin, tt.want[i])
				}
				if strings.HasPrefix(origin, "http") {
					t.Errorf("TrustedOrigins[%d] = %q, want host:port", i, origin)
				}
			}
		})
	}
}

func TestCSRF_CrossSitePostRejected(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testAuthKey, false, 8080))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/admin/settings", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestCSRF_SameOriginPostAllowed(t *testing.T) {
	handler := CSRF(DefaultCSRFConfig(testAuthKey, false, 8080))(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCSRF_CustomErrorHandler(t *testing.T) {
	cfg := DefaultCSRFConfig(testAuthKey, false, 8080)
	called := false
	cfg.ErrorHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CSRF(cfg)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/consent", nil)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("custom error handler not called")
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}

func TestSkipCSRF(t *testing.T) {
	handler := SkipCSRF("/health")(CSRF(DefaultCSRFConfig(testAuthKey, false, 8080))(okHandler()))

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/login", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set("Sec-Fetch-Site", "cross-site")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
