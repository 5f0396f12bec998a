// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// SecurityHeadersConfig holds configuration for security headers.
type SecurityHeadersConfig struct {
	// IsDevelopment disables HSTS.
	IsDevelopment bool

	ContentSecurityPolicy string

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds.
	// Zero disables HSTS.
	HSTSMaxAge            int
	HSTSIncludeSubDomains bool

	// FrameOptions is "DENY", "SAMEORIGIN", or empty to omit the header.
	FrameOptions      string
	ReferrerPolicy    string
	PermissionsPolicy string

	// ExcludePrefixes skip the headers entirely.
	ExcludePrefixes []string
}

// cspDirectives lists the policy in output order. Images may come from
// any https origin because listings can point at external image URLs.
var cspDirectives = [][2]string{
	{"default-src", "'self'"},
	{"script-src", "'self'"},
	{"style-src", "'self' 'unsafe-inline' https://fonts.googleapis.com"},
	{"img-src", "'self' data: blob: https:"},
	{"font-src", "'self' data: https://fonts.gstatic.com"},
	{"connect-src", "'self'"},
	{"frame-src", "https://www.google.com"},
	{"object-src", "'none'"},
	{"base-uri", "'self'"},
	{"form-action", "'self'"},
	{"frame-ancestors", "'self'"},
}

// DefaultSecurityHeadersConfig returns the site's security headers.
func DefaultSecurityHeadersConfig(isDev bool) SecurityHeadersConfig {
	parts := make([]string, 0, len(cspDirectives))
	for _, d := range cspDirectives {
		value := d[1]
		if isDev && d[0] == "img-src" {
			value += " http:"
		}
		parts = append(parts, d[0]+" "+value)
	}

	return SecurityHeadersConfig{
		IsDevelopment:         isDev,
		ContentSecurityPolicy: strings.Join(parts, "; "),
		HSTSMaxAge:            31536000,
		HSTSIncludeSubDomains: !isDev,
		FrameOptions:          "SAMEORIGIN",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		PermissionsPolicy:     "camera=(), microphone=(), geolocation=(), payment=(), usb=(), browsing-topics=()",
	}
}

// SecurityHeaders returns a middleware that adds security headers to responses.
func SecurityHeaders(cfg SecurityHeadersConfig) func(http.Handler) http.Handler {
	hsts := ""
	if !cfg.IsDevelopment && cfg.HSTSMaxAge > 0 {
		hsts = "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubDomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.ExcludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			h := w.Header()
			if cfg.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			if cfg.FrameOptions != "" {
				h.Set("X-Frame-Options", cfg.FrameOptions)
			}
			h.Set("X-Content-Type-Options", "nosniff")
			if cfg.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", cfg.ReferrerPolicy)
			}
			if cfg.PermissionsPolicy != "" {
				h.Set("Permissions-Policy", cfg.PermissionsPolicy)
			}

			next.ServeHTTP(w, r)
		})
	}
}
