// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/alrawaj/rawaj-web/internal/backend/local"
	"github.com/alrawaj/rawaj-web/internal/config"
	"github.com/alrawaj/rawaj-web/internal/handler"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/imaging"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/render"
	"github.com/alrawaj/rawaj-web/internal/state"
	"github.com/alrawaj/rawaj-web/internal/version"
	"github.com/alrawaj/rawaj-web/internal/visitor"
	"github.com/alrawaj/rawaj-web/web"
)

type routerDeps struct {
	cfg             *config.Config
	logger          *slog.Logger
	db              *sql.DB
	backend         *local.Backend
	catalog         *i18n.Catalog
	catalogState    *state.CatalogState
	registry        *visitor.Registry
	sessionManager  *scs.SessionManager
	renderer        *render.Renderer
	loginProtection *middleware.LoginProtection
	deps            handler.Deps
	processor       *imaging.Processor
}

func newRouter(d routerDeps) (http.Handler, error) {
	cfg := d.cfg

	publicHandler := handler.NewPublicHandler(d.deps, d.catalogState)
	authHandler := handler.NewAuthHandler(d.deps, d.sessionManager, d.loginProtection, d.backend)
	adminHandler := handler.NewAdminHandler(d.deps, d.catalogState, d.processor, cfg.MaxUploadBytes())
	siteHandler := handler.NewSiteHandler(d.deps)
	storageHandler := handler.NewStorageHandler(d.backend.FileStorage(), d.logger)
	healthHandler := handler.NewHealthHandler(d.db, cfg.UploadsDir, version.Get())

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	// Health checks and assets never touch the visitor session.
	r.Get("/health", healthHandler.Health)
	r.Get("/health/live", healthHandler.Liveness)
	r.Get("/health/ready", healthHandler.Readiness)

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("loading static files: %w", err)
	}
	r.Handle("/static/*", middleware.StaticCache(86400)(http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))))
	r.Get("/storage/{bucket}/*", storageHandler.Serve)

	csrfConfig := middleware.DefaultCSRFConfig([]byte(cfg.SessionSecret), cfg.IsDevelopment(), cfg.ServerPort)
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	r.Group(func(r chi.Router) {
		r.Use(d.sessionManager.LoadAndSave)
		r.Use(middleware.Visitors(d.sessionManager, d.registry, d.catalog))
		r.Use(middleware.Language(d.catalog))
		r.Use(middleware.CSRF(csrfConfig))

		r.NotFound(publicHandler.NotFound)

		r.Get("/", publicHandler.Home)
		r.Get("/properties", publicHandler.Properties)
		r.Get("/properties/{id}", publicHandler.Property)
		r.Get("/about", publicHandler.About)
		r.Get("/contact", publicHandler.Contact)
		r.Get("/privacy", publicHandler.Privacy)
		r.Post("/language", siteHandler.ToggleLanguage)
		r.Post("/consent", siteHandler.AcceptConsent)

		r.Get("/login", authHandler.LoginForm)
		r.Get("/signup", authHandler.SignupForm)
		r.With(d.loginProtection.Middleware()).Post("/login", authHandler.Login)
		r.With(d.loginProtection.Middleware()).Post("/signup", authHandler.Signup)
		r.Post("/logout", authHandler.Logout)
		r.Get("/auth/confirm", authHandler.Confirm)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.Guard(cfg.GuardWait, d.logger))
			r.Use(middleware.NoStore)

			r.Get("/", adminHandler.Dashboard)
			r.Post("/refresh", adminHandler.Refresh)
			r.Get("/properties/new", adminHandler.NewProperty)
			r.Post("/properties/new", adminHandler.CreateProperty)
			r.Get("/properties/{id}", adminHandler.EditProperty)
			r.Post("/properties/{id}", adminHandler.UpdateProperty)
			r.Get("/properties/{id}/delete", adminHandler.DeleteConfirm)
			r.Post("/properties/{id}/delete", adminHandler.DeleteProperty)
			r.Get("/settings", adminHandler.Settings)
			r.Post("/settings", adminHandler.SaveSettings)
			r.Get("/users", adminHandler.Users)
			r.Post("/users/{id}/admin", adminHandler.ToggleAdmin)
		})
	})

	return r, nil
}
