// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/alrawaj/rawaj-web/internal/auth"
	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/backend/local"
	"github.com/alrawaj/rawaj-web/internal/cache"
	"github.com/alrawaj/rawaj-web/internal/config"
	"github.com/alrawaj/rawaj-web/internal/geoip"
	"github.com/alrawaj/rawaj-web/internal/handler"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/imaging"
	"github.com/alrawaj/rawaj-web/internal/localstore"
	"github.com/alrawaj/rawaj-web/internal/logging"
	"github.com/alrawaj/rawaj-web/internal/middleware"
	"github.com/alrawaj/rawaj-web/internal/render"
	"github.com/alrawaj/rawaj-web/internal/service"
	"github.com/alrawaj/rawaj-web/internal/session"
	"github.com/alrawaj/rawaj-web/internal/state"
	"github.com/alrawaj/rawaj-web/internal/store"
	"github.com/alrawaj/rawaj-web/internal/version"
	"github.com/alrawaj/rawaj-web/internal/visitor"
	"github.com/alrawaj/rawaj-web/web"
)

// anonymousVisitor is the local store key of the shared signed-out client
// that loads the catalog and site settings.
const anonymousVisitor = "anonymous"

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "Al-Rawaj Real Estate - bilingual property listings site\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_SESSION_SECRET     Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_DB_PATH            SQLite database path (default: ./data/rawaj.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_SERVER_PORT        Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_ENV                Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_UPLOADS_DIR        Property image storage (default: ./uploads)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_REDIS_URL          Redis URL for the visitor store cache (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  RAWAJ_DO_SEED            Create the admin account, settings and sample listings\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(version.Get().String())
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func run() error {
	// Load .env file if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(textHandler)
	slog.SetDefault(logger)

	catalog, err := i18n.Load(logger)
	if err != nil {
		return fmt.Errorf("loading translations: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	dbx := sqlx.NewDb(db, store.DriverName)

	// Warnings and errors also go to the event log table.
	logger = slog.New(logging.NewEventLogHandlerWithLevel(textHandler, dbx, logLevel))
	slog.SetDefault(logger)
	slog.Info("database ready")

	if cfg.DoSeed {
		seed := store.SeedOptions{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			SampleData:    cfg.IsDevelopment(),
		}
		if err := store.Seed(context.Background(), dbx, seed, logger); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	visitorCache := cache.New(cache.Config{
		RedisURL:   cfg.RedisURL,
		Prefix:     cfg.CachePrefix,
		DefaultTTL: time.Duration(cfg.CacheTTL) * time.Second,
	}, logger)
	defer func() { _ = visitorCache.Close() }()
	visitorStore := localstore.New(dbx, visitorCache, time.Duration(cfg.CacheTTL)*time.Second, logger)

	tokens, err := auth.NewTokenService(cfg.TokenSecret(), cfg.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	b, err := local.New(local.Options{
		DB:                  dbx,
		Tokens:              tokens,
		Logger:              logger,
		StorageDir:          cfg.UploadsDir,
		PublicURL:           cfg.PublicURL,
		Buckets:             []string{service.PropertyImagesBucket},
		MaxUploadBytes:      cfg.MaxUploadBytes(),
		RequireEmailConfirm: cfg.RequireEmailConfirm,
		ConfirmURL:          confirmURL(cfg),
	})
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}

	anonymous := b.NewClient(visitorStore.For(anonymousVisitor))
	defer anonymous.Close()

	geo := geoip.OpenOrDisabled(cfg.GeoIPDBPath, logger)
	defer func() { _ = geo.Close() }()

	catalogState := state.NewCatalogState(anonymous, cfg.CatalogTimeout, logger)
	go func() {
		if err := catalogState.Fetch(context.Background()); err != nil {
			logger.Warn("initial catalog load failed", "error", err)
		}
	}()

	registry := visitor.NewRegistry(visitor.Options{
		Store:     visitorStore,
		NewClient: func(kv backend.KeyValueStore) visitor.Client { return b.NewClient(kv) },
		Catalog:   catalog,
		IdleTTL:   cfg.VisitorIdleTTL,
		Logger:    logger,
	})
	defer registry.Close()

	sessionManager := session.New(db, cfg.IsDevelopment())

	templatesFS, err := fs.Sub(web.Templates, "templates")
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	renderer, err := render.New(render.Config{
		TemplatesFS:    templatesFS,
		SessionManager: sessionManager,
		Catalog:        catalog,
		IsDev:          cfg.IsDevelopment(),
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	loginProtection := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	defer loginProtection.Close()

	r, err := newRouter(routerDeps{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		backend:         b,
		catalog:         catalog,
		catalogState:    catalogState,
		registry:        registry,
		sessionManager:  sessionManager,
		renderer:        renderer,
		loginProtection: loginProtection,
		deps: handler.Deps{
			Renderer: renderer,
			I18n:     catalog,
			Settings: service.NewSettingsService(anonymous, logger),
			Consent:  service.NewConsentService(anonymous, geo, logger),
			Logger:   logger,
		},
		processor: imaging.NewProcessor(imaging.DefaultMaxDimension, imaging.DefaultQuality),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Image uploads
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// confirmURL builds sign-up confirmation links on the public URL. Without
// one the backend logs the raw token.
func confirmURL(cfg *config.Config) func(string) string {
	if cfg.PublicURL == "" {
		return nil
	}
	return func(token string) string {
		return cfg.PublicURL + "/auth/confirm?token=" + url.QueryEscape(token)
	}
}
