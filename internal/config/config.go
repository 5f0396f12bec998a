// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected in production.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"RAWAJ_DB_PATH" envDefault:"./data/rawaj.db"`
	SessionSecret string `env:"RAWAJ_SESSION_SECRET,required"`
	JWTSecret     string `env:"RAWAJ_JWT_SECRET"` // Falls back to SessionSecret
	ServerHost    string `env:"RAWAJ_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"RAWAJ_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"RAWAJ_ENV" envDefault:"development"`
	LogLevel      string `env:"RAWAJ_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"RAWAJ_UPLOADS_DIR" envDefault:"./uploads"`
	PublicURL     string `env:"RAWAJ_PUBLIC_URL"` // Base URL for storage links; empty means relative URLs
	MaxUploadMB   int    `env:"RAWAJ_MAX_UPLOAD_MB" envDefault:"10"`

	// Cache configuration for the per-visitor local store
	RedisURL    string `env:"RAWAJ_REDIS_URL"`                       // Optional Redis URL
	CachePrefix string `env:"RAWAJ_CACHE_PREFIX" envDefault:"rawaj:"` // Redis key prefix
	CacheTTL    int    `env:"RAWAJ_CACHE_TTL" envDefault:"3600"`      // Cache TTL in seconds

	// Client state tuning
	CatalogTimeout time.Duration `env:"RAWAJ_CATALOG_TIMEOUT" envDefault:"15s"`
	GuardWait      time.Duration `env:"RAWAJ_GUARD_WAIT" envDefault:"2s"`
	VisitorIdleTTL time.Duration `env:"RAWAJ_VISITOR_IDLE_TTL" envDefault:"30m"`

	// Local backend auth
	RequireEmailConfirm bool          `env:"RAWAJ_REQUIRE_EMAIL_CONFIRM" envDefault:"false"`
	AccessTokenTTL      time.Duration `env:"RAWAJ_ACCESS_TOKEN_TTL" envDefault:"1h"`

	// Seeding configuration
	DoSeed        bool   `env:"RAWAJ_DO_SEED" envDefault:"false"`
	AdminEmail    string `env:"RAWAJ_ADMIN_EMAIL"`
	AdminPassword string `env:"RAWAJ_ADMIN_PASSWORD"`

	// GeoIP configuration
	GeoIPDBPath string `env:"RAWAJ_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// TokenSecret returns the secret used to sign backend access tokens.
func (c Config) TokenSecret() string {
	if c.JWTSecret != "" {
		return c.JWTSecret
	}
	return c.SessionSecret
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("RAWAJ_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("RAWAJ_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("RAWAJ_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if cfg.CatalogTimeout <= 0 {
		return nil, fmt.Errorf("RAWAJ_CATALOG_TIMEOUT must be positive, got %s", cfg.CatalogTimeout)
	}

	if (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("RAWAJ_ADMIN_EMAIL and RAWAJ_ADMIN_PASSWORD must be set together")
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
