// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/auth"
	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// SeedOptions controls what Seed creates.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	// SampleData adds demo listings when the properties table is empty.
	SampleData bool
}

// Seed creates the initial data: an optional confirmed admin account, the
// site settings row and, if requested, sample listings. Existing data is
// never overwritten, so Seed can run on every start.
func Seed(ctx context.Context, db *sqlx.DB, opts SeedOptions, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.AdminEmail != "" {
		if err := seedAdmin(ctx, db, opts.AdminEmail, opts.AdminPassword, logger); err != nil {
			return err
		}
	}

	if err := seedSettings(ctx, db); err != nil {
		return err
	}

	if opts.SampleData {
		if err := seedProperties(ctx, db, logger); err != nil {
			return err
		}
	}

	return nil
}

func seedAdmin(ctx context.Context, db *sqlx.DB, email, password string, logger *slog.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var id string
	err := db.GetContext(ctx, &id, `SELECT id FROM auth_users WHERE email = ?`, email)
	switch {
	case err == nil:
		logger.Info("admin user already exists, skipping seed", "email", email)
	case errors.Is(err, sql.ErrNoRows):
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		id = uuid.NewString()
		now := backend.FormatTime(time.Now())
		if _, err := db.ExecContext(ctx, `
			INSERT INTO auth_users (id, email, password_hash, email_confirmed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`, id, email, hash, now, now, now); err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO user_profiles (id, full_name, email, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`, id, "Administrator", email, now); err != nil {
			return fmt.Errorf("creating admin profile: %w", err)
		}
		logger.Info("created admin user", "id", id, "email", email)
	default:
		return fmt.Errorf("checking for admin user: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO admins (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING`, id, backend.FormatTime(time.Now())); err != nil {
		return fmt.Errorf("granting admin role: %w", err)
	}
	return nil
}

func seedSettings(ctx context.Context, db *sqlx.DB) error {
	s := model.DefaultSiteSettings()
	_, err := db.ExecContext(ctx, `
		INSERT INTO site_settings (id, company_name_en, company_name_ar, phone_primary, phone_secondary,
			email, address_en, address_ar, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		s.ID, s.CompanyNameEN, s.CompanyNameAR, s.PhonePrimary, s.PhoneSecondary,
		s.Email, s.AddressEN, s.AddressAR, backend.FormatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("seeding site settings: %w", err)
	}
	return nil
}

type sampleProperty struct {
	titleEN, titleAR string
	descEN, descAR   string
	areaEN, areaAR   string
	price            float64
	size             float64
	typ              model.PropertyType
	status           model.PropertyStatus
}

var sampleProperties = []sampleProperty{
	{"Sea view villa", "فيلا بإطلالة بحرية", "Five bedroom villa close to the beach.", "فيلا من خمس غرف نوم بالقرب من الشاطئ.",
		"Hawana Salalah", "هوانا صلالة", 185000, 540, model.TypeHouse, model.StatusAvailable},
	{"Family apartment", "شقة عائلية", "Three bedroom apartment with parking.", "شقة من ثلاث غرف نوم مع موقف.",
		"Al Saadah", "السعادة", 42000, 160, model.TypeApartment, model.StatusAvailable},
	{"Residential plot", "أرض سكنية", "Corner plot ready for construction.", "أرض على زاويتين جاهزة للبناء.",
		"Awqad", "عوقد", 18500, 600, model.TypeLand, model.StatusReserved},
	{"Shop front", "محل تجاري", "Ground floor shop on a main road.", "محل في الطابق الأرضي على شارع رئيسي.",
		"Al Dahariz", "الدهاريز", 65000, 95, model.TypeCommercial, model.StatusSold},
}

func seedProperties(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM properties`); err != nil {
		return fmt.Errorf("counting properties: %w", err)
	}
	if count > 0 {
		logger.Info("properties already present, skipping sample data", "count", count)
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Stagger created_at so the listing order is stable.
	base := time.Now().Add(-time.Duration(len(sampleProperties)) * time.Minute)
	for i, p := range sampleProperties {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO properties (id, title_en, title_ar, description_en, description_ar, area_en, area_ar,
				city_en, city_ar, price, size, type, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, 'Salalah', 'صلالة', ?, ?, ?, ?, ?)`,
			uuid.NewString(), p.titleEN, p.titleAR, p.descEN, p.descAR, p.areaEN, p.areaAR,
			p.price, p.size, string(p.typ), string(p.status),
			backend.FormatTime(base.Add(time.Duration(i)*time.Minute))); err != nil {
			return fmt.Errorf("inserting sample property %q: %w", p.titleEN, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sample properties: %w", err)
	}
	logger.Info("seeded sample properties", "count", len(sampleProperties))
	return nil
}
