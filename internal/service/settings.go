// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// SettingsService reads and writes the site settings row.
type SettingsService struct {
	client backend.Client
	logger *slog.Logger
}

// NewSettingsService creates a SettingsService.
func NewSettingsService(client backend.Client, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{client: client, logger: logger}
}

// Get returns the stored settings. A missing row or table yields the
// defaults without error; other failures return the defaults and the
// error.
func (s *SettingsService) Get(ctx context.Context) (model.SiteSettings, error) {
	var settings model.SiteSettings
	err := s.client.From("site_settings").Select("*").Eq("id", model.SettingsID).Single(ctx, &settings)
	switch {
	case err == nil:
		return settings, nil
	case backend.IsNotFound(err), backend.IsMissingTable(err):
		return model.DefaultSiteSettings(), nil
	default:
		s.logger.Warn("loading site settings failed", "error", err)
		return model.DefaultSiteSettings(), err
	}
}

// Save upserts the settings row.
func (s *SettingsService) Save(ctx context.Context, settings model.SiteSettings) error {
	settings.ID = model.SettingsID
	if err := s.client.From("site_settings").Upsert(ctx, settings, "id"); err != nil {
		return err
	}
	s.logger.Info("site settings saved")
	return nil
}
