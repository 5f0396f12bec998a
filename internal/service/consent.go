// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/geoip"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// ConsentKey is the visitor key recording that the banner was accepted.
const ConsentKey = "rawaj_consent"

// ConsentService records cookie banner acceptance.
type ConsentService struct {
	client backend.Client
	geo    *geoip.Lookup
	logger *slog.Logger
}

// NewConsentService creates a ConsentService. geo may be nil.
func NewConsentService(client backend.Client, geo *geoip.Lookup, logger *slog.Logger) *ConsentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentService{client: client, geo: geo, logger: logger}
}

// HasConsented reports whether the visitor already accepted.
func (s *ConsentService) HasConsented(ctx context.Context, kv backend.KeyValueStore) bool {
	v, ok, err := kv.Get(ctx, ConsentKey)
	if err != nil {
		s.logger.Warn("reading consent flag failed", "error", err)
		return false
	}
	return ok && v == "true"
}

// Accept stores the consent flag and records an anonymized consent row.
// Only a failure to store the flag is returned; the row is best-effort.
func (s *ConsentService) Accept(ctx context.Context, kv backend.KeyValueStore, userAgent, ip string) error {
	if err := kv.Set(ctx, ConsentKey, "true"); err != nil {
		return fmt.Errorf("saving consent: %w", err)
	}

	record := model.Consent{
		ConsentType: model.ConsentAll,
		IPAddress:   model.AnonymizedIP,
		UserAgent:   SummarizeUserAgent(userAgent),
	}
	if s.geo != nil {
		record.Country = s.geo.Country(ip)
	}
	if err := s.client.From("user_consents").Insert(ctx, record); err != nil {
		s.logger.Warn("recording consent failed", "error", err)
	}
	return nil
}

// SummarizeUserAgent reduces a User-Agent header to browser, OS and
// device class, e.g. "Chrome 120 / Windows / desktop".
func SummarizeUserAgent(uaString string) string {
	if strings.TrimSpace(uaString) == "" {
		return ""
	}
	ua := useragent.Parse(uaString)

	browser := ua.Name
	if browser == "" {
		browser = "Unknown"
	} else if major, _, _ := strings.Cut(ua.Version, "."); major != "" {
		browser += " " + major
	}
	os := ua.OS
	if os == "" {
		os = "Unknown"
	}

	device := "desktop"
	switch {
	case ua.Mobile:
		device = "mobile"
	case ua.Tablet:
		device = "tablet"
	case ua.Bot:
		device = "bot"
	}
	return browser + " / " + os + " / " + device
}
