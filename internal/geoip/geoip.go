// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package geoip resolves visitor addresses to ISO country codes using a
// MaxMind GeoLite2-Country database. Without a database every lookup
// returns "".
package geoip

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/oschwald/maxminddb-golang"
)

// Local is returned for loopback and private addresses.
const Local = "LOCAL"

// privateCIDRs contains parsed CIDR blocks for private IP ranges.
var privateCIDRs []*net.IPNet

func init() {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",  // IPv6 unique local
		"fe80::/10", // IPv6 link-local
	}

	for _, block := range privateBlocks {
		_, cidr, err := net.ParseCIDR(block)
		if err == nil {
			privateCIDRs = append(privateCIDRs, cidr)
		}
	}
}

// Lookup maps IP addresses to countries. The zero value is a disabled
// lookup.
type Lookup struct {
	mu sync.RWMutex
	db *maxminddb.Reader
}

// geoRecord matches the GeoLite2-Country database structure.
type geoRecord struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
}

// Open loads the database at path. An empty path returns a disabled
// lookup and no error.
func Open(path string) (*Lookup, error) {
	if path == "" {
		return &Lookup{}, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return &Lookup{}, fmt.Errorf("opening GeoIP database: %w", err)
	}
	return &Lookup{db: db}, nil
}

// OpenOrDisabled is Open that logs a failure and falls back to a disabled
// lookup, so a missing database never stops the site.
func OpenOrDisabled(path string, logger *slog.Logger) *Lookup {
	g, err := Open(path)
	if err != nil {
		logger.Warn("GeoIP disabled", "path", path, "error", err)
		return g
	}
	if g.Enabled() {
		logger.Info("GeoIP enabled", "path", path)
	}
	return g
}

// Country returns the ISO country code of ip, Local for private and
// loopback addresses, or "" when unknown.
func (g *Lookup) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	if parsed.IsLoopback() || isPrivateIP(parsed) {
		return Local
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.db == nil {
		return ""
	}

	var record geoRecord
	if err := g.db.Lookup(parsed, &record); err != nil {
		return ""
	}
	return record.Country.ISOCode
}

// Enabled reports whether a database is loaded.
func (g *Lookup) Enabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.db != nil
}

// Close releases the database.
func (g *Lookup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

func isPrivateIP(ip net.IP) bool {
	for _, cidr := range privateCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}
