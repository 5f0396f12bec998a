// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that also persists warnings and
// errors to the event_log table, so operators can review failures after
// the fact.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/alrawaj/rawaj-web/internal/backend"
)

// Event levels stored in event_log.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Event categories stored in event_log.
const (
	CategoryAuth     = "auth"
	CategoryProperty = "property"
	CategorySettings = "settings"
	CategoryUser     = "user"
	CategoryStorage  = "storage"
	CategorySystem   = "system"
)

// writeTimeout bounds a single event insert.
const writeTimeout = 2 * time.Second

// EventLogHandler wraps another handler and also writes records at or
// above its level to event_log.
type EventLogHandler struct {
	inner slog.Handler
	db    *sqlx.DB
	level slog.Level
	attrs []slog.Attr
}

// NewEventLogHandler persists WARN and above.
func NewEventLogHandler(inner slog.Handler, db *sqlx.DB) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel persists records at level and above.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sqlx.DB, level slog.Level) *EventLogHandler {
	return &EventLogHandler{inner: inner, db: db, level: level}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level && h.db != nil {
		h.write(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{inner: h.inner.WithAttrs(attrs), db: h.db, level: h.level, attrs: merged}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{inner: h.inner.WithGroup(name), db: h.db, level: h.level, attrs: h.attrs}
}

// write inserts the record. Failures are dropped: logging them would
// recurse into this handler.
func (h *EventLogHandler) write(r slog.Record) {
	attrs := make(map[string]string, r.NumAttrs()+len(h.attrs))
	category := ""
	collect := func(a slog.Attr) bool {
		if a.Key == "category" {
			category = a.Value.String()
			return true
		}
		attrs[a.Key] = a.Value.String()
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if category == "" {
		category = inferCategory(r.Message)
	}
	metadata, err := json.Marshal(attrs)
	if err != nil {
		metadata = []byte("{}")
	}

	created := r.Time
	if created.IsZero() {
		created = time.Now()
	}

	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	_, _ = h.db.ExecContext(ctx,
		`INSERT INTO event_log (level, category, message, metadata, created_at) VALUES (?, ?, ?, ?, ?)`,
		eventLevel(r.Level), category, r.Message, string(metadata), backend.FormatTime(created))
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarning
	default:
		return LevelInfo
	}
}

func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") ||
		strings.Contains(msg, "sign") || strings.Contains(msg, "session") || strings.Contains(msg, "admin"):
		return CategoryAuth
	case strings.Contains(msg, "propert") || strings.Contains(msg, "catalog"):
		return CategoryProperty
	case strings.Contains(msg, "setting"):
		return CategorySettings
	case strings.Contains(msg, "user") || strings.Contains(msg, "profile") || strings.Contains(msg, "consent"):
		return CategoryUser
	case strings.Contains(msg, "upload") || strings.Contains(msg, "storage") || strings.Contains(msg, "image"):
		return CategoryStorage
	default:
		return CategorySystem
	}
}
