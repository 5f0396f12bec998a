// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/i18n"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// LanguageKey is the persisted key holding the visitor's language.
const LanguageKey = "lang"

// LanguageState is the visitor's current language, persisted in its
// key/value store.
type LanguageState struct {
	kv      backend.KeyValueStore
	catalog *i18n.Catalog
	logger  *slog.Logger

	mu   sync.RWMutex
	lang string
}

// NewLanguageState creates a LanguageState set to the catalog default.
func NewLanguageState(kv backend.KeyValueStore, catalog *i18n.Catalog, logger *slog.Logger) *LanguageState {
	if logger == nil {
		logger = slog.Default()
	}
	return &LanguageState{kv: kv, catalog: catalog, logger: logger, lang: catalog.Default()}
}

// Load reads the persisted language. When none is stored, or the stored
// value is not supported, fallback is used and nothing is written.
func (l *LanguageState) Load(ctx context.Context, fallback string) string {
	lang := fallback
	stored, ok, err := l.kv.Get(ctx, LanguageKey)
	switch {
	case err != nil:
		l.logger.Warn("reading stored language failed", "error", err)
	case ok && l.catalog.IsSupported(stored):
		lang = stored
	}
	if !l.catalog.IsSupported(lang) {
		lang = l.catalog.Default()
	}

	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()
	return lang
}

// Language returns the current language code.
func (l *LanguageState) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lang
}

// Dir returns "rtl" for Arabic and "ltr" otherwise.
func (l *LanguageState) Dir() string {
	return i18n.Direction(l.Language())
}

// Set switches to lang and persists it.
func (l *LanguageState) Set(ctx context.Context, lang string) error {
	if !l.catalog.IsSupported(lang) {
		return fmt.Errorf("unsupported language %q", lang)
	}
	l.mu.Lock()
	l.lang = lang
	l.mu.Unlock()

	if err := l.kv.Set(ctx, LanguageKey, lang); err != nil {
		return fmt.Errorf("saving language: %w", err)
	}
	return nil
}

// Toggle switches between English and Arabic and returns the new code.
func (l *LanguageState) Toggle(ctx context.Context) (string, error) {
	next := model.LangArabic
	if l.Language() == model.LangArabic {
		next = model.LangEnglish
	}
	return next, l.Set(ctx, next)
}

// T translates key in the current language.
func (l *LanguageState) T(key string, args ...any) string {
	return l.catalog.T(l.Language(), key, args...)
}
