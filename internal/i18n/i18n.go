// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n holds the site's translation table: nested JSON documents
// per language, flattened to dot-path keys at startup and never modified
// afterwards.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

//go:embed locales/*.json
var localesFS embed.FS

// DefaultLanguage is used when nothing else selects a language.
const DefaultLanguage = "en"

// SupportedLanguages lists the site languages; the first is the default.
var SupportedLanguages = []string{"en", "ar"}

// Catalog is an immutable translation table.
type Catalog struct {
	translations map[string]map[string]string
	supported    []language.Tag
	matcher      language.Matcher
	printers     map[string]*message.Printer
	defaultLang  string
}

// Load builds the catalog from the embedded locale files.
func Load(logger *slog.Logger) (*Catalog, error) {
	docs := make(map[string][]byte, len(SupportedLanguages))
	for _, lang := range SupportedLanguages {
		path := "locales/" + lang + ".json"
		data, err := localesFS.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		docs[lang] = data
	}

	c, err := New(DefaultLanguage, SupportedLanguages, docs)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("i18n initialized", "languages", SupportedLanguages, "keys", c.Count(DefaultLanguage))
	}
	return c, nil
}

// New builds a catalog from one nested JSON document per language.
func New(defaultLang string, langs []string, docs map[string][]byte) (*Catalog, error) {
	c := &Catalog{
		translations: make(map[string]map[string]string, len(langs)),
		printers:     make(map[string]*message.Printer, len(langs)),
		defaultLang:  defaultLang,
	}

	for _, lang := range langs {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("parsing language %q: %w", lang, err)
		}
		c.supported = append(c.supported, tag)
		c.printers[lang] = message.NewPrinter(tag)

		var doc map[string]any
		if err := json.Unmarshal(docs[lang], &doc); err != nil {
			return nil, fmt.Errorf("parsing %s translations: %w", lang, err)
		}
		flat := make(map[string]string)
		if err := flatten("", doc, flat); err != nil {
			return nil, fmt.Errorf("%s translations: %w", lang, err)
		}
		c.translations[lang] = flat
	}
	c.matcher = language.NewMatcher(c.supported)

	return c, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) error {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]any:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %s: unsupported value type %T", key, v)
		}
	}
	return nil
}

// T returns the translation of a dot-path key in lang, or the key itself
// when lang has no such entry. Extra args are applied with fmt.Sprintf.
func (c *Catalog) T(lang, key string, args ...any) string {
	s, ok := c.translations[lang][key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(s, args...)
	}
	return s
}

// Has reports whether lang defines key.
func (c *Catalog) Has(lang, key string) bool {
	_, ok := c.translations[lang][key]
	return ok
}

// Count returns the number of keys defined for lang.
func (c *Catalog) Count(lang string) int {
	return len(c.translations[lang])
}

// Default returns the default language code.
func (c *Catalog) Default() string {
	return c.defaultLang
}

// IsSupported reports whether lang is a site language.
func (c *Catalog) IsSupported(lang string) bool {
	_, ok := c.translations[strings.ToLower(lang)]
	return ok
}

// Match returns the supported language best matching an Accept-Language
// header or a single language code.
func (c *Catalog) Match(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		tag, err := language.Parse(accept)
		if err != nil {
			return c.defaultLang
		}
		tags = []language.Tag{tag}
	}

	_, idx, confidence := c.matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(c.supported) {
		return c.defaultLang
	}
	base, _ := c.supported[idx].Base()
	return base.String()
}

// FormatNumber renders v with the digit grouping of lang and up to three
// fraction digits.
func (c *Catalog) FormatNumber(lang string, v float64) string {
	p, ok := c.printers[lang]
	if !ok {
		p = c.printers[c.defaultLang]
	}
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// FormatPrice renders an OMR amount with the localized currency label.
func (c *Catalog) FormatPrice(lang string, price float64) string {
	return c.FormatNumber(lang, price) + " " + c.T(lang, "property.currency")
}

// Direction returns the text direction of lang.
func Direction(lang string) string {
	if lang == "ar" {
		return "rtl"
	}
	return "ltr"
}
