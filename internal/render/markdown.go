// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"bytes"
	"html/template"
	"log/slog"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownConverter = goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)
	htmlSanitizer = bluemonday.UGCPolicy()
)

// Markdown converts a property description to sanitized HTML. Plain text
// descriptions keep their line breaks.
func Markdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdownConverter.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(htmlSanitizer.SanitizeBytes(buf.Bytes()))
}
