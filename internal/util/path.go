// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util holds small path and request helpers shared by the
// storage backend and the HTTP layer.
package util

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// SafeJoinPath joins components onto base and fails if the result
// escapes base.
func SafeJoinPath(base string, components ...string) (string, error) {
	full := filepath.Join(append([]string{base}, components...)...)

	absBase, err := filepath.Abs(filepath.Clean(base))
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("invalid target path: %w", err)
	}

	// Trailing separator so /uploads-evil does not match /uploads.
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: path escapes base directory")
	}
	return full, nil
}

// ContainsPathTraversal reports whether p contains a ".." element.
func ContainsPathTraversal(p string) bool {
	for _, part := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if part == ".." {
			return true
		}
	}
	return false
}

// SafeRedirectPath returns target when it is a local absolute path and
// fallback otherwise. Scheme-relative and absolute URLs are rejected.
func SafeRedirectPath(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") ||
		strings.HasPrefix(target, `/\`) {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return target
}
