// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// ObjectOpener opens a stored object for reading.
type ObjectOpener interface {
	Open(bucket, path string) (*os.File, os.FileInfo, error)
}

// StorageHandler serves uploaded objects under /storage/{bucket}/*.
type StorageHandler struct {
	objects ObjectOpener
	maxAge  string
	logger  *slog.Logger
}

// NewStorageHandler creates a new StorageHandler.
func NewStorageHandler(objects ObjectOpener, logger *slog.Logger) *StorageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StorageHandler{objects: objects, maxAge: "public, max-age=604800", logger: logger}
}

// Serve handles GET /storage/{bucket}/*.
func (h *StorageHandler) Serve(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objectPath := chi.URLParam(r, "*")

	f, info, err := h.objects.Open(bucket, objectPath)
	if err != nil {
		h.logger.Debug("storage object not served", "bucket", bucket, "path", objectPath, "error", err)
		http.NotFound(w, r)
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Cache-Control", h.maxAge)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
