// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
)

// readinessStatus is the body of GET /health/ready.
type readinessStatus struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// writeHealthJSON writes v as an uncacheable JSON health response.
func writeHealthJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
