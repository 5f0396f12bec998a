// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/alrawaj/rawaj-web/internal/version"
)

// healthCheckTimeout bounds the database ping.
const healthCheckTimeout = 2 * time.Second

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db         Pinger
	uploadsDir string
	version    version.Info
	startTime  time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger, uploadsDir string, info version.Info) *HealthHandler {
	return &HealthHandler{
		db:         db,
		uploadsDir: uploadsDir,
		version:    info,
		startTime:  time.Now(),
	}
}

// HealthStatus represents the overall health status.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks"`
}

// Check represents a single health check result.
type Check struct {
	Status  string
	Message string
}

// Health handles GET /health. Check messages stay out of the response;
// failures are visible in the statuses only.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbCheck := h.checkDatabase(r.Context())
	diskCheck := h.checkDiskSpace()

	overallStatus := "healthy"
	if dbCheck.Status != "healthy" || diskCheck.Status != "healthy" {
		overallStatus = "degraded"
		slog.Warn("health check degraded", "database", dbCheck.Message, "disk", diskCheck.Message)
	}

	code := http.StatusOK
	if overallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeHealthJSON(w, code, HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version.Version,
		Checks: map[string]string{
			"database": dbCheck.Status,
			"disk":     diskCheck.Status,
		},
	})
}

// Liveness handles GET /health/live - simple liveness check.
func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// Readiness handles GET /health/ready - checks if the service is ready to accept traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if check := h.checkDatabase(r.Context()); check.Status != "healthy" {
		writeHealthJSON(w, http.StatusServiceUnavailable, readinessStatus{Status: "not_ready"})
		return
	}
	writeHealthJSON(w, http.StatusOK, readinessStatus{Status: "ready", Ready: true})
}

// checkDatabase verifies database connectivity.
func (h *HealthHandler) checkDatabase(ctx context.Context) Check {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy", Message: "Connected in " + latency.String()}
}

// checkDiskSpace checks available disk space in the uploads directory.
func (h *HealthHandler) checkDiskSpace() Check {
	if _, err := os.Stat(h.uploadsDir); os.IsNotExist(err) {
		return Check{Status: "healthy", Message: "Uploads directory does not exist yet"}
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.uploadsDir, &stat); err != nil {
		return Check{Status: "unhealthy", Message: "Failed to check disk space: " + err.Error()}
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	available := formatBytes(availableBytes)

	const minSpace = 100 * 1024 * 1024 // 100MB
	if availableBytes < minSpace {
		return Check{Status: "degraded", Message: "Low disk space: " + available + " available"}
	}
	return Check{Status: "healthy", Message: available + " available"}
}

// formatBytes formats bytes into human-readable format.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
