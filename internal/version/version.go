// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Injected with -ldflags "-X github.com/alrawaj/rawaj-web/internal/version.version=v1.2.3".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// Info contains build-time version information.
type Info struct {
	Version   string // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string // Short git commit hash (e.g., "abc1234")
	BuildTime string // Build timestamp in RFC3339 format
}

// Get returns the version of the running binary.
func Get() Info {
	return Info{Version: version, GitCommit: gitCommit, BuildTime: buildTime}
}

// String formats the version for the -version flag.
func (i Info) String() string {
	return fmt.Sprintf("rawaj %s (commit %s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}
