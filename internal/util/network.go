// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the request's client address without the port.
// chi's RealIP middleware has already rewritten RemoteAddr from
// X-Forwarded-For or X-Real-IP when the site runs behind a proxy.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
