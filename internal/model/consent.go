// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// ConsentAll is the only consent type recorded by the banner.
const ConsentAll = "all"

// AnonymizedIP is stored instead of the visitor address.
const AnonymizedIP = "anonymized"

// Consent is a row of user_consents.
type Consent struct {
	ConsentType string `json:"consent_type"`
	IPAddress   string `json:"ip_address"`
	Country     string `json:"country"`
	UserAgent   string `json:"user_agent"`
}
