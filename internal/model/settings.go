// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// SettingsID is the id of the single site_settings row.
const SettingsID = 1

// SiteSettings holds the company contact details shown site-wide.
type SiteSettings struct {
	ID             int    `json:"id"`
	CompanyNameEN  string `json:"company_name_en"`
	CompanyNameAR  string `json:"company_name_ar"`
	PhonePrimary   string `json:"phone_primary"`
	PhoneSecondary string `json:"phone_secondary"`
	Email          string `json:"email"`
	AddressEN      string `json:"address_en"`
	AddressAR      string `json:"address_ar"`
}

// DefaultSiteSettings returns the values used when no row is stored.
func DefaultSiteSettings() SiteSettings {
	return SiteSettings{
		ID:             SettingsID,
		CompanyNameEN:  "Al-Rawaj Real Estate",
		CompanyNameAR:  "الروّاج للعقارات",
		PhonePrimary:   "99493888",
		PhoneSecondary: "93206066",
		Email:          "info@alrawaj.com",
		AddressEN:      "Salalah, Sultanate of Oman",
		AddressAR:      "صلالة، سلطنة عمان",
	}
}

// CompanyName returns the company name in lang.
func (s SiteSettings) CompanyName(lang string) string {
	return Localized(lang, s.CompanyNameEN, s.CompanyNameAR)
}

// Address returns the address in lang.
func (s SiteSettings) Address(lang string) string {
	return Localized(lang, s.AddressEN, s.AddressAR)
}
