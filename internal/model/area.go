// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// Area is a featured neighbourhood linked from the home page.
type Area struct {
	ID     string
	NameEN string
	NameAR string
}

// Name returns the area name in lang.
func (a Area) Name(lang string) string {
	return Localized(lang, a.NameEN, a.NameAR)
}

// PrimeAreas are the featured Salalah neighbourhoods.
var PrimeAreas = []Area{
	{ID: "hawana", NameEN: "Hawana Salalah", NameAR: "هوانا صلالة"},
	{ID: "saada", NameEN: "Al Saadah", NameAR: "السعادة"},
	{ID: "dahariz", NameEN: "Al Dahariz", NameAR: "الدهاريز"},
	{ID: "awqad", NameEN: "Awqad", NameAR: "عوقد"},
}

// FindArea returns the prime area with id.
func FindArea(id string) (Area, bool) {
	for _, a := range PrimeAreas {
		if a.ID == id {
			return a, true
		}
	}
	return Area{}, false
}

// FilterByArea keeps properties whose English area contains area
// (case-insensitively) or whose Arabic area contains it. Order is kept.
// An empty area returns props unchanged.
func FilterByArea(props []Property, area string) []Property {
	area = strings.TrimSpace(area)
	if area == "" {
		return props
	}

	needle := strings.ToLower(area)
	out := make([]Property, 0, len(props))
	for _, p := range props {
		if strings.Contains(strings.ToLower(p.AreaEN), needle) || strings.Contains(p.AreaAR, area) {
			out = append(out, p)
		}
	}
	return out
}

// Latest returns at most n properties from the front of props.
func Latest(props []Property, n int) []Property {
	if len(props) <= n {
		return props
	}
	return props[:n]
}
