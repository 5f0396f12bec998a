// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the records exchanged with the backend tables.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Language codes.
const (
	LangEnglish = "en"
	LangArabic  = "ar"
)

// PropertyType is the kind of listing.
type PropertyType string

// Property types. Sale and rent are legacy values still present in old rows.
const (
	TypeHouse      PropertyType = "house"
	TypeApartment  PropertyType = "apartment"
	TypeLand       PropertyType = "land"
	TypeHotel      PropertyType = "hotel"
	TypeCommercial PropertyType = "commercial"
	TypeSale       PropertyType = "sale"
	TypeRent       PropertyType = "rent"
)

// PropertyTypes lists the types offered when editing a listing.
var PropertyTypes = []PropertyType{TypeHouse, TypeApartment, TypeLand, TypeHotel, TypeCommercial}

// Valid reports whether t is a current or legacy type.
func (t PropertyType) Valid() bool {
	switch t {
	case TypeHouse, TypeApartment, TypeLand, TypeHotel, TypeCommercial, TypeSale, TypeRent:
		return true
	}
	return false
}

// PropertyStatus is the availability of a listing.
type PropertyStatus string

// Property statuses.
const (
	StatusAvailable PropertyStatus = "available"
	StatusReserved  PropertyStatus = "reserved"
	StatusSold      PropertyStatus = "sold"
)

// PropertyStatuses lists every status.
var PropertyStatuses = []PropertyStatus{StatusAvailable, StatusReserved, StatusSold}

// Valid reports whether s is a known status.
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusSold:
		return true
	}
	return false
}

// ErrInvalidProperty wraps every property validation failure.
var ErrInvalidProperty = errors.New("invalid property")

// PropertyFields are the writable columns of a property row.
type PropertyFields struct {
	TitleEN       string         `json:"title_en"`
	TitleAR       string         `json:"title_ar"`
	DescriptionEN string         `json:"description_en"`
	DescriptionAR string         `json:"description_ar"`
	AreaEN        string         `json:"area_en"`
	AreaAR        string         `json:"area_ar"`
	CityEN        string         `json:"city_en"`
	CityAR        string         `json:"city_ar"`
	Price         float64        `json:"price"`
	Size          *float64       `json:"size"`
	Type          PropertyType   `json:"type"`
	Status        PropertyStatus `json:"status"`
	ImageURL      *string        `json:"image_url"`
}

// Validate checks that title and description each have at least one
// language and that type and status are known.
func (f PropertyFields) Validate() error {
	if strings.TrimSpace(f.TitleEN) == "" && strings.TrimSpace(f.TitleAR) == "" {
		return fmt.Errorf("%w: title is required in English or Arabic", ErrInvalidProperty)
	}
	if strings.TrimSpace(f.DescriptionEN) == "" && strings.TrimSpace(f.DescriptionAR) == "" {
		return fmt.Errorf("%w: description is required in English or Arabic", ErrInvalidProperty)
	}
	if !f.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidProperty, f.Type)
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProperty, f.Status)
	}
	return nil
}

// Property is a listing as stored by the backend.
type Property struct {
	ID string `json:"id"`
	PropertyFields
	CreatedAt time.Time `json:"created_at"`
}

// Title returns the title in lang, falling back to the other language.
func (p Property) Title(lang string) string {
	return Localized(lang, p.TitleEN, p.TitleAR)
}

// Description returns the description in lang with fallback.
func (p Property) Description(lang string) string {
	return Localized(lang, p.DescriptionEN, p.DescriptionAR)
}

// Area returns the area name in lang with fallback.
func (p Property) Area(lang string) string {
	return Localized(lang, p.AreaEN, p.AreaAR)
}

// City returns the city name in lang with fallback.
func (p Property) City(lang string) string {
	return Localized(lang, p.CityEN, p.CityAR)
}

// Image returns the image URL or "" when none is set.
func (p Property) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return strings.TrimSpace(*p.ImageURL)
}

// Localized picks the Arabic or English value for lang and falls back to
// the other when the preferred one is empty.
func Localized(lang, en, ar string) string {
	if lang == LangArabic {
		if strings.TrimSpace(ar) != "" {
			return ar
		}
		return en
	}
	if strings.TrimSpace(en) != "" {
		return en
	}
	return ar
}
