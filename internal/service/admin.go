// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service implements the admin dashboard operations and the
// consent banner on top of a backend client.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/rs/xid"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/imaging"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// PropertyImagesBucket is the storage bucket for listing photos.
const PropertyImagesBucket = "property-images"

// ErrNotConfirmed is returned when the operator declines a deletion.
var ErrNotConfirmed = errors.New("deletion not confirmed")

// ErrInvalidProperty wraps property validation failures.
var ErrInvalidProperty = model.ErrInvalidProperty

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// CatalogRefresher reloads the shared property catalog.
type CatalogRefresher interface {
	Fetch(ctx context.Context) error
}

// ImageFile is an uploaded photo.
type ImageFile struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// PropertyInput is a property form as submitted. Numbers arrive as text
// and are coerced by Fields.
type PropertyInput struct {
	TitleEN       string
	TitleAR       string
	DescriptionEN string
	DescriptionAR string
	AreaEN        string
	AreaAR        string
	CityEN        string
	CityAR        string
	Price         string
	Size          string
	Type          string
	Status        string
	ImageURL      string

	// Image, when set, is uploaded and replaces ImageURL.
	Image *ImageFile
}

// Fields converts the form to row fields. A price that is not a number
// becomes 0 and such a size becomes nil. Empty type and status default
// to house and available.
func (in PropertyInput) Fields() model.PropertyFields {
	f := model.PropertyFields{
		TitleEN:       strings.TrimSpace(in.TitleEN),
		TitleAR:       strings.TrimSpace(in.TitleAR),
		DescriptionEN: strings.TrimSpace(in.DescriptionEN),
		DescriptionAR: strings.TrimSpace(in.DescriptionAR),
		AreaEN:        strings.TrimSpace(in.AreaEN),
		AreaAR:        strings.TrimSpace(in.AreaAR),
		CityEN:        strings.TrimSpace(in.CityEN),
		CityAR:        strings.TrimSpace(in.CityAR),
		Type:          model.PropertyType(strings.TrimSpace(in.Type)),
		Status:        model.PropertyStatus(strings.TrimSpace(in.Status)),
	}

	if v, ok := parseNumber(in.Price); ok {
		f.Price = v
	}
	if v, ok := parseNumber(in.Size); ok {
		f.Size = &v
	}
	if f.Type == "" {
		f.Type = model.TypeHouse
	}
	if f.Status == "" {
		f.Status = model.StatusAvailable
	}
	if u := strings.TrimSpace(in.ImageURL); u != "" {
		f.ImageURL = &u
	}
	return f
}

// InputFromProperty fills a form from an existing listing.
func InputFromProperty(p model.Property) PropertyInput {
	in := PropertyInput{
		TitleEN:       p.TitleEN,
		TitleAR:       p.TitleAR,
		DescriptionEN: p.DescriptionEN,
		DescriptionAR: p.DescriptionAR,
		AreaEN:        p.AreaEN,
		AreaAR:        p.AreaAR,
		CityEN:        p.CityEN,
		CityAR:        p.CityAR,
		Price:         strconv.FormatFloat(p.Price, 'f', -1, 64),
		Type:          string(p.Type),
		Status:        string(p.Status),
		ImageURL:      p.Image(),
	}
	if p.Size != nil {
		in.Size = strconv.FormatFloat(*p.Size, 'f', -1, 64)
	}
	return in
}

func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// AdminService performs property mutations with an admin's client.
type AdminService struct {
	client    backend.Client
	catalog   CatalogRefresher
	processor *imaging.Processor
	logger    *slog.Logger
}

// NewAdminService creates an AdminService. processor may be nil to upload
// images unchanged.
func NewAdminService(client backend.Client, catalog CatalogRefresher, processor *imaging.Processor, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{client: client, catalog: catalog, processor: processor, logger: logger}
}

// CreateProperty validates and inserts a listing. An attached image is
// uploaded first; if that fails nothing is written.
func (s *AdminService) CreateProperty(ctx context.Context, in PropertyInput) error {
	row, err := s.prepare(ctx, in)
	if err != nil {
		return err
	}
	if err := s.client.From("properties").Insert(ctx, row); err != nil {
		return err
	}
	s.logger.Info("property created", "title", row["title_en"])
	s.refresh(ctx)
	return nil
}

// UpdateProperty validates and replaces the fields of listing id.
func (s *AdminService) UpdateProperty(ctx context.Context, id string, in PropertyInput) error {
	row, err := s.prepare(ctx, in)
	if err != nil {
		return err
	}
	if err := s.client.From("properties").Eq("id", id).Update(ctx, row); err != nil {
		return err
	}
	s.logger.Info("property updated", "id", id)
	s.refresh(ctx)
	return nil
}

// DeleteProperty removes listing id after the operator confirms.
func (s *AdminService) DeleteProperty(ctx context.Context, id string, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, "Are you sure you want to delete this property?") {
		return ErrNotConfirmed
	}
	if err := s.client.From("properties").Eq("id", id).Delete(ctx); err != nil {
		return err
	}
	s.logger.Info("property deleted", "id", id)
	s.refresh(ctx)
	return nil
}

func (s *AdminService) prepare(ctx context.Context, in PropertyInput) (backend.Row, error) {
	fields := in.Fields()
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	if in.Image != nil {
		url, err := s.UploadImage(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		fields.ImageURL = &url
	}

	return backend.ToRow(fields)
}

// UploadImage stores a photo under a random name in PropertyImagesBucket
// and returns its public URL. Backend errors are returned unchanged.
func (s *AdminService) UploadImage(ctx context.Context, img *ImageFile) (string, error) {
	reader, contentType, ext := img.Reader, img.ContentType, extension(img.Filename)

	if s.processor != nil {
		res, err := s.processor.Normalize(img.Reader)
		if err != nil {
			return "", fmt.Errorf("processing image: %w", err)
		}
		reader, contentType, ext = bytes.NewReader(res.Data), res.MimeType, res.Ext
	}

	name := xid.New().String() + ext
	if err := s.client.Storage().Upload(ctx, PropertyImagesBucket, name, reader, contentType); err != nil {
		s.logger.Warn("property image upload failed", "name", name, "error", err)
		return "", err
	}
	return s.client.Storage().PublicURL(PropertyImagesBucket, name), nil
}

func (s *AdminService) refresh(ctx context.Context) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.Fetch(ctx); err != nil {
		s.logger.Warn("catalog refresh after mutation failed", "error", err)
	}
}

func extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	ext := strings.ToLower(filename[i:])
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
