// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/imaging"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/testutil"
)

// countingCatalog records Fetch calls.
type countingCatalog struct {
	fetches atomic.Int32
	err     error
}

func (c *countingCatalog) Fetch(context.Context) error {
	c.fetches.Add(1)
	return c.err
}

func newAdminService(t *testing.T) (*AdminService, *testutil.FakeBackend, *countingCatalog) {
	t.Helper()
	fb := testutil.NewFakeBackend()
	catalog := &countingCatalog{}
	return NewAdminService(fb, catalog, nil, testutil.TestLoggerSilent()), fb, catalog
}

func validInput() PropertyInput {
	return PropertyInput{
		TitleEN:       "Sea view villa",
		DescriptionEN: "Five bedrooms",
		AreaEN:        "Hawana Salalah",
		CityEN:        "Salalah",
		Price:         "185000",
		Size:          "540",
		Type:          "house",
		Status:        "available",
	}
}

func TestPropertyInput_Fields(t *testing.T) {
	tests := []struct {
		name      string
		price     string
		size      string
		wantPrice float64
		wantSize  *float64
	}{
		{"numbers", "1500.5", "200", 1500.5, ptr(200)},
		{"spaces", " 42 ", " 7 ", 42, ptr(7)},
		{"non numeric price", "call us", "100", 0, ptr(100)},
		{"non numeric size", "10", "big", 10, nil},
		{"empty", "", "", 0, nil},
		{"nan", "NaN", "Inf", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := PropertyInput{Price: tt.price, Size: tt.size}.Fields()
			assert.Equal(t, tt.wantPrice, f.Price)
			assert.Equal(t, tt.wantSize, f.Size)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestPropertyInput_FieldsDefaults(t *testing.T) {
	f := PropertyInput{ImageURL: "  "}.Fields()
	assert.Equal(t, model.TypeHouse, f.Type)
	assert.Equal(t, model.StatusAvailable, f.Status)
	assert.Nil(t, f.ImageURL)
}

func TestInputFromProperty_RoundTrip(t *testing.T) {
	size := 120.5
	url := "https://cdn.test/a.jpg"
	p := model.Property{ID: "p1", PropertyFields: model.PropertyFields{
		TitleEN: "Flat", DescriptionAR: "شقة", Price: 42000, Size: &size,
		Type: model.TypeApartment, Status: model.StatusSold, ImageURL: &url,
	}}

	in := InputFromProperty(p)
	assert.Equal(t, "42000", in.Price)
	assert.Equal(t, "120.5", in.Size)
	assert.Equal(t, p.PropertyFields, in.Fields())
}

func TestAdminService_CreateProperty(t *testing.T) {
	s, fb, catalog := newAdminService(t)

	require.NoError(t, s.CreateProperty(context.Background(), validInput()))

	rows := fb.Rows("properties")
	require.Len(t, rows, 1)
	assert.Equal(t, "Sea view villa", rows[0]["title_en"])
	assert.Equal(t, 185000.0, rows[0]["price"])
	assert.Equal(t, 540.0, rows[0]["size"])
	assert.Nil(t, rows[0]["image_url"])
	assert.EqualValues(t, 1, catalog.fetches.Load())
}

func TestAdminService_CreateValidation(t *testing.T) {
	s, fb, catalog := newAdminService(t)

	in := validInput()
	in.TitleEN = ""
	err := s.CreateProperty(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidProperty)

	in = validInput()
	in.Type = "castle"
	require.ErrorIs(t, s.CreateProperty(context.Background(), in), ErrInvalidProperty)

	assert.Empty(t, fb.Rows("properties"))
	assert.EqualValues(t, 0, catalog.fetches.Load())
}

func TestAdminService_CreateAcceptsLegacyType(t *testing.T) {
	s, fb, _ := newAdminService(t)
	in := validInput()
	in.Type = "rent"

	require.NoError(t, s.CreateProperty(context.Background(), in))
	assert.Equal(t, "rent", fb.Rows("properties")[0]["type"])
}

func TestAdminService_UploadedImageOverridesTypedURL(t *testing.T) {
	s, fb, _ := newAdminService(t)

	in := validInput()
	in.ImageURL = "https://example.com/typed.jpg"
	in.Image = &ImageFile{Reader: strings.NewReader("jpeg-bytes"), Filename: "Photo.JPG", ContentType: "image/jpeg"}
	require.NoError(t, s.CreateProperty(context.Background(), in))

	objects := fb.FakeStorage.Objects()
	require.Len(t, objects, 1)
	assert.True(t, strings.HasPrefix(objects[0], PropertyImagesBucket+"/"))
	assert.True(t, strings.HasSuffix(objects[0], ".jpg"))

	url := fb.Rows("properties")[0]["image_url"]
	assert.Equal(t, "https://cdn.test/storage/"+objects[0], url)
}

func TestAdminService_UploadFailureAbortsWrite(t *testing.T) {
	s, fb, catalog := newAdminService(t)
	fb.FakeStorage.UploadErr = &backend.Error{Code: backend.CodeBucketNotFound, Message: "Bucket not found"}

	in := validInput()
	in.Image = &ImageFile{Reader: strings.NewReader("x"), Filename: "a.png"}
	err := s.CreateProperty(context.Background(), in)
	require.Error(t, err)
	assert.Equal(t, "Bucket not found", err.Error())
	assert.Empty(t, fb.Rows("properties"))
	assert.EqualValues(t, 0, catalog.fetches.Load())
}

func TestAdminService_UploadNormalizesImage(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := NewAdminService(fb, nil, imaging.NewProcessor(0, 0), testutil.TestLoggerSilent())

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	url, err := s.UploadImage(context.Background(), &ImageFile{Reader: &buf, Filename: "x.webp"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".png"))

	_, err = s.UploadImage(context.Background(), &ImageFile{Reader: strings.NewReader("not an image")})
	require.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}

func TestAdminService_BackendErrorVerbatim(t *testing.T) {
	s, fb, catalog := newAdminService(t)
	fb.Hook = func(context.Context, *backend.Request) error {
		return &backend.Error{Code: backend.CodeInsufficientAccess, Message: "new row violates row-level security policy"}
	}

	err := s.CreateProperty(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, "new row violates row-level security policy", err.Error())
	assert.EqualValues(t, 0, catalog.fetches.Load())
}

func TestAdminService_UpdateProperty(t *testing.T) {
	s, fb, catalog := newAdminService(t)
	fb.Seed("properties", backend.Row{"id": "p1", "title_en": "Old", "description_en": "d", "type": "house", "status": "available"})
	fb.Seed("properties", backend.Row{"id": "p2", "title_en": "Other", "description_en": "d", "type": "land", "status": "sold"})

	in := validInput()
	in.TitleEN = "New"
	in.Status = "reserved"
	require.NoError(t, s.UpdateProperty(context.Background(), "p1", in))

	rows := fb.Rows("properties")
	assert.Equal(t, "New", rows[0]["title_en"])
	assert.Equal(t, "reserved", rows[0]["status"])
	assert.Equal(t, "Other", rows[1]["title_en"])
	assert.EqualValues(t, 1, catalog.fetches.Load())
}

func TestAdminService_DeleteProperty(t *testing.T) {
	s, fb, catalog := newAdminService(t)
	fb.Seed("properties", backend.Row{"id": "p1", "title_en": "A"})

	var prompts []string
	decline := ConfirmFunc(func(_ context.Context, prompt string) bool {
		prompts = append(prompts, prompt)
		return false
	})
	err := s.DeleteProperty(context.Background(), "p1", decline)
	require.ErrorIs(t, err, ErrNotConfirmed)
	assert.Len(t, prompts, 1)
	assert.Len(t, fb.Rows("properties"), 1)
	assert.Equal(t, 0, fb.CountCalls("properties", backend.ActionDelete))

	require.ErrorIs(t, s.DeleteProperty(context.Background(), "p1", nil), ErrNotConfirmed)

	accept := ConfirmFunc(func(context.Context, string) bool { return true })
	require.NoError(t, s.DeleteProperty(context.Background(), "p1", accept))
	assert.Empty(t, fb.Rows("properties"))
	assert.EqualValues(t, 1, catalog.fetches.Load())
}

func TestAdminService_RefreshFailureIgnored(t *testing.T) {
	s, _, catalog := newAdminService(t)
	catalog.err = errors.New("timeout")

	assert.NoError(t, s.CreateProperty(context.Background(), validInput()))
}

func TestEnglishOnlyPropertyFallsBackInArabic(t *testing.T) {
	s, fb, _ := newAdminService(t)
	require.NoError(t, s.CreateProperty(context.Background(), validInput()))

	var props []model.Property
	require.NoError(t, fb.From("properties").Select("*").Rows(context.Background(), &props))
	require.Len(t, props, 1)

	p := props[0]
	assert.Equal(t, "Sea view villa", p.Title(model.LangArabic))
	assert.Equal(t, "Five bedrooms", p.Description(model.LangArabic))
	assert.Equal(t, "Hawana Salalah", p.Area(model.LangArabic))
	assert.Equal(t, "Salalah", p.City(model.LangArabic))
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"photo.JPG":    ".jpg",
		"a.b.png":      ".png",
		"noext":        "",
		"trailing.":    "",
		"bad.p/g":      "",
		"../../etc.sh": ".sh",
	}
	for in, want := range tests {
		if got := extension(in); got != want {
			t.Errorf("extension(%q) = %q, want %q", in, got, want)
		}
	}
}
