// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strconv"
	"testing"
)

// createTestImage creates a simple test image with the given dimensions.
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_ScalesDownLargeImage(t *testing.T) {
	p := NewProcessor(100, 80)

	res, err := p.Normalize(bytes.NewReader(encodeJPEG(t, createTestImage(400, 200))))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Width != 100 || res.Height != 50 {
		t.Errorf("size = %dx%d, want 100x50", res.Width, res.Height)
	}
	if res.MimeType != MimeTypeJPEG || res.Ext != ".jpg" {
		t.Errorf("type = %s %s, want image/jpeg .jpg", res.MimeType, res.Ext)
	}
	if DetectMimeType(res.Data) != MimeTypeJPEG {
		t.Errorf("encoded data is %s, want image/jpeg", DetectMimeType(res.Data))
	}
}

func TestNormalize_KeepsSmallPNG(t *testing.T) {
	p := NewProcessor(0, 0)

	res, err := p.Normalize(bytes.NewReader(encodePNG(t, createTestImage(40, 30))))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Width != 40 || res.Height != 30 {
		t.Errorf("size = %dx%d, want 40x30", res.Width, res.Height)
	}
	if res.MimeType != MimeTypePNG || res.Ext != ".png" {
		t.Errorf("type = %s %s, want image/png .png", res.MimeType, res.Ext)
	}
}

func TestNormalize_RejectsNonImage(t *testing.T) {
	p := NewProcessor(0, 0)

	_, err := p.Normalize(bytes.NewReader([]byte("%PDF-1.4 not an image")))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Normalize() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestNewProcessor_Defaults(t *testing.T) {
	p := NewProcessor(-1, 101)
	if p.maxDimension != DefaultMaxDimension || p.quality != DefaultQuality {
		t.Errorf("NewProcessor() = %d/%d, want %d/%d", p.maxDimension, p.quality, DefaultMaxDimension, DefaultQuality)
	}
}

func TestIsImage(t *testing.T) {
	tests := []struct {
		mimeType string
		want     bool
	}{
		{MimeTypeJPEG, true},
		{MimeTypePNG, true},
		{MimeTypeGIF, true},
		{MimeTypeWebP, true},
		{"application/pdf", false},
		{"application/octet-stream", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.mimeType, func(t *testing.T) {
			if got := IsImage(tt.mimeType); got != tt.want {
				t.Errorf("IsImage(%q) = %v, want %v", tt.mimeType, got, tt.want)
			}
		})
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg magic bytes", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png magic bytes", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"gif magic bytes", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "gif"},
		{"unknown", []byte{0x00, 0x01, 0x02, 0x03}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.data); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatToMimeType(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"jpeg", MimeTypeJPEG},
		{"jpg", MimeTypeJPEG},
		{"png", MimeTypePNG},
		{"gif", MimeTypeGIF},
		{"webp", MimeTypeWebP},
		{"unknown", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			if got := formatToMimeType(tt.format); got != tt.want {
				t.Errorf("formatToMimeType(%q) = %v, want %v", tt.format, got, tt.want)
			}
		})
	}
}

func TestApplyOrientation(t *testing.T) {
	img := createTestImage(20, 10)

	for orientation := 0; orientation <= 9; orientation++ {
		t.Run("orientation_"+strconv.Itoa(orientation), func(t *testing.T) {
			result := applyOrientation(img, orientation)
			if result == nil {
				t.Fatal("applyOrientation returned nil")
			}
			b := result.Bounds()
			rotated := orientation >= 5 && orientation <= 8
			if rotated && (b.Dx() != 10 || b.Dy() != 20) {
				t.Errorf("orientation %d size = %dx%d, want 10x20", orientation, b.Dx(), b.Dy())
			}
			if !rotated && (b.Dx() != 20 || b.Dy() != 10) {
				t.Errorf("orientation %d size = %dx%d, want 20x10", orientation, b.Dx(), b.Dy())
			}
		})
	}
}
