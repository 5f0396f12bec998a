// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package imaging normalizes uploaded property photos before they are
// stored: EXIF orientation is applied, large images are scaled down and
// the result is re-encoded without metadata.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp" // WebP decoder
)

// Supported MIME types.
const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
	MimeTypeGIF  = "image/gif"
	MimeTypeWebP = "image/webp"
)

// Defaults for NewProcessor.
const (
	DefaultMaxDimension = 1920
	DefaultQuality      = 85
)

// ErrUnsupportedFormat is returned for data that is not a JPEG, PNG, GIF
// or WebP image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Result is a normalized image ready for upload.
type Result struct {
	Data     []byte
	Width    int
	Height   int
	MimeType string
	// Ext is the file extension matching MimeType, with the dot.
	Ext string
}

// Processor normalizes images using pure Go libraries.
type Processor struct {
	maxDimension int
	quality      int
}

// NewProcessor creates a processor. Non-positive values use the defaults.
func NewProcessor(maxDimension, quality int) *Processor {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &Processor{maxDimension: maxDimension, quality: quality}
}

// Normalize decodes an uploaded image, applies its EXIF orientation, fits
// it within the maximum dimension and re-encodes it. PNG stays PNG; every
// other format becomes JPEG.
func (p *Processor) Normalize(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	format := detectFormat(data)
	if format == "" {
		return nil, ErrUnsupportedFormat
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = applyOrientation(img, readExifOrientation(bytes.NewReader(data)))

	bounds := img.Bounds()
	if bounds.Dx() > p.maxDimension || bounds.Dy() > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	outFormat := "jpeg"
	if format == "png" {
		outFormat = "png"
	}
	encoded, err := encodeImage(img, outFormat, p.quality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:     encoded,
		Width:    b.Dx(),
		Height:   b.Dy(),
		MimeType: formatToMimeType(outFormat),
		Ext:      formatToExt(outFormat),
	}, nil
}

// IsImage reports whether a MIME type can be normalized.
func IsImage(mimeType string) bool {
	switch mimeType {
	case MimeTypeJPEG, MimeTypePNG, MimeTypeGIF, MimeTypeWebP:
		return true
	default:
		return false
	}
}

// DetectMimeType detects the MIME type of image data.
func DetectMimeType(data []byte) string {
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return contentType
}

// readExifOrientation reads the EXIF orientation tag from image data.
// Returns 1 (normal) if orientation cannot be determined.
func readExifOrientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil {
		return 1
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientation, err := tag.Int(0)
	if err != nil {
		return 1
	}

	return orientation
}

// applyOrientation applies an EXIF orientation value (1-8) to img.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.FlipH(imaging.Rotate270(img))
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.FlipH(imaging.Rotate90(img))
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// detectFormat detects the image format from raw bytes.
func detectFormat(data []byte) string {
	contentType := http.DetectContentType(data)
	// Explicitly reject TIFF (CVE-2023-36308 in disintegration/imaging)
	if strings.Contains(contentType, "tiff") {
		return ""
	}
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpeg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "gif"):
		return "gif"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return ""
	}
}

func formatToMimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return MimeTypeJPEG
	case "png":
		return MimeTypePNG
	case "gif":
		return MimeTypeGIF
	case "webp":
		return MimeTypeWebP
	default:
		return "application/octet-stream"
	}
}

func formatToExt(format string) string {
	switch format {
	case "png":
		return ".png"
	case "gif":
		return ".gif"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
