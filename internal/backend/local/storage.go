// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/util"
)

// DefaultMaxUploadBytes is used when no upload limit is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// FileStorage stores objects as files under root/<bucket>/<path>.
type FileStorage struct {
	root      string
	publicURL string
	maxBytes  int64
	buckets   map[string]bool
}

var _ backend.Storage = (*FileStorage)(nil)

// NewFileStorage creates the bucket directories under root.
func NewFileStorage(root, publicURL string, maxBytes int64, buckets ...string) (*FileStorage, error) {
	if root == "" {
		return nil, errors.New("storage directory is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}

	fs := &FileStorage{
		root:      root,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		buckets:   make(map[string]bool, len(buckets)),
	}
	for _, b := range buckets {
		if b == "" || strings.ContainsAny(b, `/\.`) {
			return nil, fmt.Errorf("invalid bucket name %q", b)
		}
		if err := os.MkdirAll(filepath.Join(root, b), 0o755); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", b, err)
		}
		fs.buckets[b] = true
	}
	return fs, nil
}

// Upload writes the object. Existing objects are never overwritten.
func (s *FileStorage) Upload(ctx context.Context, bucket, objectPath string, r io.Reader, _ string) error {
	dest, err := s.resolve(bucket, objectPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dest); err == nil {
		return &backend.Error{Code: backend.CodeDuplicate, Message: "The resource already exists", Status: http.StatusConflict}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, io.LimitReader(&ctxReader{ctx: ctx, r: r}, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing object: %w", err)
	}
	if n > s.maxBytes {
		return &backend.Error{
			Code:    backend.CodeTooLarge,
			Message: "The object exceeded the maximum allowed size",
			Status:  http.StatusRequestEntityTooLarge,
		}
	}

	if err := os.Link(tmp.Name(), dest); err != nil {
		if errors.Is(err, os.ErrExist) {
			return &backend.Error{Code: backend.CodeDuplicate, Message: "The resource already exists", Status: http.StatusConflict}
		}
		return fmt.Errorf("publishing object: %w", err)
	}
	return nil
}

// PublicURL returns the URL the object is served from.
func (s *FileStorage) PublicURL(bucket, objectPath string) string {
	segments := strings.Split(strings.TrimLeft(path.Clean("/"+objectPath), "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/storage/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

// Open returns the object file for serving.
func (s *FileStorage) Open(bucket, objectPath string) (*os.File, os.FileInfo, error) {
	p, err := s.resolve(bucket, objectPath)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, nil, os.ErrNotExist
	}
	return f, info, nil
}

func (s *FileStorage) resolve(bucket, objectPath string) (string, error) {
	if !s.buckets[bucket] {
		return "", &backend.Error{Code: backend.CodeBucketNotFound, Message: "Bucket not found", Status: http.StatusNotFound}
	}
	clean := strings.TrimLeft(path.Clean("/"+objectPath), "/")
	if clean == "" || util.ContainsPathTraversal(objectPath) || strings.HasPrefix(path.Base(clean), ".") {
		return "", &backend.Error{Code: backend.CodeInvalidKey, Message: "Invalid key: " + objectPath, Status: http.StatusBadRequest}
	}
	p, err := util.SafeJoinPath(filepath.Join(s.root, bucket), filepath.FromSlash(clean))
	if err != nil {
		return "", &backend.Error{Code: backend.CodeInvalidKey, Message: "Invalid key: " + objectPath, Status: http.StatusBadRequest}
	}
	return p, nil
}

// ctxReader stops a copy once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
