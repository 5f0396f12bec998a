// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
	"github.com/alrawaj/rawaj-web/internal/testutil"
)

func TestSettingsService_GetDefaultsWhenMissing(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := NewSettingsService(fb, testutil.TestLoggerSilent())

	got, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSiteSettings(), got)

	fb.DropTable("site_settings")
	got, err = s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSiteSettings(), got)
}

func TestSettingsService_GetOtherErrorReturned(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.Hook = func(context.Context, *backend.Request) error { return errors.New("network down") }
	s := NewSettingsService(fb, testutil.TestLoggerSilent())

	got, err := s.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.DefaultSiteSettings(), got)
}

func TestSettingsService_SaveUpserts(t *testing.T) {
	fb := testutil.NewFakeBackend()
	s := NewSettingsService(fb, testutil.TestLoggerSilent())
	ctx := context.Background()

	first := model.DefaultSiteSettings()
	first.ID = 99
	first.Email = "sales@alrawaj.com"
	require.NoError(t, s.Save(ctx, first))

	second := first
	second.PhonePrimary = "90000000"
	require.NoError(t, s.Save(ctx, second))

	require.Len(t, fb.Rows("site_settings"), 1)
	got, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SettingsID, got.ID)
	assert.Equal(t, "sales@alrawaj.com", got.Email)
	assert.Equal(t, "90000000", got.PhonePrimary)
}
