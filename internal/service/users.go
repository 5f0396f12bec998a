// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"

	"github.com/alrawaj/rawaj-web/internal/backend"
	"github.com/alrawaj/rawaj-web/internal/model"
)

// UserService lists registered users and manages admin membership.
type UserService struct {
	client backend.Client
	logger *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(client backend.Client, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{client: client, logger: logger}
}

// List returns profiles newest first with their admin flag, keeping only
// those matching search.
func (s *UserService) List(ctx context.Context, search string) ([]model.UserWithRole, error) {
	var profiles []model.UserProfile
	if err := s.client.From("user_profiles").Select("*").Order("created_at", true).Rows(ctx, &profiles); err != nil {
		return nil, err
	}

	var admins []model.AdminMembership
	if err := s.client.From("admins").Select("id").Rows(ctx, &admins); err != nil {
		return nil, err
	}
	isAdmin := make(map[string]bool, len(admins))
	for _, a := range admins {
		isAdmin[a.ID] = true
	}

	users := make([]model.UserWithRole, 0, len(profiles))
	for _, p := range profiles {
		if !p.Matches(search) {
			continue
		}
		users = append(users, model.UserWithRole{UserProfile: p, IsAdmin: isAdmin[p.ID]})
	}
	return users, nil
}

// IsAdmin reports whether userID has an admins row.
func (s *UserService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var m model.AdminMembership
	err := s.client.From("admins").Select("id").Eq("id", userID).Single(ctx, &m)
	switch {
	case err == nil:
		return true, nil
	case backend.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

// ToggleAdmin flips the admin membership of userID and returns the new
// state. Membership is read from the backend first, so a stale page
// cannot flip it twice.
func (s *UserService) ToggleAdmin(ctx context.Context, userID string) (bool, error) {
	current, err := s.IsAdmin(ctx, userID)
	if err != nil {
		return false, err
	}

	if current {
		if err := s.client.From("admins").Eq("id", userID).Delete(ctx); err != nil {
			return true, err
		}
		s.logger.Info("admin role revoked", "user_id", userID)
		return false, nil
	}

	if err := s.client.From("admins").Insert(ctx, model.AdminMembership{ID: userID}); err != nil {
		return false, err
	}
	s.logger.Info("admin role granted", "user_id", userID)
	return true, nil
}
