// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenIssuer is the issuer claim stamped on every access token.
const TokenIssuer = "rawaj-backend"

// ErrTokenExpired is returned by Parse for an otherwise valid token past its expiry.
var ErrTokenExpired = errors.New("token expired")

// Claims is the access token payload.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies HS256 access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. ttl is the access token lifetime.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the access token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs an access token for the user and returns it with its expiry.
func (s *TokenService) Issue(userID, email string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)

	c := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    TokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies the signature, issuer and expiry of an access token.
func (s *TokenService) Parse(tokenStr string) (*Claims, error) {
	c := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid || c.Subject == "" {
		return nil, errors.New("invalid token claims")
	}
	return c, nil
}

// RandomToken returns a hex-encoded random string of n bytes, used for
// refresh and email confirmation tokens.
func RandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
