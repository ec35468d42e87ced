// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired indicates a session token parsed correctly but has expired.
var ErrTokenExpired = errors.New("auth: token expired")

// ErrTokenInvalid indicates a session token failed signature verification,
// was malformed, or carried claims this package does not recognize.
var ErrTokenInvalid = errors.New("auth: token invalid")

// DefaultSessionTokenTTL is used when callers don't specify their own.
const DefaultSessionTokenTTL = 15 * time.Minute

// SessionClaims are the claims embedded in a session token issued after an
// operator exchanges a long-lived API key for a short-lived credential.
type SessionClaims struct {
	jwt.RegisteredClaims

	TenantID string `json:"tid"`
	Role     Role   `json:"role"`
}

// IssueSessionToken signs a short-lived HS256 token scoped to a tenant and role.
// The secret is the only material that can forge or verify this token, so
// rotating it invalidates every outstanding session.
func IssueSessionToken(secret TokenSecret, tenantID string, role Role, ttl time.Duration) (string, error) {
	if !secret.IsValid() {
		return "", ErrInvalidTokenSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}

	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenantID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret.SigningKey())
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies a session token's signature and expiry and
// returns its claims.
func ParseSessionToken(secret TokenSecret, tokenString string) (*SessionClaims, error) {
	if !secret.IsValid() {
		return nil, ErrInvalidTokenSecret
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
			}
			return secret.SigningKey(), nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
