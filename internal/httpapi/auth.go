// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vectormesh/flowengine/internal/auth"
)

// RequireAPIKey builds middleware that accepts either of two credentials on
// the Authorization header:
//
//   - the operator's long-lived shared key, checked against a bcrypt hash
//     (adapted from internal/auth's API-key hashing scheme); grants role.
//   - a short-lived session token issued by handleIssueSessionToken and
//     verified against secret; grants whatever role and tenant the token
//     was scoped to at issuance, and is rejected if it names a different
//     tenant than the request's {tenantId} path parameter.
//
// Either way the resolved role is attached to the request context via
// auth.WithRole so RequireRole can gate individual routes on it. secret
// may be the zero TokenSecret, in which case only the operator key is
// accepted.
func RequireAPIKey(keyHash string, role auth.Role, secret auth.TokenSecret, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithRole(r.Context(), auth.RoleAdmin)))
				return
			}

			token := bearerToken(r)
			if token == "" {
				respondError(w, logger, http.StatusUnauthorized, ErrorCodeUnauthized, "missing bearer token")
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(token)); err == nil {
				next.ServeHTTP(w, r.WithContext(auth.WithRole(r.Context(), role)))
				return
			}

			if secret.IsValid() {
				claims, err := auth.ParseSessionToken(secret, token)
				if err == nil {
					if tenantID := chi.URLParam(r, "tenantId"); tenantID != "" && tenantID != claims.TenantID {
						respondError(w, logger, http.StatusForbidden, ErrorCodeForbidden, "session token is not scoped to this tenant")
						return
					}
					next.ServeHTTP(w, r.WithContext(auth.WithRole(r.Context(), claims.Role)))
					return
				}
				if errors.Is(err, auth.ErrTokenExpired) {
					respondError(w, logger, http.StatusUnauthorized, ErrorCodeUnauthized, "session token expired")
					return
				}
			}

			respondError(w, logger, http.StatusUnauthorized, ErrorCodeUnauthized, "invalid credentials")
		})
	}
}

// RequireRole builds middleware that rejects the request with 403 unless
// allow reports true for the role RequireAPIKey attached to the context.
// Requests with no role attached (RequireAPIKey never ran, e.g. in tests
// that mount a handler directly) are allowed through, matching
// RequireAPIKey's own "empty hash means unauthenticated" escape hatch.
func RequireRole(allow func(auth.Role) bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := auth.RoleFromContext(r.Context())
			if ok && !allow(role) {
				respondError(w, logger, http.StatusForbidden, ErrorCodeForbidden, "role does not permit this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}
