// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vectormesh/flowengine/internal/auth"
)

type issueSessionTokenRequest struct {
	// Role, if set, must be no more privileged than the caller's own role.
	// Defaults to the caller's role.
	Role auth.Role `json:"role,omitempty"`
	// TTLSeconds defaults to auth.DefaultSessionTokenTTL when zero.
	TTLSeconds int `json:"ttlSeconds,omitempty"`
}

type issueSessionTokenResponse struct {
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleIssueSessionToken exchanges the operator's long-lived credential
// (checked by RequireAPIKey ahead of this handler) for a short-lived,
// tenant-scoped session token that callers can hand to less-trusted
// clients instead of the shared key itself.
func (a *API) handleIssueSessionToken(w http.ResponseWriter, r *http.Request) {
	if !a.secret.IsValid() {
		respondError(w, a.logger, http.StatusNotImplemented, ErrorCodeValidation, "session tokens are not configured")
		return
	}

	tenantID := chi.URLParam(r, "tenantId")

	var req issueSessionTokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "invalid request body")
			return
		}
	}

	callerRole, ok := auth.RoleFromContext(r.Context())
	if !ok {
		callerRole = a.role
	}

	role := req.Role
	if role == "" {
		role = callerRole
	} else if !role.Valid() {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "unknown role")
		return
	} else if !roleAtMost(role, callerRole) {
		respondError(w, a.logger, http.StatusForbidden, ErrorCodeForbidden, "cannot issue a token more privileged than the caller")
		return
	}

	ttl := auth.DefaultSessionTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	token, err := auth.IssueSessionToken(a.secret, tenantID, role, ttl)
	if err != nil {
		respondError(w, a.logger, http.StatusInternalServerError, ErrorCodeInternal, "issuing session token")
		return
	}

	respondJSON(w, a.logger, http.StatusOK, issueSessionTokenResponse{
		Token:     token,
		Role:      role,
		ExpiresAt: time.Now().Add(ttl),
	})
}

// roleAtMost reports whether role's privileges are a subset of (or equal
// to) ceiling's, by the admin > manager > operator > viewer ordering.
func roleAtMost(role, ceiling auth.Role) bool {
	rank := map[auth.Role]int{
		auth.RoleViewer:   0,
		auth.RoleOperator: 1,
		auth.RoleManager:  2,
		auth.RoleAdmin:    3,
	}
	return rank[role] <= rank[ceiling]
}
