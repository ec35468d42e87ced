// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/vectormesh/flowengine/internal/admission"
	"github.com/vectormesh/flowengine/internal/auth"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/orchestrator"
	"github.com/vectormesh/flowengine/internal/workflow"
)

func newKeyedTestAPI(t *testing.T, keyHash string, role auth.Role) (*API, *chi.Mux) {
	t.Helper()
	return newKeyedTestAPIWithSecret(t, keyHash, role, auth.TokenSecret{})
}

func newKeyedTestAPIWithSecret(t *testing.T, keyHash string, role auth.Role, secret auth.TokenSecret) (*API, *chi.Mux) {
	t.Helper()
	workflows := workflow.NewMemStore()
	execs := execstore.NewMemStore()
	events := eventlog.New(execs)
	orch := orchestrator.New(execs, events, workflows, stubDispatcher{}, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })

	ctrl := admission.FromConfig(nil, fixedTierDirectory{tier: admission.TierFree})

	api := New(Config{
		Workflows:       workflows,
		Executions:      execs,
		Events:          events,
		Orchestrator:    orch,
		Admission:       ctrl,
		Logger:          zap.NewNop(),
		OperatorKeyHash: keyHash,
		OperatorRole:    role,
		TokenSecret:     secret,
	})

	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return api, r
}

func TestRequireAPIKey_RejectsMissingToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, r := newKeyedTestAPI(t, string(hash), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/t1/workflows", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAPIKey_AcceptsValidToken(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, r := newKeyedTestAPI(t, string(hash), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/t1/workflows", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_ViewerCannotCreateWorkflow(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, r := newKeyedTestAPI(t, string(hash), auth.RoleViewer)

	body := []byte(`{"name":"wf","definition":{"activities":[],"steps":[]}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/t1/workflows", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIssueSessionToken_ThenUseItAsBearer(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	secret, err := auth.NewTokenSecretFromString("test-signing-key")
	require.NoError(t, err)
	_, r := newKeyedTestAPIWithSecret(t, string(hash), auth.RoleAdmin, secret)

	issueReq := httptest.NewRequest(http.MethodPost, "/v1/tenants/t1/auth/token", bytes.NewReader([]byte(`{"role":"viewer"}`)))
	issueReq.Header.Set("Authorization", "Bearer secret")
	issueReq.Header.Set("Content-Type", "application/json")
	issueRec := httptest.NewRecorder()
	r.ServeHTTP(issueRec, issueReq)
	require.Equal(t, http.StatusOK, issueRec.Code)

	var issued issueSessionTokenResponse
	require.NoError(t, json.NewDecoder(issueRec.Body).Decode(&issued))
	assert.Equal(t, auth.RoleViewer, issued.Role)
	assert.NotEmpty(t, issued.Token)

	listReq := httptest.NewRequest(http.MethodGet, "/v1/tenants/t1/workflows", nil)
	listReq.Header.Set("Authorization", "Bearer "+issued.Token)
	listRec := httptest.NewRecorder()
	r.ServeHTTP(listRec, listReq)
	assert.Equal(t, http.StatusOK, listRec.Code)

	createReq := httptest.NewRequest(http.MethodPost, "/v1/tenants/t1/workflows", bytes.NewReader([]byte(`{"name":"wf","definition":{"activities":[],"steps":[]}}`)))
	createReq.Header.Set("Authorization", "Bearer "+issued.Token)
	createReq.Header.Set("Content-Type", "application/json")
	createRec := httptest.NewRecorder()
	r.ServeHTTP(createRec, createReq)
	assert.Equal(t, http.StatusForbidden, createRec.Code)
}

func TestSessionToken_RejectedForDifferentTenant(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	secret, err := auth.NewTokenSecretFromString("test-signing-key")
	require.NoError(t, err)
	_, r := newKeyedTestAPIWithSecret(t, string(hash), auth.RoleAdmin, secret)

	token, err := auth.IssueSessionToken(secret, "other-tenant", auth.RoleViewer, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/t1/workflows", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIssueSessionToken_DisabledWithoutSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, r := newKeyedTestAPI(t, string(hash), auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/t1/auth/token", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRequireRole_ViewerCanListWorkflows(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	_, r := newKeyedTestAPI(t, string(hash), auth.RoleViewer)

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/t1/workflows", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
