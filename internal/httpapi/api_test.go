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

	"github.com/vectormesh/flowengine/internal/admission"
	"github.com/vectormesh/flowengine/internal/dispatch"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/orchestrator"
	"github.com/vectormesh/flowengine/internal/workflow"
)

type fixedTierDirectory struct{ tier admission.Tier }

func (d fixedTierDirectory) Assignment(string) admission.TenantAssignment {
	return admission.TenantAssignment{Tier: d.tier}
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(_ context.Context, actx dispatch.ActivityContext) (json.RawMessage, *dispatch.HandlerError) {
	return json.RawMessage(`{"ok":true}`), nil
}

func newTestAPI(t *testing.T) (*API, *chi.Mux) {
	t.Helper()
	workflows := workflow.NewMemStore()
	execs := execstore.NewMemStore()
	events := eventlog.New(execs)
	orch := orchestrator.New(execs, events, workflows, stubDispatcher{}, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })

	ctrl := admission.FromConfig(nil, fixedTierDirectory{tier: admission.TierFree})

	api := New(Config{
		Workflows:    workflows,
		Executions:   execs,
		Events:       events,
		Orchestrator: orch,
		Admission:    ctrl,
		Logger:       zap.NewNop(),
	})

	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return api, r
}

func singleStepDefinition() workflow.Definition {
	return workflow.Definition{
		Activities: []workflow.Activity{
			{ID: "act1", Type: workflow.ActivityTransform, Name: "noop", Config: json.RawMessage(`{"code":"return row"}`)},
		},
		Steps: []workflow.Step{
			{ID: "s1", ActivityID: "act1"},
		},
	}
}

func doJSON(t *testing.T, r *chi.Mux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateWorkflow_PublishesDraftVersion(t *testing.T) {
	_, r := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/workflows", createWorkflowRequest{
		Name:       "etl-pipeline",
		Definition: singleStepDefinition(),
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp workflowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.StatusDraft, resp.Row.Status)
	assert.Equal(t, 1, resp.Row.Version)
}

func TestCreateWorkflow_RejectsInvalidDefinition(t *testing.T) {
	_, r := newTestAPI(t)

	def := workflow.Definition{
		Activities: []workflow.Activity{
			{ID: "act1", Type: workflow.ActivityTransform, Config: json.RawMessage(`{}`)},
		},
		Steps: []workflow.Step{
			{ID: "s1", ActivityID: "act1", DependsOn: []string{"s1"}},
		},
	}

	rec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/workflows", createWorkflowRequest{Name: "bad", Definition: def})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerWorkflow_RunsToCompletion(t *testing.T) {
	_, r := newTestAPI(t)

	createRec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/workflows", createWorkflowRequest{
		Name:       "etl-pipeline",
		Definition: singleStepDefinition(),
	})
	var created workflowResponse
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	statusRec := doJSON(t, r, http.MethodPatch, "/v1/tenants/tenant-a/workflows/"+created.Row.WorkflowID, setStatusRequest{
		Version: created.Row.Version, Status: workflow.StatusActive,
	})
	require.Equal(t, http.StatusOK, statusRec.Code)

	triggerRec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/executions", triggerRequest{
		WorkflowID: created.Row.WorkflowID,
	})
	require.Equal(t, http.StatusAccepted, triggerRec.Code)
	var trig triggerResponse
	require.NoError(t, json.Unmarshal(triggerRec.Body.Bytes(), &trig))
	require.NotEmpty(t, trig.ExecutionID)

	deadline := time.Now().Add(2 * time.Second)
	var find findExecutionResponse
	for time.Now().Before(deadline) {
		findRec := doJSON(t, r, http.MethodGet, "/v1/tenants/tenant-a/executions/"+trig.ExecutionID, nil)
		require.Equal(t, http.StatusOK, findRec.Code)
		require.NoError(t, json.Unmarshal(findRec.Body.Bytes(), &find))
		if find.Execution.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, execstore.StatusCompleted, find.Execution.Status)
	assert.NotEmpty(t, find.Events)
}

func TestTriggerWorkflow_RejectsUnknownWorkflow(t *testing.T) {
	_, r := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/executions", triggerRequest{WorkflowID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPauseExecution_RejectsUnknownExecution(t *testing.T) {
	_, r := newTestAPI(t)

	rec := doJSON(t, r, http.MethodPost, "/v1/tenants/tenant-a/executions/does-not-exist/pause", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	_, r := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
