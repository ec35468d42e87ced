// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vectormesh/flowengine/internal/execstore"
)

type triggerRequest struct {
	WorkflowID     string          `json:"workflowId"`
	Version        int             `json:"version,omitempty"`
	TriggerContext json.RawMessage `json:"triggerContext,omitempty"`
	ScheduledFor   *time.Time      `json:"scheduledFor,omitempty"`
	Immediate      *bool           `json:"immediate,omitempty"`
}

type triggerResponse struct {
	ExecutionID string           `json:"executionId"`
	Status      execstore.Status `json:"status"`
}

// handleTriggerWorkflow implements triggerWorkflow: admits the tenant,
// then asks the orchestrator to start the execution on that tier's
// worker pool, and blocks until that (fast, three-write) initial step is
// durable so the response can carry the real executionId and status.
func (a *API) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "invalid request body")
		return
	}
	if req.WorkflowID == "" {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "workflowId is required")
		return
	}
	if req.ScheduledFor != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "scheduledFor is not supported; trigger the workflow at the desired time instead")
		return
	}

	ticket, err := a.admission.Admit(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}

	type result struct {
		exec execstore.Execution
		err  error
	}
	done := make(chan result, 1)

	a.admission.Enqueue(ticket.Tier(), func(ctx context.Context) {
		exec, err := a.orch.StartExecution(ctx, tenantID, req.WorkflowID, req.Version, req.TriggerContext)
		if err != nil {
			ticket.Release()
			done <- result{err: err}
			return
		}
		a.registerTicket(exec.ExecutionID, ticket)
		done <- result{exec: exec}
	})

	select {
	case res := <-done:
		if res.err != nil {
			respondDomainError(w, a.logger, res.err)
			return
		}
		respondJSON(w, a.logger, http.StatusAccepted, triggerResponse{
			ExecutionID: res.exec.ExecutionID,
			Status:      res.exec.Status,
		})
	case <-r.Context().Done():
		respondError(w, a.logger, http.StatusGatewayTimeout, ErrorCodeInternal, "request cancelled before the execution could start")
	}
}

// findExecutionResponse is the execution plus its attempts and events, in
// the order spec.md §3 describes: attempts by (stepId, attempt) and
// events in append order.
type findExecutionResponse struct {
	Execution execstore.Execution        `json:"execution"`
	Attempts  []execstore.ActivityAttempt `json:"attempts"`
	Events    []execstore.Event           `json:"events"`
}

func (a *API) handleFindExecution(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	executionID := chi.URLParam(r, "executionId")

	exec, err := a.executions.LoadExecution(r.Context(), executionID, tenantID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	attempts, err := a.executions.ListAttempts(r.Context(), executionID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	events, err := a.events.History(r.Context(), executionID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}

	respondJSON(w, a.logger, http.StatusOK, findExecutionResponse{
		Execution: exec,
		Attempts:  attempts,
		Events:    events,
	})
}

func (a *API) handlePauseExecution(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	executionID := chi.URLParam(r, "executionId")
	if err := a.orch.Pause(r.Context(), tenantID, executionID); err != nil {
		respondTransitionError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, map[string]string{"status": string(execstore.StatusPaused)})
}

func (a *API) handleResumeExecution(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	executionID := chi.URLParam(r, "executionId")
	if err := a.orch.Resume(r.Context(), tenantID, executionID); err != nil {
		respondTransitionError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, map[string]string{"status": string(execstore.StatusRunning)})
}

func (a *API) handleCancelExecution(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	executionID := chi.URLParam(r, "executionId")
	if err := a.orch.Cancel(r.Context(), tenantID, executionID); err != nil {
		respondTransitionError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, map[string]string{"status": string(execstore.StatusCancelling)})
}
