// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/vectormesh/flowengine/internal/workflow"
)

type createWorkflowRequest struct {
	WorkflowID  string              `json:"workflowId,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Definition  workflow.Definition `json:"definition"`
}

type workflowResponse struct {
	Row        workflow.Row     `json:"workflow"`
	Validation *workflow.Result `json:"validation,omitempty"`
}

// decodeWorkflowRequest reads req from the body, accepting YAML when the
// caller sends Content-Type: application/yaml or application/x-yaml (the
// ops-friendly way to hand-author a workflow definition) and JSON
// otherwise, since createWorkflowRequest's json tags already describe
// both encodings' field names.
func decodeWorkflowRequest(r *http.Request, req *createWorkflowRequest) error {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "yaml") {
		return yaml.NewDecoder(r.Body).Decode(req)
	}
	return json.NewDecoder(r.Body).Decode(req)
}

// validateDefinition runs workflow.Validate and, if it failed, writes the
// validation errors as a 400 response and reports handled=false so the
// caller returns without publishing anything.
func (a *API) validateDefinition(w http.ResponseWriter, r *http.Request, tenantID string, def workflow.Definition) (*workflow.Result, bool) {
	res := workflow.Validate(r.Context(), tenantID, def, a.workflows)
	if !res.Valid {
		respondJSON(w, a.logger, http.StatusBadRequest, struct {
			Code       ErrorCode       `json:"code"`
			Message    string          `json:"message"`
			Validation *workflow.Result `json:"validation"`
		}{
			Code:       ErrorCodeValidation,
			Message:    "workflow definition failed validation",
			Validation: res,
		})
		return res, false
	}
	return res, true
}

// handleCreateWorkflow implements workflowCreate: validates the DAG and
// publishes it as version 1 (or the matching existing version, since
// CreateVersion is idempotent on definition hash).
func (a *API) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req createWorkflowRequest
	if err := decodeWorkflowRequest(r, &req); err != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "name is required")
		return
	}
	if req.WorkflowID == "" {
		req.WorkflowID = uuid.New().String()
	}

	if _, ok := a.validateDefinition(w, r, tenantID, req.Definition); !ok {
		return
	}

	row, err := a.workflows.CreateVersion(r.Context(), tenantID, req.WorkflowID, req.Name, req.Description, req.Definition)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusCreated, workflowResponse{Row: row})
}

func (a *API) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	rows, err := a.workflows.List(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, rows)
}

func (a *API) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	workflowID := chi.URLParam(r, "workflowId")
	row, err := a.workflows.Get(r.Context(), tenantID, workflowID, 0)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, row)
}

func (a *API) handleGetWorkflowVersion(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	workflowID := chi.URLParam(r, "workflowId")
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "version must be an integer")
		return
	}
	row, err := a.workflows.Get(r.Context(), tenantID, workflowID, version)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, row)
}

// handlePublishVersion implements workflowNewVersion.
func (a *API) handlePublishVersion(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	workflowID := chi.URLParam(r, "workflowId")

	var req createWorkflowRequest
	if err := decodeWorkflowRequest(r, &req); err != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "invalid request body")
		return
	}

	if _, ok := a.validateDefinition(w, r, tenantID, req.Definition); !ok {
		return
	}

	row, err := a.workflows.CreateVersion(r.Context(), tenantID, workflowID, req.Name, req.Description, req.Definition)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusCreated, workflowResponse{Row: row})
}

type setStatusRequest struct {
	Version int             `json:"version"`
	Status  workflow.Status `json:"status"`
}

// handleSetWorkflowStatus implements workflowUpdateMeta narrowly: the
// store has no metadata-only mutator (renaming a workflow requires
// publishing a new version, since the definition hash is what versions
// are keyed on), so PATCH here only transitions a version's Status
// (typically DRAFT -> ACTIVE to make it triggerable, or -> INACTIVE to
// retire it).
func (a *API) handleSetWorkflowStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	workflowID := chi.URLParam(r, "workflowId")

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "invalid request body")
		return
	}
	switch req.Status {
	case workflow.StatusDraft, workflow.StatusActive, workflow.StatusInactive:
	default:
		respondError(w, a.logger, http.StatusBadRequest, ErrorCodeValidation, "status must be DRAFT, ACTIVE, or INACTIVE")
		return
	}

	if err := a.workflows.SetStatus(r.Context(), tenantID, workflowID, req.Version, req.Status); err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	respondJSON(w, a.logger, http.StatusOK, map[string]string{"status": string(req.Status)})
}

// handleDeleteWorkflow implements workflowDelete as a soft delete: every
// version is marked INACTIVE rather than removed, since executions
// already in flight still need their WorkflowLookup to resolve.
func (a *API) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	workflowID := chi.URLParam(r, "workflowId")

	rows, err := a.workflows.List(r.Context(), tenantID)
	if err != nil {
		respondDomainError(w, a.logger, err)
		return
	}
	found := false
	for _, row := range rows {
		if row.WorkflowID != workflowID {
			continue
		}
		found = true
		for v := 1; v <= row.Version; v++ {
			_ = a.workflows.SetStatus(r.Context(), tenantID, workflowID, v, workflow.StatusInactive)
		}
	}
	if !found {
		respondDomainError(w, a.logger, workflow.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
