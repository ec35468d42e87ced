// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package httpapi exposes the control plane's REST surface described in
// SPEC_FULL.md §6: workflow publishing, and the admission-gated
// trigger/pause/resume/cancel/findOne execution operations. Routing
// follows the teacher's go-chi idiom (internal/admin/handlers/routes.go,
// internal/agent/api.go): a Config struct wires collaborators into an API
// value whose RegisterRoutes nests one chi.Route per resource.
package httpapi

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/admission"
	"github.com/vectormesh/flowengine/internal/auth"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/orchestrator"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// Config wires the API's collaborators, mirroring the teacher's
// APIConfig dependency-injection pattern.
type Config struct {
	Workflows   workflow.Store
	Executions  execstore.Store
	Events      *eventlog.Logger
	Orchestrator *orchestrator.Orchestrator
	Admission   *admission.Controller
	Logger      *zap.Logger
	// OperatorKeyHash, when non-empty, is the bcrypt hash RequireAPIKey
	// checks bearer tokens against. Leave empty to run unauthenticated
	// (local development only).
	OperatorKeyHash string
	// OperatorRole is the role a successful OperatorKeyHash match grants.
	// Defaults to auth.RoleAdmin, since a single shared operator key
	// conventionally has full access.
	OperatorRole auth.Role
	// TokenSecret signs and verifies the short-lived session tokens minted
	// by handleIssueSessionToken. The zero value disables session tokens
	// entirely; RequireAPIKey then only accepts OperatorKeyHash.
	TokenSecret auth.TokenSecret
}

// API handles the control-plane HTTP surface.
type API struct {
	workflows  workflow.Store
	executions execstore.Store
	events     *eventlog.Logger
	orch       *orchestrator.Orchestrator
	admission  *admission.Controller
	logger     *zap.Logger
	keyHash    string
	role       auth.Role
	secret     auth.TokenSecret

	mu      sync.Mutex
	tickets map[string]*admission.Ticket // executionID -> ticket, released on terminal
}

// New builds an API over cfg and wires its own admission-ticket release
// onto cfg.Orchestrator's terminal hook.
func New(cfg Config) *API {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	role := cfg.OperatorRole
	if role == "" {
		role = auth.RoleAdmin
	}
	a := &API{
		workflows:  cfg.Workflows,
		executions: cfg.Executions,
		events:     cfg.Events,
		orch:       cfg.Orchestrator,
		admission:  cfg.Admission,
		logger:     logger,
		keyHash:    cfg.OperatorKeyHash,
		role:       role,
		secret:     cfg.TokenSecret,
		tickets:    make(map[string]*admission.Ticket),
	}
	if a.orch != nil {
		a.orch.SetTerminalHook(a.releaseTicket)
	}
	return a
}

func (a *API) registerTicket(executionID string, ticket *admission.Ticket) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tickets[executionID] = ticket
}

// releaseTicket is the orchestrator terminal hook: it releases the
// concurrency slot Admit granted for this execution, if one was
// registered (executions started outside this API's trigger handler
// carry no ticket and this is a no-op).
func (a *API) releaseTicket(_, executionID string) {
	a.mu.Lock()
	ticket, ok := a.tickets[executionID]
	delete(a.tickets, executionID)
	a.mu.Unlock()
	if ok {
		ticket.Release()
	}
}

// RegisterRoutes mounts every route under r, following the teacher's
// nested r.Route(...) convention.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.handleHealthz)

	r.Route("/v1/tenants/{tenantId}", func(r chi.Router) {
		r.Use(RequireAPIKey(a.keyHash, a.role, a.secret, a.logger))

		requireWrite := RequireRole(auth.Role.CanWrite, a.logger)
		requireExecute := RequireRole(auth.Role.CanExecute, a.logger)

		r.Post("/auth/token", a.handleIssueSessionToken)

		r.Route("/workflows", func(r chi.Router) {
			r.With(requireWrite).Post("/", a.handleCreateWorkflow)
			r.Get("/", a.handleListWorkflows)

			r.Route("/{workflowId}", func(r chi.Router) {
				r.Get("/", a.handleGetWorkflow)
				r.With(requireWrite).Patch("/", a.handleSetWorkflowStatus)
				r.With(requireWrite).Delete("/", a.handleDeleteWorkflow)
				r.With(requireWrite).Post("/versions", a.handlePublishVersion)
				r.Get("/versions/{version}", a.handleGetWorkflowVersion)
			})
		})

		r.Route("/executions", func(r chi.Router) {
			r.With(requireExecute).Post("/", a.handleTriggerWorkflow)

			r.Route("/{executionId}", func(r chi.Router) {
				r.Get("/", a.handleFindExecution)
				r.With(requireExecute).Post("/pause", a.handlePauseExecution)
				r.With(requireExecute).Post("/resume", a.handleResumeExecution)
				r.With(requireExecute).Post("/cancel", a.handleCancelExecution)
			})
		})
	})
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, a.logger, http.StatusOK, map[string]string{"status": "ok"})
}
