// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/admission"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// ErrorCode is the closed set of machine-readable codes carried in an
// error response body, per SPEC_FULL.md §7's error taxonomy.
type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrorCodeConflict    ErrorCode = "CONFLICT"
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
	ErrorCodeAtCapacity  ErrorCode = "AT_CAPACITY"
	ErrorCodeBacklog     ErrorCode = "BACKLOG"
	ErrorCodeUnauthized  ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden   ErrorCode = "FORBIDDEN"
	ErrorCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// respondError writes a JSON error envelope, mirroring the teacher's
// respondErrorDirect convention ({"code":..., "message":...}).
func respondError(w http.ResponseWriter, logger *zap.Logger, status int, code ErrorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"code":    string(code),
		"message": message,
	}); err != nil {
		logger.Error("httpapi: encode error response", zap.Error(err))
	}
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("httpapi: encode response", zap.Error(err))
	}
}

// respondDomainError translates a collaborator error into the HTTP status
// and ErrorCode spec.md §7 assigns it. Anything unrecognised becomes a
// 500 INTERNAL_ERROR rather than leaking implementation detail.
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var rejected *admission.RejectedError
	if errors.As(err, &rejected) {
		switch rejected.Reason {
		case admission.ReasonRateLimited:
			respondError(w, logger, http.StatusTooManyRequests, ErrorCodeRateLimited, err.Error())
		case admission.ReasonBacklog:
			respondError(w, logger, http.StatusServiceUnavailable, ErrorCodeBacklog, err.Error())
		default:
			respondError(w, logger, http.StatusTooManyRequests, ErrorCodeAtCapacity, err.Error())
		}
		return
	}

	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, execstore.ErrNotFound):
		respondError(w, logger, http.StatusNotFound, ErrorCodeNotFound, err.Error())
	case errors.Is(err, workflow.ErrVersionConflict), errors.Is(err, execstore.ErrTerminal):
		respondError(w, logger, http.StatusConflict, ErrorCodeConflict, err.Error())
	default:
		logger.Error("httpapi: unhandled error", zap.Error(err))
		respondError(w, logger, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
	}
}

// respondTransitionError handles Pause/Resume/Cancel failures. The
// orchestrator reports an unknown executionId and an illegal status
// transition with the same plain error type, distinguished only by
// whether LoadExecution itself failed (execstore.ErrNotFound) versus the
// status guard rejecting the call; everything that isn't ErrNotFound is
// a state conflict from the caller's point of view.
func respondTransitionError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if errors.Is(err, execstore.ErrNotFound) {
		respondError(w, logger, http.StatusNotFound, ErrorCodeNotFound, err.Error())
		return
	}
	respondError(w, logger, http.StatusConflict, ErrorCodeConflict, err.Error())
}
