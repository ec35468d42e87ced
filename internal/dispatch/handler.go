// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dispatch is the Activity Dispatcher of SPEC_FULL.md §4.D: it
// gathers upstream step outputs, dispatches by activity.type to a typed
// handler, and synthesises sourceMetadata for load activities when the
// author omitted it.
package dispatch

import (
	"context"
	"encoding/json"

	"github.com/vectormesh/flowengine/internal/workflow"
)

// ErrorCode enumerates the closed set of handler failure classes named
// across SPEC_FULL.md §4.D.
type ErrorCode string

const (
	CodeNetworkError       ErrorCode = "NETWORK_ERROR"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeConnectionLost     ErrorCode = "CONNECTION_LOST"
	CodeDeadlock           ErrorCode = "DEADLOCK"
	CodeLoadError          ErrorCode = "LOAD_ERROR"
	CodeLoadPartialFailure ErrorCode = "LOAD_PARTIAL_FAILURE"
	CodeSandboxError       ErrorCode = "SANDBOX_ERROR"
	CodeConfigError        ErrorCode = "CONFIG_ERROR"
	CodeRemoteError        ErrorCode = "REMOTE_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	CodeNetworkError:   true,
	CodeTimeout:        true,
	CodeConnectionLost: true,
	CodeDeadlock:       true,
}

// HandlerError is the {code, message, retryable} error contract every
// activity handler returns on failure.
type HandlerError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
}

func (e *HandlerError) Error() string { return string(e.Code) + ": " + e.Message }

// NewHandlerError builds a HandlerError whose Retryable flag is set from
// the code's known class; it takes no override.
func NewHandlerError(code ErrorCode, message string) *HandlerError {
	return &HandlerError{Code: code, Message: message, Retryable: retryableCodes[code]}
}

// StepInput is one upstream dependency's output, keyed by step id.
type StepInput struct {
	StepID string
	Output json.RawMessage
}

// ActivityContext is everything a handler needs to run one activity.
type ActivityContext struct {
	TenantID    string
	ExecutionID string
	StepID      string
	Activity    workflow.Activity
	// DependsOn is the step's dependsOn list, in definition order, so
	// handlers that need "the first dependency" have a well-defined
	// answer instead of ranging over Inputs (map order is undefined).
	DependsOn []string
	// Inputs holds the latest COMPLETED output of every upstream
	// dependsOn step, keyed by step id, per SPEC_FULL.md §4.D rule 1.
	Inputs map[string]json.RawMessage
	// UpstreamActivities lets a load handler synthesise sourceMetadata
	// from an upstream source activity's own config (rule 3) without
	// the dispatcher depending on the full Definition.
	UpstreamActivities map[string]workflow.Activity
}

// Handler runs one activity kind and returns its output envelope
// verbatim, or a HandlerError.
type Handler interface {
	Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError)
}
