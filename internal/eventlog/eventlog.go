// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package eventlog is the thin durable append layer over execstore
// described in SPEC_FULL.md §4.G. It does not order events against
// status writes: the orchestrator writes most status changes to the
// Store first and appends the matching event right after. It gives
// callers a typed Append per event kind instead of hand-building
// execstore.Event payloads inline.
package eventlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vectormesh/flowengine/internal/execstore"
)

// Logger appends execution events through a Store.
type Logger struct {
	store execstore.Store
}

// New returns a Logger backed by store.
func New(store execstore.Store) *Logger {
	return &Logger{store: store}
}

// Append writes a single event with payload marshalled to JSON.
func (l *Logger) Append(ctx context.Context, executionID string, eventType execstore.EventType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return l.store.AppendEvent(ctx, execstore.Event{
		ExecutionID: executionID,
		Timestamp:   time.Now(),
		EventType:   eventType,
		Payload:     raw,
	})
}

// ExecutionStarted appends EXECUTION_STARTED.
func (l *Logger) ExecutionStarted(ctx context.Context, executionID string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionStarted, struct{}{})
}

// StepStarted appends STEP_STARTED.
func (l *Logger) StepStarted(ctx context.Context, executionID, stepID string, attempt int) error {
	return l.Append(ctx, executionID, execstore.EventStepStarted, map[string]any{
		"stepId": stepID, "attempt": attempt,
	})
}

// StepCompleted appends STEP_COMPLETED.
func (l *Logger) StepCompleted(ctx context.Context, executionID, stepID string, attempt int) error {
	return l.Append(ctx, executionID, execstore.EventStepCompleted, map[string]any{
		"stepId": stepID, "attempt": attempt,
	})
}

// StepFailed appends STEP_FAILED.
func (l *Logger) StepFailed(ctx context.Context, executionID, stepID string, attempt int, errMsg string, retryable bool) error {
	return l.Append(ctx, executionID, execstore.EventStepFailed, map[string]any{
		"stepId": stepID, "attempt": attempt, "errorMessage": errMsg, "retryable": retryable,
	})
}

// ActivityRetry appends ACTIVITY_RETRY.
func (l *Logger) ActivityRetry(ctx context.Context, executionID, stepID string, nextAttempt int, delay time.Duration) error {
	return l.Append(ctx, executionID, execstore.EventActivityRetry, map[string]any{
		"stepId": stepID, "nextAttempt": nextAttempt, "delayMs": delay.Milliseconds(),
	})
}

// ExecutionPaused appends EXECUTION_PAUSED.
func (l *Logger) ExecutionPaused(ctx context.Context, executionID string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionPaused, struct{}{})
}

// ExecutionResumed appends EXECUTION_RESUMED.
func (l *Logger) ExecutionResumed(ctx context.Context, executionID string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionResumed, struct{}{})
}

// ExecutionCancelled appends EXECUTION_CANCELLED.
func (l *Logger) ExecutionCancelled(ctx context.Context, executionID string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionCancelled, struct{}{})
}

// ExecutionCompleted appends EXECUTION_COMPLETED.
func (l *Logger) ExecutionCompleted(ctx context.Context, executionID string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionCompleted, struct{}{})
}

// ExecutionFailed appends EXECUTION_FAILED.
func (l *Logger) ExecutionFailed(ctx context.Context, executionID, errMsg string) error {
	return l.Append(ctx, executionID, execstore.EventExecutionFailed, map[string]any{
		"errorMessage": errMsg,
	})
}

// History returns the ordered event log for an execution, for replay/audit.
func (l *Logger) History(ctx context.Context, executionID string) ([]execstore.Event, error) {
	return l.store.ListEvents(ctx, executionID)
}
