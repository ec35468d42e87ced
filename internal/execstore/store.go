// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package execstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by LoadExecution for an unknown or
// cross-tenant executionId.
var ErrNotFound = errors.New("execstore: execution not found")

// ErrTerminal is returned by UpdateExecution when the execution's current
// status is terminal; terminal executions accept no further transitions.
var ErrTerminal = errors.New("execstore: execution is in a terminal state")

// Store is the abstract contract of SPEC_FULL.md §4.B. MemStore and the
// pgx adapter both satisfy it.
type Store interface {
	CreateExecution(ctx context.Context, tenantID, workflowID string, version int, hash string, triggerContext json.RawMessage) (Execution, error)
	LoadExecution(ctx context.Context, executionID, tenantID string) (Execution, error)
	UpdateExecution(ctx context.Context, executionID string, patch Patch) error
	RecordAttempt(ctx context.Context, attempt ActivityAttempt) error
	ListAttempts(ctx context.Context, executionID string) ([]ActivityAttempt, error)
	AppendEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, executionID string) ([]Event, error)
}

// LoadState is a convenience built on Store: it loads the execution row
// and its attempts and reconstructs ExecutionState in one call.
func LoadState(ctx context.Context, store Store, executionID, tenantID string) (State, error) {
	exec, err := store.LoadExecution(ctx, executionID, tenantID)
	if err != nil {
		return State{}, err
	}
	attempts, err := store.ListAttempts(ctx, executionID)
	if err != nil {
		return State{}, err
	}
	return Reconstruct(exec, attempts), nil
}
