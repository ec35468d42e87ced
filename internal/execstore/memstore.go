// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package execstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store keyed by executionId, with attempts and
// events kept in separate per-execution slices. Production deployments
// use the pgx adapter in this package; MemStore backs tests and
// single-node runs.
type MemStore struct {
	mu       sync.RWMutex
	execs    map[string]Execution
	attempts map[string][]ActivityAttempt
	events   map[string][]Event
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		execs:    make(map[string]Execution),
		attempts: make(map[string][]ActivityAttempt),
		events:   make(map[string][]Event),
	}
}

func (s *MemStore) CreateExecution(_ context.Context, tenantID, workflowID string, version int, hash string, triggerContext json.RawMessage) (Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec := Execution{
		ExecutionID:     uuid.NewString(),
		TenantID:        tenantID,
		WorkflowID:      workflowID,
		WorkflowVersion: version,
		WorkflowHash:    hash,
		Status:          StatusPending,
		StartedAt:       now(),
		TriggerContext:  triggerContext,
	}
	s.execs[exec.ExecutionID] = exec
	return exec, nil
}

func (s *MemStore) LoadExecution(_ context.Context, executionID, tenantID string) (Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.execs[executionID]
	if !ok || exec.TenantID != tenantID {
		return Execution{}, ErrNotFound
	}
	return exec, nil
}

func (s *MemStore) UpdateExecution(_ context.Context, executionID string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exec, ok := s.execs[executionID]
	if !ok {
		return ErrNotFound
	}
	if exec.Status.Terminal() {
		return ErrTerminal
	}

	if patch.CurrentStepID != nil {
		exec.CurrentStepID = *patch.CurrentStepID
	}
	if patch.Status != nil {
		exec.Status = *patch.Status
	}
	if patch.CompletedAt != nil {
		exec.CompletedAt = patch.CompletedAt
	}
	if patch.ErrorMessage != nil {
		exec.ErrorMessage = *patch.ErrorMessage
	}

	s.execs[executionID] = exec
	return nil
}

func (s *MemStore) RecordAttempt(_ context.Context, attempt ActivityAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.attempts[attempt.ExecutionID]
	for i, row := range rows {
		if row.StepID == attempt.StepID && row.Attempt == attempt.Attempt {
			rows[i] = attempt
			return nil
		}
	}
	s.attempts[attempt.ExecutionID] = append(rows, attempt)
	return nil
}

func (s *MemStore) ListAttempts(_ context.Context, executionID string) ([]ActivityAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := append([]ActivityAttempt(nil), s.attempts[executionID]...)
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].StepID != rows[j].StepID {
			return rows[i].StepID < rows[j].StepID
		}
		return rows[i].Attempt < rows[j].Attempt
	})
	return rows, nil
}

func (s *MemStore) AppendEvent(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}
	s.events[event.ExecutionID] = append(s.events[event.ExecutionID], event)
	return nil
}

func (s *MemStore) ListEvents(_ context.Context, executionID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := append([]Event(nil), s.events[executionID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Timestamp.Before(rows[j].Timestamp) })
	return rows, nil
}

// now is indirected so tests can freeze the clock without touching the
// package's exported API.
var now = time.Now
