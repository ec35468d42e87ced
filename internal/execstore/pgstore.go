// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package execstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is a Postgres-backed Store. It satisfies the same interface as
// MemStore so the orchestrator and httpapi packages are storage-agnostic.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an already-configured pool. Schema migrations are
// applied separately by the `migrate` subcommand, not by this type.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) CreateExecution(ctx context.Context, tenantID, workflowID string, version int, hash string, triggerContext json.RawMessage) (Execution, error) {
	exec := Execution{
		ExecutionID:     uuid.NewString(),
		TenantID:        tenantID,
		WorkflowID:      workflowID,
		WorkflowVersion: version,
		WorkflowHash:    hash,
		Status:          StatusPending,
		TriggerContext:  triggerContext,
	}
	const q = `
		INSERT INTO workflow_executions
			(execution_id, tenant_id, workflow_id, workflow_version, workflow_hash, status, trigger_context, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING started_at`
	err := s.pool.QueryRow(ctx, q,
		exec.ExecutionID, exec.TenantID, exec.WorkflowID, exec.WorkflowVersion,
		exec.WorkflowHash, exec.Status, exec.TriggerContext,
	).Scan(&exec.StartedAt)
	if err != nil {
		return Execution{}, err
	}
	return exec, nil
}

func (s *PGStore) LoadExecution(ctx context.Context, executionID, tenantID string) (Execution, error) {
	const q = `
		SELECT execution_id, tenant_id, workflow_id, workflow_version, workflow_hash,
		       status, current_step_id, started_at, completed_at, error_message, trigger_context
		FROM workflow_executions
		WHERE execution_id = $1 AND tenant_id = $2`
	var exec Execution
	var currentStepID, errMsg *string
	err := s.pool.QueryRow(ctx, q, executionID, tenantID).Scan(
		&exec.ExecutionID, &exec.TenantID, &exec.WorkflowID, &exec.WorkflowVersion,
		&exec.WorkflowHash, &exec.Status, &currentStepID, &exec.StartedAt, &exec.CompletedAt,
		&errMsg, &exec.TriggerContext,
	)
	if err == pgx.ErrNoRows {
		return Execution{}, ErrNotFound
	}
	if err != nil {
		return Execution{}, err
	}
	if currentStepID != nil {
		exec.CurrentStepID = *currentStepID
	}
	if errMsg != nil {
		exec.ErrorMessage = *errMsg
	}
	return exec, nil
}

func (s *PGStore) UpdateExecution(ctx context.Context, executionID string, patch Patch) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var status Status
		err := tx.QueryRow(ctx, `SELECT status FROM workflow_executions WHERE execution_id = $1 FOR UPDATE`, executionID).Scan(&status)
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if status.Terminal() {
			return ErrTerminal
		}

		const q = `
			UPDATE workflow_executions SET
				current_step_id = COALESCE($2, current_step_id),
				status          = COALESCE($3, status),
				completed_at    = COALESCE($4, completed_at),
				error_message   = COALESCE($5, error_message)
			WHERE execution_id = $1`
		_, err = tx.Exec(ctx, q, executionID, patch.CurrentStepID, patch.Status, patch.CompletedAt, patch.ErrorMessage)
		return err
	})
}

func (s *PGStore) RecordAttempt(ctx context.Context, a ActivityAttempt) error {
	const q = `
		INSERT INTO activity_attempts
			(execution_id, tenant_id, step_id, activity_type, attempt, status,
			 output_ref, error_message, error_retryable, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (execution_id, step_id, attempt) DO UPDATE SET
			status          = EXCLUDED.status,
			output_ref      = EXCLUDED.output_ref,
			error_message   = EXCLUDED.error_message,
			error_retryable = EXCLUDED.error_retryable,
			completed_at    = EXCLUDED.completed_at`
	_, err := s.pool.Exec(ctx, q,
		a.ExecutionID, a.TenantID, a.StepID, a.ActivityType, a.Attempt, a.Status,
		a.OutputRef, nullableString(a.ErrorMessage), a.ErrorRetryable, a.StartedAt, a.CompletedAt,
	)
	return err
}

func (s *PGStore) ListAttempts(ctx context.Context, executionID string) ([]ActivityAttempt, error) {
	const q = `
		SELECT execution_id, tenant_id, step_id, activity_type, attempt, status,
		       output_ref, error_message, error_retryable, started_at, completed_at
		FROM activity_attempts
		WHERE execution_id = $1
		ORDER BY step_id, attempt`
	rows, err := s.pool.Query(ctx, q, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityAttempt
	for rows.Next() {
		var a ActivityAttempt
		var errMsg *string
		if err := rows.Scan(
			&a.ExecutionID, &a.TenantID, &a.StepID, &a.ActivityType, &a.Attempt, &a.Status,
			&a.OutputRef, &errMsg, &a.ErrorRetryable, &a.StartedAt, &a.CompletedAt,
		); err != nil {
			return nil, err
		}
		if errMsg != nil {
			a.ErrorMessage = *errMsg
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) AppendEvent(ctx context.Context, event Event) error {
	const q = `
		INSERT INTO execution_events (execution_id, timestamp, event_type, payload)
		VALUES ($1, COALESCE(NULLIF($2, '0001-01-01'::timestamptz), now()), $3, $4)`
	_, err := s.pool.Exec(ctx, q, event.ExecutionID, event.Timestamp, event.EventType, event.Payload)
	return err
}

func (s *PGStore) ListEvents(ctx context.Context, executionID string) ([]Event, error) {
	const q = `
		SELECT execution_id, timestamp, event_type, payload
		FROM execution_events
		WHERE execution_id = $1
		ORDER BY timestamp`
	rows, err := s.pool.Query(ctx, q, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ExecutionID, &e.Timestamp, &e.EventType, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
