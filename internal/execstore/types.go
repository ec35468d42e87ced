// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package execstore persists executions, activity attempts, and the
// append-only execution event log, and reconstructs live ExecutionState
// from them, per SPEC_FULL.md §4.B.
package execstore

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of an Execution.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusRunning    Status = "RUNNING"
	StatusPaused     Status = "PAUSED"
	StatusCancelling Status = "CANCELLING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
)

// Terminal reports whether s is one of the execution's terminal states.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// AttemptStatus is the lifecycle state of an ActivityAttempt.
type AttemptStatus string

const (
	AttemptPending   AttemptStatus = "PENDING"
	AttemptRunning   AttemptStatus = "RUNNING"
	AttemptCompleted AttemptStatus = "COMPLETED"
	AttemptFailed    AttemptStatus = "FAILED"
	AttemptCancelled AttemptStatus = "CANCELLED"
	AttemptTimeout   AttemptStatus = "TIMEOUT"
)

// EventType enumerates the closed set of execution event kinds.
type EventType string

const (
	EventExecutionStarted   EventType = "EXECUTION_STARTED"
	EventStepStarted        EventType = "STEP_STARTED"
	EventStepCompleted      EventType = "STEP_COMPLETED"
	EventStepFailed         EventType = "STEP_FAILED"
	EventActivityRetry      EventType = "ACTIVITY_RETRY"
	EventExecutionPaused    EventType = "EXECUTION_PAUSED"
	EventExecutionResumed   EventType = "EXECUTION_RESUMED"
	EventExecutionCancelled EventType = "EXECUTION_CANCELLED"
	EventExecutionCompleted EventType = "EXECUTION_COMPLETED"
	EventExecutionFailed    EventType = "EXECUTION_FAILED"
)

// Execution is one run of a workflow version.
type Execution struct {
	ExecutionID     string          `json:"executionId"`
	TenantID        string          `json:"tenantId"`
	WorkflowID      string          `json:"workflowId"`
	WorkflowVersion int             `json:"workflowVersion"`
	WorkflowHash    string          `json:"workflowHash"`
	Status          Status          `json:"status"`
	CurrentStepID   string          `json:"currentStepId,omitempty"`
	StartedAt       time.Time       `json:"startedAt"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	TriggerContext  json.RawMessage `json:"triggerContext,omitempty"`
}

// Patch carries the mutable subset of Execution that updateExecution may
// change. A nil pointer field means "leave unchanged"; CurrentStepID uses
// a pointer-to-string for the same reason (empty string is a valid value
// meaning "no current step").
type Patch struct {
	CurrentStepID *string
	Status        *Status
	CompletedAt   *time.Time
	ErrorMessage  *string
}

// ActivityAttempt is one attempt at running a step's activity.
type ActivityAttempt struct {
	ExecutionID    string          `json:"executionId"`
	TenantID       string          `json:"tenantId"`
	StepID         string          `json:"stepId"`
	ActivityType   string          `json:"activityType"`
	Attempt        int             `json:"attempt"`
	Status         AttemptStatus   `json:"status"`
	OutputRef      json.RawMessage `json:"outputRef,omitempty"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	ErrorRetryable bool            `json:"errorRetryable,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// Event is one row of the append-only execution event log.
type Event struct {
	ExecutionID string          `json:"executionId"`
	Timestamp   time.Time       `json:"timestamp"`
	EventType   EventType       `json:"eventType"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// State is the live view of an execution, deterministically
// reconstructible from its Execution row plus its ActivityAttempt rows,
// per SPEC_FULL.md §4.B.
type State struct {
	Execution      Execution
	CompletedSteps map[string]bool
	FailedSteps    map[string]bool
	StepOutputs    map[string]json.RawMessage
	LastActivityAt time.Time
}

// Reconstruct computes State from an execution row and its attempts. Only
// the latest attempt per stepId contributes to CompletedSteps/FailedSteps/
// StepOutputs.
func Reconstruct(exec Execution, attempts []ActivityAttempt) State {
	latest := make(map[string]ActivityAttempt, len(attempts))
	for _, a := range attempts {
		cur, ok := latest[a.StepID]
		if !ok || a.Attempt > cur.Attempt {
			latest[a.StepID] = a
		}
	}

	state := State{
		Execution:      exec,
		CompletedSteps: make(map[string]bool),
		FailedSteps:    make(map[string]bool),
		StepOutputs:    make(map[string]json.RawMessage),
		LastActivityAt: exec.StartedAt,
	}

	for stepID, a := range latest {
		switch a.Status {
		case AttemptCompleted:
			state.CompletedSteps[stepID] = true
			state.StepOutputs[stepID] = a.OutputRef
		case AttemptFailed, AttemptTimeout:
			state.FailedSteps[stepID] = true
		}
		if a.CompletedAt != nil && a.CompletedAt.After(state.LastActivityAt) {
			state.LastActivityAt = *a.CompletedAt
		}
		if a.StartedAt.After(state.LastActivityAt) {
			state.LastActivityAt = a.StartedAt
		}
	}

	return state
}
