// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package workflow models the tenant-authored DAG: activities, steps,
// and the definition that binds them, together with the validator and
// content-addressed versioning described in SPEC_FULL.md §4.A.
package workflow

import "encoding/json"

// Status is the lifecycle state of a WorkflowDefinition row's metadata.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ActivityType enumerates the closed set of activity kinds the
// dispatcher knows how to run.
type ActivityType string

const (
	ActivityExtract            ActivityType = "extract"
	ActivityTransform          ActivityType = "transform"
	ActivityLoad               ActivityType = "load"
	ActivityFilter             ActivityType = "filter"
	ActivityJoin               ActivityType = "join"
	ActivityMiniConnectorSrc   ActivityType = "mini-connector-source"
	ActivityCloudConnectorSrc  ActivityType = "cloud-connector-source"
	ActivityCloudConnectorSink ActivityType = "cloud-connector-sink"
)

// Activity is a unit of work inside a workflow: a kind plus a
// kind-specific config record. Config is kept as json.RawMessage (a
// discriminated-union-over-JSON, per SPEC_FULL.md §9) and decoded by the
// dispatcher/validator into the typed config struct matching Type.
type Activity struct {
	ID     string          `json:"id"`
	Type   ActivityType    `json:"type"`
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

// Step binds an activity to a position in the execution DAG.
type Step struct {
	ID         string   `json:"id"`
	ActivityID string   `json:"activityId"`
	DependsOn  []string `json:"dependsOn"`
}

// Definition is the DAG: activities plus the step graph over them.
type Definition struct {
	Activities []Activity `json:"activities"`
	Steps      []Step     `json:"steps"`
}

// ActivityByID returns the activity with the given id, or false.
func (d *Definition) ActivityByID(id string) (Activity, bool) {
	for _, a := range d.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// StepByID returns the step with the given id, or false.
func (d *Definition) StepByID(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return Step{}, false
}

// RootSteps returns every step with no dependencies.
func (d *Definition) RootSteps() []Step {
	var roots []Step
	for _, s := range d.Steps {
		if len(s.DependsOn) == 0 {
			roots = append(roots, s)
		}
	}
	return roots
}

// DependentsOf returns every step that directly depends on stepID.
func (d *Definition) DependentsOf(stepID string) []Step {
	var out []Step
	for _, s := range d.Steps {
		for _, dep := range s.DependsOn {
			if dep == stepID {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Definition row, as persisted by a WorkflowStore.
type Row struct {
	TenantID    string     `json:"tenantId"`
	WorkflowID  string     `json:"workflowId"`
	Version     int        `json:"version"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Definition  Definition `json:"definition"`
	Hash        string     `json:"hash"`
}
