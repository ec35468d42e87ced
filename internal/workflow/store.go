// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a workflow/version does not exist for a tenant.
	ErrNotFound = errors.New("workflow: not found")
	// ErrVersionConflict names a version conflict. No Store method in this
	// package returns it: CreateVersion answers a definition hash that
	// already has a version with that existing version.
	ErrVersionConflict = errors.New("workflow: version already exists for this definition hash")
)

// Store persists workflow definitions and answers the existence/ownership
// checks the validator needs, per SPEC_FULL.md §4.A and §6.
type Store interface {
	InstanceLookup

	// CreateVersion stores def as the next version of workflowID for
	// tenantID. If the computed hash matches an existing version it
	// returns that version unchanged (idempotent re-publish) rather than
	// minting a new one.
	CreateVersion(ctx context.Context, tenantID, workflowID, name, description string, def Definition) (Row, error)

	// Get returns a specific version, or, when version is 0, the latest
	// ACTIVE version, falling back to the latest version of any status
	// when none is ACTIVE.
	Get(ctx context.Context, tenantID, workflowID string, version int) (Row, error)

	// List returns the latest version of every workflow for a tenant.
	List(ctx context.Context, tenantID string) ([]Row, error)

	// SetStatus transitions a specific version's Status field.
	SetStatus(ctx context.Context, tenantID, workflowID string, version int, status Status) error
}
