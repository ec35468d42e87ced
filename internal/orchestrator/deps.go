// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/vectormesh/flowengine/internal/dispatch"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// WorkflowLookup resolves the published Definition an execution runs
// against, satisfied by workflow.Store.
type WorkflowLookup interface {
	Get(ctx context.Context, tenantID, workflowID string, version int) (workflow.Row, error)
}

// Dispatcher runs one activity and returns its output or a HandlerError,
// satisfied by *dispatch.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, actx dispatch.ActivityContext) (json.RawMessage, *dispatch.HandlerError)
}
