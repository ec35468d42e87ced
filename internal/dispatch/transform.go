// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vectormesh/flowengine/internal/workflow"
)

const defaultSandboxTimeout = 10 * time.Second

// TransformHandler runs a "transform" activity's code in the Expression
// Sandbox against its first dependency's output.
type TransformHandler struct {
	Sandbox Evaluator
}

func (h *TransformHandler) Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.TransformConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid transform config: "+err.Error())
	}

	rows := firstDependencyRows(actx)

	result, err := h.Sandbox.Evaluate(ctx, cfg.Code, rows, nil, defaultSandboxTimeout)
	if err != nil {
		return nil, &HandlerError{Code: CodeSandboxError, Message: err.Error(), Retryable: false}
	}

	return marshalEnvelope(result)
}

// firstDependencyRows returns the row array produced by actx's first
// dependsOn step, per SPEC_FULL.md §4.D's "first dependency's output"
// transform contract.
func firstDependencyRows(actx ActivityContext) []map[string]any {
	if len(actx.DependsOn) == 0 {
		return nil
	}
	return extractRows(actx.Inputs[actx.DependsOn[0]])
}
