// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"

	"github.com/vectormesh/flowengine/internal/workflow"
)

// FilterHandler runs a "filter" activity: evaluate condition in the
// sandbox, which may return either a boolean predicate applied row-wise
// or the already-filtered array.
type FilterHandler struct {
	Sandbox Evaluator
}

func (h *FilterHandler) Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.FilterConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid filter config: "+err.Error())
	}

	rows := extractRows(actx.Inputs[cfg.InputActivityID])
	if rows == nil {
		rows = firstDependencyRows(actx)
	}

	result, err := h.Sandbox.Evaluate(ctx, cfg.Condition, rows, nil, defaultSandboxTimeout)
	if err != nil {
		return nil, &HandlerError{Code: CodeSandboxError, Message: err.Error(), Retryable: false}
	}

	filtered, err := applyFilterResult(rows, result)
	if err != nil {
		return nil, &HandlerError{Code: CodeSandboxError, Message: err.Error(), Retryable: false}
	}

	return marshalEnvelope(map[string]any{
		"data":          filtered,
		"rowCount":      len(filtered),
		"rowsFiltered":  len(rows) - len(filtered),
	})
}

// applyFilterResult supports both sandbox return shapes named in
// SPEC_FULL.md §4.D: a bare array (already filtered) or a row-indexed
// slice of booleans (a predicate applied row-wise).
func applyFilterResult(rows []map[string]any, result any) ([]map[string]any, error) {
	switch v := result.(type) {
	case []any:
		if len(v) > 0 {
			if _, isRow := v[0].(map[string]any); isRow {
				out := make([]map[string]any, 0, len(v))
				for _, item := range v {
					if row, ok := item.(map[string]any); ok {
						out = append(out, row)
					}
				}
				return out, nil
			}
		}
		out := make([]map[string]any, 0, len(rows))
		for i, row := range rows {
			if i < len(v) {
				if keep, ok := v[i].(bool); ok && keep {
					out = append(out, row)
				}
			}
		}
		return out, nil
	case bool:
		if v {
			return rows, nil
		}
		return nil, nil
	default:
		return rows, nil
	}
}
