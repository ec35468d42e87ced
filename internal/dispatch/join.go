// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vectormesh/flowengine/internal/workflow"
)

// JoinHandler runs a "join" activity by hash-joining the left and right
// dependency outputs on joinKey/rightKey.
type JoinHandler struct{}

func (h *JoinHandler) Handle(_ context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.JoinConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid join config: "+err.Error())
	}
	rightKey := cfg.RightKey
	if len(rightKey) == 0 {
		rightKey = cfg.JoinKey
	}

	left := extractRows(actx.Inputs[cfg.LeftActivityID])
	right := extractRows(actx.Inputs[cfg.RightActivityID])

	rightIndex := make(map[string][]map[string]any, len(right))
	for _, row := range right {
		key := joinKeyOf(row, rightKey)
		rightIndex[key] = append(rightIndex[key], row)
	}

	var out []map[string]any
	matchedRight := make(map[string]bool, len(right))

	for _, leftRow := range left {
		key := joinKeyOf(leftRow, cfg.JoinKey)
		matches := rightIndex[key]
		if len(matches) == 0 {
			if cfg.Type == workflow.JoinLeft || cfg.Type == workflow.JoinFull {
				out = append(out, copyRow(leftRow))
			}
			continue
		}
		matchedRight[key] = true
		for _, rightRow := range matches {
			out = append(out, mergeRows(leftRow, rightRow))
		}
	}

	if cfg.Type == workflow.JoinRight || cfg.Type == workflow.JoinFull {
		for key, matches := range rightIndex {
			if matchedRight[key] {
				continue
			}
			for _, rightRow := range matches {
				out = append(out, copyRow(rightRow))
			}
		}
	}

	return marshalEnvelope(map[string]any{"data": out, "rowCount": len(out)})
}

func joinKeyOf(row map[string]any, keyFields []string) string {
	parts := make([]string, len(keyFields))
	for i, field := range keyFields {
		parts[i] = fmt.Sprintf("%v", row[field])
	}
	return strings.Join(parts, "|")
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func mergeRows(left, right map[string]any) map[string]any {
	out := copyRow(left)
	for k, v := range right {
		out[k] = v
	}
	return out
}
