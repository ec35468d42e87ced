// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vectormesh/flowengine/internal/connector"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// ExtractHandler runs an "extract" activity against a CLOUD
// AggregatorInstance.
type ExtractHandler struct {
	Instances InstanceDirectory
	Driver    CloudDriver
}

func (h *ExtractHandler) Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.ExtractConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid extract config: "+err.Error())
	}

	instance, err := h.Instances.GetInstance(actx.TenantID, cfg.AggregatorInstanceID)
	if err != nil {
		return nil, NewHandlerError(CodeConfigError, "aggregator instance not found: "+cfg.AggregatorInstanceID)
	}

	result, err := h.Driver.Query(ctx, instance, connector.QueryRequest{
		Table:   cfg.Table,
		Columns: cfg.Columns,
		Where:   cfg.Where,
		Limit:   cfg.Limit,
		OrderBy: cfg.OrderBy,
	})
	if err != nil {
		return nil, classifyDriverError(err)
	}

	return marshalEnvelope(dataEnvelope{
		Data:     result.Rows,
		RowCount: len(result.Rows),
		Columns:  result.Columns,
		SourceMetadata: &sourceMetadata{
			TableName: cfg.Table,
			Columns:   result.Columns,
		},
	})
}

// classifyDriverError maps a lower-level driver error to the retryable
// classes extract/load contracts name. Drivers are expected to return
// plain errors; classification here is best-effort string matching on
// the driver's own error text, since the Driver interface carries no
// typed error taxonomy of its own.
func classifyDriverError(err error) *HandlerError {
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "deadline exceeded"):
		return NewHandlerError(CodeTimeout, err.Error())
	case containsAny(msg, "connection reset", "connection refused", "broken pipe"):
		return NewHandlerError(CodeConnectionLost, err.Error())
	case containsAny(msg, "deadlock"):
		return NewHandlerError(CodeDeadlock, err.Error())
	default:
		return NewHandlerError(CodeNetworkError, err.Error())
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
