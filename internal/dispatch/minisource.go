// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vectormesh/flowengine/internal/connector"
	"github.com/vectormesh/flowengine/internal/workflow"
)

const miniConnectorQueryTimeout = 30 * time.Second

// MiniConnectorSourceHandler runs a "mini-connector-source" activity by
// dispatching a query command through the Remote-Agent Gateway.
type MiniConnectorSourceHandler struct {
	Gateway RemoteQuerier
}

func (h *MiniConnectorSourceHandler) Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.MiniConnectorSourceConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid mini-connector-source config: "+err.Error())
	}

	result, err := h.Gateway.Query(ctx, actx.TenantID, cfg.ConnectorID, connector.QueryRequest{
		Database: cfg.Database,
		Table:    cfg.Table,
		Columns:  cfg.Columns,
		Where:    cfg.Where,
		Limit:    cfg.Limit,
	}, miniConnectorQueryTimeout)
	if err != nil {
		return nil, NewHandlerError(CodeRemoteError, err.Error())
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
