// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vectormesh/flowengine/internal/connector"
)

// Query implements dispatch.RemoteQuerier: it dispatches a "query"
// command to connectorID (or the tenant's first session if empty) and
// waits for the correlated command:response, failing the call if the
// agent's reply carries an {error} at the top level or inside data, per
// SPEC_FULL.md §4.D's mini-connector-source contract.
func (g *Gateway) Query(ctx context.Context, tenantID, connectorID string, req connector.QueryRequest, timeout time.Duration) (connector.QueryResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return connector.QueryResult{}, fmt.Errorf("gateway: encode query request: %w", err)
	}

	raw, err := g.dispatchCommandAndWait(ctx, tenantID, connectorID, "query", payload, timeout)
	if err != nil {
		return connector.QueryResult{}, err
	}

	var probe struct {
		Error string `json:"error"`
		Data  struct {
			Error string `json:"error"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if probe.Error != "" {
			return connector.QueryResult{}, fmt.Errorf("mini-connector-source: %s", probe.Error)
		}
		if probe.Data.Error != "" {
			return connector.QueryResult{}, fmt.Errorf("mini-connector-source: %s", probe.Data.Error)
		}
	}

	var result connector.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return connector.QueryResult{}, fmt.Errorf("gateway: decode query response: %w", err)
	}
	return result, nil
}
