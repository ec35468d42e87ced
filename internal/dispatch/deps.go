// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"time"

	"github.com/vectormesh/flowengine/internal/connector"
)

// InstanceDirectory resolves aggregatorInstanceId to its tenant-owned
// record, satisfied by connector.Registry.
type InstanceDirectory interface {
	GetInstance(tenantID, instanceID string) (connector.AggregatorInstance, error)
	GetConnector(tenantID, connectorID string) (connector.Connector, error)
}

// MappingLookup resolves a mappingId to its FieldMapping rules,
// satisfied by connector.Registry.
type MappingLookup interface {
	GetMapping(tenantID, mappingID string) (connector.FieldMapping, error)
}

// CloudDriver runs queries/writes against CLOUD-type connector
// instances, satisfied by connector.Driver implementations.
type CloudDriver interface {
	Query(ctx context.Context, instance connector.AggregatorInstance, req connector.QueryRequest) (connector.QueryResult, error)
	Write(ctx context.Context, instance connector.AggregatorInstance, req connector.WriteRequest) (connector.WriteResult, error)
}

// Evaluator runs a sandboxed expression, satisfied by *sandbox.Sandbox.
type Evaluator interface {
	Evaluate(ctx context.Context, code string, input any, bindings map[string]any, timeout time.Duration) (any, error)
}

// RemoteQuerier dispatches a query command to a MINI connector through
// the Remote-Agent Gateway and waits for its correlated response,
// satisfied by the gateway package.
type RemoteQuerier interface {
	Query(ctx context.Context, tenantID, connectorID string, req connector.QueryRequest, timeout time.Duration) (connector.QueryResult, error)
}
