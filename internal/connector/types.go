// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package connector models Connector/AggregatorInstance/FieldMapping
// records and the ConnectorDriver collaborator the dispatcher calls into
// for extract/load/mini-connector-source activities, per SPEC_FULL.md §3.
package connector

import "context"

// Type enumerates whether a connector is reachable through the
// Remote-Agent Gateway (MINI) or driven in-process (CLOUD).
type Type string

const (
	TypeMini  Type = "MINI"
	TypeCloud Type = "CLOUD"
)

// Connector is a tenant-owned integration endpoint.
type Connector struct {
	ID            string
	TenantID      string
	Type          Type
	Name          string
	APIKeyHashes  []string
}

// AggregatorInstance is a concrete, queryable/writable resource exposed
// by a Connector — the thing an extract/load activity's
// aggregatorInstanceId actually names.
type AggregatorInstance struct {
	ID            string
	TenantID      string
	ConnectorID   string
	Capabilities  []string
	CredentialRef string
}

// HasCapability reports whether cap is in the instance's declared set.
func (a AggregatorInstance) HasCapability(cap string) bool {
	for _, c := range a.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// Transform is the closed set of field-mapping transforms from
// SPEC_FULL.md §4.D's load pipeline.
type Transform string

const (
	TransformUppercase        Transform = "uppercase"
	TransformLowercase        Transform = "lowercase"
	TransformStringToNumber   Transform = "string-to-number"
	TransformNumberToString   Transform = "number-to-string"
	TransformBooleanToString  Transform = "boolean-to-string"
	TransformJSONStringify    Transform = "json-stringify"
	TransformJSONParse        Transform = "json-parse"
	TransformDateFormat       Transform = "date-format"
	TransformNumberFormat     Transform = "number-format"
	TransformDirect           Transform = "direct"
)

// FieldMappingRule maps one source field to one target field, optionally
// applying a Transform in between.
type FieldMappingRule struct {
	SourceField string
	TargetField string
	Transform   Transform
	// Param carries transform-specific configuration, e.g. the layout
	// string for date-format or the decimal precision for number-format.
	Param string
}

// FieldMapping is a tenant-owned, reusable set of rules referenced by a
// load activity's mappingId.
type FieldMapping struct {
	ID       string
	TenantID string
	Rules    []FieldMappingRule
}

// QueryRequest describes a read against an AggregatorInstance or a
// mini-connector-source connector.
type QueryRequest struct {
	Database string
	Table    string
	Columns  []string
	Where    string
	Limit    int
	OrderBy  string
}

// QueryResult is the tabular result of a Query call.
type QueryResult struct {
	Rows    []map[string]any
	Columns []string
}

// WriteRequest describes a batch write against an AggregatorInstance.
type WriteRequest struct {
	Table              string
	Mode               string // insert | upsert | create
	ConflictKey        string
	ConflictResolution string
	Rows               []map[string]any
}

// WriteResult reports the outcome of a batch write.
type WriteResult struct {
	RowsProcessed int
	RowsLoaded    int
	RowsFailed    int
	Warnings      []string
}

// Driver is the ConnectorDriver collaborator: it knows how to run a
// query or write against a specific AggregatorInstance. CLOUD connectors
// are driven directly by an in-process Driver implementation; MINI
// connectors are driven by an adapter in the gateway package that speaks
// to the remote agent instead.
type Driver interface {
	Query(ctx context.Context, instance AggregatorInstance, req QueryRequest) (QueryResult, error)
	Write(ctx context.Context, instance AggregatorInstance, req WriteRequest) (WriteResult, error)
}
