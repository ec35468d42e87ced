// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

// ExtractConfig is the config shape for an "extract" activity.
type ExtractConfig struct {
	AggregatorInstanceID string   `json:"aggregatorInstanceId"`
	Table                string   `json:"table"`
	Columns              []string `json:"columns"`
	Where                string   `json:"where,omitempty"`
	Limit                int      `json:"limit,omitempty"`
	OrderBy              string   `json:"orderBy,omitempty"`
}

// TransformConfig is the config shape for a "transform" activity.
type TransformConfig struct {
	Code         string `json:"code"`
	InputSchema  string `json:"inputSchema,omitempty"`
}

// ConflictResolution enumerates how a load activity handles conflicting rows.
type ConflictResolution string

const (
	ConflictReplace ConflictResolution = "replace"
	ConflictMerge   ConflictResolution = "merge"
	ConflictSkip    ConflictResolution = "skip"
)

// LoadMode enumerates the write mode of a load activity.
type LoadMode string

const (
	LoadInsert LoadMode = "insert"
	LoadUpsert LoadMode = "upsert"
	LoadCreate LoadMode = "create"
)

// ColumnMapping renames a source field to a destination column.
type ColumnMapping struct {
	SourceField string `json:"sourceField"`
	TargetField string `json:"targetField"`
}

// SourceMetadata carries the table/columns of an upstream source
// activity so a downstream load can target the right destination.
type SourceMetadata struct {
	TableName string   `json:"tableName"`
	Columns   []string `json:"columns"`
}

// LoadConfig is the config shape for a "load" activity.
type LoadConfig struct {
	AggregatorInstanceID string             `json:"aggregatorInstanceId,omitempty"`
	SDKID                string             `json:"sdkId,omitempty"`
	Table                string             `json:"table,omitempty"`
	Mode                 LoadMode           `json:"mode"`
	ConflictKey          string             `json:"conflictKey,omitempty"`
	ConflictResolution   ConflictResolution `json:"conflictResolution,omitempty"`
	ColumnMappings       []ColumnMapping    `json:"columnMappings,omitempty"`
	MappingID            string             `json:"mappingId,omitempty"`
	BatchSize            int                `json:"batchSize,omitempty"`
	SourceMetadata       *SourceMetadata    `json:"sourceMetadata,omitempty"`
}

// FilterConfig is the config shape for a "filter" activity.
type FilterConfig struct {
	InputActivityID string `json:"inputActivityId"`
	Condition       string `json:"condition"`
}

// JoinType enumerates the supported join kinds.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// JoinConfig is the config shape for a "join" activity.
type JoinConfig struct {
	LeftActivityID  string   `json:"leftActivityId"`
	RightActivityID string   `json:"rightActivityId"`
	Type            JoinType `json:"type"`
	JoinKey         []string `json:"joinKey"`
	RightKey        []string `json:"rightKey,omitempty"`
}

// MiniConnectorSourceConfig is the config shape for a
// "mini-connector-source" activity.
type MiniConnectorSourceConfig struct {
	ConnectorID string   `json:"connectorId"`
	Database    string   `json:"database"`
	Table       string   `json:"table"`
	Columns     []string `json:"columns"`
	Where       string   `json:"where,omitempty"`
	Limit       int      `json:"limit,omitempty"`
}
