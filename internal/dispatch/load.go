// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"

	"github.com/vectormesh/flowengine/internal/connector"
	"github.com/vectormesh/flowengine/internal/workflow"
)

const defaultBatchSize = 1000

// LoadHandler runs a "load" activity: resolve sourceMetadata, apply the
// mapping pipeline, then batch-write through the ConnectorDriver.
type LoadHandler struct {
	Instances InstanceDirectory
	Driver    CloudDriver
	Mappings  MappingLookup
}

func (h *LoadHandler) Handle(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	var cfg workflow.LoadConfig
	if err := json.Unmarshal(actx.Activity.Config, &cfg); err != nil {
		return nil, NewHandlerError(CodeConfigError, "invalid load config: "+err.Error())
	}

	rows := firstDependencyRows(actx)

	table := cfg.Table
	if table == "" {
		var meta *sourceMetadata
		if cfg.SourceMetadata != nil {
			meta = &sourceMetadata{TableName: cfg.SourceMetadata.TableName, Columns: cfg.SourceMetadata.Columns}
		} else {
			meta = resolveSourceMetadata(actx)
		}
		if meta == nil || meta.TableName == "" {
			return nil, NewHandlerError(CodeLoadError, "table required")
		}
		table = meta.TableName
	}

	if cfg.MappingID != "" {
		mapping, err := h.Mappings.GetMapping(actx.TenantID, cfg.MappingID)
		if err != nil {
			return nil, NewHandlerError(CodeConfigError, "field mapping not found: "+cfg.MappingID)
		}
		rows, _ = connector.ApplyRules(rows, mapping)
	}
	if len(cfg.ColumnMappings) > 0 {
		rows = applyColumnMappings(rows, cfg.ColumnMappings)
	}

	instance, err := h.Instances.GetInstance(actx.TenantID, cfg.AggregatorInstanceID)
	if err != nil {
		return nil, NewHandlerError(CodeConfigError, "aggregator instance not found: "+cfg.AggregatorInstanceID)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var processed, loaded, failed int
	var warnings []string
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		processed += len(batch)

		result, err := h.Driver.Write(ctx, instance, connector.WriteRequest{
			Table:              table,
			Mode:               string(cfg.Mode),
			ConflictKey:        cfg.ConflictKey,
			ConflictResolution: string(cfg.ConflictResolution),
			Rows:               batch,
		})
		if err != nil {
			driverErr := classifyDriverError(err)
			if !driverErr.Retryable {
				failed += len(batch)
				warnings = append(warnings, driverErr.Message)
				continue
			}
			return nil, driverErr
		}
		loaded += result.RowsLoaded
		failed += result.RowsFailed
		warnings = append(warnings, result.Warnings...)
	}

	if failed > 0 && loaded == 0 {
		return nil, &HandlerError{Code: CodeLoadPartialFailure, Message: "all rows failed to load", Retryable: false}
	}

	return marshalEnvelope(map[string]any{
		"rowsProcessed": processed,
		"rowsLoaded":    loaded,
		"rowsFailed":    failed,
		"warnings":      warnings,
	})
}

func applyColumnMappings(rows []map[string]any, mappings []workflow.ColumnMapping) []map[string]any {
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		mapped := make(map[string]any, len(row))
		for k, v := range row {
			mapped[k] = v
		}
		for _, m := range mappings {
			if v, ok := row[m.SourceField]; ok {
				delete(mapped, m.SourceField)
				mapped[m.TargetField] = v
			}
		}
		out[i] = mapped
	}
	return out
}

// resolveSourceMetadata implements SPEC_FULL.md §4.D rule 3: synthesise
// sourceMetadata from the first dependency whose output carries
// `_sourceMetadata`, or failing that from the upstream activity's own
// config when it is a source kind.
func resolveSourceMetadata(actx ActivityContext) *sourceMetadata {
	for _, stepID := range actx.DependsOn {
		raw := actx.Inputs[stepID]
		var env dataEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && env.SourceMetadata != nil {
			return env.SourceMetadata
		}
	}

	for _, upstream := range actx.UpstreamActivities {
		switch upstream.Type {
		case workflow.ActivityExtract:
			var cfg workflow.ExtractConfig
			if json.Unmarshal(upstream.Config, &cfg) == nil && cfg.Table != "" {
				return &sourceMetadata{TableName: cfg.Table, Columns: cfg.Columns}
			}
		case workflow.ActivityMiniConnectorSrc:
			var cfg workflow.MiniConnectorSourceConfig
			if json.Unmarshal(upstream.Config, &cfg) == nil && cfg.Table != "" {
				return &sourceMetadata{TableName: cfg.Table, Columns: cfg.Columns}
			}
		}
	}

	return nil
}
