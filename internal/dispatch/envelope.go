// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import "encoding/json"

// sourceMetadata is embedded under the `_sourceMetadata` key in every
// source-producing handler's output envelope, per SPEC_FULL.md §4.D, so
// a downstream load can synthesise its own config when the author
// omitted sourceMetadata explicitly.
type sourceMetadata struct {
	TableName string   `json:"tableName"`
	Columns   []string `json:"columns"`
}

// dataEnvelope is the common shape produced by extract and
// mini-connector-source, and consumed by transform/filter/join/load.
type dataEnvelope struct {
	Data           []map[string]any `json:"data"`
	RowCount       int               `json:"rowCount"`
	Columns        []string          `json:"columns,omitempty"`
	SourceMetadata *sourceMetadata   `json:"_sourceMetadata,omitempty"`
}

func marshalEnvelope(v any) (json.RawMessage, *HandlerError) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, NewHandlerError(CodeConfigError, "failed to marshal output: "+err.Error())
	}
	return raw, nil
}

// extractRows unwraps a dataEnvelope-shaped RawMessage into its row
// slice; a bare JSON array is also accepted, a single JSON object is
// wrapped as a single-element array per SPEC_FULL.md §4.D's transform
// contract, and any other shape yields nil.
func extractRows(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}

	var env dataEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Data != nil {
		return env.Data
	}

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err == nil {
		return rows
	}

	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}
	}

	return nil
}
