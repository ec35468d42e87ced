// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawConfig(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func simpleDefinition(t *testing.T) Definition {
	return Definition{
		Activities: []Activity{
			{
				ID:   "a1",
				Type: ActivityExtract,
				Name: "extract customers",
				Config: rawConfig(t, ExtractConfig{
					AggregatorInstanceID: "inst-1",
					Table:                "customers",
					Columns:              []string{"id", "name"},
				}),
			},
			{
				ID:   "a2",
				Type: ActivityLoad,
				Name: "load customers",
				Config: rawConfig(t, LoadConfig{
					AggregatorInstanceID: "inst-2",
					Table:                "customers_out",
					Mode:                 LoadUpsert,
					ConflictKey:          "id",
				}),
			},
		},
		Steps: []Step{
			{ID: "s1", ActivityID: "a1"},
			{ID: "s2", ActivityID: "a2", DependsOn: []string{"s1"}},
		},
	}
}

type fakeLookup struct {
	caps map[string][]string
}

func (f fakeLookup) LookupInstance(_ context.Context, _ string, instanceID string) ([]string, bool, error) {
	caps, ok := f.caps[instanceID]
	return caps, ok, nil
}

func TestValidate_ValidDAG(t *testing.T) {
	def := simpleDefinition(t)
	lookup := fakeLookup{caps: map[string][]string{
		"inst-1": {"read"},
		"inst-2": {"read", "write"},
	}}

	res := Validate(context.Background(), "tenant-1", def, lookup)

	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.ElementsMatch(t, []string{"inst-1", "inst-2"}, res.AggregatorsVerified)
}

func TestValidate_MissingWriteCapabilityWarns(t *testing.T) {
	def := simpleDefinition(t)
	lookup := fakeLookup{caps: map[string][]string{
		"inst-1": {"read"},
		"inst-2": {"read"},
	}}

	res := Validate(context.Background(), "tenant-1", def, lookup)

	require.True(t, res.Valid)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "write capability")
}

func TestValidate_DuplicateActivityID(t *testing.T) {
	def := simpleDefinition(t)
	def.Activities[1].ID = "a1"

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.False(t, res.Valid)
	found := false
	for _, e := range res.Errors {
		if e == `duplicate activity id "a1"` {
			found = true
		}
	}
	assert.True(t, found, "errors: %v", res.Errors)
}

func TestValidate_UnreferencedActivityWarnsNotErrors(t *testing.T) {
	def := simpleDefinition(t)
	def.Activities = append(def.Activities, Activity{
		ID:   "a3",
		Type: ActivityExtract,
		Config: rawConfig(t, ExtractConfig{
			AggregatorInstanceID: "inst-1",
			Table:                "orphans",
			Columns:              []string{"id"},
		}),
	})

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.True(t, res.Valid)
	assert.Contains(t, res.Warnings, `activity "a3" is not referenced by any step`)
}

func TestValidate_CycleDetected(t *testing.T) {
	def := Definition{
		Activities: []Activity{
			{ID: "a1", Type: ActivityTransform, Config: rawConfig(t, TransformConfig{Code: "."})},
			{ID: "a2", Type: ActivityTransform, Config: rawConfig(t, TransformConfig{Code: "."})},
		},
		Steps: []Step{
			{ID: "s1", ActivityID: "a1", DependsOn: []string{"s2"}},
			{ID: "s2", ActivityID: "a2", DependsOn: []string{"s1"}},
		},
	}

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "Circular dependency detected")
}

func TestValidate_UnknownDependsOn(t *testing.T) {
	def := simpleDefinition(t)
	def.Steps[1].DependsOn = []string{"does-not-exist"}

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, `step "s2" depends on unknown step "does-not-exist"`)
}

func TestValidate_InvalidCronRejected(t *testing.T) {
	def := simpleDefinition(t)
	def.Activities[0].Config = rawConfig(t, struct {
		ExtractConfig
		Cron string `json:"cron"`
	}{
		ExtractConfig: ExtractConfig{AggregatorInstanceID: "inst-1", Table: "customers", Columns: []string{"id"}},
		Cron:          "not a cron",
	})

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.False(t, res.Valid)
}

func TestValidate_ValidSixFieldCron(t *testing.T) {
	def := simpleDefinition(t)
	def.Activities[0].Config = rawConfig(t, struct {
		ExtractConfig
		Cron string `json:"cron"`
	}{
		ExtractConfig: ExtractConfig{AggregatorInstanceID: "inst-1", Table: "customers", Columns: []string{"id"}},
		Cron:          "0 */5 * * * *",
	})

	res := Validate(context.Background(), "tenant-1", def, nil)

	assert.True(t, res.Valid, "errors: %v", res.Errors)
}

func TestNormalize_SynthesizesStepsWhenEmpty(t *testing.T) {
	def := Definition{
		Activities: []Activity{
			{ID: "a1", Type: ActivityTransform, Config: rawConfig(t, TransformConfig{Code: "."})},
		},
	}

	out := Normalize(def)

	require.Len(t, out.Steps, 1)
	assert.Equal(t, "a1", out.Steps[0].ActivityID)
}

func TestNormalize_RewritesActivityIDDependsOnToStepID(t *testing.T) {
	def := Definition{
		Activities: []Activity{
			{ID: "a1", Type: ActivityTransform, Config: rawConfig(t, TransformConfig{Code: "."})},
			{ID: "a2", Type: ActivityTransform, Config: rawConfig(t, TransformConfig{Code: "."})},
		},
		Steps: []Step{
			{ID: "step-one", ActivityID: "a1"},
			{ID: "step-two", ActivityID: "a2", DependsOn: []string{"a1"}},
		},
	}

	out := Normalize(def)

	require.Len(t, out.Steps, 2)
	assert.Equal(t, []string{"step-one"}, out.Steps[1].DependsOn)
}

func TestHash_DeterministicRegardlessOfKeyOrder(t *testing.T) {
	def1 := simpleDefinition(t)
	def2 := simpleDefinition(t)
	// Re-marshal with a different but semantically identical RawMessage
	// for one activity's config to simulate independently-authored JSON
	// with the same keys in a different order.
	def2.Activities[0].Config = json.RawMessage(`{"table":"customers","columns":["id","name"],"aggregatorInstanceId":"inst-1"}`)

	h1, err := Hash(def1)
	require.NoError(t, err)
	h2, err := Hash(def2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestHash_DiffersWhenDefinitionChanges(t *testing.T) {
	def1 := simpleDefinition(t)
	def2 := simpleDefinition(t)
	def2.Activities[0].Name = "renamed"

	h1, err := Hash(def1)
	require.NoError(t, err)
	h2, err := Hash(def2)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestMemStore_CreateVersionIsIdempotentOnSameHash(t *testing.T) {
	store := NewMemStore()
	def := simpleDefinition(t)
	ctx := context.Background()

	row1, err := store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)
	row2, err := store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)

	assert.Equal(t, row1.Version, row2.Version)
	assert.Equal(t, 1, row1.Version)
}

func TestMemStore_CreateVersionIncrementsOnChange(t *testing.T) {
	store := NewMemStore()
	def := simpleDefinition(t)
	ctx := context.Background()

	row1, err := store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)

	def.Activities[0].Name = "changed"
	row2, err := store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)

	assert.Equal(t, 1, row1.Version)
	assert.Equal(t, 2, row2.Version)
}

func TestMemStore_GetLatestActivePrefersActiveOverNewerDraft(t *testing.T) {
	store := NewMemStore()
	def := simpleDefinition(t)
	ctx := context.Background()

	row1, err := store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(ctx, "tenant-1", "wf-1", row1.Version, StatusActive))

	def.Activities[0].Name = "draft edit"
	_, err = store.CreateVersion(ctx, "tenant-1", "wf-1", "wf", "", def)
	require.NoError(t, err)

	got, err := store.Get(ctx, "tenant-1", "wf-1", 0)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, row1.Version, got.Version)
}

func TestMemStore_GetUnknownWorkflowReturnsNotFound(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(context.Background(), "tenant-1", "missing", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
