// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/backoff"
	"github.com/vectormesh/flowengine/internal/dispatch"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/workflow"
)

type fakeWorkflowLookup struct {
	row workflow.Row
}

func (f *fakeWorkflowLookup) Get(_ context.Context, _, _ string, _ int) (workflow.Row, error) {
	return f.row, nil
}

type fakeResult struct {
	output json.RawMessage
	err    *dispatch.HandlerError
}

// fakeDispatcher answers Dispatch from a per-step scripted sequence of
// outcomes (the last entry repeats once exhausted), and can optionally
// block a step's call on a gate channel to pin down interleaving with
// pause/cancel in tests.
type fakeDispatcher struct {
	mu    sync.Mutex
	calls map[string]int
	plan  map[string][]fakeResult
	gate  map[string]chan struct{}
}

func (f *fakeDispatcher) Dispatch(_ context.Context, actx dispatch.ActivityContext) (json.RawMessage, *dispatch.HandlerError) {
	f.mu.Lock()
	n := f.calls[actx.StepID]
	f.calls[actx.StepID] = n + 1
	gate := f.gate[actx.StepID]
	seq := f.plan[actx.StepID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if len(seq) == 0 {
		return json.RawMessage(`{}`), nil
	}
	idx := n
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	r := seq[idx]
	return r.output, r.err
}

func (f *fakeDispatcher) callCount(stepID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stepID]
}

func waitForStatus(t *testing.T, store execstore.Store, executionID, tenantID string, want execstore.Status) execstore.Execution {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		exec, err := store.LoadExecution(context.Background(), executionID, tenantID)
		require.NoError(t, err)
		if exec.Status == want {
			return exec
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("execution %s did not reach status %s", executionID, want)
	return execstore.Execution{}
}

func linearChainDefinition() workflow.Definition {
	return workflow.Definition{
		Activities: []workflow.Activity{
			{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)},
			{ID: "a2", Type: workflow.ActivityLoad, Config: json.RawMessage(`{}`)},
		},
		Steps: []workflow.Step{
			{ID: "s1", ActivityID: "a1"},
			{ID: "s2", ActivityID: "a2", DependsOn: []string{"s1"}},
		},
	}
}

// diamondDefinition is A -> {B, C} -> D: B and C both depend on A, and D
// depends on both B and C.
func diamondDefinition() workflow.Definition {
	return workflow.Definition{
		Activities: []workflow.Activity{
			{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)},
			{ID: "a2", Type: workflow.ActivityLoad, Config: json.RawMessage(`{}`)},
			{ID: "a3", Type: workflow.ActivityLoad, Config: json.RawMessage(`{}`)},
			{ID: "a4", Type: workflow.ActivityLoad, Config: json.RawMessage(`{}`)},
		},
		Steps: []workflow.Step{
			{ID: "A", ActivityID: "a1"},
			{ID: "B", ActivityID: "a2", DependsOn: []string{"A"}},
			{ID: "C", ActivityID: "a3", DependsOn: []string{"A"}},
			{ID: "D", ActivityID: "a4", DependsOn: []string{"B", "C"}},
		},
	}
}

func TestStartExecution_DiamondDAG_JoinRunsOnceAfterBothParents(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive,
		Definition: diamondDefinition(), Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)

	assert.Equal(t, 1, dispatcher.callCount("A"))
	assert.Equal(t, 1, dispatcher.callCount("B"))
	assert.Equal(t, 1, dispatcher.callCount("C"))
	assert.Equal(t, 1, dispatcher.callCount("D"), "D must run exactly once")

	hist, err := events.History(context.Background(), exec.ExecutionID)
	require.NoError(t, err)

	var bCompletedAt, cCompletedAt, dStartedAt time.Time
	for _, e := range hist {
		var payload struct {
			StepID string `json:"stepId"`
		}
		if len(e.Payload) == 0 {
			continue
		}
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		switch {
		case e.EventType == execstore.EventStepCompleted && payload.StepID == "B":
			bCompletedAt = e.Timestamp
		case e.EventType == execstore.EventStepCompleted && payload.StepID == "C":
			cCompletedAt = e.Timestamp
		case e.EventType == execstore.EventStepStarted && payload.StepID == "D":
			dStartedAt = e.Timestamp
		}
	}

	require.False(t, bCompletedAt.IsZero(), "missing STEP_COMPLETED event for B")
	require.False(t, cCompletedAt.IsZero(), "missing STEP_COMPLETED event for C")
	require.False(t, dStartedAt.IsZero(), "missing STEP_STARTED event for D")
	assert.True(t, !dStartedAt.Before(bCompletedAt), "D started before B completed")
	assert.True(t, !dStartedAt.Before(cCompletedAt), "D started before C completed")
}

func TestStartExecution_RunsLinearChainToCompletion(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive,
		Definition: linearChainDefinition(), Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)

	assert.Equal(t, 1, dispatcher.callCount("s1"))
	assert.Equal(t, 1, dispatcher.callCount("s2"))

	hist, err := events.History(context.Background(), exec.ExecutionID)
	require.NoError(t, err)
	var types []execstore.EventType
	for _, e := range hist {
		types = append(types, e.EventType)
	}
	assert.Contains(t, types, execstore.EventExecutionStarted)
	assert.Contains(t, types, execstore.EventStepCompleted)
	assert.Contains(t, types, execstore.EventExecutionCompleted)
}

func TestWithTracer_RecordsStartAndDispatchSpans(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive,
		Definition: linearChainDefinition(), Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	orch := New(store, events, lookup, dispatcher, zap.NewNop(), WithTracer(provider.Tracer("test")))
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)

	var names []string
	for _, s := range exporter.GetSpans() {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "orchestrator.start_execution")
	assert.Contains(t, names, "orchestrator.dispatch_step")
}

func TestStartExecution_RejectsWorkflowWithNoRootSteps(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1", DependsOn: []string{"s1"}}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	_, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestRetryThenSuccess_ProducesThreeAttemptsAndTwoRetryEvents(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1"}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{
		calls: map[string]int{},
		plan: map[string][]fakeResult{
			"s1": {
				{err: dispatch.NewHandlerError(dispatch.CodeNetworkError, "transient one")},
				{err: dispatch.NewHandlerError(dispatch.CodeNetworkError, "transient two")},
				{output: json.RawMessage(`{"ok":true}`)},
			},
		},
	}

	orch := New(store, events, lookup, dispatcher, zap.NewNop(),
		WithRetryPolicy(&backoff.ExponentialBackoffPolicy{InitialInterval: 10 * time.Millisecond, BackoffFactor: 2, MaxInterval: time.Second}))
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)

	attempts, err := store.ListAttempts(context.Background(), exec.ExecutionID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, execstore.AttemptFailed, attempts[0].Status)
	assert.Equal(t, execstore.AttemptFailed, attempts[1].Status)
	assert.Equal(t, execstore.AttemptCompleted, attempts[2].Status)

	hist, err := events.History(context.Background(), exec.ExecutionID)
	require.NoError(t, err)
	retries := 0
	for _, e := range hist {
		if e.EventType == execstore.EventActivityRetry {
			retries++
		}
	}
	assert.Equal(t, 2, retries)
}

func TestNonRetryableFailure_FailsExecutionWithoutRetrying(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1"}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{
		calls: map[string]int{},
		plan: map[string][]fakeResult{
			"s1": {{err: dispatch.NewHandlerError(dispatch.CodeConfigError, "bad config")}},
		},
	}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusFailed)
	assert.Equal(t, 1, dispatcher.callCount("s1"))
}

func TestPause_BlocksNextStepUntilResumed(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive,
		Definition: linearChainDefinition(), Hash: "h1",
	}}
	gate := make(chan struct{})
	dispatcher := &fakeDispatcher{
		calls: map[string]int{}, plan: map[string][]fakeResult{},
		gate: map[string]chan struct{}{"s1": gate},
	}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, orch.Pause(context.Background(), "t1", exec.ExecutionID))
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, dispatcher.callCount("s2"))

	loaded, err := store.LoadExecution(context.Background(), exec.ExecutionID, "t1")
	require.NoError(t, err)
	assert.Equal(t, execstore.StatusPaused, loaded.Status)

	require.NoError(t, orch.Resume(context.Background(), "t1", exec.ExecutionID))
	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)
	assert.Equal(t, 1, dispatcher.callCount("s2"))
}

func TestPause_RejectedFromTerminalStatus(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1"}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)
	assert.Error(t, orch.Pause(context.Background(), "t1", exec.ExecutionID))
}

func TestCancel_TransitionsToCancelledOnceInFlightAttemptReturns(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1"}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	gate := make(chan struct{})
	dispatcher := &fakeDispatcher{
		calls: map[string]int{}, plan: map[string][]fakeResult{},
		gate: map[string]chan struct{}{"s1": gate},
	}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	require.NoError(t, orch.Cancel(context.Background(), "t1", exec.ExecutionID))

	loaded, err := store.LoadExecution(context.Background(), exec.ExecutionID, "t1")
	require.NoError(t, err)
	assert.Equal(t, execstore.StatusCancelling, loaded.Status)

	close(gate)
	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCancelled)

	hist, err := events.History(context.Background(), exec.ExecutionID)
	require.NoError(t, err)
	var saw bool
	for _, e := range hist {
		if e.EventType == execstore.EventExecutionCancelled {
			saw = true
		}
	}
	assert.True(t, saw)
}

func TestCancel_RejectedFromTerminalStatus(t *testing.T) {
	store := execstore.NewMemStore()
	events := eventlog.New(store)
	def := workflow.Definition{
		Activities: []workflow.Activity{{ID: "a1", Type: workflow.ActivityExtract, Config: json.RawMessage(`{}`)}},
		Steps:      []workflow.Step{{ID: "s1", ActivityID: "a1"}},
	}
	lookup := &fakeWorkflowLookup{row: workflow.Row{
		TenantID: "t1", WorkflowID: "wf1", Version: 1, Status: workflow.StatusActive, Definition: def, Hash: "h1",
	}}
	dispatcher := &fakeDispatcher{calls: map[string]int{}, plan: map[string][]fakeResult{}}

	orch := New(store, events, lookup, dispatcher, zap.NewNop())
	require.NoError(t, orch.Start(context.Background()))
	defer orch.Stop(context.Background())

	exec, err := orch.StartExecution(context.Background(), "t1", "wf1", 1, json.RawMessage(`{}`))
	require.NoError(t, err)

	waitForStatus(t, store, exec.ExecutionID, "t1", execstore.StatusCompleted)
	assert.Error(t, orch.Cancel(context.Background(), "t1", exec.ExecutionID))
}
