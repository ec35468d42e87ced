// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package orchestrator drives one workflow execution through its DAG of
// steps, per SPEC_FULL.md §4.F: it resolves step readiness, dispatches
// activities through the Dispatcher, reacts to their outcome, and
// persists every state-affecting decision through the Store and the
// event log before it becomes externally visible.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/vectormesh/flowengine/internal/backoff"
	"github.com/vectormesh/flowengine/internal/dispatch"
	"github.com/vectormesh/flowengine/internal/eventlog"
	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/metrics"
	"github.com/vectormesh/flowengine/internal/workflow"
)

const (
	defaultMaxParallelSteps = 4
	defaultRetryLimit       = 3
	retryInitialInterval    = 5 * time.Second
	retryBackoffFactor      = 2.0
	retryMaxInterval        = 60 * time.Second
)

// Orchestrator runs executions against their published Definition,
// mirroring the gateway's Start/Stop goroutine-lifecycle pattern: New
// wires collaborators, Start hands out the context every spawned step
// and retry goroutine runs under, and Stop cancels and drains them.
type Orchestrator struct {
	execs      execstore.Store
	events     *eventlog.Logger
	workflows  WorkflowLookup
	dispatcher Dispatcher
	logger     *zap.Logger

	maxParallelSteps  int
	defaultRetryLimit int
	retryPolicy       *backoff.ExponentialBackoffPolicy

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[string]map[string]bool
	timers  map[string]*time.Timer

	terminalHook func(tenantID, executionID string)
	recorder     metrics.Recorder
	tracer       trace.Tracer
}

// WithRecorder wires a metrics.Recorder so completeExecution, failExecution,
// and finishCancellation each report their terminal status. Orchestrators
// built without this option record nothing (metrics.Noop).
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithTracer wires a trace.Tracer so StartExecution and each step
// dispatch open a span. Orchestrators built without this option use
// otel's no-op tracer, so spans cost nothing unless a real
// TracerProvider (see internal/telemetry) is wired in.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMaxParallelSteps overrides the per-execution bound on concurrently
// dispatched ready steps (default 4).
func WithMaxParallelSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxParallelSteps = n
		}
	}
}

// WithDefaultRetryLimit overrides the retry ceiling used when an
// activity's own config declares no attemptMax (default 3).
func WithDefaultRetryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.defaultRetryLimit = n
		}
	}
}

// WithRetryPolicy overrides the exponential-backoff policy used to
// schedule activity retries, mainly so tests don't wait out real
// multi-second intervals.
func WithRetryPolicy(policy *backoff.ExponentialBackoffPolicy) Option {
	return func(o *Orchestrator) {
		if policy != nil {
			o.retryPolicy = policy
		}
	}
}

// WithTerminalHook registers a callback fired exactly once per execution,
// the moment it reaches COMPLETED, FAILED, or CANCELLED. httpapi uses this
// to release the execution's admission.Ticket without the orchestrator
// needing to know admission exists.
func WithTerminalHook(fn func(tenantID, executionID string)) Option {
	return func(o *Orchestrator) {
		o.terminalHook = fn
	}
}

// SetTerminalHook wires the terminal hook after construction, for callers
// (httpapi) that only know the callback once they've built it from the
// very Orchestrator they're wiring it into.
func (o *Orchestrator) SetTerminalHook(fn func(tenantID, executionID string)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.terminalHook = fn
}

// New builds an Orchestrator over the given collaborators.
func New(execs execstore.Store, events *eventlog.Logger, workflows WorkflowLookup, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		execs:             execs,
		events:            events,
		workflows:         workflows,
		dispatcher:        dispatcher,
		logger:            logger,
		maxParallelSteps:  defaultMaxParallelSteps,
		defaultRetryLimit: defaultRetryLimit,
		retryPolicy: &backoff.ExponentialBackoffPolicy{
			InitialInterval: retryInitialInterval,
			BackoffFactor:   retryBackoffFactor,
			MaxInterval:     retryMaxInterval,
		},
		running:  make(map[string]map[string]bool),
		timers:   make(map[string]*time.Timer),
		recorder: metrics.Noop{},
		tracer:   noop.NewTracerProvider().Tracer("flowengine/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start hands background step/retry goroutines a cancellable context
// derived from ctx. It must be called once before StartExecution.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.runCtx = ctx
	o.cancel = cancel
	return nil
}

// Stop cancels outstanding retry timers and background goroutines and
// waits for them to exit.
func (o *Orchestrator) Stop(_ context.Context) error {
	if o.cancel != nil {
		o.cancel()
	}
	o.mu.Lock()
	for _, timer := range o.timers {
		timer.Stop()
	}
	o.timers = make(map[string]*time.Timer)
	o.mu.Unlock()
	o.wg.Wait()
	return nil
}

func (o *Orchestrator) backgroundCtx() context.Context {
	if o.runCtx != nil {
		return o.runCtx
	}
	return context.Background()
}

// StartExecution implements spec.md §4.F's startExecution: it resolves
// the published definition, verifies it has at least one root step,
// creates the Execution row, appends EXECUTION_STARTED, persists the
// first currentStepId and RUNNING status, and kicks off background
// processing. It returns as soon as that initial state is durable; the
// DAG itself runs on a detached goroutine.
func (o *Orchestrator) StartExecution(ctx context.Context, tenantID, workflowID string, version int, triggerContext json.RawMessage) (execstore.Execution, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.start_execution", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("workflow_id", workflowID),
	))
	defer span.End()

	row, err := o.workflows.Get(ctx, tenantID, workflowID, version)
	if err != nil {
		span.RecordError(err)
		return execstore.Execution{}, err
	}
	if row.Status != workflow.StatusActive {
		return execstore.Execution{}, fmt.Errorf("orchestrator: workflow %s version %d is not active", workflowID, row.Version)
	}

	roots := row.Definition.RootSteps()
	if len(roots) == 0 {
		return execstore.Execution{}, fmt.Errorf("orchestrator: workflow %s has no root steps", workflowID)
	}

	exec, err := o.execs.CreateExecution(ctx, tenantID, workflowID, row.Version, row.Hash, triggerContext)
	if err != nil {
		span.RecordError(err)
		return execstore.Execution{}, err
	}
	span.SetAttributes(attribute.String("execution_id", exec.ExecutionID))

	if err := o.events.ExecutionStarted(ctx, exec.ExecutionID); err != nil {
		o.logger.Error("orchestrator: append EXECUTION_STARTED", zap.String("execution_id", exec.ExecutionID), zap.Error(err))
	}

	rootID := roots[0].ID
	status := execstore.StatusRunning
	if err := o.execs.UpdateExecution(ctx, exec.ExecutionID, execstore.Patch{CurrentStepID: &rootID, Status: &status}); err != nil {
		return execstore.Execution{}, err
	}
	exec.CurrentStepID = rootID
	exec.Status = execstore.StatusRunning

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.processNextStep(o.backgroundCtx(), tenantID, exec.ExecutionID)
	}()

	return exec, nil
}

// Pause implements the pause operation: allowed from PENDING|RUNNING.
// In-flight attempts run to completion; processNextStep's status check
// stops any further step from being dispatched once PAUSED is visible.
func (o *Orchestrator) Pause(ctx context.Context, tenantID, executionID string) error {
	exec, err := o.execs.LoadExecution(ctx, executionID, tenantID)
	if err != nil {
		return err
	}
	if exec.Status != execstore.StatusPending && exec.Status != execstore.StatusRunning {
		return fmt.Errorf("orchestrator: execution %s cannot be paused from status %s", executionID, exec.Status)
	}
	status := execstore.StatusPaused
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{Status: &status}); err != nil {
		return err
	}
	return o.events.ExecutionPaused(ctx, executionID)
}

// Resume implements the resume operation: allowed from PAUSED only. It
// reloads state and re-enters processNextStep on a background goroutine.
func (o *Orchestrator) Resume(ctx context.Context, tenantID, executionID string) error {
	exec, err := o.execs.LoadExecution(ctx, executionID, tenantID)
	if err != nil {
		return err
	}
	if exec.Status != execstore.StatusPaused {
		return fmt.Errorf("orchestrator: execution %s cannot be resumed from status %s", executionID, exec.Status)
	}
	status := execstore.StatusRunning
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{Status: &status}); err != nil {
		return err
	}
	if err := o.events.ExecutionResumed(ctx, executionID); err != nil {
		o.logger.Error("orchestrator: append EXECUTION_RESUMED", zap.Error(err))
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.processNextStep(o.backgroundCtx(), tenantID, executionID)
	}()
	return nil
}

// Cancel implements the cancel operation: allowed from any non-terminal
// status. It sets CANCELLING immediately and drops scheduled retries;
// the transition to CANCELLED happens in processNextStep once the
// current attempt (if any) returns. In-flight remote commands are not
// aborted — their eventual responses are recorded but ignored.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID, executionID string) error {
	exec, err := o.execs.LoadExecution(ctx, executionID, tenantID)
	if err != nil {
		return err
	}
	if exec.Status.Terminal() {
		return fmt.Errorf("orchestrator: execution %s is already terminal", executionID)
	}
	status := execstore.StatusCancelling
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{Status: &status}); err != nil {
		return err
	}
	o.clearRetryTimers(executionID)

	// If a step is currently in flight, its own completion re-enters
	// processNextStep and finalises CANCELLED once it returns, per the
	// "then CANCELLED once the current attempt returns" rule. Only kick
	// processing directly when nothing is in flight to finalise.
	if !o.hasInFlightSteps(executionID) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			o.processNextStep(o.backgroundCtx(), tenantID, executionID)
		}()
	}
	return nil
}

// processNextStep is the core driver, re-entered after every step
// outcome, on Resume, and on Cancel. It is safe to call concurrently for
// the same execution: claimStep prevents a ready step from being
// dispatched twice by racing callers.
func (o *Orchestrator) processNextStep(ctx context.Context, tenantID, executionID string) {
	state, err := execstore.LoadState(ctx, o.execs, executionID, tenantID)
	if err != nil {
		o.logger.Error("orchestrator: load state", zap.String("execution_id", executionID), zap.Error(err))
		return
	}

	switch {
	case state.Execution.Status == execstore.StatusPaused:
		return
	case state.Execution.Status == execstore.StatusCancelling:
		o.finishCancellation(ctx, tenantID, executionID)
		return
	case state.Execution.Status.Terminal():
		return
	}

	row, err := o.workflows.Get(ctx, tenantID, state.Execution.WorkflowID, state.Execution.WorkflowVersion)
	if err != nil {
		o.failExecution(ctx, tenantID, executionID, "workflow definition unavailable: "+err.Error())
		return
	}
	def := row.Definition

	ready := o.readySteps(def, state)
	if len(ready) == 0 {
		if o.allStepsResolved(def, state) {
			o.completeExecution(ctx, tenantID, executionID)
		}
		return
	}

	sem := semaphore.NewWeighted(int64(o.maxParallelSteps))
	var wg sync.WaitGroup
	for _, step := range ready {
		step := step
		if !o.claimStep(executionID, step.ID) {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			o.releaseStep(executionID, step.ID)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			defer o.releaseStep(executionID, step.ID)
			o.runStep(ctx, tenantID, executionID, def, step)
		}()
	}
	wg.Wait()
}

// readySteps returns every step whose dependsOn is fully satisfied and
// that is neither already resolved, currently in flight, nor waiting on
// a scheduled retry.
func (o *Orchestrator) readySteps(def workflow.Definition, state execstore.State) []workflow.Step {
	var out []workflow.Step
	for _, step := range def.Steps {
		if state.CompletedSteps[step.ID] || state.FailedSteps[step.ID] {
			continue
		}
		if o.isInFlight(state.Execution.ExecutionID, step.ID) || o.isRetryScheduled(state.Execution.ExecutionID, step.ID) {
			continue
		}
		if stepReady(step, state.CompletedSteps) {
			out = append(out, step)
		}
	}
	return out
}

func stepReady(step workflow.Step, completed map[string]bool) bool {
	for _, dep := range step.DependsOn {
		if !completed[dep] {
			return false
		}
	}
	return true
}

func (o *Orchestrator) allStepsResolved(def workflow.Definition, state execstore.State) bool {
	for _, step := range def.Steps {
		if !state.CompletedSteps[step.ID] && !state.FailedSteps[step.ID] {
			return false
		}
	}
	return true
}

// runStep dispatches one step's activity and routes the outcome to
// onActivityCompleted or onActivityFailed. Callers must hold the step's
// in-flight claim for the duration of this call (processNextStep does;
// a fired retry timer clears its own timer slot instead).
func (o *Orchestrator) runStep(ctx context.Context, tenantID, executionID string, def workflow.Definition, step workflow.Step) {
	activity, ok := def.ActivityByID(step.ActivityID)
	if !ok {
		o.failExecution(ctx, tenantID, executionID, fmt.Sprintf("step %s references unknown activity %s", step.ID, step.ActivityID))
		return
	}

	state, err := execstore.LoadState(ctx, o.execs, executionID, tenantID)
	if err != nil {
		o.logger.Error("orchestrator: load state", zap.String("step_id", step.ID), zap.Error(err))
		return
	}
	if state.Execution.Status.Terminal() || state.Execution.Status == execstore.StatusPaused {
		return
	}

	attempts, err := o.execs.ListAttempts(ctx, executionID)
	if err != nil {
		o.logger.Error("orchestrator: list attempts", zap.Error(err))
		return
	}
	attemptNum := maxAttemptForStep(attempts, step.ID) + 1

	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{CurrentStepID: &step.ID}); err != nil && !errors.Is(err, execstore.ErrTerminal) {
		o.logger.Warn("orchestrator: set current step", zap.Error(err))
	}
	if err := o.events.StepStarted(ctx, executionID, step.ID, attemptNum); err != nil {
		o.logger.Error("orchestrator: append STEP_STARTED", zap.Error(err))
	}

	startedAt := time.Now()
	if err := o.execs.RecordAttempt(ctx, execstore.ActivityAttempt{
		ExecutionID: executionID, TenantID: tenantID, StepID: step.ID, ActivityType: string(activity.Type),
		Attempt: attemptNum, Status: execstore.AttemptRunning, StartedAt: startedAt,
	}); err != nil {
		o.logger.Error("orchestrator: record running attempt", zap.Error(err))
		return
	}

	inputs := make(map[string]json.RawMessage, len(step.DependsOn))
	upstream := make(map[string]workflow.Activity, len(step.DependsOn))
	for _, depStepID := range step.DependsOn {
		inputs[depStepID] = state.StepOutputs[depStepID]
		if depStep, ok := def.StepByID(depStepID); ok {
			if depActivity, ok := def.ActivityByID(depStep.ActivityID); ok {
				upstream[depStepID] = depActivity
			}
		}
	}

	actx := dispatch.ActivityContext{
		TenantID: tenantID, ExecutionID: executionID, StepID: step.ID, Activity: activity,
		DependsOn: step.DependsOn, Inputs: inputs, UpstreamActivities: upstream,
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.dispatch_step", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("execution_id", executionID),
		attribute.String("step_id", step.ID),
		attribute.String("activity_type", string(activity.Type)),
		attribute.Int("attempt", attemptNum),
	))
	output, herr := o.dispatcher.Dispatch(ctx, actx)
	if herr != nil {
		span.RecordError(herr)
		span.End()
		o.onActivityFailed(ctx, tenantID, executionID, def, step, attemptNum, startedAt, herr)
		return
	}
	span.End()
	o.onActivityCompleted(ctx, tenantID, executionID, step, attemptNum, startedAt, output)
}

func maxAttemptForStep(attempts []execstore.ActivityAttempt, stepID string) int {
	max := 0
	for _, a := range attempts {
		if a.StepID == stepID && a.Attempt > max {
			max = a.Attempt
		}
	}
	return max
}

// onActivityCompleted implements spec.md §4.F's onActivityCompleted: it
// records the COMPLETED attempt, appends STEP_COMPLETED, and re-enters
// processNextStep, which both computes nextReady (the "recurse" step)
// and checks for overall completion.
func (o *Orchestrator) onActivityCompleted(ctx context.Context, tenantID, executionID string, step workflow.Step, attempt int, startedAt time.Time, output json.RawMessage) {
	completedAt := time.Now()
	if err := o.execs.RecordAttempt(ctx, execstore.ActivityAttempt{
		ExecutionID: executionID, TenantID: tenantID, StepID: step.ID, Attempt: attempt,
		Status: execstore.AttemptCompleted, OutputRef: output, StartedAt: startedAt, CompletedAt: &completedAt,
	}); err != nil {
		o.logger.Error("orchestrator: record completed attempt", zap.Error(err))
	}
	if err := o.events.StepCompleted(ctx, executionID, step.ID, attempt); err != nil {
		o.logger.Error("orchestrator: append STEP_COMPLETED", zap.Error(err))
	}

	o.processNextStep(ctx, tenantID, executionID)
}

// onActivityFailed implements spec.md §4.F's onActivityFailed: a
// non-retryable error fails the whole execution and stops traversal; a
// retryable one schedules exponential backoff for up to attemptMax
// retries (or the orchestrator's default) before failing outright.
func (o *Orchestrator) onActivityFailed(ctx context.Context, tenantID, executionID string, def workflow.Definition, step workflow.Step, attempt int, startedAt time.Time, herr *dispatch.HandlerError) {
	completedAt := time.Now()
	if err := o.execs.RecordAttempt(ctx, execstore.ActivityAttempt{
		ExecutionID: executionID, TenantID: tenantID, StepID: step.ID, Attempt: attempt,
		Status: execstore.AttemptFailed, ErrorMessage: herr.Message, ErrorRetryable: herr.Retryable,
		StartedAt: startedAt, CompletedAt: &completedAt,
	}); err != nil {
		o.logger.Error("orchestrator: record failed attempt", zap.Error(err))
	}
	if err := o.events.StepFailed(ctx, executionID, step.ID, attempt, herr.Message, herr.Retryable); err != nil {
		o.logger.Error("orchestrator: append STEP_FAILED", zap.Error(err))
	}

	if !herr.Retryable {
		o.failExecution(ctx, tenantID, executionID, fmt.Sprintf("step %s failed: %s", step.ID, herr.Message))
		return
	}

	limit := attemptMaxFor(def, step, o.defaultRetryLimit)
	if attempt > limit {
		o.failExecution(ctx, tenantID, executionID, fmt.Sprintf("step %s exhausted %d retries: %s", step.ID, limit, herr.Message))
		return
	}

	o.scheduleRetry(tenantID, executionID, def, step, attempt)
}

// completeExecution implements completeExecution: COMPLETED, clears
// currentStepId, stamps completedAt, logs EXECUTION_COMPLETED, and fires
// the terminal hook.
func (o *Orchestrator) completeExecution(ctx context.Context, tenantID, executionID string) {
	completedAt := time.Now()
	status := execstore.StatusCompleted
	empty := ""
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{
		Status: &status, CompletedAt: &completedAt, CurrentStepID: &empty,
	}); err != nil {
		if !errors.Is(err, execstore.ErrTerminal) {
			o.logger.Error("orchestrator: mark execution completed", zap.Error(err))
		}
		return
	}
	if err := o.events.ExecutionCompleted(ctx, executionID); err != nil {
		o.logger.Error("orchestrator: append EXECUTION_COMPLETED", zap.Error(err))
	}
	o.recorder.ExecutionTerminal(string(status))
	o.fireTerminalHook(tenantID, executionID)
}

// failExecution implements failExecution: FAILED, stamps completedAt
// and errorMessage, logs EXECUTION_FAILED, drops any scheduled retries,
// and fires the terminal hook.
func (o *Orchestrator) failExecution(ctx context.Context, tenantID, executionID, message string) {
	completedAt := time.Now()
	status := execstore.StatusFailed
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{
		Status: &status, CompletedAt: &completedAt, ErrorMessage: &message,
	}); err != nil {
		if !errors.Is(err, execstore.ErrTerminal) {
			o.logger.Error("orchestrator: mark execution failed", zap.Error(err))
		}
		return
	}
	if err := o.events.ExecutionFailed(ctx, executionID, message); err != nil {
		o.logger.Error("orchestrator: append EXECUTION_FAILED", zap.Error(err))
	}
	o.clearRetryTimers(executionID)
	o.recorder.ExecutionTerminal(string(status))
	o.fireTerminalHook(tenantID, executionID)
}

// finishCancellation transitions CANCELLING to CANCELLED once
// processNextStep observes it, per the cancel operation's second half,
// and fires the terminal hook.
func (o *Orchestrator) finishCancellation(ctx context.Context, tenantID, executionID string) {
	completedAt := time.Now()
	status := execstore.StatusCancelled
	if err := o.execs.UpdateExecution(ctx, executionID, execstore.Patch{Status: &status, CompletedAt: &completedAt}); err != nil {
		if !errors.Is(err, execstore.ErrTerminal) {
			o.logger.Error("orchestrator: mark execution cancelled", zap.Error(err))
		}
		return
	}
	if err := o.events.ExecutionCancelled(ctx, executionID); err != nil {
		o.logger.Error("orchestrator: append EXECUTION_CANCELLED", zap.Error(err))
	}
	o.clearRetryTimers(executionID)
	o.recorder.ExecutionTerminal(string(status))
	o.fireTerminalHook(tenantID, executionID)
}

func (o *Orchestrator) fireTerminalHook(tenantID, executionID string) {
	o.mu.Lock()
	hook := o.terminalHook
	o.mu.Unlock()
	if hook != nil {
		hook(tenantID, executionID)
	}
}

func (o *Orchestrator) claimStep(executionID, stepID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[executionID] == nil {
		o.running[executionID] = make(map[string]bool)
	}
	if o.running[executionID][stepID] {
		return false
	}
	o.running[executionID][stepID] = true
	return true
}

func (o *Orchestrator) releaseStep(executionID, stepID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running[executionID], stepID)
}

func (o *Orchestrator) isInFlight(executionID, stepID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[executionID][stepID]
}

func (o *Orchestrator) hasInFlightSteps(executionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.running[executionID]) > 0
}

func (o *Orchestrator) isRetryScheduled(executionID, stepID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.timers[executionID+":"+stepID]
	return ok
}

func (o *Orchestrator) clearRetryTimer(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.timers, key)
}

func (o *Orchestrator) clearRetryTimers(executionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prefix := executionID + ":"
	for key, timer := range o.timers {
		if strings.HasPrefix(key, prefix) {
			timer.Stop()
			delete(o.timers, key)
		}
	}
}
