// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package orchestrator

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/execstore"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// attemptMaxConfig is decoded generically off an activity's config
// regardless of its actual type, per spec.md §4.F's "attempt.max
// declared by the activity" rule: every activity config type is a
// json.RawMessage, so a field absent from a given activity's shape just
// decodes to zero instead of erroring.
type attemptMaxConfig struct {
	AttemptMax int `json:"attemptMax,omitempty"`
}

func attemptMaxFor(def workflow.Definition, step workflow.Step, fallback int) int {
	activity, ok := def.ActivityByID(step.ActivityID)
	if !ok {
		return fallback
	}
	var cfg attemptMaxConfig
	if err := json.Unmarshal(activity.Config, &cfg); err != nil || cfg.AttemptMax <= 0 {
		return fallback
	}
	return cfg.AttemptMax
}

// scheduleRetry places step on an exponential-backoff retry schedule:
// interval = InitialInterval * BackoffFactor^(attempt-1), capped at
// MaxInterval. It appends ACTIVITY_RETRY and arms a timer that re-runs
// the step directly, bypassing processNextStep's readiness scan since
// the step is already known-ready (it just failed).
func (o *Orchestrator) scheduleRetry(tenantID, executionID string, def workflow.Definition, step workflow.Step, attempt int) {
	interval, err := o.retryPolicy.ComputeNextInterval(attempt-1, 0, nil)
	if err != nil {
		interval = o.retryPolicy.InitialInterval
	}

	if err := o.events.ActivityRetry(o.backgroundCtx(), executionID, step.ID, attempt+1, interval); err != nil {
		o.logger.Error("orchestrator: append ACTIVITY_RETRY", zap.Error(err))
	}

	key := executionID + ":" + step.ID
	var fire func()
	fire = func() {
		o.fireRetry(tenantID, executionID, def, step, key, interval, fire)
	}

	o.mu.Lock()
	o.timers[key] = time.AfterFunc(interval, fire)
	o.mu.Unlock()
}

// fireRetry runs when a retry timer elapses. A paused execution defers
// the retry by re-arming the same interval rather than dropping it,
// since a scheduled-but-undispatched retry is not an "in-flight
// attempt" and pause's contract is that no new step starts while paused.
func (o *Orchestrator) fireRetry(tenantID, executionID string, def workflow.Definition, step workflow.Step, key string, interval time.Duration, fire func()) {
	exec, err := o.execs.LoadExecution(o.backgroundCtx(), executionID, tenantID)
	if err != nil || exec.Status.Terminal() {
		o.clearRetryTimer(key)
		return
	}
	if exec.Status == execstore.StatusPaused {
		o.mu.Lock()
		o.timers[key] = time.AfterFunc(interval, fire)
		o.mu.Unlock()
		return
	}

	o.clearRetryTimer(key)

	if !o.claimStep(executionID, step.ID) {
		return
	}
	defer o.releaseStep(executionID, step.ID)
	o.runStep(o.backgroundCtx(), tenantID, executionID, def, step)
}
