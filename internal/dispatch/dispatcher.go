// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/vectormesh/flowengine/internal/metrics"
	"github.com/vectormesh/flowengine/internal/workflow"
)

// Dispatcher routes an ActivityContext to the Handler registered for its
// activity.type.
type Dispatcher struct {
	handlers map[workflow.ActivityType]Handler
	recorder metrics.Recorder
}

// New builds a Dispatcher with the standard handler set, wired to the
// given collaborators.
func New(deps Dependencies) *Dispatcher {
	recorder := deps.Recorder
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	return &Dispatcher{
		handlers: map[workflow.ActivityType]Handler{
			workflow.ActivityExtract:          &ExtractHandler{Instances: deps.Instances, Driver: deps.CloudDriver},
			workflow.ActivityTransform:        &TransformHandler{Sandbox: deps.Sandbox},
			workflow.ActivityLoad:             &LoadHandler{Instances: deps.Instances, Driver: deps.CloudDriver, Mappings: deps.Mappings},
			workflow.ActivityFilter:           &FilterHandler{Sandbox: deps.Sandbox},
			workflow.ActivityJoin:             &JoinHandler{},
			workflow.ActivityMiniConnectorSrc: &MiniConnectorSourceHandler{Gateway: deps.Gateway},
		},
		recorder: recorder,
	}
}

// Dependencies collects the Dispatcher's collaborators, so wiring a
// Dispatcher is one call instead of threading six interfaces through
// the constructor.
type Dependencies struct {
	Instances   InstanceDirectory
	CloudDriver CloudDriver
	Mappings    MappingLookup
	Sandbox     Evaluator
	Gateway     RemoteQuerier
	Recorder    metrics.Recorder
}

// Dispatch runs actx.Activity's handler. Callers (the orchestrator) must
// only invoke Dispatch once every dependsOn step for actx.StepID has a
// COMPLETED attempt — the dispatcher itself does not re-check readiness.
func (d *Dispatcher) Dispatch(ctx context.Context, actx ActivityContext) (json.RawMessage, *HandlerError) {
	activityType := string(actx.Activity.Type)
	started := time.Now()

	handler, ok := d.handlers[actx.Activity.Type]
	if !ok {
		herr := NewHandlerError(CodeConfigError, "no handler registered for activity type "+activityType)
		d.recorder.DispatchResult(activityType, "fatal", time.Since(started).Seconds())
		return nil, herr
	}

	out, herr := handler.Handle(ctx, actx)
	outcome := "success"
	if herr != nil {
		outcome = "fatal"
		if herr.Retryable {
			outcome = "retryable"
		}
	}
	d.recorder.DispatchResult(activityType, outcome, time.Since(started).Seconds())
	return out, herr
}
