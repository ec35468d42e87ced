// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package metrics exposes the control plane's Prometheus instrumentation.
// admission, dispatch, and orchestrator each depend only on the narrow
// Recorder interface below, so none of them import prometheus directly;
// Prom is the real implementation, wired in by cmd/flowengine, and Noop
// is the zero-value default for callers (tests, one-off CLIs) that never
// set one.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives point-in-time observations from admission, dispatch,
// and orchestrator. Labels are passed as plain strings rather than each
// package's own enum type, so this interface carries no dependency back
// on any of them.
type Recorder interface {
	// AdmissionResult records one Admit decision: outcome is one of
	// "admitted", "rate_limited", "at_capacity", or "backlog".
	AdmissionResult(tier, outcome string)
	// SetQueueDepth reports a tier's current backlog length.
	SetQueueDepth(tier string, depth int)
	// DispatchResult records one activity handler invocation: outcome is
	// "success", "retryable", or "fatal".
	DispatchResult(activityType, outcome string, seconds float64)
	// ExecutionTerminal records an execution reaching COMPLETED, FAILED,
	// or CANCELLED.
	ExecutionTerminal(status string)
}

// Noop discards every observation. The zero value is ready to use.
type Noop struct{}

func (Noop) AdmissionResult(string, string)         {}
func (Noop) SetQueueDepth(string, int)              {}
func (Noop) DispatchResult(string, string, float64) {}
func (Noop) ExecutionTerminal(string)               {}

// Prom is the Recorder backed by real Prometheus collectors.
type Prom struct {
	admissionTotal  *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	dispatchTotal   *prometheus.CounterVec
	dispatchSeconds *prometheus.HistogramVec
	executionTotal  *prometheus.CounterVec
}

// NewProm builds a Prom and registers its collectors against reg. Pass
// prometheus.DefaultRegisterer in production, a fresh
// prometheus.NewRegistry() in tests that want an isolated registry.
func NewProm(reg prometheus.Registerer) *Prom {
	factory := promauto.With(reg)
	return &Prom{
		admissionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowengine_admission_decisions_total",
			Help: "Admission decisions, by tier and outcome.",
		}, []string{"tier", "outcome"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flowengine_tier_queue_depth",
			Help: "Jobs waiting in a tier's FIFO queue, not yet picked up by a worker.",
		}, []string{"tier"}),
		dispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowengine_activity_dispatch_total",
			Help: "Activity handler invocations, by activity type and outcome.",
		}, []string{"activity_type", "outcome"}),
		dispatchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowengine_activity_dispatch_seconds",
			Help:    "Activity handler latency in seconds, by activity type.",
			Buckets: prometheus.DefBuckets,
		}, []string{"activity_type"}),
		executionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "flowengine_executions_total",
			Help: "Executions reaching a terminal state, by status.",
		}, []string{"status"}),
	}
}

func (p *Prom) AdmissionResult(tier, outcome string) {
	p.admissionTotal.WithLabelValues(tier, outcome).Inc()
}

func (p *Prom) SetQueueDepth(tier string, depth int) {
	p.queueDepth.WithLabelValues(tier).Set(float64(depth))
}

func (p *Prom) DispatchResult(activityType, outcome string, seconds float64) {
	p.dispatchTotal.WithLabelValues(activityType, outcome).Inc()
	p.dispatchSeconds.WithLabelValues(activityType).Observe(seconds)
}

func (p *Prom) ExecutionTerminal(status string) {
	p.executionTotal.WithLabelValues(status).Inc()
}
