// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/vectormesh/flowengine/internal/flowconfig"
	"github.com/vectormesh/flowengine/internal/metrics"
)

// defaultLimits mirrors SPEC_FULL.md §4.C's tier default table; limitsFor
// uses it for every tenant that has no per-tenant override.
var defaultLimits = map[Tier]Limits{
	TierFree:       {MaxConcurrentJobs: 5, MaxJobsPerHour: 100, WorkerConcurrency: 5},
	TierStandard:   {MaxConcurrentJobs: 20, MaxJobsPerHour: 1000, WorkerConcurrency: 20},
	TierEnterprise: {MaxConcurrentJobs: 100, MaxJobsPerHour: 10000, WorkerConcurrency: 100},
}

// TenantAssignment is the tier and optional limit override for one tenant.
type TenantAssignment struct {
	Tier     Tier
	Override *Limits
}

// TenantDirectory resolves a tenantId to its tier assignment. Production
// wiring reads this from the tenant/billing table; tests use a simple map.
type TenantDirectory interface {
	Assignment(tenantID string) TenantAssignment
}

type hourWindow struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

func (w *hourWindow) increment(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now.Sub(w.windowStart) >= time.Hour {
		w.windowStart = now
		w.count = 0
	}
	w.count++
	return w.count
}

// HourlyLimiter counts admissions for a tenant within the current
// rolling hour and returns the count including this call. Controller
// defaults to an in-process implementation; SetHourlyLimiter swaps in a
// shared one (RedisLimiter) so the hourly cap holds across replicas of
// the control plane instead of resetting per process.
type HourlyLimiter interface {
	Increment(ctx context.Context, tenantID string) (int, error)
}

// localHourlyLimiter is the zero-dependency default: one hourWindow per
// tenant, process-local.
type localHourlyLimiter struct {
	mu      sync.Mutex
	windows map[string]*hourWindow
}

func newLocalHourlyLimiter() *localHourlyLimiter {
	return &localHourlyLimiter{windows: make(map[string]*hourWindow)}
}

func (l *localHourlyLimiter) Increment(_ context.Context, tenantID string) (int, error) {
	l.mu.Lock()
	w, ok := l.windows[tenantID]
	if !ok {
		w = &hourWindow{windowStart: time.Now()}
		l.windows[tenantID] = w
	}
	l.mu.Unlock()
	return w.increment(time.Now()), nil
}

// Controller is the tiered admission gate of SPEC_FULL.md §4.C. It
// enforces per-tenant hourly rate limits and concurrency (tier defaults
// with per-tenant overrides), and a tier-isolated backlog limit.
type Controller struct {
	directory TenantDirectory

	mu        sync.Mutex
	semas     map[string]*semaphore.Weighted // per-tenant concurrency
	active    map[string]*int64              // mirrors semas' held weight, for the utilisation check
	tierQueue map[Tier]*tierQueue

	limiter  HourlyLimiter
	recorder metrics.Recorder
}

// SetHourlyLimiter swaps the hourly rate limiter, for cmd/flowengine to
// install a RedisLimiter when flowconfig.Config.RedisAddr is set so the
// hourly cap is shared across every replica rather than reset per
// process. Controllers built via FromConfig default to an in-process
// limiter.
func (c *Controller) SetHourlyLimiter(l HourlyLimiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l != nil {
		c.limiter = l
	}
}

// SetRecorder wires a metrics.Recorder into the controller, for
// cmd/flowengine to call once after FromConfig returns. Admission
// decisions made before SetRecorder is called are simply unrecorded
// (the zero value's Noop field still defaults to metrics.Noop{}).
func (c *Controller) SetRecorder(r metrics.Recorder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorder = r
}

func (c *Controller) recorderOrNoop() metrics.Recorder {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recorder == nil {
		return metrics.Noop{}
	}
	return c.recorder
}

// FromConfig builds a Controller that resolves tenants through directory.
// From cfg.Tiers it reads only each tier's WorkerConcurrency, to size that
// tier's queue (falling back to defaultLimits for any tier absent from the
// config file); the admission limits themselves always come from
// defaultLimits or the tenant's override, not from cfg.Tiers.
func FromConfig(cfg *flowconfig.Config, directory TenantDirectory) *Controller {
	c := &Controller{
		directory: directory,
		semas:     make(map[string]*semaphore.Weighted),
		active:    make(map[string]*int64),
		tierQueue: make(map[Tier]*tierQueue),
		limiter:   newLocalHourlyLimiter(),
		recorder:  metrics.Noop{},
	}
	for _, tier := range []Tier{TierFree, TierStandard, TierEnterprise} {
		limits := defaultLimits[tier]
		if cfg != nil {
			if tc, ok := cfg.Tiers[tierConfigKey(tier)]; ok {
				limits = Limits{
					MaxConcurrentJobs: tc.MaxConcurrentJobs,
					MaxJobsPerHour:    tc.MaxJobsPerHour,
					WorkerConcurrency: tc.WorkerConcurrency,
				}
			}
		}
		c.tierQueue[tier] = newTierQueue(limits.WorkerConcurrency)
	}
	return c
}

func tierConfigKey(t Tier) string {
	switch t {
	case TierFree:
		return "free"
	case TierStandard:
		return "standard"
	default:
		return "enterprise"
	}
}

func (c *Controller) limitsFor(tenantID string) (Tier, Limits) {
	assignment := c.directory.Assignment(tenantID)
	limits := defaultLimits[assignment.Tier]
	if assignment.Override != nil {
		limits = *assignment.Override
	}
	return assignment.Tier, limits
}

func (c *Controller) semaphoreFor(tenantID string, weight int64) *semaphore.Weighted {
	c.mu.Lock()
	defer c.mu.Unlock()
	sem, ok := c.semas[tenantID]
	if !ok {
		sem = semaphore.NewWeighted(weight)
		c.semas[tenantID] = sem
	}
	return sem
}

func (c *Controller) activeCounterFor(tenantID string) *int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.active[tenantID]
	if !ok {
		n = new(int64)
		c.active[tenantID] = n
	}
	return n
}

func (c *Controller) limiterOrLocal() HourlyLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limiter
}

// Ticket represents an admitted slot; Release must be called exactly
// once, typically by the orchestrator when the execution reaches a
// terminal state.
type Ticket struct {
	tenantID string
	tier     Tier
	sem      *semaphore.Weighted
	active   *int64
}

// Release frees the concurrency slot held by t.
func (t *Ticket) Release() {
	atomic.AddInt64(t.active, -1)
	t.sem.Release(1)
}

// Tier reports the tier this ticket was admitted under, for routing the
// job onto that tier's FIFO queue via Enqueue.
func (t *Ticket) Tier() Tier {
	return t.tier
}

// Admit runs the three ordered checks from SPEC_FULL.md §4.C and, on
// success, returns a Ticket holding the tenant's concurrency slot. It does
// not enqueue anything; the caller submits the job with Enqueue, using
// Ticket.Tier. Utilisation above 90% of
// maxConcurrentJobs is rejected with the same AT_CAPACITY reason as a
// full semaphore, per SPEC_FULL.md §4.C, so clients back off before true
// saturation.
func (c *Controller) Admit(ctx context.Context, tenantID string) (*Ticket, error) {
	tier, limits := c.limitsFor(tenantID)

	recorder := c.recorderOrNoop()

	count, err := c.limiterOrLocal().Increment(ctx, tenantID)
	if err != nil || count > limits.MaxJobsPerHour {
		recorder.AdmissionResult(string(tier), "rate_limited")
		return nil, &RejectedError{Reason: ReasonRateLimited, Tenant: tenantID, Tier: tier}
	}

	active := c.activeCounterFor(tenantID)
	if limits.MaxConcurrentJobs > 0 && float64(atomic.LoadInt64(active))/float64(limits.MaxConcurrentJobs) > 0.9 {
		recorder.AdmissionResult(string(tier), "at_capacity")
		return nil, &RejectedError{Reason: ReasonAtCapacity, Tenant: tenantID, Tier: tier}
	}

	sem := c.semaphoreFor(tenantID, int64(limits.MaxConcurrentJobs))
	if !sem.TryAcquire(1) {
		recorder.AdmissionResult(string(tier), "at_capacity")
		return nil, &RejectedError{Reason: ReasonAtCapacity, Tenant: tenantID, Tier: tier}
	}
	atomic.AddInt64(active, 1)

	queue := c.tierQueue[tier]
	if queue != nil && queue.Depth() >= limits.MaxConcurrentJobs*10 {
		atomic.AddInt64(active, -1)
		sem.Release(1)
		recorder.AdmissionResult(string(tier), "backlog")
		return nil, &RejectedError{Reason: ReasonBacklog, Tenant: tenantID, Tier: tier}
	}

	recorder.AdmissionResult(string(tier), "admitted")
	return &Ticket{tenantID: tenantID, tier: tier, sem: sem, active: active}, nil
}

// Enqueue places an opaque job token onto the tier's FIFO queue, to be
// drained by that tier's worker pool at WorkerConcurrency. The caller
// (orchestrator) supplies the function that actually runs the execution.
func (c *Controller) Enqueue(tier Tier, run func(context.Context)) {
	if q, ok := c.tierQueue[tier]; ok {
		q.Submit(run)
		c.recorderOrNoop().SetQueueDepth(string(tier), q.Depth())
	}
}

// Close stops every tier queue's worker pool, waiting for in-flight jobs
// to finish. Call during process shutdown.
func (c *Controller) Close() {
	for _, q := range c.tierQueue {
		q.Close()
	}
}
