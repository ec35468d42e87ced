// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vectormesh/flowengine/internal/backoff"
)

const (
	defaultHeartbeatTimeout = 90 * time.Second
	heartbeatSweepInterval  = 15 * time.Second
	retrySweepInterval      = 1 * time.Second
	retryInitialInterval    = 5 * time.Second
	maxCommandRetries       = 3
	writeTimeout            = 10 * time.Second
)

// ErrCommandTimeout is returned by dispatchCommandAndWait when no
// command:response arrives within the caller's timeout.
var ErrCommandTimeout = errors.New("gateway: command timed out")

// Option configures a Gateway returned by New.
type Option func(*Gateway)

// WithHeartbeatTimeout overrides the 90s default staleness threshold.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(g *Gateway) { g.heartbeatTimeout = d }
}

// Gateway is the Remote-Agent Gateway: session registry, pending-command
// table, per-tenant offline queues, and the background sweepers that
// keep them honest.
type Gateway struct {
	connectors       ConnectorDirectory
	logger           *zap.Logger
	heartbeatTimeout time.Duration
	retryPolicy      *backoff.LinearBackoffPolicy

	mu                  sync.RWMutex
	sessionsBySocket    map[string]*AgentSession
	sessionsByConnector map[string]*AgentSession
	sessionsByTenant    map[string][]*AgentSession

	pendingMu sync.Mutex
	pending   map[string]*PendingCommand

	waitersMu sync.Mutex
	waiters   map[string]chan waiterResult

	offlineMu sync.Mutex
	offline   map[string][]QueuedCommand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type waiterResult struct {
	payload json.RawMessage
}

// New builds a Gateway over the given connector directory.
func New(connectors ConnectorDirectory, logger *zap.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		connectors:          connectors,
		logger:              logger,
		heartbeatTimeout:    defaultHeartbeatTimeout,
		retryPolicy:         &backoff.LinearBackoffPolicy{InitialInterval: retryInitialInterval, Increment: retryInitialInterval, MaxInterval: 30 * time.Second},
		sessionsBySocket:    make(map[string]*AgentSession),
		sessionsByConnector: make(map[string]*AgentSession),
		sessionsByTenant:    make(map[string][]*AgentSession),
		pending:             make(map[string]*PendingCommand),
		waiters:             make(map[string]chan waiterResult),
		offline:             make(map[string][]QueuedCommand),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the heartbeat and retry sweepers. It returns
// immediately; the sweepers stop when ctx is cancelled or Stop is
// called, mirroring the teacher's Service.Start/Service.Stop lifecycle.
func (g *Gateway) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel

	g.wg.Add(2)
	go g.runSweeper(ctx, heartbeatSweepInterval, g.heartbeatSweep)
	go g.runSweeper(ctx, retrySweepInterval, g.retrySweep)
	return nil
}

// Stop cancels the sweepers and waits for them to exit.
func (g *Gateway) Stop(_ context.Context) error {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
	return nil
}

func (g *Gateway) runSweeper(ctx context.Context, interval time.Duration, fn func()) {
	defer g.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// registerSession records sess, rejecting it if a session already
// exists for the same connectorId (session lifecycle step 3).
func (g *Gateway) registerSession(sess *AgentSession) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.sessionsByConnector[sess.ConnectorID]; exists {
		return ErrDuplicateSession
	}
	g.sessionsBySocket[sess.SocketID] = sess
	g.sessionsByConnector[sess.ConnectorID] = sess
	g.sessionsByTenant[sess.TenantID] = append(g.sessionsByTenant[sess.TenantID], sess)
	return nil
}

func (g *Gateway) unregisterLocked(sess *AgentSession) {
	delete(g.sessionsBySocket, sess.SocketID)
	if g.sessionsByConnector[sess.ConnectorID] == sess {
		delete(g.sessionsByConnector, sess.ConnectorID)
	}
	list := g.sessionsByTenant[sess.TenantID]
	for i, s := range list {
		if s == sess {
			g.sessionsByTenant[sess.TenantID] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func (g *Gateway) removeSession(sess *AgentSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.unregisterLocked(sess)
}

func (g *Gateway) findSession(tenantID, connectorID string) *AgentSession {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if connectorID != "" {
		return g.sessionsByConnector[connectorID]
	}
	sessions := g.sessionsByTenant[tenantID]
	if len(sessions) == 0 {
		return nil
	}
	return sessions[0]
}

// SessionCount reports the number of live sessions for a tenant, for
// diagnostics/metrics.
func (g *Gateway) SessionCount(tenantID string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessionsByTenant[tenantID])
}

func newCommandID(verb string) string {
	return fmt.Sprintf("%s_%d_%s", verb, time.Now().UnixMilli(), uuid.NewString()[:8])
}

type commandMessage struct {
	Type        string          `json:"type"`
	CommandID   string          `json:"commandId"`
	ExecutionID string          `json:"executionId"`
	ActivityID  string          `json:"activityId"`
	Operation   string          `json:"operation"`
	Payload     json.RawMessage `json:"payload"`
}

// sendCommand writes a command frame over sess's websocket connection.
// writeMu serialises writes since the underlying connection, like
// gorilla/websocket's, is not safe for concurrent writers.
func (g *Gateway) sendCommand(sess *AgentSession, commandID, verb string, payload json.RawMessage) error {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	return wsjsonWrite(ctx, sess.conn, commandMessage{
		Type:        "command",
		CommandID:   commandID,
		ExecutionID: commandID,
		// ActivityID mirrors commandId: the RemoteQuerier interface the
		// dispatcher calls through does not thread a separate activity
		// id down to mini-connector-source commands.
		ActivityID: commandID,
		Operation:  verb,
		Payload:    payload,
	})
}

func (g *Gateway) enqueueOffline(tenantID string, qc QueuedCommand) {
	g.offlineMu.Lock()
	defer g.offlineMu.Unlock()
	g.offline[tenantID] = append(g.offline[tenantID], qc)
}

// dispatchCommand implements SPEC_FULL.md §4.E's dispatchCommand: it
// always records a PendingCommand and returns a commandId, sending over
// the live session if one exists or enqueueing offline otherwise.
func (g *Gateway) dispatchCommand(tenantID, connectorID, verb string, payload json.RawMessage) (commandID string, sent bool) {
	commandID = newCommandID(verb)
	pc := &PendingCommand{
		CommandID:   commandID,
		TenantID:    tenantID,
		ConnectorID: connectorID,
		Verb:        verb,
		Payload:     payload,
		CreatedAt:   time.Now(),
		Status:      StatusPending,
	}
	g.pendingMu.Lock()
	g.pending[commandID] = pc
	g.pendingMu.Unlock()

	sess := g.findSession(tenantID, connectorID)
	if sess == nil || g.sendCommand(sess, commandID, verb, payload) != nil {
		g.enqueueOffline(tenantID, QueuedCommand{
			CommandID: commandID, TenantID: tenantID, ConnectorID: connectorID,
			Verb: verb, Payload: payload, EnqueuedAt: time.Now(),
		})
		return commandID, false
	}

	g.pendingMu.Lock()
	pc.Status = StatusSent
	pc.Attempts++
	g.pendingMu.Unlock()
	return commandID, true
}

// dispatchCommandAndWait dispatches verb/payload and blocks for the
// correlated command:response, per §4.E's request/response correlation.
// A command queued offline (no session available yet) still installs a
// waiter: offline-drain redispatches under the same commandId once the
// agent reconnects, and the original waiter resolves normally.
func (g *Gateway) dispatchCommandAndWait(ctx context.Context, tenantID, connectorID, verb string, payload json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	commandID, _ := g.dispatchCommand(tenantID, connectorID, verb, payload)

	ch := make(chan waiterResult, 1)
	g.waitersMu.Lock()
	g.waiters[commandID] = ch
	g.waitersMu.Unlock()
	defer func() {
		g.waitersMu.Lock()
		delete(g.waiters, commandID)
		g.waitersMu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.payload, nil
	case <-timer.C:
		return nil, ErrCommandTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Gateway) resolveWaiter(commandID string, payload json.RawMessage) {
	g.pendingMu.Lock()
	if pc, ok := g.pending[commandID]; ok {
		pc.Status = StatusCompleted
	}
	g.pendingMu.Unlock()

	g.waitersMu.Lock()
	ch, ok := g.waiters[commandID]
	g.waitersMu.Unlock()
	if ok {
		ch <- waiterResult{payload: payload}
	}
}

// drainOffline re-dispatches every command queued for tenantID under
// its original commandId, per §4.E's offline-drain semantics. Commands
// that still cannot be delivered return to the queue.
func (g *Gateway) drainOffline(tenantID string) {
	g.offlineMu.Lock()
	queue := g.offline[tenantID]
	delete(g.offline, tenantID)
	g.offlineMu.Unlock()

	for _, qc := range queue {
		sess := g.findSession(qc.TenantID, qc.ConnectorID)
		if sess == nil || g.sendCommand(sess, qc.CommandID, qc.Verb, qc.Payload) != nil {
			g.enqueueOffline(tenantID, qc)
			continue
		}
		g.pendingMu.Lock()
		if pc, ok := g.pending[qc.CommandID]; ok {
			pc.Status = StatusSent
			pc.Attempts++
		}
		g.pendingMu.Unlock()
	}
}

func (g *Gateway) heartbeatSweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sess := range g.sessionsBySocket {
		if sess.staleSince(g.heartbeatTimeout) {
			g.unregisterLocked(sess)
			_ = sess.conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
			g.logger.Info("gateway: session stale, removed",
				zap.String("tenant_id", sess.TenantID), zap.String("connector_id", sess.ConnectorID))
		}
	}
}

// retrySweep implements §4.E's retry sweeper: linear backoff
// (attempts × retryInitialInterval) via the teacher's
// LinearBackoffPolicy, bounded by maxCommandRetries rather than the
// policy's own MaxRetries field, since the sweeper polls on a fixed
// tick instead of blocking on the policy's computed interval.
func (g *Gateway) retrySweep() {
	g.pendingMu.Lock()
	var toRetry []*PendingCommand
	var toFail []*PendingCommand
	for _, pc := range g.pending {
		if pc.Status != StatusSent {
			continue
		}
		if pc.Attempts >= maxCommandRetries {
			toFail = append(toFail, pc)
			continue
		}
		interval, _ := g.retryPolicy.ComputeNextInterval(pc.Attempts-1, 0, nil)
		if time.Since(pc.CreatedAt) > interval {
			toRetry = append(toRetry, pc)
		}
	}
	for _, pc := range toFail {
		pc.Status = StatusFailed
	}
	g.pendingMu.Unlock()

	for _, pc := range toRetry {
		sess := g.findSession(pc.TenantID, pc.ConnectorID)
		if sess == nil {
			continue
		}
		if g.sendCommand(sess, pc.CommandID, pc.Verb, pc.Payload) != nil {
			continue
		}
		g.pendingMu.Lock()
		pc.Attempts++
		g.pendingMu.Unlock()
	}
}

// PendingStatusOf reports a command's current status, for tests and
// diagnostics.
func (g *Gateway) PendingStatusOf(commandID string) (PendingStatus, bool) {
	g.pendingMu.Lock()
	defer g.pendingMu.Unlock()
	pc, ok := g.pending[commandID]
	if !ok {
		return "", false
	}
	return pc.Status, true
}
