// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package gateway is the Remote-Agent Gateway of SPEC_FULL.md §4.E: a
// duplex websocket session per connected agent, authenticated by apiKey,
// kept alive by heartbeat, and used to dispatch query/write commands to
// MINI connectors with request/response correlation, retry, and offline
// queueing when no session is available.
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// PendingStatus is the lifecycle state of one dispatched command.
type PendingStatus string

const (
	StatusPending   PendingStatus = "pending"
	StatusSent      PendingStatus = "sent"
	StatusCompleted PendingStatus = "completed"
	StatusFailed    PendingStatus = "failed"
)

// AgentSession is one connected agent's live websocket session. At most
// one session exists per connectorId; multiple connectors per tenant are
// allowed.
type AgentSession struct {
	SocketID      string
	TenantID      string
	ConnectorID   string
	RemoteAddress string
	ConnectedAt   time.Time
	UserAgent     string

	mu            sync.Mutex
	lastHeartbeat time.Time
	schema        json.RawMessage

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *AgentSession) touchHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = time.Now()
}

func (s *AgentSession) staleSince(threshold time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastHeartbeat) > threshold
}

func (s *AgentSession) setSchema(schema json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schema = schema
}

// Schema returns the most recently pushed schema:discovered payload, or
// nil if the agent has never pushed one.
func (s *AgentSession) Schema() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schema
}

// PendingCommand tracks one in-flight dispatchCommand call from
// creation through completion, timeout, or retirement after
// maxCommandRetries.
type PendingCommand struct {
	CommandID   string
	TenantID    string
	ConnectorID string
	Verb        string
	Payload     json.RawMessage
	CreatedAt   time.Time
	Attempts    int
	Status      PendingStatus
}

// QueuedCommand is a command recorded in a tenant's offline queue
// because no agent session was available for its target when it was
// dispatched.
type QueuedCommand struct {
	CommandID   string
	TenantID    string
	ConnectorID string
	Verb        string
	Payload     json.RawMessage
	EnqueuedAt  time.Time
}
