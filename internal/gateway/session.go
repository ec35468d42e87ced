// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func wsjsonWrite(ctx context.Context, conn *websocket.Conn, v any) error {
	return wsjson.Write(ctx, conn, v)
}

func wsjsonRead(ctx context.Context, conn *websocket.Conn, v any) error {
	return wsjson.Read(ctx, conn, v)
}

type authenticatedMessage struct {
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	TenantID    string    `json:"tenantId"`
	ConnectorID string    `json:"connectorId"`
	Timestamp   time.Time `json:"timestamp"`
}

// inboundEnvelope covers every message shape an agent can send: heartbeat,
// command:response, and schema:discovered.
type inboundEnvelope struct {
	Type        string          `json:"type"`
	CPUUsage    *float64        `json:"cpuUsage,omitempty"`
	MemoryUsage *float64        `json:"memoryUsage,omitempty"`
	Uptime      *float64        `json:"uptime,omitempty"`
	CommandID   string          `json:"commandId,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ServeAgent upgrades r to a websocket connection, authenticates the
// presented apiKey, and runs the session's read loop until disconnect.
// Mount it behind an HTTP route the agent dials, e.g. GET /agent/connect.
func (g *Gateway) ServeAgent(w http.ResponseWriter, r *http.Request) {
	apiKey := r.URL.Query().Get("apiKey")
	if apiKey == "" {
		apiKey = r.Header.Get("X-Api-Key")
	}

	tenantID, connectorID, err := g.authenticate(r.Context(), apiKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}

	sess := &AgentSession{
		SocketID:      uuid.NewString(),
		TenantID:      tenantID,
		ConnectorID:   connectorID,
		RemoteAddress: r.RemoteAddr,
		ConnectedAt:   time.Now(),
		UserAgent:     r.UserAgent(),
		conn:          conn,
	}
	sess.touchHeartbeat()

	if err := g.registerSession(sess); err != nil {
		_ = conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}

	ctx := r.Context()
	if err := wsjsonWrite(ctx, conn, authenticatedMessage{
		Type: "authenticated", Status: "ok", TenantID: tenantID, ConnectorID: connectorID, Timestamp: time.Now(),
	}); err != nil {
		g.removeSession(sess)
		conn.CloseNow()
		return
	}

	g.logger.Info("gateway: agent authenticated",
		zap.String("tenant_id", tenantID), zap.String("connector_id", connectorID))

	g.drainOffline(tenantID)

	g.readLoop(ctx, sess)

	g.removeSession(sess)
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

func (g *Gateway) readLoop(ctx context.Context, sess *AgentSession) {
	for {
		var env inboundEnvelope
		if err := wsjsonRead(ctx, sess.conn, &env); err != nil {
			g.logger.Info("gateway: session closed",
				zap.String("tenant_id", sess.TenantID), zap.String("connector_id", sess.ConnectorID), zap.Error(err))
			return
		}

		switch env.Type {
		case "heartbeat":
			sess.touchHeartbeat()
		case "command:response":
			g.resolveWaiter(env.CommandID, env.Response)
		case "schema:discovered":
			sess.setSchema(env.Schema)
		default:
			g.logger.Warn("gateway: unrecognised message type", zap.String("type", env.Type))
		}
	}
}
