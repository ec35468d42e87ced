// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import "github.com/vectormesh/flowengine/internal/connector"

// ConnectorDirectory resolves the candidate MINI connectors for a
// tenant so the gateway can bcrypt-match a presented apiKey against
// their stored hashes, satisfied by connector.Registry.
type ConnectorDirectory interface {
	ConnectorsByTenant(tenantID string, typ connector.Type) ([]connector.Connector, error)
}
