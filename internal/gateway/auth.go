// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/vectormesh/flowengine/internal/connector"
)

// ErrMalformedAPIKey is returned when the presented apiKey does not
// match the vmc_<tenantId>_<opaque1>_<opaque2> shape.
var ErrMalformedAPIKey = errors.New("gateway: malformed apiKey")

// ErrUnauthorized is returned when no MINI connector of the parsed
// tenant has a stored hash matching the presented apiKey.
var ErrUnauthorized = errors.New("gateway: apiKey does not match any connector")

// ErrDuplicateSession is returned when a session already exists for the
// matched connectorId.
var ErrDuplicateSession = errors.New("gateway: session already exists for connector")

// parseAPIKey splits a vmc_<tenantId>_<opaque1>_<opaque2> key into its
// tenantId, rejecting any shape that doesn't carry exactly four
// underscore-separated fields with the literal "vmc" prefix.
func parseAPIKey(key string) (string, bool) {
	parts := strings.Split(key, "_")
	if len(parts) != 4 || parts[0] != "vmc" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// authenticate implements SPEC_FULL.md §4.E's session lifecycle steps
// 1-2: parse the tenantId prefix, then bcrypt-compare the full key
// against every MINI connector's stored hashes for that tenant.
func (g *Gateway) authenticate(_ context.Context, apiKey string) (tenantID, connectorID string, err error) {
	tenantID, ok := parseAPIKey(apiKey)
	if !ok {
		return "", "", ErrMalformedAPIKey
	}

	candidates, err := g.connectors.ConnectorsByTenant(tenantID, connector.TypeMini)
	if err != nil {
		return "", "", err
	}

	for _, c := range candidates {
		for _, hash := range c.APIKeyHashes {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil {
				return tenantID, c.ID, nil
			}
		}
	}
	return "", "", ErrUnauthorized
}
