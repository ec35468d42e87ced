// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Registry lookups that miss.
var ErrNotFound = errors.New("connector: not found")

// Registry is an in-memory directory of Connectors, AggregatorInstances,
// and FieldMappings, scoped by tenant. It satisfies
// workflow.InstanceLookup so the validator can check
// aggregatorInstanceId/capabilities without depending on this package's
// concrete types.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]map[string]Connector
	instances  map[string]map[string]AggregatorInstance
	mappings   map[string]map[string]FieldMapping
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[string]map[string]Connector),
		instances:  make(map[string]map[string]AggregatorInstance),
		mappings:   make(map[string]map[string]FieldMapping),
	}
}

func (r *Registry) PutConnector(c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.connectors[c.TenantID]
	if !ok {
		byID = make(map[string]Connector)
		r.connectors[c.TenantID] = byID
	}
	byID[c.ID] = c
}

func (r *Registry) PutInstance(inst AggregatorInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.instances[inst.TenantID]
	if !ok {
		byID = make(map[string]AggregatorInstance)
		r.instances[inst.TenantID] = byID
	}
	byID[inst.ID] = inst
}

func (r *Registry) PutMapping(m FieldMapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.mappings[m.TenantID]
	if !ok {
		byID = make(map[string]FieldMapping)
		r.mappings[m.TenantID] = byID
	}
	byID[m.ID] = m
}

func (r *Registry) GetConnector(tenantID, connectorID string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[tenantID][connectorID]
	if !ok {
		return Connector{}, ErrNotFound
	}
	return c, nil
}

func (r *Registry) GetInstance(tenantID, instanceID string) (AggregatorInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[tenantID][instanceID]
	if !ok {
		return AggregatorInstance{}, ErrNotFound
	}
	return inst, nil
}

func (r *Registry) GetMapping(tenantID, mappingID string) (FieldMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mappings[tenantID][mappingID]
	if !ok {
		return FieldMapping{}, ErrNotFound
	}
	return m, nil
}

// ConnectorsByTenant returns every connector of the given type owned by
// tenantID, for the gateway's apiKey-match-by-candidate auth flow.
func (r *Registry) ConnectorsByTenant(tenantID string, typ Type) ([]Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Connector
	for _, c := range r.connectors[tenantID] {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out, nil
}

// LookupInstance satisfies workflow.InstanceLookup.
func (r *Registry) LookupInstance(_ context.Context, tenantID, instanceID string) ([]string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[tenantID][instanceID]
	if !ok {
		return nil, false, nil
	}
	return inst.Capabilities, true, nil
}
