// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// InstanceLookup resolves an aggregatorInstanceId to its tenant and
// capabilities, per SPEC_FULL.md §4.A rule 6. It is satisfied by the
// WorkflowStore/connector layer; kept narrow here so the validator does
// not depend on the full store interface.
type InstanceLookup interface {
	LookupInstance(ctx context.Context, tenantID, instanceID string) (capabilities []string, ok bool, err error)
}

// Result is the outcome of validating a definition.
type Result struct {
	Valid               bool     `json:"valid"`
	Errors              []string `json:"errors"`
	Warnings            []string `json:"warnings"`
	ActivitiesChecked   int      `json:"activitiesChecked"`
	AggregatorsVerified []string `json:"aggregatorsVerified"`
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *Result) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate runs every rule in SPEC_FULL.md §4.A against def, in order,
// collecting all failures rather than failing fast.
func Validate(ctx context.Context, tenantID string, def Definition, instances InstanceLookup) *Result {
	res := &Result{Valid: true, ActivitiesChecked: len(def.Activities)}

	activityIDs := checkUniqueIDs(res, "activity", activityIDList(def.Activities))
	stepIDs := checkUniqueIDs(res, "step", stepIDList(def.Steps))

	checkReferences(res, def, activityIDs, stepIDs)
	checkCycles(res, def)
	checkActivityConfigs(res, def)
	checkResourceExistence(ctx, res, tenantID, def, instances)
	checkSchedules(res, def)

	return res
}

func activityIDList(as []Activity) []string {
	ids := make([]string, len(as))
	for i, a := range as {
		ids[i] = a.ID
	}
	return ids
}

func stepIDList(ss []Step) []string {
	ids := make([]string, len(ss))
	for i, s := range ss {
		ids[i] = s.ID
	}
	return ids
}

// checkUniqueIDs implements rule 1 and returns the set of seen ids.
func checkUniqueIDs(res *Result, kind string, ids []string) map[string]bool {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			res.addError("%s id must not be empty", kind)
			continue
		}
		if seen[id] {
			res.addError("duplicate %s id %q", kind, id)
			continue
		}
		seen[id] = true
	}
	return seen
}

// checkReferences implements rules 2 and 3.
func checkReferences(res *Result, def Definition, activityIDs, stepIDs map[string]bool) {
	referenced := make(map[string]bool, len(def.Activities))

	for _, s := range def.Steps {
		if !activityIDs[s.ActivityID] {
			res.addError("step %q references unknown activity %q", s.ID, s.ActivityID)
			continue
		}
		referenced[s.ActivityID] = true
		for _, dep := range s.DependsOn {
			if !stepIDs[dep] {
				res.addError("step %q depends on unknown step %q", s.ID, dep)
			}
		}
	}

	for _, a := range def.Activities {
		if !referenced[a.ID] {
			res.addWarning("activity %q is not referenced by any step", a.ID)
		}
	}
}

// checkCycles implements rule 4: DFS colouring over the step graph.
func checkCycles(res *Result, def Definition) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(def.Steps))
	byID := make(map[string]Step, len(def.Steps))
	for _, s := range def.Steps {
		byID[s.ID] = s
		color[s.ID] = white
	}

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue // unknown dep already reported by checkReferences
			}
			switch color[dep] {
			case gray:
				res.addError("Circular dependency detected involving step %q", id)
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, s := range def.Steps {
		if color[s.ID] == white {
			if visit(s.ID) {
				return
			}
		}
	}
}

// checkActivityConfigs implements rule 5: kind-specific config shape.
func checkActivityConfigs(res *Result, def Definition) {
	for _, a := range def.Activities {
		switch a.Type {
		case ActivityExtract:
			var c ExtractConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid extract config: %v", a.ID, err)
				continue
			}
			if c.AggregatorInstanceID == "" || c.Table == "" || len(c.Columns) == 0 {
				res.addError("activity %q: extract config requires aggregatorInstanceId, table, columns", a.ID)
			}
		case ActivityTransform:
			var c TransformConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid transform config: %v", a.ID, err)
				continue
			}
			if strings.TrimSpace(c.Code) == "" {
				res.addError("activity %q: transform config requires code", a.ID)
			}
		case ActivityLoad:
			var c LoadConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid load config: %v", a.ID, err)
				continue
			}
			if c.AggregatorInstanceID == "" && c.SDKID == "" {
				res.addError("activity %q: load config requires aggregatorInstanceId or sdkId", a.ID)
			}
			switch c.Mode {
			case LoadInsert, LoadUpsert, LoadCreate:
			default:
				res.addError("activity %q: load config has invalid mode %q", a.ID, c.Mode)
			}
		case ActivityFilter:
			var c FilterConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid filter config: %v", a.ID, err)
				continue
			}
			if c.InputActivityID == "" || strings.TrimSpace(c.Condition) == "" {
				res.addError("activity %q: filter config requires inputActivityId and condition", a.ID)
			}
		case ActivityJoin:
			var c JoinConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid join config: %v", a.ID, err)
				continue
			}
			if c.LeftActivityID == "" || c.RightActivityID == "" || len(c.JoinKey) == 0 {
				res.addError("activity %q: join config requires leftActivityId, rightActivityId, joinKey", a.ID)
			}
			switch c.Type {
			case JoinInner, JoinLeft, JoinRight, JoinFull:
			default:
				res.addError("activity %q: join config has invalid type %q", a.ID, c.Type)
			}
		case ActivityMiniConnectorSrc:
			var c MiniConnectorSourceConfig
			if err := json.Unmarshal(a.Config, &c); err != nil {
				res.addError("activity %q: invalid mini-connector-source config: %v", a.ID, err)
				continue
			}
			if c.ConnectorID == "" || c.Table == "" {
				res.addError("activity %q: mini-connector-source config requires connectorId and table", a.ID)
			}
		case ActivityCloudConnectorSrc, ActivityCloudConnectorSink:
			// Opaque to the core validator beyond requiring non-empty config;
			// per-connector shape is enforced by the ConnectorDriver.
			if len(a.Config) == 0 {
				res.addError("activity %q: %s requires a config object", a.ID, a.Type)
			}
		default:
			res.addError("activity %q: unknown activity type %q", a.ID, a.Type)
		}
	}
}

// checkResourceExistence implements rule 6.
func checkResourceExistence(ctx context.Context, res *Result, tenantID string, def Definition, instances InstanceLookup) {
	if instances == nil {
		return
	}
	seen := make(map[string]bool)
	for _, a := range def.Activities {
		instanceID, isLoad := instanceIDOf(a)
		if instanceID == "" || seen[instanceID] {
			continue
		}
		seen[instanceID] = true

		caps, ok, err := instances.LookupInstance(ctx, tenantID, instanceID)
		if err != nil {
			res.addError("activity %q: failed to look up instance %q: %v", a.ID, instanceID, err)
			continue
		}
		if !ok {
			res.addError("activity %q: instance %q not found for tenant", a.ID, instanceID)
			continue
		}
		res.AggregatorsVerified = append(res.AggregatorsVerified, instanceID)

		if isLoad && !containsString(caps, "write") {
			res.addWarning("activity %q: instance %q does not declare write capability", a.ID, instanceID)
		}
	}
}

func instanceIDOf(a Activity) (id string, isLoad bool) {
	switch a.Type {
	case ActivityExtract:
		var c ExtractConfig
		_ = json.Unmarshal(a.Config, &c)
		return c.AggregatorInstanceID, false
	case ActivityLoad:
		var c LoadConfig
		_ = json.Unmarshal(a.Config, &c)
		return c.AggregatorInstanceID, true
	default:
		return "", false
	}
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}

// checkSchedules implements rule 7. Activity config may carry a "cron"
// field; when present it must parse as a standard 5- or 6-field
// expression.
func checkSchedules(res *Result, def Definition) {
	for _, a := range def.Activities {
		var withCron struct {
			Cron string `json:"cron"`
		}
		if err := json.Unmarshal(a.Config, &withCron); err != nil || withCron.Cron == "" {
			continue
		}
		fields := strings.Fields(withCron.Cron)
		if len(fields) != 5 && len(fields) != 6 {
			res.addError("activity %q: cron expression %q must have 5 or 6 fields", a.ID, withCron.Cron)
			continue
		}
		parser := cron.NewParser(cronParserOptions(len(fields)))
		if _, err := parser.Parse(withCron.Cron); err != nil {
			res.addError("activity %q: invalid cron expression %q: %v", a.ID, withCron.Cron, err)
		}
	}
}

func cronParserOptions(numFields int) cron.ParseOption {
	if numFields == 6 {
		return cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow
	}
	return cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow
}
