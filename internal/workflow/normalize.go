// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package workflow

import "fmt"

// Normalize applies the deterministic authoring-mistake repairs from
// SPEC_FULL.md §4.A before a definition is hashed and stored: it
// synthesizes one step per activity when steps is empty, and rewrites
// any dependsOn entry that names an activityId (rather than a stepId)
// to the step id that owns that activity.
func Normalize(def Definition) Definition {
	out := Definition{
		Activities: def.Activities,
		Steps:      append([]Step(nil), def.Steps...),
	}

	if len(out.Steps) == 0 {
		out.Steps = synthesizeSteps(out.Activities)
	}

	activityToStep := make(map[string]string, len(out.Steps))
	for _, s := range out.Steps {
		activityToStep[s.ActivityID] = s.ID
	}
	stepIDs := make(map[string]bool, len(out.Steps))
	for _, s := range out.Steps {
		stepIDs[s.ID] = true
	}

	for i, s := range out.Steps {
		fixed := make([]string, len(s.DependsOn))
		for j, dep := range s.DependsOn {
			if !stepIDs[dep] {
				if stepID, ok := activityToStep[dep]; ok {
					dep = stepID
				}
			}
			fixed[j] = dep
		}
		out.Steps[i].DependsOn = fixed
	}

	return out
}

func synthesizeSteps(activities []Activity) []Step {
	seen := make(map[string]int)
	steps := make([]Step, 0, len(activities))
	for _, a := range activities {
		id := fmt.Sprintf("step-%s", a.ID)
		seen[id]++
		if n := seen[id]; n > 1 {
			id = fmt.Sprintf("%s-%d", id, n)
		}
		steps = append(steps, Step{ID: id, ActivityID: a.ID})
	}
	return steps
}
