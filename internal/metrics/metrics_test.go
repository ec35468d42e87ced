// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProm_RecordsAdmissionDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)

	p.AdmissionResult("free", "admitted")
	p.AdmissionResult("free", "rate_limited")
	p.SetQueueDepth("free", 3)
	p.DispatchResult("extract", "success", 0.01)
	p.ExecutionTerminal("COMPLETED")

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["flowengine_admission_decisions_total"])
	assert.True(t, names["flowengine_tier_queue_depth"])
	assert.True(t, names["flowengine_activity_dispatch_total"])
	assert.True(t, names["flowengine_activity_dispatch_seconds"])
	assert.True(t, names["flowengine_executions_total"])
}

func TestNoop_DoesNotPanic(t *testing.T) {
	var n Noop
	n.AdmissionResult("free", "admitted")
	n.SetQueueDepth("free", 0)
	n.DispatchResult("extract", "success", 0.1)
	n.ExecutionTerminal("COMPLETED")
}

func TestInfoCollector_ReportsVersionAndUptime(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewInfoCollector("1.2.3"))

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawInfo, sawUptime bool
	for _, f := range families {
		switch f.GetName() {
		case "flowengine_info":
			sawInfo = true
			require.Len(t, f.Metric, 1)
			assert.Equal(t, float64(1), f.Metric[0].GetGauge().GetValue())
			require.Len(t, f.Metric[0].Label, 1)
			assert.Equal(t, "1.2.3", f.Metric[0].Label[0].GetValue())
		case "flowengine_uptime_seconds":
			sawUptime = true
			require.Len(t, f.Metric, 1)
			assert.GreaterOrEqual(t, f.Metric[0].GetGauge().GetValue(), float64(0))
		}
	}
	assert.True(t, sawInfo)
	assert.True(t, sawUptime)
}
