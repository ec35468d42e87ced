// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InfoCollector is a custom prometheus.Collector reporting build version
// and process uptime as pull-based gauges, computed at scrape time
// rather than pushed on every change.
type InfoCollector struct {
	version   string
	startedAt time.Time

	info   *prometheus.Desc
	uptime *prometheus.Desc
}

// NewInfoCollector builds an InfoCollector stamped with version and the
// current time as the process start. Register it with reg.MustRegister.
func NewInfoCollector(version string) *InfoCollector {
	return &InfoCollector{
		version:   version,
		startedAt: time.Now(),
		info: prometheus.NewDesc(
			"flowengine_info", "Build version, always 1.",
			[]string{"version"}, nil,
		),
		uptime: prometheus.NewDesc(
			"flowengine_uptime_seconds", "Seconds since the process started.",
			nil, nil,
		),
	}
}

func (c *InfoCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.info
	ch <- c.uptime
}

func (c *InfoCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.info, prometheus.GaugeValue, 1, c.version)
	ch <- prometheus.MustNewConstMetric(c.uptime, prometheus.GaugeValue, time.Since(c.startedAt).Seconds())
}
