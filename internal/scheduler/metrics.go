// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements §4.6: counters for node count, muted nodes, and
// per-tick wall time, exported through github.com/prometheus/client_golang
// rather than hand-rolled counters, matching the rest of the domain stack's
// preference for real client libraries over ad hoc instrumentation.
type Metrics struct {
	NodeCount    prometheus.Gauge
	MutedNodes   prometheus.Gauge
	TickWallTime prometheus.Histogram
}

// NewMetrics builds and registers a Metrics set against reg. Passing a
// fresh prometheus.NewRegistry() is recommended for tests, so that repeated
// scheduler construction within a test binary does not panic on duplicate
// registration against prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rca_scheduler",
			Name:      "graph_nodes_total",
			Help:      "Total number of tasklets in the scheduled graph.",
		}),
		MutedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rca_scheduler",
			Name:      "muted_nodes",
			Help:      "Number of tasklets that emitted an empty flow unit on the most recent tick.",
		}),
		TickWallTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rca_scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of a single scheduler tick.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.NodeCount, m.MutedNodes, m.TickWallTime)
	}
	return m
}
