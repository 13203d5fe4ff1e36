// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package scheduler is the Tick Executor (spec §4.4): it owns the
// ScheduledGraph built once by the Partitioner and drives one full
// evaluation pass per call to Run, with bounded concurrency from an
// injected worker pool, a monotonic tick counter with wraparound, and
// per-tick metrics.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/partition"
	"github.com/rca-engine/scheduler/internal/tasklet"
	"github.com/rca-engine/scheduler/internal/workerpool"
)

// ScheduledGraph is the immutable, leveled list of tasklets the constructor
// builds once and the scheduler reuses for every tick (spec §3).
type ScheduledGraph struct {
	Levels   [][]*tasklet.Tasklet
	Outbound *partition.RoutingMap
}

// FromPartitionResult adapts a partition.Result into a ScheduledGraph.
func FromPartitionResult(r *partition.Result) *ScheduledGraph {
	return &ScheduledGraph{Levels: r.Levels, Outbound: r.Outbound}
}

// NodeCount returns the total number of tasklets across every level.
func (g *ScheduledGraph) NodeCount() int {
	n := 0
	for _, level := range g.Levels {
		n += len(level)
	}
	return n
}

// Scheduler is the Tick Executor. One Scheduler instance lives for the
// whole process; Run is invoked by an external caller on its desired
// cadence (spec §6).
type Scheduler struct {
	maxTicks int
	pool     workerpool.Pool[flowunit.FlowUnit]
	graph    *ScheduledGraph
	metrics  *Metrics
	logger   hclog.Logger

	// PreWait is the extension hook described in spec §9: called after every
	// level's tasks have been submitted but before the Tick Executor joins on
	// them. It defaults to a no-op.
	PreWait func()

	currTick int

	pendingMu     sync.Mutex
	pendingSource metricsource.Source
	hasPending    bool
}

// New constructs a Scheduler. Construction itself cannot fail: any
// ConfigurationError from partitioning the graph must have already been
// handled by the caller before reaching this constructor.
func New(maxTicks int, pool workerpool.Pool[flowunit.FlowUnit], graph *ScheduledGraph, metrics *Metrics) *Scheduler {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Scheduler{
		maxTicks: maxTicks,
		pool:     pool,
		graph:    graph,
		metrics:  metrics,
		logger:   logging.HCLogger().Named("scheduler"),
		PreWait:  func() {},
	}
}

// SetPendingMetricSource is the test-only hook to swap every tasklet's
// metric source before the next tick runs (spec §4.4 step 3, §5). The swap
// is staged here and drained by Run on the driver thread before any task of
// the next tick is submitted, so it happens-before every task that tick
// without needing a lock on the hot path.
func (s *Scheduler) SetPendingMetricSource(src metricsource.Source) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pendingSource = src
	s.hasPending = true
}

// CurrTick returns the scheduler's current tick number (1 <= currTick <=
// maxTicks, or 0 immediately after a wraparound or before the first Run).
func (s *Scheduler) CurrTick() int {
	return s.currTick
}

// Run drives one full evaluation pass. It never returns an error: every
// within-tick failure is contained per §4.5/§7, and the only thing Run
// itself can observe going wrong is a worker-pool join failure, which it
// logs rather than propagates.
func (s *Scheduler) Run(ctx context.Context) {
	s.currTick++
	start := time.Now()

	s.metrics.NodeCount.Set(float64(s.graph.NodeCount()))
	s.applyPendingMetricSource()

	futures := make(map[string]workerpool.Future[flowunit.FlowUnit], s.graph.NodeCount())

	for _, level := range s.graph.Levels {
		if len(level) == 0 {
			continue
		}
		for _, t := range level {
			futures[t.VertexName] = t.Execute(ctx, s.pool, futures)
		}
	}

	s.PreWait()

	s.join(ctx, futures)
	s.metrics.MutedNodes.Set(float64(s.countMuted()))

	if s.currTick == s.maxTicks {
		s.resetAllTickCounters()
		s.currTick = 0
	}

	s.metrics.TickWallTime.Observe(time.Since(start).Seconds())
}

// join awaits every tasklet future submitted this tick, not only the last
// level's: a tasklet in an earlier level need not be an ancestor of any
// last-level tasklet (for example, when several connected components are
// merged level-wise), so waiting on the last level alone would not await the
// whole tick. A join failure (a LifecycleError from a rejected worker-pool
// submission) is logged, not propagated; that tasklet's tick is considered
// degraded.
func (s *Scheduler) join(ctx context.Context, futures map[string]workerpool.Future[flowunit.FlowUnit]) {
	for vertex, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			s.logger.Warn("tasklet future join failed; tick continues in a degraded state", "vertex", vertex, "error", err)
		}
	}
}

// countMuted counts tasklets whose most recent execution produced an empty
// flow unit. It is only accurate to call after join has returned, since
// join waiting on every submitted future is what guarantees those tasklets
// have finished writing their LastUnit.
func (s *Scheduler) countMuted() int {
	muted := 0
	for _, level := range s.graph.Levels {
		for _, t := range level {
			if t.LastUnit().IsEmpty() {
				muted++
			}
		}
	}
	return muted
}

func (s *Scheduler) applyPendingMetricSource() {
	s.pendingMu.Lock()
	src, has := s.pendingSource, s.hasPending
	s.hasPending = false
	s.pendingMu.Unlock()

	if !has {
		return
	}
	for _, level := range s.graph.Levels {
		for _, t := range level {
			t.SetMetricSource(src)
		}
	}
}

func (s *Scheduler) resetAllTickCounters() {
	for _, level := range s.graph.Levels {
		for _, t := range level {
			t.ResetTickCounter()
		}
	}
}
