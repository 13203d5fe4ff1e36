// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package tasklet is the runtime unit bound to a vertex: one Tasklet exists
// per scheduled vertex, holding its predecessor links, its own tick
// cadence, and whichever evaluator the partitioner decided it needs (local
// compute, or read-from-wire).
package tasklet

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/network"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
	"github.com/rca-engine/scheduler/internal/store"
	"github.com/rca-engine/scheduler/internal/workerpool"
)

// Kind is the tagged variant deciding how a Tasklet produces its flow unit:
// a dynamic dispatch by tag in the original system, re-expressed here as a
// value fixed once at partition time (spec §9).
type Kind int

const (
	// Local tasklets compute their flow unit from their predecessors' flow
	// units (and, for metric-source vertices, a read from the metric
	// source), and persist the result.
	Local Kind = iota
	// RemoteProxy tasklets source their flow unit from the network facade
	// instead of computing it, and never persist.
	RemoteProxy
)

// LocalEvaluator computes a flow unit from the ordered predecessor flow
// units and, if the vertex is a metric-source vertex, a metric reading.
type LocalEvaluator func(ctx context.Context, predecessors []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error)

// OutboundRouter is the read side of the Outbound Routing Map: it tells a
// Local tasklet which remote consumer vertices, if any, want its output.
type OutboundRouter interface {
	Destinations(vertex string) ([]string, bool)
}

// Tasklet is the per-tick runtime binding of a vertex to an evaluator and
// its predecessors.
type Tasklet struct {
	VertexName   string
	Period       int
	Kind         Kind
	Predecessors []*Tasklet

	evaluator LocalEvaluator
	metrics   metricsource.Source // swappable by the test-only hook between ticks
	persist   store.Store
	net       network.Facade
	outbound  OutboundRouter

	logger hclog.Logger

	tickCounter int
	lastUnit    flowunit.FlowUnit
}

// NewLocal builds a Local tasklet bound to vertexName, with the given
// evaluator, predecessors, and collaborators.
func NewLocal(vertexName string, period int, evaluator LocalEvaluator, predecessors []*Tasklet, metrics metricsource.Source, persist store.Store, outbound OutboundRouter, net network.Facade) *Tasklet {
	return &Tasklet{
		VertexName:   vertexName,
		Period:       period,
		Kind:         Local,
		Predecessors: predecessors,
		evaluator:    evaluator,
		metrics:      metrics,
		persist:      persist,
		outbound:     outbound,
		net:          net,
		logger:       logging.HCLogger().Named("tasklet").With("vertex", vertexName, "kind", "local"),
	}
}

// NewRemoteProxy builds a RemoteProxy tasklet bound to vertexName, sourcing
// its flow unit from the network facade rather than computing one.
func NewRemoteProxy(vertexName string, period int, net network.Facade) *Tasklet {
	return &Tasklet{
		VertexName: vertexName,
		Period:     period,
		Kind:       RemoteProxy,
		net:        net,
		logger:     logging.HCLogger().Named("tasklet").With("vertex", vertexName, "kind", "remote-proxy"),
	}
}

// SetMetricSource is the test-only hook letting a driver swap a tasklet's
// metric source between ticks. Callers must only call this before any task
// of the next tick is submitted, so that this write happens-before every
// task of that tick without needing a lock (spec §5).
func (t *Tasklet) SetMetricSource(src metricsource.Source) {
	t.metrics = src
}

// TickCounter returns the tasklet's current tick counter, for tests
// asserting the cadence and wraparound invariants (spec §8, properties 5
// and 6).
func (t *Tasklet) TickCounter() int {
	return t.tickCounter
}

// ResetTickCounter zeroes the tasklet's tick counter, called by the Tick
// Executor once every tasklet has executed maxTicks times.
func (t *Tasklet) ResetTickCounter() {
	t.tickCounter = 0
}

// LastUnit returns the flow unit produced by this tasklet's most recent
// execution.
func (t *Tasklet) LastUnit() flowunit.FlowUnit {
	return t.lastUnit
}

// Execute builds a composite future that resolves only after every
// predecessor's future in futures has resolved, then schedules this
// tasklet's own evaluation on pool. Predecessors absent from futures
// default to an already-resolved empty future, which should not happen
// given correct level ordering but must not deadlock if it does (spec
// §4.3).
func (t *Tasklet) Execute(ctx context.Context, pool workerpool.Pool[flowunit.FlowUnit], futures map[string]workerpool.Future[flowunit.FlowUnit]) workerpool.Future[flowunit.FlowUnit] {
	predFutures := make([]workerpool.Future[flowunit.FlowUnit], len(t.Predecessors))
	for i, pred := range t.Predecessors {
		f, ok := futures[pred.VertexName]
		if !ok {
			t.logger.Warn("predecessor future missing at execute time; level ordering may be wrong", "predecessor", pred.VertexName)
			f = workerpool.Resolved(flowunit.Empty(pred.VertexName))
		}
		predFutures[i] = f
	}

	return pool.Submit(ctx, func(ctx context.Context) (flowunit.FlowUnit, error) {
		preds := make([]flowunit.FlowUnit, len(predFutures))
		for i, f := range predFutures {
			unit, err := f.Wait(ctx)
			if err != nil {
				t.logger.Debug("predecessor future resolved with an error; treating as empty", "error", err)
				unit = flowunit.Empty(t.Predecessors[i].VertexName)
			}
			preds[i] = unit
		}

		unit := t.run(ctx, preds)
		t.forward(ctx, unit)
		return unit, nil
	})
}

// run applies cadence, dispatches to the appropriate evaluator, and
// contains any evaluator failure as an empty flow unit so that downstream
// tasklets are never starved (spec §4.3, §4.5, §8 property 8).
func (t *Tasklet) run(ctx context.Context, preds []flowunit.FlowUnit) flowunit.FlowUnit {
	if t.Period > 1 && t.tickCounter%t.Period != 0 {
		t.tickCounter++
		t.lastUnit = flowunit.Empty(t.VertexName)
		return t.lastUnit
	}
	t.tickCounter++

	var unit flowunit.FlowUnit
	var err error
	switch t.Kind {
	case RemoteProxy:
		unit, err = t.evalRemoteProxy(ctx)
	default:
		unit, err = t.evalLocal(ctx, preds)
	}

	if err != nil {
		t.logger.Warn("evaluator failed; emitting empty flow unit", "error", rcaerrors.EvaluationError(t.VertexName, err))
		unit = flowunit.Empty(t.VertexName)
	}

	t.lastUnit = unit
	return unit
}

func (t *Tasklet) evalLocal(ctx context.Context, preds []flowunit.FlowUnit) (flowunit.FlowUnit, error) {
	unit, err := t.evaluator(ctx, preds, t.metrics)
	if err != nil {
		return flowunit.FlowUnit{}, err
	}
	if t.persist != nil {
		if perr := t.persist.Write(ctx, unit); perr != nil {
			t.logger.Warn("persistence write failed; continuing", "error", rcaerrors.IOError("store", perr))
		}
	}
	return unit, nil
}

func (t *Tasklet) evalRemoteProxy(ctx context.Context) (flowunit.FlowUnit, error) {
	if t.net == nil {
		return flowunit.Empty(t.VertexName), nil
	}
	unit, ok := t.net.FetchRemote(ctx, t.VertexName)
	if !ok {
		return flowunit.Empty(t.VertexName), nil
	}
	return unit, nil
}

// forward hands a produced flow unit to the network facade if this
// tasklet's vertex has remote consumers waiting on it. RemoteProxy tasklets
// never have outbound consumers of their own (they're already the local
// copy of somebody else's vertex), so forward is a no-op for them.
func (t *Tasklet) forward(ctx context.Context, unit flowunit.FlowUnit) {
	if t.Kind != Local || t.outbound == nil || t.net == nil {
		return
	}
	destinations, ok := t.outbound.Destinations(t.VertexName)
	if !ok || len(destinations) == 0 {
		return
	}
	t.net.Publish(ctx, t.VertexName, unit, destinations)
}
