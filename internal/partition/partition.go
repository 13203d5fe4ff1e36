// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package partition implements the Partitioner and the outbound half of the
// Intent Router (spec §4.1, §4.2): given the graph's connected components
// and this host's configuration, it classifies each vertex as local or
// remote-proxy, wires up tasklet predecessor links level-by-level, sends
// subscription intents for non-local upstreams, and records which local
// vertices have remote consumers.
package partition

import (
	"context"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/rca-engine/scheduler/internal/config"
	"github.com/rca-engine/scheduler/internal/graph"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/network"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
	"github.com/rca-engine/scheduler/internal/store"
	"github.com/rca-engine/scheduler/internal/tasklet"
)

// EvaluatorRegistry supplies the local compute function for a vertex.
// Individual vertex evaluation logic is out of scope for this core (spec
// §1); callers inject it here, keyed however suits their deployment
// (usually by vertex name or by graph.EvalKind).
type EvaluatorRegistry interface {
	For(v *graph.Vertex, params config.VertexParams) (tasklet.LocalEvaluator, bool)
}

// Result is the outcome of a partitioning pass: the leveled list of
// tasklets every scheduler tick will drive, and the outbound routing map
// tasklets consult when forwarding their output.
type Result struct {
	Levels   [][]*tasklet.Tasklet
	Outbound *RoutingMap
}

// Build partitions every connected component against hostConfig and merges
// their leveled tasklet lists level-wise (spec §4.1's "level merge across
// components"). It returns a ConfigurationError (possibly wrapping several,
// via go-multierror) if any local vertex lacks host configuration or a
// registered evaluator; every other failure (an intent send failing) is
// logged and does not abort construction, per §4.5.
func Build(ctx context.Context, components []*graph.Component, hostConfig *config.HostConfig, net network.Facade, metrics metricsource.Source, persist store.Store, evaluators EvaluatorRegistry) (*Result, error) {
	logger := logging.HCLogger().Named("partition")

	localSet := make(map[string]bool)
	tasklets := make(map[string]*tasklet.Tasklet)
	remoteProxies := make(map[string]*tasklet.Tasklet)
	outbound := NewRoutingMap()

	var merged [][]*tasklet.Tasklet
	var errs *multierror.Error

	for _, comp := range components {
		b := &builder{
			hostConfig:    hostConfig,
			net:           net,
			metrics:       metrics,
			persist:       persist,
			evaluators:    evaluators,
			localSet:      localSet,
			tasklets:      tasklets,
			remoteProxies: remoteProxies,
			outbound:      outbound,
			logger:        logger,
		}
		levels, err := b.build(ctx, comp)
		if err != nil {
			errs = multierror.Append(errs, err)
		}
		merged = mergeLevels(merged, levels)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Result{Levels: merged, Outbound: outbound}, nil
}

// mergeLevels merges b's levels into a index-wise, the longer list
// absorbing the shorter one's entries at matching depths (spec §4.1).
func mergeLevels(a, b [][]*tasklet.Tasklet) [][]*tasklet.Tasklet {
	if len(b) > len(a) {
		a, b = b, a
	}
	for i, level := range b {
		a[i] = append(a[i], level...)
	}
	return a
}

type builder struct {
	hostConfig    *config.HostConfig
	net           network.Facade
	metrics       metricsource.Source
	persist       store.Store
	evaluators    EvaluatorRegistry
	localSet      map[string]bool
	tasklets      map[string]*tasklet.Tasklet
	remoteProxies map[string]*tasklet.Tasklet
	outbound      *RoutingMap
	logger        hclog.Logger
}

// build partitions one connected component, returning its tasklet levels.
//
// levelIdx indexes comp.Levels (the vertex levels); outIdx indexes the
// tasklet levels this function produces, which can run one ahead of
// levelIdx if remote-proxy tasklets needed by level-0 consumers have no
// earlier level to land in and so force a new level 0 to be opened (spec
// §4.1.3.e).
func (b *builder) build(ctx context.Context, comp *graph.Component) ([][]*tasklet.Tasklet, error) {
	var levels [][]*tasklet.Tasklet
	offset := 0
	var errs *multierror.Error

	ensureLevel := func(idx int) {
		for len(levels) <= idx {
			levels = append(levels, nil)
		}
	}

	// placeProxy appends proxy to the output level preceding the consumer's
	// own level (levelIdx), opening a new level 0 if levelIdx is already 0.
	placeProxy := func(levelIdx int, proxy *tasklet.Tasklet) {
		if levelIdx == 0 {
			if offset == 0 {
				levels = append([][]*tasklet.Tasklet{nil}, levels...)
				offset = 1
			}
			levels[0] = appendUnique(levels[0], proxy)
			return
		}
		prevIdx := levelIdx - 1 + offset
		ensureLevel(prevIdx)
		levels[prevIdx] = appendUnique(levels[prevIdx], proxy)
	}

	for levelIdx, level := range comp.Levels {
		for _, v := range level {
			if v.IsLocal(b.hostConfig.Loci) {
				t, err := b.buildLocal(ctx, v, levelIdx, placeProxy)
				if err != nil {
					errs = multierror.Append(errs, err)
					continue
				}
				// placeProxy may have opened a new level 0, so outIdx is
				// computed only after it has run.
				outIdx := levelIdx + offset
				ensureLevel(outIdx)
				levels[outIdx] = append(levels[outIdx], t)
			} else {
				b.recordOutbound(v)
			}
		}
	}

	return levels, errs.ErrorOrNil()
}

func (b *builder) buildLocal(ctx context.Context, v *graph.Vertex, levelIdx int, placeProxy func(int, *tasklet.Tasklet)) (*tasklet.Tasklet, error) {
	params, ok := b.hostConfig.Params(v.Name)
	if !ok {
		return nil, rcaerrors.ConfigurationError("missing host configuration for local vertex %q", v.Name)
	}
	evaluator, ok := b.evaluators.For(v, params)
	if !ok {
		return nil, rcaerrors.ConfigurationError("no evaluator registered for vertex %q", v.Name)
	}

	var preds []*tasklet.Tasklet
	aggLocus, hasAgg := v.AggregateUpstream()

	for _, u := range v.Upstreams {
		if b.localSet[u.Name] {
			preds = append(preds, b.tasklets[u.Name])
			if hasAgg && u.Locus().Has(aggLocus) {
				proxy, created := b.remoteProxyFor(u)
				preds = append(preds, proxy)
				if created {
					placeProxy(levelIdx, proxy)
				}
			}
			continue
		}

		if err := b.net.SendIntent(ctx, network.NewIntentMsg(v.Name, u.Name, u.Tags)); err != nil {
			b.logger.Warn("failed to send intent; continuing construction", "consumer", v.Name, "producer", u.Name, "error", err)
		}
		proxy, created := b.remoteProxyFor(u)
		preds = append(preds, proxy)
		if created {
			placeProxy(levelIdx, proxy)
		}
	}

	t := tasklet.NewLocal(v.Name, v.Period, evaluator, preds, b.metrics, b.persist, b.outbound, b.net)
	b.tasklets[v.Name] = t
	b.localSet[v.Name] = true
	return t, nil
}

// recordOutbound implements §4.1.4: for a non-local vertex V, every local
// upstream U gets V added as one of its remote consumers.
func (b *builder) recordOutbound(v *graph.Vertex) {
	for _, u := range v.Upstreams {
		if b.localSet[u.Name] {
			b.outbound.Add(u.Name, v.Name)
		}
	}
}

// remoteProxyFor returns the single shared RemoteProxy tasklet for u,
// creating it on first request. The second return value is true only when
// this call created it, so that a caller placing the proxy into a tasklet
// level does so exactly once even though u may be upstream of several local
// vertices across several levels.
func (b *builder) remoteProxyFor(u *graph.Vertex) (*tasklet.Tasklet, bool) {
	if existing, ok := b.remoteProxies[u.Name]; ok {
		return existing, false
	}
	proxy := tasklet.NewRemoteProxy(u.Name, u.Period, b.net)
	b.remoteProxies[u.Name] = proxy
	return proxy, true
}

func appendUnique(level []*tasklet.Tasklet, t *tasklet.Tasklet) []*tasklet.Tasklet {
	for _, existing := range level {
		if existing == t {
			return level
		}
	}
	return append(level, t)
}
