// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package partition

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rca-engine/scheduler/internal/collections"
	"github.com/rca-engine/scheduler/internal/config"
	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/graph"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/network"
	"github.com/rca-engine/scheduler/internal/tasklet"
)

func setOf(loci ...string) collections.Set[string] {
	return collections.NewSet(loci...)
}

// fakeNetwork is an in-memory network.Facade double recording every intent
// it was asked to send.
type fakeNetwork struct {
	mu      sync.Mutex
	intents []network.IntentMsg
}

func (n *fakeNetwork) SendIntent(_ context.Context, intent network.IntentMsg) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
	return nil
}

func (n *fakeNetwork) FetchRemote(context.Context, string) (flowunit.FlowUnit, bool) {
	return flowunit.FlowUnit{}, false
}

func (n *fakeNetwork) Publish(context.Context, string, flowunit.FlowUnit, []string) {}

// passthroughRegistry returns an evaluator that echoes its first predecessor
// (or an empty flow unit if it has none), sufficient for asserting
// partitioning shape without any real RCA compute logic.
type passthroughRegistry struct{}

func (passthroughRegistry) For(v *graph.Vertex, _ config.VertexParams) (tasklet.LocalEvaluator, bool) {
	name := v.Name
	return func(_ context.Context, preds []flowunit.FlowUnit, _ metricsource.Source) (flowunit.FlowUnit, error) {
		if len(preds) == 0 {
			return flowunit.Empty(name), nil
		}
		return preds[0], nil
	}, true
}

func confAllowingAll(vertices ...string) *config.HostConfig {
	c := &config.HostConfig{VertexParams: make(map[string]config.VertexParams)}
	for _, v := range vertices {
		c.VertexParams[v] = config.VertexParams{}
	}
	return c
}

func chain(names ...string) []*graph.Component {
	vertices := make([]*graph.Vertex, len(names))
	for i, n := range names {
		vertices[i] = &graph.Vertex{Name: n, Period: 1, Tags: map[string]string{graph.TagLocus: "data"}}
	}
	for i := 1; i < len(vertices); i++ {
		vertices[i].Upstreams = []*graph.Vertex{vertices[i-1]}
	}
	levels := make([]graph.Level, len(vertices))
	for i, v := range vertices {
		levels[i] = graph.Level{v}
	}
	return []*graph.Component{{Levels: levels}}
}

// TestS1AllLocalLinearChain: A->B->C all locus "data", host locus "data".
// Expected: 3 levels, one tasklet each, no intents, empty outbound map.
func TestS1AllLocalLinearChain(t *testing.T) {
	comps := chain("A", "B", "C")
	hostCfg := confAllowingAll("A", "B", "C")
	hostCfg.Loci = setOf("data")
	net := &fakeNetwork{}

	result, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.NoError(t, err)

	require.Len(t, result.Levels, 3)
	for _, level := range result.Levels {
		assert.Len(t, level, 1)
	}
	assert.Empty(t, net.intents)
	_, ok := result.Outbound.Destinations("A")
	assert.False(t, ok)
}

// TestS2SplitLocus: A(data), B(data), C(cluster); edges A->C, B->C; host
// locus "data". Expected: tasklets for A and B only, outbound = {A:[C],
// B:[C]}, no intents.
func TestS2SplitLocus(t *testing.T) {
	a := &graph.Vertex{Name: "A", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}}
	b := &graph.Vertex{Name: "B", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}}
	c := &graph.Vertex{Name: "C", Period: 1, Tags: map[string]string{graph.TagLocus: "cluster"}, Upstreams: []*graph.Vertex{a, b}}
	comps := []*graph.Component{{Levels: []graph.Level{{a, b}, {c}}}}

	hostCfg := confAllowingAll("A", "B")
	hostCfg.Loci = setOf("data")
	net := &fakeNetwork{}

	result, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.NoError(t, err)

	require.Len(t, result.Levels, 1)
	assert.Len(t, result.Levels[0], 2)
	assert.Empty(t, net.intents)

	destA, ok := result.Outbound.Destinations("A")
	require.True(t, ok)
	assert.Equal(t, []string{"C"}, destA)
	destB, ok := result.Outbound.Destinations("B")
	require.True(t, ok)
	assert.Equal(t, []string{"C"}, destB)
}

// TestS3RemoteUpstream: A(data), B(cluster); edge A->B; host locus
// "cluster". Expected: RemoteProxy for A at level 0, Local B at level 1,
// one intent(B, A, {locus:data}).
func TestS3RemoteUpstream(t *testing.T) {
	a := &graph.Vertex{Name: "A", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}}
	b := &graph.Vertex{Name: "B", Period: 1, Tags: map[string]string{graph.TagLocus: "cluster"}, Upstreams: []*graph.Vertex{a}}
	comps := []*graph.Component{{Levels: []graph.Level{{a}, {b}}}}

	hostCfg := confAllowingAll("B")
	hostCfg.Loci = setOf("cluster")
	net := &fakeNetwork{}

	result, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.NoError(t, err)

	require.Len(t, result.Levels, 2)
	require.Len(t, result.Levels[0], 1)
	assert.Equal(t, tasklet.RemoteProxy, result.Levels[0][0].Kind)
	assert.Equal(t, "A", result.Levels[0][0].VertexName)

	require.Len(t, result.Levels[1], 1)
	assert.Equal(t, tasklet.Local, result.Levels[1][0].Kind)
	assert.Equal(t, "B", result.Levels[1][0].VertexName)

	require.Len(t, net.intents, 1)
	assert.Equal(t, "B", net.intents[0].Consumer)
	assert.Equal(t, "A", net.intents[0].Producer)
	assert.Equal(t, "data", net.intents[0].ProducerTags[graph.TagLocus])

	_, ok := result.Outbound.Destinations("A")
	assert.False(t, ok)
}

// TestS4AggregateUpstream: A(data), B(data, aggregate-upstream "data"); edge
// A->B; host locus "data". Expected: Local A, Local B, plus a RemoteProxy
// for A as an additional predecessor of B.
func TestS4AggregateUpstream(t *testing.T) {
	a := &graph.Vertex{Name: "A", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}}
	b := &graph.Vertex{
		Name:      "B",
		Period:    1,
		Tags:      map[string]string{graph.TagLocus: "data", graph.TagAggregateUpstream: "data"},
		Upstreams: []*graph.Vertex{a},
	}
	comps := []*graph.Component{{Levels: []graph.Level{{a}, {b}}}}

	hostCfg := confAllowingAll("A", "B")
	hostCfg.Loci = setOf("data")
	net := &fakeNetwork{}

	result, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.NoError(t, err)

	require.Len(t, result.Levels, 2)
	require.Len(t, result.Levels[0], 2)

	var sawLocalA, sawProxyA bool
	for _, tl := range result.Levels[0] {
		if tl.VertexName == "A" {
			if tl.Kind == tasklet.Local {
				sawLocalA = true
			} else {
				sawProxyA = true
			}
		}
	}
	assert.True(t, sawLocalA, "expected a Local tasklet for A")
	assert.True(t, sawProxyA, "expected a RemoteProxy tasklet for A")

	require.Len(t, result.Levels[1], 1)
	tB := result.Levels[1][0]
	assert.Len(t, tB.Predecessors, 2)
}

// TestSharedRemoteUpstreamProxyIsPlacedOnce: U(other) is upstream of both
// V1(data) at level 1 and W(data) at level 2, with V1 also upstream of W (an
// ordinary diamond). Host locus is "data", so U is remote-proxied. Expected:
// the RemoteProxy tasklet for U appears exactly once across every output
// level, not once per level at which some local consumer references it —
// otherwise the scheduler would execute it twice in a single tick.
func TestSharedRemoteUpstreamProxyIsPlacedOnce(t *testing.T) {
	u := &graph.Vertex{Name: "U", Period: 5, Tags: map[string]string{graph.TagLocus: "other"}}
	v1 := &graph.Vertex{Name: "V1", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}, Upstreams: []*graph.Vertex{u}}
	w := &graph.Vertex{Name: "W", Period: 1, Tags: map[string]string{graph.TagLocus: "data"}, Upstreams: []*graph.Vertex{u, v1}}
	comps := []*graph.Component{{Levels: []graph.Level{{u}, {v1}, {w}}}}

	hostCfg := confAllowingAll("V1", "W")
	hostCfg.Loci = setOf("data")
	net := &fakeNetwork{}

	result, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.NoError(t, err)

	var proxyOccurrences int
	var proxy *tasklet.Tasklet
	for _, level := range result.Levels {
		for _, tl := range level {
			if tl.VertexName == "U" {
				proxyOccurrences++
				proxy = tl
			}
		}
	}
	require.Equal(t, 1, proxyOccurrences, "U's RemoteProxy tasklet must appear in exactly one output level")
	require.NotNil(t, proxy)
	assert.Equal(t, tasklet.RemoteProxy, proxy.Kind)

	// Both V1 and W must reference the very same proxy instance, not copies,
	// confirming the proxy is shared rather than rebuilt per consumer.
	var w1Tasklet *tasklet.Tasklet
	for _, level := range result.Levels {
		for _, tl := range level {
			if tl.VertexName == "W" {
				w1Tasklet = tl
			}
		}
	}
	require.NotNil(t, w1Tasklet)
	require.Len(t, w1Tasklet.Predecessors, 2)
	var sawProxyAsWPredecessor bool
	for _, pred := range w1Tasklet.Predecessors {
		if pred == proxy {
			sawProxyAsWPredecessor = true
		}
	}
	assert.True(t, sawProxyAsWPredecessor, "W must depend on the same shared proxy instance as V1")
}

func TestConfigurationErrorIsFatalToConstruction(t *testing.T) {
	comps := chain("A")
	hostCfg := &config.HostConfig{Loci: setOf("data"), VertexParams: map[string]config.VertexParams{}}
	net := &fakeNetwork{}

	_, err := Build(context.Background(), comps, hostCfg, net, nil, nil, passthroughRegistry{})
	require.Error(t, err)
}
