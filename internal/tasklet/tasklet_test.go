// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package tasklet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/network"
	"github.com/rca-engine/scheduler/internal/workerpool"
)

var fixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeNet struct {
	mu        sync.Mutex
	remote    map[string]flowunit.FlowUnit
	published map[string][]string
}

func newFakeNet() *fakeNet {
	return &fakeNet{remote: map[string]flowunit.FlowUnit{}, published: map[string][]string{}}
}

func (n *fakeNet) SendIntent(context.Context, network.IntentMsg) error { return nil }

func (n *fakeNet) FetchRemote(_ context.Context, vertex string) (flowunit.FlowUnit, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	u, ok := n.remote[vertex]
	return u, ok
}

func (n *fakeNet) Publish(_ context.Context, vertex string, _ flowunit.FlowUnit, destinations []string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published[vertex] = destinations
}

type fakeRouter struct {
	dests map[string][]string
}

func (r fakeRouter) Destinations(vertex string) ([]string, bool) {
	d, ok := r.dests[vertex]
	return d, ok
}

type recordingStore struct {
	write func(flowunit.FlowUnit)
}

func (s *recordingStore) Write(_ context.Context, unit flowunit.FlowUnit) error {
	s.write(unit)
	return nil
}

func TestLocalTaskletEvaluatesAndPersists(t *testing.T) {
	var persisted []flowunit.FlowUnit
	store := &recordingStore{write: func(u flowunit.FlowUnit) { persisted = append(persisted, u) }}

	evalCalls := 0
	eval := func(ctx context.Context, preds []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
		evalCalls++
		return flowunit.New("v", map[string]any{"x": 1}, fixedTime), nil
	}

	tl := NewLocal("v", 1, eval, nil, nil, store, nil, nil)
	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	unit, err := f.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, evalCalls)
	assert.False(t, unit.IsEmpty())
	require.Len(t, persisted, 1)
}

// TestLocalTaskletCadenceSkipsUntilPeriod exercises spec property 5: a
// tasklet with period N only calls its evaluator every Nth tick, starting
// with the first execution (tick counter 0 on entry).
func TestLocalTaskletCadenceSkipsUntilPeriod(t *testing.T) {
	evalCalls := 0
	eval := func(ctx context.Context, preds []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
		evalCalls++
		return flowunit.New("v", map[string]any{}, fixedTime), nil
	}

	tl := NewLocal("v", 3, eval, nil, nil, nil, nil, nil)
	pool := workerpool.New[flowunit.FlowUnit](1)

	var units []flowunit.FlowUnit
	for i := 0; i < 3; i++ {
		f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
		u, err := f.Wait(context.Background())
		require.NoError(t, err)
		units = append(units, u)
	}

	assert.Equal(t, 1, evalCalls)
	assert.False(t, units[0].IsEmpty())
	assert.True(t, units[1].IsEmpty())
	assert.True(t, units[2].IsEmpty())
}

func TestLocalTaskletContainsEvaluatorFailure(t *testing.T) {
	boom := errors.New("boom")
	eval := func(ctx context.Context, preds []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
		return flowunit.FlowUnit{}, boom
	}

	tl := NewLocal("v", 1, eval, nil, nil, nil, nil, nil)
	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	unit, err := f.Wait(context.Background())

	require.NoError(t, err, "evaluator failures must not propagate to the future")
	assert.True(t, unit.IsEmpty())
	assert.True(t, tl.LastUnit().IsEmpty())
}

func TestLocalTaskletForwardsToOutboundConsumers(t *testing.T) {
	net := newFakeNet()
	router := fakeRouter{dests: map[string][]string{"v": {"consumerA", "consumerB"}}}
	eval := func(ctx context.Context, preds []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
		return flowunit.New("v", map[string]any{}, fixedTime), nil
	}

	tl := NewLocal("v", 1, eval, nil, nil, nil, router, net)
	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	_, err := f.Wait(context.Background())
	require.NoError(t, err)

	net.mu.Lock()
	defer net.mu.Unlock()
	assert.ElementsMatch(t, []string{"consumerA", "consumerB"}, net.published["v"])
}

func TestRemoteProxyTaskletReadsFromFacade(t *testing.T) {
	net := newFakeNet()
	net.remote["upstream"] = flowunit.New("upstream", map[string]any{"y": 2}, fixedTime)

	tl := NewRemoteProxy("upstream", 1, net)
	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	unit, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, unit.IsEmpty())
}

func TestRemoteProxyTaskletEmptyWhenNoData(t *testing.T) {
	net := newFakeNet()
	tl := NewRemoteProxy("upstream", 1, net)
	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	unit, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, unit.IsEmpty())
}

// TestExecuteDefaultsMissingPredecessorToEmpty exercises spec §4.3: a
// predecessor absent from the futures map must not deadlock Execute.
func TestExecuteDefaultsMissingPredecessorToEmpty(t *testing.T) {
	var gotPreds []flowunit.FlowUnit
	eval := func(ctx context.Context, preds []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
		gotPreds = preds
		return flowunit.New("v", map[string]any{}, fixedTime), nil
	}
	missing := NewRemoteProxy("missing-upstream", 1, nil)
	tl := NewLocal("v", 1, eval, []*Tasklet{missing}, nil, nil, nil, nil)

	pool := workerpool.New[flowunit.FlowUnit](1)
	f := tl.Execute(context.Background(), pool, map[string]workerpool.Future[flowunit.FlowUnit]{})
	_, err := f.Wait(context.Background())
	require.NoError(t, err)

	require.Len(t, gotPreds, 1)
	assert.True(t, gotPreds[0].IsEmpty())
}
