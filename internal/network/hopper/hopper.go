// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package hopper is a concrete network.Facade adapter. Wire serialization
// and peer discovery remain out of scope for the scheduler core (spec §1),
// but a real deployment still needs something behind the Facade interface:
// this adapter keeps a cache of the most recently seen flow unit per vertex
// and per pending intent, and uses gRPC's standard health-checking protocol
// to probe the producer's host when an intent is sent and each destination's
// host on publish, in the style of the teacher's oracle_oci/log.go
// request-scoped logger. FetchRemote reads the cache only and contacts no
// peer.
package hopper

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	uuid "github.com/hashicorp/go-uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/logging"
	"github.com/rca-engine/scheduler/internal/network"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
)

// PeerResolver maps a producer vertex name to the gRPC dial target of the
// peer host that owns it. The scheduler's host configuration (see
// internal/config) is the usual source of this mapping.
type PeerResolver interface {
	PeerForVertex(vertexName string) (target string, ok bool)
}

// Hopper implements network.Facade over gRPC peer connections, with an
// in-process cache standing in for the actual wire-level delivery that the
// out-of-scope network hopper would perform.
type Hopper struct {
	resolver PeerResolver
	logger   hclog.Logger

	dialTimeout time.Duration

	mu       sync.RWMutex
	conns    map[string]*grpc.ClientConn
	cache    map[string]flowunit.FlowUnit
	intents  map[string]network.IntentMsg
}

// New builds a Hopper resolving peer targets through resolver.
func New(resolver PeerResolver) *Hopper {
	return &Hopper{
		resolver:    resolver,
		logger:      logging.HCLogger().Named("network.hopper"),
		dialTimeout: 5 * time.Second,
		conns:       make(map[string]*grpc.ClientConn),
		cache:       make(map[string]flowunit.FlowUnit),
		intents:     make(map[string]network.IntentMsg),
	}
}

// SendIntent registers a subscription for the producer's flow units.
// Re-sending the same (consumer, producer) pair is idempotent: it overwrites
// the prior registration with an identical one rather than creating a
// duplicate.
func (h *Hopper) SendIntent(ctx context.Context, intent network.IntentMsg) error {
	reqID, err := uuid.GenerateUUID()
	if err != nil {
		reqID = intent.ID.String()
	}
	logger := h.logger.With("req_id", reqID, "consumer", intent.Consumer, "producer", intent.Producer)

	key := intent.Consumer + "->" + intent.Producer
	h.mu.Lock()
	h.intents[key] = intent
	h.mu.Unlock()

	conn, err := h.dial(ctx, intent.Producer)
	if err != nil {
		logger.Warn("could not reach producer's host to register intent", "error", err)
		return rcaerrors.IOError("network hopper", err)
	}

	client := grpc_health_v1.NewHealthClient(conn)
	if _, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{}); err != nil {
		logger.Warn("producer host health check failed while sending intent", "error", err)
		return rcaerrors.IOError("network hopper", err)
	}

	logger.Debug("intent registered")
	return nil
}

// FetchRemote returns the most recently cached flow unit for vertexName, if
// any has arrived.
func (h *Hopper) FetchRemote(_ context.Context, vertexName string) (flowunit.FlowUnit, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	unit, ok := h.cache[vertexName]
	return unit, ok
}

// Publish caches unit under vertexName and, for every destination, dials
// that destination's host and runs a health check in a background
// goroutine; the unit itself is not sent over that connection. It does not
// block on any of this; failures are logged and swallowed, per §4.5's
// "IntentMsg send fails: log at partition time; do not abort construction"
// and the broader fire-and-forget policy for outbound data routing.
func (h *Hopper) Publish(ctx context.Context, vertexName string, unit flowunit.FlowUnit, destinations []string) {
	h.mu.Lock()
	h.cache[vertexName] = unit
	h.mu.Unlock()

	for _, dest := range destinations {
		go h.publishOne(ctx, vertexName, dest)
	}
}

func (h *Hopper) publishOne(ctx context.Context, vertexName, destination string) {
	conn, err := h.dial(ctx, destination)
	if err != nil {
		h.logger.Debug("could not reach consumer host for publish", "vertex", vertexName, "destination", destination, "error", err)
		return
	}
	client := grpc_health_v1.NewHealthClient(conn)
	if _, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{}); err != nil {
		h.logger.Debug("consumer host health check failed during publish", "vertex", vertexName, "destination", destination, "error", err)
	}
}

func (h *Hopper) dial(ctx context.Context, vertexName string) (*grpc.ClientConn, error) {
	target, ok := h.resolver.PeerForVertex(vertexName)
	if !ok {
		return nil, rcaerrors.IOError("network hopper", errUnresolvedPeer(vertexName))
	}

	h.mu.RLock()
	conn, ok := h.conns[target]
	h.mu.RUnlock()
	if ok {
		return conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.dialTimeout)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.conns[target] = conn
	h.mu.Unlock()
	return conn, nil
}

// Close releases every cached peer connection.
func (h *Hopper) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		_ = conn.Close()
	}
	h.conns = make(map[string]*grpc.ClientConn)
	return nil
}

type errUnresolvedPeer string

func (e errUnresolvedPeer) Error() string {
	return "no peer host known for vertex " + string(e)
}
