// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package network describes the "hopper" network facade: the one external
// collaborator the scheduler uses to talk to peer hosts. Peer discovery,
// wire serialization, and framing are all out of scope here (spec §1); this
// package only names the contract the core depends on.
package network

import (
	"context"

	"github.com/google/uuid"

	"github.com/rca-engine/scheduler/internal/flowunit"
)

// IntentMsg is a subscription message sent once, at partition time, from a
// local consumer to a remote producer's host.
type IntentMsg struct {
	ID           uuid.UUID
	Consumer     string
	Producer     string
	ProducerTags map[string]string
}

// NewIntentMsg builds an IntentMsg with a fresh correlation ID.
func NewIntentMsg(consumer, producer string, producerTags map[string]string) IntentMsg {
	return IntentMsg{
		ID:           uuid.New(),
		Consumer:     consumer,
		Producer:     producer,
		ProducerTags: producerTags,
	}
}

// Facade is the network hopper contract. All three operations must be safe
// for concurrent use: SendIntent is called synchronously during
// partitioning, FetchRemote is polled by RemoteProxy tasklets on every tick,
// and Publish is called by Local tasklets whose output has remote
// consumers.
type Facade interface {
	// SendIntent registers a subscription for producer's flow units on
	// behalf of consumer. Implementations must be idempotent: sending the
	// same (consumer, producer) pair more than once must not create
	// duplicate subscriptions or duplicate delivery.
	SendIntent(ctx context.Context, intent IntentMsg) error

	// FetchRemote performs a non-blocking read of the most recently cached
	// flow unit for the named vertex. The second return value is false if
	// no data has arrived yet.
	FetchRemote(ctx context.Context, vertexName string) (flowunit.FlowUnit, bool)

	// Publish is a fire-and-forget delivery of a locally produced flow
	// unit to the given destination vertices' hosts. Implementations must
	// not block the caller on delivery succeeding.
	Publish(ctx context.Context, vertexName string, unit flowunit.FlowUnit, destinations []string)
}
