// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package partition

import "sync"

// RoutingMap is the Outbound Routing Map: an index from a local producer
// vertex to the list of remote consumer vertices awaiting its output. It is
// built once during partitioning and is read-only afterward. Add and
// Destinations both take the mutex, so writes during the build phase and
// reads from tasklet goroutines are both guarded by it.
type RoutingMap struct {
	mu    sync.Mutex
	byVer map[string][]string
}

// NewRoutingMap returns an empty RoutingMap.
func NewRoutingMap() *RoutingMap {
	return &RoutingMap{byVer: make(map[string][]string)}
}

// Add records that consumer subscribes to producer's local output.
// Duplicate (producer, consumer) pairs are not repeated in the resulting
// list.
func (m *RoutingMap) Add(producer, consumer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byVer[producer] {
		if existing == consumer {
			return
		}
	}
	m.byVer[producer] = append(m.byVer[producer], consumer)
}

// Destinations implements tasklet.OutboundRouter.
func (m *RoutingMap) Destinations(vertex string) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dests, ok := m.byVer[vertex]
	return dests, ok
}
