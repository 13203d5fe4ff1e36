// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package flowunit defines the diagnostic record a vertex produces on a
// tick, shared by every other scheduler package.
package flowunit

import "time"

// FlowUnit is the output record produced by a vertex on a tick. A tasklet
// that is muted by cadence, whose evaluator failed, or whose remote data was
// absent at read time, produces an Empty FlowUnit rather than a nil one, so
// downstream tasklets always have something to range over.
type FlowUnit struct {
	// Vertex is the name of the vertex that produced this flow unit.
	Vertex string

	// Fields holds the evaluator's output, keyed by field name. Nil for an
	// empty flow unit.
	Fields map[string]any

	// ProducedAt records when the flow unit was produced, for persistence
	// and for peers that want to detect staleness of cached remote data.
	ProducedAt time.Time

	empty bool
}

// Empty returns an empty FlowUnit for the given vertex, used whenever the
// scheduler's failure-containment policy requires "emit empty and move on"
// instead of propagating an error.
func Empty(vertex string) FlowUnit {
	return FlowUnit{Vertex: vertex, empty: true}
}

// New wraps a successfully computed set of fields into a FlowUnit.
func New(vertex string, fields map[string]any, producedAt time.Time) FlowUnit {
	return FlowUnit{Vertex: vertex, Fields: fields, ProducedAt: producedAt}
}

// IsEmpty reports whether this FlowUnit carries no data, either because the
// vertex was muted this tick, its evaluator failed, or remote data was
// unavailable.
func (f FlowUnit) IsEmpty() bool {
	return f.empty || f.Fields == nil
}
