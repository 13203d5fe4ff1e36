// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package graph is the immutable description of the RCA computation graph:
// vertices, their tags, their tick period, and the connected components and
// levels the graph provider has already arranged them into. Nothing in this
// package is specific to any one host; the Partitioner is what narrows a
// Graph down to what a particular host should run.
package graph

import (
	"strings"

	"github.com/rca-engine/scheduler/internal/collections"
)

// Well-known tag names. Tag values are opaque strings to this package; only
// the partitioner interprets them.
const (
	TagLocus             = "locus"
	TagAggregateUpstream = "aggregate-upstream"
)

// localeSeparator is the separator used for the |-separated locus tag set.
const localeSeparator = "|"

// EvalKind classifies how a Vertex's flow unit is produced when it is
// executed locally. It does not affect RemoteProxy tasklets, which always
// read from the wire regardless of a vertex's kind.
type EvalKind int

const (
	// KindComputed vertices derive their flow unit purely from upstream
	// flow units.
	KindComputed EvalKind = iota
	// KindMetricSource vertices additionally read from the metric source.
	KindMetricSource
	// KindSummarizer vertices aggregate many upstream flow units into a
	// single summary record.
	KindSummarizer
)

func (k EvalKind) String() string {
	switch k {
	case KindMetricSource:
		return "metric-source"
	case KindSummarizer:
		return "summarizer"
	default:
		return "computed"
	}
}

// Vertex is the static, immutable description of one RCA computation node.
type Vertex struct {
	// Name uniquely identifies the vertex within the graph.
	Name string

	// Tags holds arbitrary tag -> value attributes, notably "locus" and
	// "aggregate-upstream".
	Tags map[string]string

	// Upstreams lists this vertex's upstream vertices in a fixed order;
	// evaluators gather predecessor flow units in this same order.
	Upstreams []*Vertex

	// Period is the tick cadence: the vertex evaluates only once every
	// Period ticks. Must be positive.
	Period int

	// Kind selects how a Local tasklet for this vertex computes its flow
	// unit.
	Kind EvalKind
}

// Locus returns the set of loci this vertex may run on, parsed from the
// |-separated "locus" tag. A missing or empty tag yields an empty set,
// which by definition intersects no host's configured loci.
func (v *Vertex) Locus() collections.Set[string] {
	raw, ok := v.Tags[TagLocus]
	if !ok || strings.TrimSpace(raw) == "" {
		return collections.Set[string]{}
	}
	parts := strings.Split(raw, localeSeparator)
	members := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			members = append(members, p)
		}
	}
	return collections.NewSet(members...)
}

// AggregateUpstream returns the locus named by this vertex's
// "aggregate-upstream" tag and whether that tag was present at all.
func (v *Vertex) AggregateUpstream() (string, bool) {
	raw, ok := v.Tags[TagAggregateUpstream]
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

// IsLocal reports whether this vertex's locus set intersects the host's
// configured loci. A vertex with no locus tag is never local.
func (v *Vertex) IsLocal(hostLoci collections.Set[string]) bool {
	return v.Locus().Intersects(hostLoci)
}
