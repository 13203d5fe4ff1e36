// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"sort"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/rca-engine/scheduler/internal/rcaerrors"
)

// graphFile is the HCL schema for a statically declared RCA graph:
//
//	vertex "cpu_util" {
//	  locus = "data"
//	  kind  = "metric-source"
//	}
//
//	vertex "cluster_cpu_summary" {
//	  locus              = "cluster"
//	  kind               = "summarizer"
//	  upstreams          = ["cpu_util"]
//	  aggregate_upstream = "data"
//	  period             = 4
//	}
type graphFile struct {
	Vertices []vertexBlock `hcl:"vertex,block"`
}

type vertexBlock struct {
	Name              string   `hcl:"name,label"`
	Locus             string   `hcl:"locus,optional"`
	Kind              string   `hcl:"kind,optional"`
	Upstreams         []string `hcl:"upstreams,optional"`
	AggregateUpstream string   `hcl:"aggregate_upstream,optional"`
	Period            int      `hcl:"period,optional"`
}

// LoadStatic parses an HCL graph declaration at path into connected,
// leveled Components, in the style of config.Load. It is one concrete,
// file-based graph.Provider; a deployment backed by a live discovery
// service would implement Provider directly instead.
func LoadStatic(path string) ([]*Component, error) {
	var raw graphFile
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return nil, rcaerrors.WrapConfigurationError(err, "failed to parse graph declaration at "+path)
	}
	return fromGraphFile(raw)
}

func fromGraphFile(raw graphFile) ([]*Component, error) {
	byName := make(map[string]*Vertex, len(raw.Vertices))
	for _, vb := range raw.Vertices {
		if _, dup := byName[vb.Name]; dup {
			return nil, rcaerrors.ConfigurationError("duplicate vertex declaration %q", vb.Name)
		}
		period := vb.Period
		if period <= 0 {
			period = 1
		}
		tags := map[string]string{}
		if vb.Locus != "" {
			tags[TagLocus] = vb.Locus
		}
		if vb.AggregateUpstream != "" {
			tags[TagAggregateUpstream] = vb.AggregateUpstream
		}
		byName[vb.Name] = &Vertex{
			Name:   vb.Name,
			Tags:   tags,
			Period: period,
			Kind:   parseKind(vb.Kind),
		}
	}

	for _, vb := range raw.Vertices {
		v := byName[vb.Name]
		for _, up := range vb.Upstreams {
			u, ok := byName[up]
			if !ok {
				return nil, rcaerrors.ConfigurationError("vertex %q declares unknown upstream %q", vb.Name, up)
			}
			v.Upstreams = append(v.Upstreams, u)
		}
	}

	return buildComponents(byName)
}

func parseKind(raw string) EvalKind {
	switch raw {
	case "metric-source":
		return KindMetricSource
	case "summarizer":
		return KindSummarizer
	default:
		return KindComputed
	}
}

// buildComponents groups vertices into weakly connected components via
// union-find, then arranges each component into dependency levels with
// Kahn's algorithm. It returns a ConfigurationError if the declared
// upstream edges contain a cycle.
func buildComponents(byName map[string]*Vertex) ([]*Component, error) {
	uf := newUnionFind()
	for name := range byName {
		uf.add(name)
	}
	for name, v := range byName {
		for _, u := range v.Upstreams {
			uf.union(name, u.Name)
		}
	}

	groups := make(map[string][]*Vertex)
	for name, v := range byName {
		root := uf.find(name)
		groups[root] = append(groups[root], v)
	}

	roots := make([]string, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	components := make([]*Component, 0, len(groups))
	for _, root := range roots {
		levels, err := levelize(groups[root])
		if err != nil {
			return nil, err
		}
		components = append(components, &Component{Levels: levels})
	}
	return components, nil
}

// levelize arranges vertices into dependency levels via Kahn's algorithm.
func levelize(vertices []*Vertex) ([]Level, error) {
	inDegree := make(map[string]int, len(vertices))
	for _, v := range vertices {
		inDegree[v.Name] = len(v.Upstreams)
	}

	remaining := len(vertices)
	var levels []Level
	for remaining > 0 {
		var level Level
		for _, v := range vertices {
			if inDegree[v.Name] == 0 {
				level = append(level, v)
			}
		}
		if len(level) == 0 {
			return nil, rcaerrors.ConfigurationError("graph declaration contains a dependency cycle")
		}
		sort.Slice(level, func(i, j int) bool { return level[i].Name < level[j].Name })

		produced := make(map[string]bool, len(level))
		for _, v := range level {
			produced[v.Name] = true
			inDegree[v.Name] = -1 // mark processed
			remaining--
		}
		for _, v := range vertices {
			if inDegree[v.Name] < 0 {
				continue
			}
			for _, u := range v.Upstreams {
				if produced[u.Name] {
					inDegree[v.Name]--
				}
			}
		}
		levels = append(levels, level)
	}
	return levels, nil
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[string]string)}
}

func (u *unionFind) add(name string) {
	if _, ok := u.parent[name]; !ok {
		u.parent[name] = name
	}
}

func (u *unionFind) find(name string) string {
	root := name
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for u.parent[name] != root {
		next := u.parent[name]
		u.parent[name] = root
		name = next
	}
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}
