// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package config loads the host configuration the Partitioner consults:
// which loci this host runs, and the per-vertex thresholds/parameters a
// local vertex's evaluator needs (spec §4.1.3.b). It is expressed as HCL,
// parsed with github.com/hashicorp/hcl/v2, in the style of the teacher's
// internal/configs package, rather than hand-rolled with encoding/json or
// a bespoke key=value format.
package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/rca-engine/scheduler/internal/collections"
	"github.com/rca-engine/scheduler/internal/rcaerrors"
)

// VertexParams holds the thresholds and parameters a local vertex's
// evaluator was configured with.
type VertexParams struct {
	Thresholds map[string]float64
}

// HostConfig is the parsed configuration for one scheduler host: which
// loci it serves, per-vertex parameters for every vertex this host may run
// locally, and the dial target of the peer host owning each non-local
// vertex this host subscribes to.
type HostConfig struct {
	Loci         collections.Set[string]
	VertexParams map[string]VertexParams
	Peers        map[string]string
}

// Params looks up a vertex's configured parameters.
func (c *HostConfig) Params(vertexName string) (VertexParams, bool) {
	p, ok := c.VertexParams[vertexName]
	return p, ok
}

// hostConfigFile is the HCL schema:
//
//	loci = ["data", "cluster-manager"]
//
//	vertex "cpu_util" {
//	  thresholds = {
//	    warn     = 0.8
//	    critical = 0.95
//	  }
//	}
//
//	peer "disk_util" {
//	  address = "host-b.internal:7070"
//	}
type hostConfigFile struct {
	Loci     []string            `hcl:"loci"`
	Vertices []vertexConfigBlock `hcl:"vertex,block"`
	Peers    []peerBlock         `hcl:"peer,block"`
}

type vertexConfigBlock struct {
	Name       string             `hcl:"name,label"`
	Thresholds map[string]float64 `hcl:"thresholds,optional"`
}

type peerBlock struct {
	VertexName string `hcl:"name,label"`
	Address    string `hcl:"address"`
}

// Load parses the host configuration file at path.
func Load(path string) (*HostConfig, error) {
	var raw hostConfigFile
	if err := hclsimple.DecodeFile(path, nil, &raw); err != nil {
		return nil, rcaerrors.WrapConfigurationError(err, "failed to parse host configuration at "+path)
	}
	return fromFile(raw), nil
}

func fromFile(raw hostConfigFile) *HostConfig {
	cfg := &HostConfig{
		Loci:         collections.NewSet(raw.Loci...),
		VertexParams: make(map[string]VertexParams, len(raw.Vertices)),
		Peers:        make(map[string]string, len(raw.Peers)),
	}
	for _, v := range raw.Vertices {
		cfg.VertexParams[v.Name] = VertexParams{Thresholds: v.Thresholds}
	}
	for _, p := range raw.Peers {
		cfg.Peers[p.VertexName] = p.Address
	}
	return cfg
}
