// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package graph

import (
	"testing"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGraphHCL = `
vertex "cpu_util" {
  locus = "data"
  kind  = "metric-source"
}

vertex "disk_util" {
  locus = "data"
  kind  = "metric-source"
}

vertex "cluster_summary" {
  locus              = "cluster"
  kind               = "summarizer"
  upstreams          = ["cpu_util", "disk_util"]
  aggregate_upstream = "data"
  period             = 4
}
`

func TestLoadStaticGraphLevels(t *testing.T) {
	var raw graphFile
	require.NoError(t, hclsimple.Decode("graph.hcl", []byte(sampleGraphHCL), nil, &raw))

	components, err := fromGraphFile(raw)
	require.NoError(t, err)
	require.Len(t, components, 1)

	levels := components[0].Levels
	require.Len(t, levels, 2)
	assert.Len(t, levels[0], 2)
	assert.Len(t, levels[1], 1)
	assert.Equal(t, "cluster_summary", levels[1][0].Name)
	assert.Equal(t, 4, levels[1][0].Period)
	assert.Equal(t, KindSummarizer, levels[1][0].Kind)

	aggLocus, ok := levels[1][0].AggregateUpstream()
	assert.True(t, ok)
	assert.Equal(t, "data", aggLocus)
}

func TestLoadStaticDetectsCycle(t *testing.T) {
	const cyclic = `
vertex "a" {
  upstreams = ["b"]
}
vertex "b" {
  upstreams = ["a"]
}
`
	var raw graphFile
	require.NoError(t, hclsimple.Decode("graph.hcl", []byte(cyclic), nil, &raw))

	_, err := fromGraphFile(raw)
	require.Error(t, err)
}

func TestLoadStaticDetectsUnknownUpstream(t *testing.T) {
	const broken = `
vertex "a" {
  upstreams = ["missing"]
}
`
	var raw graphFile
	require.NoError(t, hclsimple.Decode("graph.hcl", []byte(broken), nil, &raw))

	_, err := fromGraphFile(raw)
	require.Error(t, err)
}

func TestLoadStaticSplitsDisjointComponents(t *testing.T) {
	const twoComponents = `
vertex "a" {}
vertex "b" {
  upstreams = ["a"]
}
vertex "x" {}
`
	var raw graphFile
	require.NoError(t, hclsimple.Decode("graph.hcl", []byte(twoComponents), nil, &raw))

	components, err := fromGraphFile(raw)
	require.NoError(t, err)
	assert.Len(t, components, 2)
}
