// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rca-engine/scheduler/internal/config"
	"github.com/rca-engine/scheduler/internal/evaluator"
	"github.com/rca-engine/scheduler/internal/graph"
)

func TestRegisterDefaultEvaluatorsNonPedanticCoversEveryKind(t *testing.T) {
	components := []*graph.Component{
		{Levels: []graph.Level{{
			{Name: "cpu", Kind: graph.KindMetricSource},
			{Name: "cpu_over_threshold", Kind: graph.KindComputed},
			{Name: "cluster_summary", Kind: graph.KindSummarizer},
		}}},
	}

	registry := evaluator.New()
	registerDefaultEvaluators(registry, components, false)

	require.NoError(t, validateEvaluatorCoverage(registry, components))
}

func TestRegisterDefaultEvaluatorsPedanticRegistersNothing(t *testing.T) {
	components := []*graph.Component{
		{Levels: []graph.Level{{
			{Name: "cpu", Kind: graph.KindMetricSource},
			{Name: "cpu_over_threshold", Kind: graph.KindComputed},
		}}},
	}

	registry := evaluator.New()
	registerDefaultEvaluators(registry, components, true)

	err := validateEvaluatorCoverage(registry, components)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cpu"`)
	assert.Contains(t, err.Error(), `"cpu_over_threshold"`)

	_, ok := registry.For(&graph.Vertex{Name: "cpu", Kind: graph.KindMetricSource}, config.VertexParams{})
	assert.False(t, ok, "-pedantic must not fall back to the generic built-ins")
}

func TestRegisterDefaultEvaluatorsPedanticHonorsPreRegisteredFactories(t *testing.T) {
	components := []*graph.Component{
		{Levels: []graph.Level{{
			{Name: "bespoke", Kind: graph.KindComputed},
		}}},
	}

	registry := evaluator.New()
	registry.Register("bespoke", evaluator.ThresholdFactory("value", 0.5))
	registerDefaultEvaluators(registry, components, true)

	require.NoError(t, validateEvaluatorCoverage(registry, components))
}

func TestValidateEvaluatorCoverageChecksEveryVertexNotJustLocalOnes(t *testing.T) {
	components := []*graph.Component{
		{Levels: []graph.Level{
			{{Name: "remote_only", Kind: graph.KindComputed}},
		}},
	}

	registry := evaluator.New()
	err := validateEvaluatorCoverage(registry, components)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote_only")
}
