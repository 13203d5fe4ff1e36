// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package evaluator

import (
	"context"
	"fmt"
	"time"

	"github.com/rca-engine/scheduler/internal/config"
	"github.com/rca-engine/scheduler/internal/flowunit"
	"github.com/rca-engine/scheduler/internal/graph"
	"github.com/rca-engine/scheduler/internal/metricsource"
	"github.com/rca-engine/scheduler/internal/tasklet"
)

// ThresholdFactory builds an evaluator for a graph.KindComputed vertex that
// flags an anomaly whenever the named field on its first upstream flow unit
// exceeds the vertex's configured threshold for that field. It is a
// deliberately small, deployment-agnostic building block; real anomaly
// detection logic belongs to whatever Factory a deployment registers
// instead.
func ThresholdFactory(fieldName string, fallback float64) Factory {
	return func(v *graph.Vertex, params config.VertexParams) tasklet.LocalEvaluator {
		limit := Threshold(params, fieldName, fallback)
		name := v.Name
		return func(_ context.Context, preds []flowunit.FlowUnit, _ metricsource.Source) (flowunit.FlowUnit, error) {
			if len(preds) == 0 || preds[0].IsEmpty() {
				return flowunit.Empty(name), nil
			}
			value, ok := preds[0].Fields[fieldName].(float64)
			if !ok {
				return flowunit.Empty(name), nil
			}
			fields := map[string]any{
				fieldName:   value,
				"threshold": limit,
				"breached":  value > limit,
			}
			return flowunit.New(name, fields, preds[0].ProducedAt), nil
		}
	}
}

// MetricSourceFactory builds an evaluator for a graph.KindMetricSource
// vertex: it ignores its predecessors entirely and reads fieldNames
// directly from the injected metricsource.Source.
func MetricSourceFactory(fieldNames ...string) Factory {
	return func(v *graph.Vertex, _ config.VertexParams) tasklet.LocalEvaluator {
		name := v.Name
		return func(ctx context.Context, _ []flowunit.FlowUnit, metrics metricsource.Source) (flowunit.FlowUnit, error) {
			if metrics == nil {
				return flowunit.Empty(name), fmt.Errorf("vertex %q is a metric-source vertex but no metric source was configured", name)
			}
			batch, err := metrics.ReadMetric(ctx, name, fieldNames)
			if err != nil {
				return flowunit.FlowUnit{}, err
			}
			if batch.IsEmpty() {
				return flowunit.Empty(name), nil
			}
			fields := make(map[string]any, len(batch.Fields))
			for k, v := range batch.Fields {
				fields[k] = v
			}
			return flowunit.New(name, fields, time.Now()), nil
		}
	}
}

// SummarizerFactory builds an evaluator for a graph.KindSummarizer vertex:
// it folds every non-empty upstream flow unit's named field into a single
// summary record using reduce, under the given summary field name.
func SummarizerFactory(fieldName, summaryName string, reduce func(acc, next float64) float64, seed float64) Factory {
	return func(v *graph.Vertex, _ config.VertexParams) tasklet.LocalEvaluator {
		name := v.Name
		return func(_ context.Context, preds []flowunit.FlowUnit, _ metricsource.Source) (flowunit.FlowUnit, error) {
			acc := seed
			contributed := 0
			producedAt := time.Now()
			for _, pred := range preds {
				if pred.IsEmpty() {
					continue
				}
				value, ok := pred.Fields[fieldName].(float64)
				if !ok {
					continue
				}
				acc = reduce(acc, value)
				contributed++
				producedAt = pred.ProducedAt
			}
			if contributed == 0 {
				return flowunit.Empty(name), nil
			}
			return flowunit.New(name, map[string]any{summaryName: acc, "sample_count": contributed}, producedAt), nil
		}
	}
}
