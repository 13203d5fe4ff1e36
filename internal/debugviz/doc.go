// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package debugviz renders a scheduler.ScheduledGraph as a Graphviz-language
// "digraph", grouping tasklets into the levels the partitioner assigned them
// to, for use when diagnosing why a vertex ended up local, remote-proxied, or
// at an unexpected level.
package debugviz
