// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package debugviz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rca-engine/scheduler/internal/partition"
	"github.com/rca-engine/scheduler/internal/scheduler"
	"github.com/rca-engine/scheduler/internal/tasklet"
)

func TestWriteDirectedGraphDeterministicOutput(t *testing.T) {
	cpu := tasklet.NewLocal("cpu_util", 1, nil, nil, nil, nil, nil, nil)
	disk := tasklet.NewRemoteProxy("disk_util", 1, nil)
	alert := tasklet.NewLocal("overload_alert", 3, nil, []*tasklet.Tasklet{cpu, disk}, nil, nil, nil, nil)

	outbound := partition.NewRoutingMap()
	outbound.Add("cpu_util", "cluster_summary")

	g := &scheduler.ScheduledGraph{
		Levels: [][]*tasklet.Tasklet{
			{cpu, disk},
			{alert},
		},
		Outbound: outbound,
	}

	var buf1, buf2 strings.Builder
	require.NoError(t, WriteDirectedGraph(&Graph{Content: g}, &buf1))
	require.NoError(t, WriteDirectedGraph(&Graph{Content: g}, &buf2))

	out := buf1.String()
	assert.Equal(t, out, buf2.String(), "rendering the same graph twice must be byte-for-byte identical")

	assert.Contains(t, out, "digraph {")
	assert.Contains(t, out, "cluster_level_0")
	assert.Contains(t, out, "cluster_level_1")
	assert.Contains(t, out, `cpu_util -> overload_alert`)
	assert.Contains(t, out, `disk_util -> overload_alert`)
	assert.Contains(t, out, `cpu_util -> cluster_summary [style=dashed,label=remote]`)
	assert.Contains(t, out, `overload_alert (every 3 ticks)`)
	assert.Contains(t, out, `shape=box`)
	assert.Contains(t, out, `style=dashed`)
}

func TestWriteDirectedGraphNilOutboundIsSkipped(t *testing.T) {
	cpu := tasklet.NewLocal("cpu_util", 1, nil, nil, nil, nil, nil, nil)
	g := &scheduler.ScheduledGraph{Levels: [][]*tasklet.Tasklet{{cpu}}}

	var buf strings.Builder
	require.NoError(t, WriteDirectedGraph(&Graph{Content: g}, &buf))
	assert.Contains(t, buf.String(), "cpu_util")
	assert.NotContains(t, buf.String(), "remote")
}

func TestWriteDirectedGraphTopLevelAndDefaultAttrs(t *testing.T) {
	g := &scheduler.ScheduledGraph{Levels: [][]*tasklet.Tasklet{}}

	var buf strings.Builder
	err := WriteDirectedGraph(&Graph{
		Content:          g,
		Attrs:            Attributes{"rankdir": Val("LR")},
		DefaultNodeAttrs: Attributes{"fontsize": Val(10)},
	}, &buf)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "rankdir=LR;")
	assert.Contains(t, out, "node [fontsize=10];")
}
