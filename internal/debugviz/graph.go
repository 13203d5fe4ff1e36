// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package debugviz

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rca-engine/scheduler/internal/scheduler"
	"github.com/rca-engine/scheduler/internal/tasklet"
)

// EdgeAttachmentDirection models what Graphviz calls a "compass point": the
// side of a node an edge attaches to. A Graph's default is almost always
// EdgeAttachmentAny (Graphviz picks a side), since tasklet edges have no
// natural port to attach to; the named compass points exist for a caller
// who wants to pin predecessor edges to a particular side when laying out a
// dense graph by hand.
type EdgeAttachmentDirection string

const (
	EdgeAttachmentAny       = EdgeAttachmentDirection("")
	EdgeAttachmentNorth     = EdgeAttachmentDirection(":n")
	EdgeAttachmentEast      = EdgeAttachmentDirection(":e")
	EdgeAttachmentSouth     = EdgeAttachmentDirection(":s")
	EdgeAttachmentWest      = EdgeAttachmentDirection(":w")
	EdgeAttachmentNorthEast = EdgeAttachmentDirection(":ne")
	EdgeAttachmentSouthEast = EdgeAttachmentDirection(":se")
	EdgeAttachmentNorthWest = EdgeAttachmentDirection(":nw")
	EdgeAttachmentSouthWest = EdgeAttachmentDirection(":sw")
	EdgeAttachmentCenter    = EdgeAttachmentDirection(":c")
)

// Graph annotates a scheduler.ScheduledGraph with the Graphviz styling this
// package applies when rendering it: top-level graph attributes, default
// node/edge styling, and the compass points new edges attach at.
type Graph struct {
	Content *scheduler.ScheduledGraph

	Attrs            Attributes
	DefaultNodeAttrs Attributes
	DefaultEdgeAttrs Attributes

	DefaultEdgeDirectionIn  EdgeAttachmentDirection
	DefaultEdgeDirectionOut EdgeAttachmentDirection
}

// WriteDirectedGraph generates a Graphviz-language representation of g's
// tasklet levels on w: one subgraph cluster per level, an edge into every
// tasklet from each of its predecessors, and a further dashed edge out to each
// remote consumer recorded in the Outbound Routing Map, so a reader can see
// both where a vertex's inputs come from and who else is consuming its
// output across the network.
//
// If this function returns an error then an unspecified amount of partial
// data might already have been written to w before returning it.
func WriteDirectedGraph(g *Graph, w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString("digraph {\n"); err != nil {
		return err
	}
	if err := writeTopLevelAttrs(g.Attrs, bw); err != nil {
		return err
	}
	if err := writeDefaultAttrBlock("node", g.DefaultNodeAttrs, bw); err != nil {
		return err
	}
	if err := writeDefaultAttrBlock("edge", g.DefaultEdgeAttrs, bw); err != nil {
		return err
	}

	levels := g.Content.Levels
	for levelIdx, level := range levels {
		if err := writeLevelCluster(levelIdx, level, bw); err != nil {
			return err
		}
	}

	for _, level := range levels {
		for _, t := range level {
			for _, pred := range t.Predecessors {
				if err := writeEdge(pred.VertexName, t.VertexName, g, bw); err != nil {
					return err
				}
			}
			if g.Content.Outbound == nil {
				continue
			}
			destinations, ok := g.Content.Outbound.Destinations(t.VertexName)
			if !ok {
				continue
			}
			for _, dest := range destinations {
				if err := writeRemoteEdge(t.VertexName, dest, g, bw); err != nil {
					return err
				}
			}
		}
	}

	if _, err := bw.WriteString("}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func writeTopLevelAttrs(attrs Attributes, bw *bufio.Writer) error {
	if len(attrs) == 0 {
		return nil
	}
	for _, name := range sortedAttrNames(attrs) {
		if _, err := bw.WriteString("  "); err != nil {
			return err
		}
		if err := writeGraphvizAttr(name, attrs[name], bw); err != nil {
			return err
		}
		if _, err := bw.WriteString(";\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeDefaultAttrBlock(kind string, attrs Attributes, bw *bufio.Writer) error {
	if len(attrs) == 0 {
		return nil
	}
	if _, err := bw.WriteString("  " + kind + " ["); err != nil {
		return err
	}
	if err := writeGraphvizAttrList(attrs, bw); err != nil {
		return err
	}
	_, err := bw.WriteString("];\n")
	return err
}

func writeLevelCluster(levelIdx int, level []*tasklet.Tasklet, bw *bufio.Writer) error {
	if _, err := fmt.Fprintf(bw, "  subgraph cluster_level_%d {\n", levelIdx); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(bw, "    label = %s;\n", quoteForGraphviz(fmt.Sprintf("level %d", levelIdx))); err != nil {
		return err
	}
	for _, t := range level {
		node := nodeForTasklet(t, levelIdx)
		if _, err := bw.WriteString("    "); err != nil {
			return err
		}
		if _, err := bw.WriteString(quoteForGraphviz(node.ID)); err != nil {
			return err
		}
		if len(node.Attrs) != 0 {
			if _, err := bw.WriteString(" ["); err != nil {
				return err
			}
			if err := writeGraphvizAttrList(node.Attrs, bw); err != nil {
				return err
			}
			if _, err := bw.WriteString("]"); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(";\n"); err != nil {
			return err
		}
	}
	_, err := bw.WriteString("  }\n")
	return err
}

func writeEdge(srcName, dstName string, g *Graph, bw *bufio.Writer) error {
	if _, err := bw.WriteString("  "); err != nil {
		return err
	}
	if _, err := bw.WriteString(quoteForGraphviz(srcName)); err != nil {
		return err
	}
	if _, err := bw.WriteString(string(g.DefaultEdgeDirectionOut)); err != nil {
		return err
	}
	if _, err := bw.WriteString(" -> "); err != nil {
		return err
	}
	if _, err := bw.WriteString(quoteForGraphviz(dstName)); err != nil {
		return err
	}
	if _, err := bw.WriteString(string(g.DefaultEdgeDirectionIn)); err != nil {
		return err
	}
	_, err := bw.WriteString(";\n")
	return err
}

// writeRemoteEdge renders the edge from a local producer to a consumer
// vertex recorded in the Outbound Routing Map. These vertices run on a
// different host and therefore never appear as a node in this host's own
// graph, so Graphviz will draw them as an implicitly declared node; the
// dashed style marks the edge as crossing the network rather than being a
// same-host dependency.
func writeRemoteEdge(producer, consumer string, g *Graph, bw *bufio.Writer) error {
	if _, err := bw.WriteString("  "); err != nil {
		return err
	}
	if _, err := bw.WriteString(quoteForGraphviz(producer)); err != nil {
		return err
	}
	if _, err := bw.WriteString(" -> "); err != nil {
		return err
	}
	if _, err := bw.WriteString(quoteForGraphviz(consumer)); err != nil {
		return err
	}
	if _, err := bw.WriteString(" [style=dashed,label=remote]"); err != nil {
		return err
	}
	_, err := bw.WriteString(";\n")
	return err
}

func sortedAttrNames(attrs Attributes) []string {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
