// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2023 HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package debugviz

import (
	"bufio"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rca-engine/scheduler/internal/tasklet"
)

// Attributes is a Graphviz node or edge attribute list, keyed by attribute
// name. The debug renderer never needs Graphviz's HTML-like label syntax —
// every node here is a plain tasklet, styled with at most a shape, a style,
// and a label — so, unlike the teacher's dag/graphviz package, Value only
// ever holds a plain string or int.
type Attributes = map[string]Value

// Value is one attribute's value, rendered by asAttributeValue.
type Value interface {
	asAttributeValue() string
}

// Val converts a string or int into a Value for use in Attributes.
func Val[T string | int](from T) Value {
	switch from := any(from).(type) {
	case string:
		return stringValue(from)
	case int:
		return stringValue(strconv.Itoa(from))
	default:
		panic("unreachable")
	}
}

type stringValue string

func (s stringValue) asAttributeValue() string {
	return quoteForGraphviz(string(s))
}

// Node is one rendered vertex: its Graphviz node ID and the attributes
// describing it.
type Node struct {
	ID    string
	Attrs Attributes
}

// nodeForTasklet builds the Node for t, styling RemoteProxy tasklets
// distinctly from Local ones and annotating any tasklet with a non-default
// tick cadence, so a reader scanning the rendered graph can immediately see
// which vertices this host actually computes.
func nodeForTasklet(t *tasklet.Tasklet, levelIdx int) Node {
	attrs := Attributes{
		"level": Val(levelIdx),
	}
	if t.Kind == tasklet.RemoteProxy {
		attrs["shape"] = Val("box")
		attrs["style"] = Val("dashed")
	} else {
		attrs["shape"] = Val("ellipse")
	}
	if t.Period > 1 {
		attrs["label"] = Val(labelWithCadence(t))
	}
	return Node{ID: t.VertexName, Attrs: attrs}
}

func labelWithCadence(t *tasklet.Tasklet) string {
	return t.VertexName + " (every " + strconv.Itoa(t.Period) + " ticks)"
}

func writeGraphvizAttrList(a Attributes, w *bufio.Writer) error {
	names := slices.Collect(maps.Keys(a))
	slices.Sort(names)
	for i, name := range names {
		if i != 0 {
			if err := w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := writeGraphvizAttr(name, a[name], w); err != nil {
			return err
		}
	}
	return nil
}

func writeGraphvizAttr(name string, val Value, w *bufio.Writer) error {
	if _, err := w.WriteString(quoteForGraphviz(name)); err != nil {
		return err
	}
	if err := w.WriteByte('='); err != nil {
		return err
	}
	_, err := w.WriteString(val.asAttributeValue())
	return err
}

func quoteForGraphviz(s string) string {
	// Left unquoted when possible, for more readable output. "node" and
	// "edge" are forced to be quoted because Graphviz gives those bare
	// words special meaning at statement position.
	if validUnquoteID.MatchString(s) && s != "node" && s != "edge" {
		return s
	}
	var buf strings.Builder
	buf.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			buf.WriteRune(c)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}

var validUnquoteID = regexp.MustCompile(`^(?:[a-zA-Z\200-\377_][a-zA-Z0-9\200-\377_]*|-?(?:\.[0-9]+|[0-9]+(?:\.[0-9]*)?))$`)
