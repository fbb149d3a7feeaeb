package i18n

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// Segment is one piece of a translatable message: literal text, or a
// named placeholder together with the nodes that render its value.
type Segment struct {
	// Literal is the text of a literal segment. Placeholder segments
	// leave it empty.
	Literal string
	// Name is the placeholder name, substituted into the translated
	// message as ${name}.
	Name string
	// Nodes produce the placeholder's rendered value.
	Nodes []ir.Node
}

// Segments splits a translation node's children into the literal and
// placeholder segments its message id is built from. Text children are
// literals. A placeholder child keeps its declared name, an
// interpolation is named by its own expression text, and any other
// child becomes a positional dynamic.N placeholder counting from 1.
func Segments(n *ir.Translation) []Segment {
	var segs []Segment
	dynamic := 0
	for _, child := range n.Children {
		switch c := child.(type) {
		case *ir.Text:
			segs = append(segs, Segment{Literal: c.Content})
		case *ir.Placeholder:
			segs = append(segs, Segment{Name: c.Name, Nodes: c.Children})
		case *ir.Interpolate:
			segs = append(segs, Segment{Name: strings.TrimSpace(c.Expr), Nodes: []ir.Node{c}})
		default:
			dynamic++
			segs = append(segs, Segment{Name: fmt.Sprintf("dynamic.%d", dynamic), Nodes: []ir.Node{child}})
		}
	}
	return segs
}

// Message returns the node's message id: the explicit message override
// when one was declared, else the concatenation of its segments with
// placeholders written as ${name}, passed through the node's
// whitespace mode.
func Message(n *ir.Translation) string {
	if n.Message != "" {
		return n.Message
	}
	var b strings.Builder
	for _, seg := range Segments(n) {
		if seg.Name != "" {
			b.WriteString("${")
			b.WriteString(seg.Name)
			b.WriteString("}")
			continue
		}
		b.WriteString(seg.Literal)
	}
	return applyWhitespace(b.String(), n.Whitespace)
}

// applyWhitespace applies a translation whitespace mode: "normalize"
// (the default) collapses whitespace runs to single spaces and trims,
// "trim" trims the ends, "dedent" removes the common indent and trims,
// anything else preserves the text as written.
func applyWhitespace(s, mode string) string {
	switch mode {
	case "", "normalize":
		return strings.Join(strings.Fields(s), " ")
	case "trim":
		return strings.TrimSpace(s)
	case "dedent":
		return strings.TrimSpace(runtime.Dedent(s))
	default:
		return s
	}
}
