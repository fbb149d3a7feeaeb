package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/weft/pkg/ir"
)

func TestSegments(t *testing.T) {
	count := &ir.Interpolate{Expr: "n"}
	sender := &ir.Interpolate{Expr: " sender "}
	n := &ir.Translation{Children: []ir.Node{
		&ir.Text{Content: "You have "},
		&ir.Placeholder{Name: "count", Children: []ir.Node{count}},
		&ir.Text{Content: " messages from "},
		sender,
		&ir.If{Test: "admin", Children: []ir.Node{&ir.Text{Content: "!"}}},
	}}

	segs := Segments(n)
	require.Len(t, segs, 5)

	assert.Equal(t, "You have ", segs[0].Literal)

	assert.Equal(t, "count", segs[1].Name)
	require.Len(t, segs[1].Nodes, 1)
	assert.Same(t, count, segs[1].Nodes[0])

	assert.Equal(t, " messages from ", segs[2].Literal)

	// An interpolation names itself by its trimmed expression.
	assert.Equal(t, "sender", segs[3].Name)
	require.Len(t, segs[3].Nodes, 1)
	assert.Same(t, sender, segs[3].Nodes[0])

	// Anything else gets a positional name.
	assert.Equal(t, "dynamic.1", segs[4].Name)
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		node *ir.Translation
		want string
	}{
		{
			"explicit override",
			&ir.Translation{Message: "greeting.hello", Children: []ir.Node{&ir.Text{Content: "Hi"}}},
			"greeting.hello",
		},
		{
			"normalize collapses runs",
			&ir.Translation{Children: []ir.Node{
				&ir.Text{Content: "  You have\n "},
				&ir.Placeholder{Name: "count"},
				&ir.Text{Content: "  new  messages  "},
			}},
			"You have ${count} new messages",
		},
		{
			"trim keeps inner runs",
			&ir.Translation{Whitespace: "trim", Children: []ir.Node{
				&ir.Text{Content: "  a  b  "},
			}},
			"a  b",
		},
		{
			"dedent strips common indent",
			&ir.Translation{Whitespace: "dedent", Children: []ir.Node{
				&ir.Text{Content: "\n  first\n  second\n"},
			}},
			"first\nsecond",
		},
		{
			"preserve keeps text as written",
			&ir.Translation{Whitespace: "preserve", Children: []ir.Node{
				&ir.Text{Content: "  a  b  "},
			}},
			"  a  b  ",
		},
		{
			"interpolation placeholder",
			&ir.Translation{Children: []ir.Node{
				&ir.Text{Content: "Hi "},
				&ir.Interpolate{Expr: " user "},
			}},
			"Hi ${user}",
		},
		{
			"empty",
			&ir.Translation{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.node))
		})
	}
}
