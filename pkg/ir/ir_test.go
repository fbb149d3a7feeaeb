package ir

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/weft/pkg/token"
)

func pos(line, col int) token.Position {
	return token.Position{File: "test.html", Line: line, Col: col}
}

func sampleTree() *Container {
	return &Container{
		Position: pos(1, 1),
		Children: []Node{
			&Extends{Position: pos(1, 1), Href: "layout.html", Children: []Node{
				&Block{Position: pos(2, 1), Name: "title", Children: []Node{
					&Text{Position: pos(2, 20), Content: "Hello"},
				}},
				&For{Position: pos(3, 1), Each: "x in xs", Children: []Node{
					&If{
						Position: pos(4, 1),
						Test:     "x.ok",
						Children: []Node{
							&Interpolate{Position: pos(4, 12), Expr: "x.name", AutoEscape: true},
						},
						Else: &Else{Position: pos(5, 1), Children: []Node{
							&Text{Position: pos(5, 10), Content: "-"},
						}},
					},
				}},
				&With{Position: pos(7, 1), Vars: []WithVar{{Target: "y", Expr: "x * 2"}}, Children: []Node{
					&Interpolate{Position: pos(7, 20), Expr: "y", AutoEscape: false},
				}},
			}},
		},
	}
}

func TestWalkVisitsElseBranch(t *testing.T) {
	var texts []string
	Walk(sampleTree(), func(n Node) bool {
		if text, ok := n.(*Text); ok {
			texts = append(texts, text.Content)
		}
		return true
	})
	assert.Equal(t, []string{"Hello", "-"}, texts)
}

func TestWalkStopsDescent(t *testing.T) {
	var kinds int
	Walk(sampleTree(), func(n Node) bool {
		kinds++
		_, isExtends := n.(*Extends)
		return !isExtends
	})
	// Only the root container and the extends node are visited.
	assert.Equal(t, 2, kinds)
}

func TestFindAll(t *testing.T) {
	tree := sampleTree()

	interps := FindAll[*Interpolate](tree)
	require.Len(t, interps, 2)
	assert.Equal(t, "x.name", interps[0].Expr)
	assert.Equal(t, "y", interps[1].Expr)

	extends := FindAll[*Extends](tree)
	require.Len(t, extends, 1)
	assert.Equal(t, "layout.html", extends[0].Href)
}

func TestRewriteDropsEmptyText(t *testing.T) {
	tree := &Container{Children: []Node{
		&Text{Content: ""},
		&Block{Name: "b", Children: []Node{
			&Text{Content: ""},
			&Text{Content: "keep"},
		}},
	}}

	Rewrite(tree, func(children []Node) []Node {
		out := children[:0]
		for _, c := range children {
			if text, ok := c.(*Text); ok && text.Content == "" {
				continue
			}
			out = append(out, c)
		}
		return out
	})

	require.Len(t, tree.Children, 1)
	block := tree.Children[0].(*Block)
	require.Len(t, block.Children, 1)
	assert.Equal(t, "keep", block.Children[0].(*Text).Content)
}

func TestCodecRoundTrip(t *testing.T) {
	doc := &Doc{Version: FormatVersion, Kind: "markup", Root: sampleTree()}

	var buf bytes.Buffer
	require.NoError(t, EncodeDoc(&buf, doc))

	got, err := DecodeDoc(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestCodecPreservesAutoEscape(t *testing.T) {
	doc := &Doc{Version: FormatVersion, Kind: "text", Root: &Container{Children: []Node{
		&Interpolate{Expr: "a", AutoEscape: true},
		&Interpolate{Expr: "b", AutoEscape: false},
	}}}

	var buf bytes.Buffer
	require.NoError(t, EncodeDoc(&buf, doc))
	got, err := DecodeDoc(&buf)
	require.NoError(t, err)

	interps := FindAll[*Interpolate](got.Root)
	require.Len(t, interps, 2)
	assert.True(t, interps[0].AutoEscape)
	assert.False(t, interps[1].AutoEscape)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := DecodeDoc(bytes.NewReader([]byte(`{"version":1,"kind":"markup","root":{"k":"wibble"}}`)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node kind")
}
