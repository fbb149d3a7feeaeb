package template

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDepGraph_Dependencies(t *testing.T) {
	g := newDepGraph()

	// page loads layout, layout loads base; page also loads widget.
	g.addEdge("layout", "page")
	g.addEdge("base", "layout")
	g.addEdge("widget", "page")

	assert.Equal(t, []string{"base", "layout", "widget"}, g.dependencies("page"))
	assert.Equal(t, []string{"base"}, g.dependencies("layout"))
	assert.Empty(t, g.dependencies("base"))
}

func TestDepGraph_Affected(t *testing.T) {
	g := newDepGraph()
	g.addEdge("layout", "page")
	g.addEdge("base", "layout")
	g.addEdge("widget", "page")

	assert.Equal(t, []string{"base", "layout", "page"}, g.affected([]string{"base"}))
	assert.Equal(t, []string{"page", "widget"}, g.affected([]string{"widget"}))
	// A changed path nobody tracks still comes back.
	assert.Equal(t, []string{"stray"}, g.affected([]string{"stray"}))
}

func TestDepGraph_AddEdge_Dedupes(t *testing.T) {
	g := newDepGraph()
	g.addEdge("base", "page")
	g.addEdge("base", "page")
	g.addEdge("page", "page")

	assert.Equal(t, []string{"base"}, g.deps["page"])
	assert.Equal(t, []string{"page"}, g.dependents["base"])
	assert.NotContains(t, g.deps["page"], "page")
}

func TestDepGraph_Reset(t *testing.T) {
	g := newDepGraph()
	g.addEdge("base", "page")
	g.addEdge("widget", "page")
	g.addEdge("page", "outer")

	then := time.Now()
	g.reset("page", then)

	// Outgoing edges are gone, the incoming edge survives.
	assert.Empty(t, g.dependencies("page"))
	assert.Equal(t, []string{"page"}, g.dependencies("outer"))
	assert.NotContains(t, g.dependents["base"], "page")

	m, ok := g.mtime("page")
	assert.True(t, ok)
	assert.True(t, m.Equal(then))
}

func TestDepGraph_Touch(t *testing.T) {
	g := newDepGraph()
	_, ok := g.mtime("page")
	assert.False(t, ok)

	then := time.Now()
	g.touch("page", then)
	m, ok := g.mtime("page")
	assert.True(t, ok)
	assert.True(t, m.Equal(then))
}
