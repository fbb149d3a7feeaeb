package compile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
	"github.com/leapstack-labs/weft/pkg/token"
)

func TestBlock_DefaultRenders(t *testing.T) {
	prog := compileTree(t, "base.html",
		text("<main>"),
		&ir.Block{Name: "content", Children: []ir.Node{text("base")}},
		text("</main>"),
	)

	assert.Equal(t, "<main>base</main>", render(t, prog, nil, nil))
}

// buildChain compiles three templates where stripes.html extends
// bands.html extends base.html, each block splicing super() in front of
// its own contribution.
func buildChain(t *testing.T) (*stubLoader, map[string]*stubTemplate) {
	t.Helper()

	base := compileBound(t, "base.html",
		text("<main>"),
		&ir.Block{Name: "content", Children: []ir.Node{text("base")}},
		text("</main>"),
	)
	bands := compileBound(t, "bands.html",
		&ir.Extends{Href: "base.html", Children: []ir.Node{
			text("never rendered"),
			&ir.Block{Name: "content", Children: []ir.Node{interp("super()"), text(" bands")}},
		}},
	)
	stripes := compileBound(t, "stripes.html",
		&ir.Extends{Href: "bands.html", Children: []ir.Node{
			&ir.Block{Name: "content", Children: []ir.Node{interp("super()"), text(" stripes")}},
		}},
	)

	loader := &stubLoader{templates: map[string]runtime.Template{
		"base.html":    base,
		"bands.html":   bands,
		"stripes.html": stripes,
	}}
	return loader, map[string]*stubTemplate{"base": base, "bands": bands, "stripes": stripes}
}

func TestExtends_ChainsRootward(t *testing.T) {
	loader, tmpls := buildChain(t)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"base alone", "base", "<main>base</main>"},
		{"one level", "bands", "<main>base bands</main>"},
		{"two levels", "stripes", "<main>base bands stripes</main>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(t, tmpls[tt.tmpl].Program(), loader, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtends_OverrideReplacesDefault(t *testing.T) {
	base := compileBound(t, "base.html",
		&ir.Block{Name: "title", Children: []ir.Node{text("default")}},
	)
	child := compileBound(t, "child.html",
		&ir.Extends{Href: "base.html", Children: []ir.Node{
			&ir.Block{Name: "title", Children: []ir.Node{text("override")}},
		}},
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"base.html": base}}

	assert.Equal(t, "override", render(t, child.Program(), loader, nil))
}

func TestExtends_IgnoreMissing(t *testing.T) {
	loader := &stubLoader{templates: map[string]runtime.Template{}}

	prog := compileTree(t, "child.html",
		text("a"),
		&ir.Extends{Href: "gone.html", IgnoreMissing: true, Children: []ir.Node{
			&ir.Block{Name: "x", Children: []ir.Node{text("never")}},
		}},
		text("b"),
	)
	assert.Equal(t, "ab", render(t, prog, loader, nil),
		"a missing ignore-missing parent contributes nothing")

	strict := compileTree(t, "child.html",
		&ir.Extends{Href: "gone.html"},
	)
	_, err := renderErr(strict, loader, nil)
	require.Error(t, err, "expected error")
	var nf *runtime.TemplateNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestInclude_SplicesOutput(t *testing.T) {
	item := compileBound(t, "item.html",
		text("<li>"), interp("name"), text("</li>"),
	)
	page := compileBound(t, "page.html",
		text("<ul>"), &ir.Include{Href: "item.html"}, text("</ul>"),
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"item.html": item}}

	got := render(t, page.Program(), loader, map[string]any{"name": "Bo"})
	assert.Equal(t, "<ul><li>Bo</li></ul>", got)
}

func TestInclude_PassesBlocksAndRestores(t *testing.T) {
	// The including template's blocks override the included template's
	// slots for the duration of the include, and only for its duration:
	// the trailing slot renders against a clean state again.
	part := compileBound(t, "part.html",
		text("part:"),
		&ir.Block{Name: "probe", Children: []ir.Node{text("LEAK")}},
	)
	page := compileBound(t, "page.html",
		text("["),
		&ir.Include{Href: "part.html"},
		text("]"),
		&ir.Block{Name: "probe", Children: []ir.Node{interp("super()"), text("mine")}},
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"part.html": part}}

	got := render(t, page.Program(), loader, nil)
	assert.Equal(t, "[part:LEAKmine]mine", got)
}

func TestInclude_IgnoreMissing(t *testing.T) {
	loader := &stubLoader{templates: map[string]runtime.Template{}}

	prog := compileTree(t, "page.html",
		text("a"),
		&ir.Include{Href: "gone.html", IgnoreMissing: true},
		text("b"),
	)
	assert.Equal(t, "ab", render(t, prog, loader, nil))

	strict := compileTree(t, "page.html",
		&ir.Include{Href: "gone.html"},
	)
	_, err := renderErr(strict, loader, nil)
	require.Error(t, err, "expected error")
	var nf *runtime.TemplateNotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestInclude_DynamicHref(t *testing.T) {
	item := compileBound(t, "parts/item.html", text("ITEM"))
	page := compileBound(t, "page.html",
		text("["), &ir.Include{Href: "parts/${which}.html"}, text("]"),
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"parts/item.html": item}}

	got := render(t, page.Program(), loader, map[string]any{"which": "item"})
	assert.Equal(t, "[ITEM]", got)
}

func TestInclude_Self(t *testing.T) {
	page := compileBound(t, "self.html", &ir.Include{Href: "self.html"})
	loader := &stubLoader{templates: map[string]runtime.Template{"self.html": page}}

	_, err := renderErr(page.Program(), loader, nil)
	require.Error(t, err, "expected error")
	assert.Contains(t, err.Error(), "may not include itself")
}

func libTemplate(t *testing.T) *stubTemplate {
	t.Helper()
	return compileBound(t, "lib.html",
		&ir.Def{Signature: "greet(name)", Children: []ir.Node{text("hi "), interp("name")}},
	)
}

func TestImport_BindsNamespace(t *testing.T) {
	lib := libTemplate(t)
	page := compileBound(t, "page.html",
		&ir.If{Test: "True", Children: []ir.Node{
			&ir.Import{Href: "lib.html", Alias: "ui"},
			interp(`ui.greet("bo")`),
		}},
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"lib.html": lib}}

	assert.Equal(t, "hi bo", render(t, page.Program(), loader, nil))
}

func TestImport_IgnoreMissing(t *testing.T) {
	loader := &stubLoader{templates: map[string]runtime.Template{}}

	page := compileBound(t, "page.html",
		&ir.If{Test: "True", Children: []ir.Node{
			&ir.Import{Href: "gone.html", Alias: "ui", IgnoreMissing: true},
			text("ok"),
		}},
	)
	assert.Equal(t, "ok", render(t, page.Program(), loader, nil),
		"binding a missing namespace succeeds")

	use := compileBound(t, "use.html",
		&ir.If{Test: "True", Children: []ir.Node{
			&ir.Import{Href: "gone.html", Alias: "ui", IgnoreMissing: true},
			interp(`ui.greet("x")`),
		}},
	)
	_, err := renderErr(use.Program(), loader, nil)
	require.Error(t, err, "expected error")
	assert.Contains(t, err.Error(), `"ui.greet" is not defined`)
}

func TestImport_RootHoisted(t *testing.T) {
	prog := compileTree(t, "page.html",
		&ir.Import{
			Position: token.Position{File: "page.html", Line: 1},
			Href:     "lib.html",
			Alias:    "ui",
		},
		text("hi"),
	)

	assert.Equal(t, []runtime.RootImport{
		{Alias: "ui", Href: "lib.html", File: "page.html", Line: 1},
	}, prog.Imports())

	// Root imports resolve at bind time, not in the output flow.
	assert.Equal(t, "hi", render(t, prog, nil, nil))
}

func TestImport_HoistedUnderExtends(t *testing.T) {
	prog := compileTree(t, "page.html",
		&ir.Extends{Href: "base.html", Children: []ir.Node{
			&ir.Import{Href: "lib.html", Alias: "ui"},
		}},
	)

	require.Len(t, prog.Imports(), 1)
	assert.Equal(t, "ui", prog.Imports()[0].Alias)
	assert.Equal(t, "lib.html", prog.Imports()[0].Href)
}

func TestImport_DynamicHrefStaysInFlow(t *testing.T) {
	lib := compileBound(t, "x/lib.html",
		&ir.Def{Signature: "greet(name)", Children: []ir.Node{text("hi "), interp("name")}},
	)
	page := compileBound(t, "page.html",
		&ir.Import{Href: "${dir}/lib.html", Alias: "ui"},
		interp(`ui.greet("zo")`),
	)
	loader := &stubLoader{templates: map[string]runtime.Template{"x/lib.html": lib}}

	assert.Empty(t, page.Program().Imports(), "interpolated hrefs cannot hoist")
	got := render(t, page.Program(), loader, map[string]any{"dir": "x"})
	assert.Equal(t, "hi zo", got)
}

func TestImport_ResolvedGlobal(t *testing.T) {
	// Simulates the loader's bind step: a hoisted import becomes a
	// program global that expressions resolve like any other name.
	lib := libTemplate(t)
	prog := compileTree(t, "page.html",
		&ir.Import{Href: "lib.html", Alias: "ui"},
		interp(`ui.greet("go")`),
	)
	prog.SetGlobal("ui", runtime.NewNamespace(lib))

	assert.Equal(t, "hi go", render(t, prog, nil, nil))
}
