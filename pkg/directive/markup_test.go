package directive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/parser"
	"github.com/leapstack-labs/weft/pkg/token"
)

func compileMarkup(t *testing.T, src string) *ir.Container {
	t.Helper()
	tokens, err := parser.Lex(src, "test.html")
	require.NoError(t, err)
	c, err := CompileMarkup(tokens, "test.html")
	require.NoError(t, err)
	return c
}

func compileMarkupErr(t *testing.T, src string) error {
	t.Helper()
	tokens, err := parser.Lex(src, "test.html")
	require.NoError(t, err)
	_, err = CompileMarkup(tokens, "test.html")
	require.Error(t, err)
	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	return err
}

func TestCompileMarkupPlainMarkup(t *testing.T) {
	c := compileMarkup(t, "hello <b>world</b>")
	require.Len(t, c.Children, 1)

	text, ok := c.Children[0].(*ir.Text)
	require.True(t, ok)
	assert.Equal(t, "hello <b>world</b>", text.Content)
	assert.Equal(t, token.Position{File: "test.html", Line: 1, Col: 1}, text.Position)
}

func TestCompileMarkupInterpolation(t *testing.T) {
	c := compileMarkup(t, "<p>$name</p>")
	require.Len(t, c.Children, 3)

	assert.Equal(t, "<p>", c.Children[0].(*ir.Text).Content)

	interp, ok := c.Children[1].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "name", interp.Expr)
	assert.True(t, interp.AutoEscape)
	assert.Equal(t, token.Position{File: "test.html", Line: 1, Col: 4}, interp.Position)

	assert.Equal(t, "</p>", c.Children[2].(*ir.Text).Content)
}

func TestCompileMarkupScriptInterpolation(t *testing.T) {
	// Script bodies are character data: interpolations render unescaped.
	c := compileMarkup(t, "<script>var x = $x;</script>")
	require.Len(t, c.Children, 3)

	interp, ok := c.Children[1].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "x", interp.Expr)
	assert.False(t, interp.AutoEscape)
}

func TestCompileMarkupCDATASection(t *testing.T) {
	// Explicit CDATA sections pass through without interpolation.
	c := compileMarkup(t, "<div><![CDATA[x < $y]]></div>")
	require.Len(t, c.Children, 1)

	text, ok := c.Children[0].(*ir.Text)
	require.True(t, ok)
	assert.Equal(t, "<div><![CDATA[x < $y]]></div>", text.Content)
}

func TestCompileMarkupEntityPassthrough(t *testing.T) {
	c := compileMarkup(t, "<p>a&amp;b</p>")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "<p>a&amp;b</p>", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupDoctype(t *testing.T) {
	c := compileMarkup(t, "<!DOCTYPE html><p>x</p>")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "<!DOCTYPE html><p>x</p>", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupComments(t *testing.T) {
	c := compileMarkup(t, "a<!-- note -->b")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "a<!-- note -->b", c.Children[0].(*ir.Text).Content)

	// Comments opening with ! are for template authors only.
	c = compileMarkup(t, "a<!--! private -->b")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "ab", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupCodePI(t *testing.T) {
	c := compileMarkup(t, "a<?weft x = 1 ?>b")
	require.Len(t, c.Children, 3)

	code, ok := c.Children[1].(*ir.Code)
	require.True(t, ok)
	assert.Contains(t, code.Source, "x = 1")
}

func TestCompileMarkupForeignPI(t *testing.T) {
	c := compileMarkup(t, "a<?php echo 1 ?>b")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "a<?php echo 1 ?>b", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupXMLNSDeclarationsDropped(t *testing.T) {
	c := compileMarkup(t, `<html xmlns:w="http://example.org/weft">x</html>`)
	require.Len(t, c.Children, 1)
	assert.Equal(t, "<html>x</html>", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupIfAttr(t *testing.T) {
	c := compileMarkup(t, `<p w:if="x &gt; 0">hi</p>`)
	require.Len(t, c.Children, 1)

	ifNode, ok := c.Children[0].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "x > 0", ifNode.Test)
	require.Len(t, ifNode.Children, 1)
	assert.Equal(t, "<p>hi</p>", ifNode.Children[0].(*ir.Text).Content)
	assert.Nil(t, ifNode.Else)
}

func TestCompileMarkupIfElseAttrs(t *testing.T) {
	c := compileMarkup(t, `<p w:if="c">a</p><p w:else="">b</p>`)
	require.Len(t, c.Children, 1)

	ifNode, ok := c.Children[0].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "c", ifNode.Test)
	require.NotNil(t, ifNode.Else)
	require.Len(t, ifNode.Else.Children, 1)
	assert.Equal(t, "<p>b</p>", ifNode.Else.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupIfElseTagForm(t *testing.T) {
	// Whitespace between directive tags is dropped so the else still
	// follows its if directly.
	c := compileMarkup(t, "<w:if test=\"c\">a</w:if>\n<w:else>b</w:else>")
	require.Len(t, c.Children, 1)

	ifNode, ok := c.Children[0].(*ir.If)
	require.True(t, ok)
	require.Len(t, ifNode.Children, 1)
	assert.Equal(t, "a", ifNode.Children[0].(*ir.Text).Content)
	require.NotNil(t, ifNode.Else)
	require.Len(t, ifNode.Else.Children, 1)
	assert.Equal(t, "b", ifNode.Else.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupElseWithoutIf(t *testing.T) {
	err := compileMarkupErr(t, `<p w:else="">b</p>`)
	assert.Contains(t, err.Error(), "w:else without a w:if")
}

func TestCompileMarkupForLoop(t *testing.T) {
	c := compileMarkup(t, `<li w:for="item in items">$item</li>`)
	require.Len(t, c.Children, 1)

	forNode, ok := c.Children[0].(*ir.For)
	require.True(t, ok)
	assert.Equal(t, "item in items", forNode.Each)
	require.Len(t, forNode.Children, 3)
	assert.Equal(t, "<li>", forNode.Children[0].(*ir.Text).Content)
	assert.Equal(t, "item", forNode.Children[1].(*ir.Interpolate).Expr)
	assert.Equal(t, "</li>", forNode.Children[2].(*ir.Text).Content)
}

func TestCompileMarkupDirectiveNesting(t *testing.T) {
	// Multiple directives on one element nest in table order: for
	// outside if.
	c := compileMarkup(t, `<p w:for="x in xs" w:if="x">$x</p>`)
	require.Len(t, c.Children, 1)

	forNode, ok := c.Children[0].(*ir.For)
	require.True(t, ok)
	require.Len(t, forNode.Children, 1)

	ifNode, ok := forNode.Children[0].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "x", ifNode.Test)
	require.Len(t, ifNode.Children, 3)
}

func TestCompileMarkupWithAttr(t *testing.T) {
	c := compileMarkup(t, `<div w:with="x = 1; y = 'a;b'">$x</div>`)
	require.Len(t, c.Children, 1)

	with, ok := c.Children[0].(*ir.With)
	require.True(t, ok)
	require.Len(t, with.Vars, 2)
	assert.Equal(t, ir.WithVar{Target: "x", Expr: "1"}, with.Vars[0])
	assert.Equal(t, ir.WithVar{Target: "y", Expr: "'a;b'"}, with.Vars[1])
}

func TestCompileMarkupChoose(t *testing.T) {
	src := `<div w:choose="grade"><p w:when="'A'">top</p><p w:otherwise="">rest</p></div>`
	c := compileMarkup(t, src)
	require.Len(t, c.Children, 1)

	choose, ok := c.Children[0].(*ir.Choose)
	require.True(t, ok)
	assert.Equal(t, "grade", choose.Test)
	require.Len(t, choose.Children, 4)
	assert.Equal(t, "<div>", choose.Children[0].(*ir.Text).Content)

	when, ok := choose.Children[1].(*ir.When)
	require.True(t, ok)
	assert.Equal(t, "'A'", when.Test)
	require.Len(t, when.Children, 1)
	assert.Equal(t, "<p>top</p>", when.Children[0].(*ir.Text).Content)

	_, ok = choose.Children[2].(*ir.Otherwise)
	require.True(t, ok)
	assert.Equal(t, "</div>", choose.Children[3].(*ir.Text).Content)
}

func TestCompileMarkupTagFormInclude(t *testing.T) {
	c := compileMarkup(t, `<w:include href="snippet.html"/>`)
	require.Len(t, c.Children, 1)

	inc, ok := c.Children[0].(*ir.Include)
	require.True(t, ok)
	assert.Equal(t, "snippet.html", inc.Href)
	assert.False(t, inc.IgnoreMissing)

	c = compileMarkup(t, `<w:include href="snippet.html" ignore-missing=""/>`)
	inc = c.Children[0].(*ir.Include)
	assert.True(t, inc.IgnoreMissing)
}

func TestCompileMarkupAttrIncludeDiscardsElement(t *testing.T) {
	// An include in attribute form replaces the whole element; the
	// element's own markup is never emitted.
	c := compileMarkup(t, `<div w:include="s.html">fallback</div>`)
	require.Len(t, c.Children, 1)

	inc, ok := c.Children[0].(*ir.Include)
	require.True(t, ok)
	assert.Equal(t, "s.html", inc.Href)
}

func TestCompileMarkupImport(t *testing.T) {
	c := compileMarkup(t, `<w:import href="widgets.html" alias="widgets"/>`)
	require.Len(t, c.Children, 1)

	imp, ok := c.Children[0].(*ir.Import)
	require.True(t, ok)
	assert.Equal(t, "widgets.html", imp.Href)
	assert.Equal(t, "widgets", imp.Alias)

	err := compileMarkupErr(t, `<w:import href="widgets.html"/>`)
	assert.Contains(t, err.Error(), `missing attribute "w:alias"`)
}

func TestCompileMarkupReplace(t *testing.T) {
	c := compileMarkup(t, `<p w:replace="msg">x</p>`)
	require.Len(t, c.Children, 1)

	interp, ok := c.Children[0].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "msg", interp.Expr)
	assert.True(t, interp.AutoEscape)
}

func TestCompileMarkupContent(t *testing.T) {
	// content keeps the element's tags and replaces only its children.
	c := compileMarkup(t, `<p w:content="msg">x</p>`)
	require.Len(t, c.Children, 3)

	assert.Equal(t, "<p>", c.Children[0].(*ir.Text).Content)
	interp, ok := c.Children[1].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "msg", interp.Expr)
	assert.Equal(t, "</p>", c.Children[2].(*ir.Text).Content)
}

func TestCompileMarkupDef(t *testing.T) {
	c := compileMarkup(t, `<w:def function="greet(name)">Hi $name</w:def>`)
	require.Len(t, c.Children, 1)

	def, ok := c.Children[0].(*ir.Def)
	require.True(t, ok)
	assert.Equal(t, "greet(name)", def.Signature)
	require.Len(t, def.Children, 2)
}

func TestCompileMarkupBlock(t *testing.T) {
	c := compileMarkup(t, `<div w:block="body">x</div>`)
	require.Len(t, c.Children, 1)

	// block is an inner directive: the div renders outside the block.
	block := findNode[*ir.Block](t, c)
	assert.Equal(t, "body", block.Name)
	require.Len(t, block.Children, 1)
	assert.Equal(t, "x", block.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupExtends(t *testing.T) {
	c := compileMarkup(t, `<w:extends href="base.html"><div w:block="body">x</div></w:extends>`)
	require.Len(t, c.Children, 1)

	ext, ok := c.Children[0].(*ir.Extends)
	require.True(t, ok)
	assert.Equal(t, "base.html", ext.Href)
	require.NotEmpty(t, ext.Children)
}

func TestCompileMarkupStripEmpty(t *testing.T) {
	c := compileMarkup(t, `<div w:strip="">keep</div>`)
	require.Len(t, c.Children, 1)
	assert.Equal(t, "keep", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupStripConditional(t *testing.T) {
	c := compileMarkup(t, `<div w:strip="slim">x</div>`)
	require.Len(t, c.Children, 3)

	open, ok := c.Children[0].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "not (slim)", open.Test)
	require.Len(t, open.Children, 1)
	assert.Equal(t, "<div>", open.Children[0].(*ir.Text).Content)

	assert.Equal(t, "x", c.Children[1].(*ir.Text).Content)

	cls, ok := c.Children[2].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "</div>", cls.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupTagExpr(t *testing.T) {
	c := compileMarkup(t, `<div w:tag="name">x</div>`)
	require.Len(t, c.Children, 5)

	assert.Equal(t, "<", c.Children[0].(*ir.Text).Content)
	open, ok := c.Children[1].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "name", open.Expr)
	assert.Equal(t, ">x</", c.Children[2].(*ir.Text).Content)
	cls, ok := c.Children[3].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "name", cls.Expr)
	assert.Equal(t, ">", c.Children[4].(*ir.Text).Content)
}

func TestCompileMarkupAttrsDirective(t *testing.T) {
	c := compileMarkup(t, `<div id="a" w:attrs="extra">x</div>`)

	codes := ir.FindAll[*ir.Code](c)
	require.Len(t, codes, 2)
	assert.Equal(t, "__weft_attrs = {}", codes[0].Source)
	assert.Equal(t, "__weft_attrs.update(extra)", codes[1].Source)

	// Static attributes give way to a dynamic attribute of the same name,
	// and None valued entries are omitted.
	guards := ir.FindAll[*ir.If](c)
	require.Len(t, guards, 2)
	assert.Equal(t, "'id' not in __weft_attrs", guards[0].Test)
	assert.Equal(t, "__weft_attr_v != None", guards[1].Test)

	loop := findNode[*ir.For](t, c)
	assert.Equal(t, "__weft_attr_k, __weft_attr_v in __weft_attrs.items()", loop.Each)
}

func TestCompileMarkupDynamicAttr(t *testing.T) {
	c := compileMarkup(t, `<a href="/u/$id">x</a>`)
	require.Len(t, c.Children, 3)

	assert.Equal(t, `<a href="/u/`, c.Children[0].(*ir.Text).Content)
	interp, ok := c.Children[1].(*ir.Interpolate)
	require.True(t, ok)
	assert.Equal(t, "id", interp.Expr)
	assert.True(t, interp.AutoEscape)
	assert.Equal(t, `">x</a>`, c.Children[2].(*ir.Text).Content)
}

func TestCompileMarkupEmptyHTMLAttr(t *testing.T) {
	// selected is omitted entirely when its interpolated value is None.
	c := compileMarkup(t, `<option selected="$sel">x</option>`)
	require.Len(t, c.Children, 3)

	with, ok := c.Children[1].(*ir.With)
	require.True(t, ok)
	require.Len(t, with.Vars, 1)
	assert.Equal(t, ir.WithVar{Target: "__weft_tmp", Expr: "sel"}, with.Vars[0])

	guard, ok := with.Children[0].(*ir.If)
	require.True(t, ok)
	assert.Equal(t, "__weft_tmp != None", guard.Test)
	require.Len(t, guard.Children, 3)
	assert.Equal(t, `selected="`, guard.Children[0].(*ir.Text).Content)
	assert.Equal(t, "__weft_tmp", guard.Children[1].(*ir.Interpolate).Expr)
	assert.Equal(t, `"`, guard.Children[2].(*ir.Text).Content)
}

func TestCompileMarkupWhitespaceAttr(t *testing.T) {
	c := compileMarkup(t, "<ul w:whitespace=\"strip\">\n  <li>a</li>\n</ul>")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "<ul><li>a</li></ul>", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupWhitespaceElement(t *testing.T) {
	c := compileMarkup(t, "<w:whitespace value=\"strip\">\n  <p>x</p>\n</w:whitespace>")
	require.Len(t, c.Children, 1)
	assert.Equal(t, "<p>x</p>", c.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupWhitespaceInvalid(t *testing.T) {
	err := compileMarkupErr(t, `<p w:whitespace="bogus">x</p>`)
	assert.Contains(t, err.Error(), `invalid whitespace mode "bogus"`)
}

func TestCompileMarkupTranslate(t *testing.T) {
	c := compileMarkup(t, `<p i18n:trans="" i18n:comment="greeting">Hi <b>there</b></p>`)
	require.Len(t, c.Children, 3)

	trans, ok := c.Children[1].(*ir.Translation)
	require.True(t, ok)
	assert.Equal(t, "", trans.Message)
	assert.Equal(t, "greeting", trans.Comment)
	require.Len(t, trans.Children, 1)
	assert.Equal(t, "Hi <b>there</b>", trans.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupTranslatePlaceholder(t *testing.T) {
	c := compileMarkup(t, `<p i18n:trans="">Hi <span i18n:name="user">$user</span></p>`)

	trans := findNode[*ir.Translation](t, c)
	require.Len(t, trans.Children, 2)
	assert.Equal(t, "Hi ", trans.Children[0].(*ir.Text).Content)

	ph, ok := trans.Children[1].(*ir.Placeholder)
	require.True(t, ok)
	assert.Equal(t, "user", ph.Name)
	require.Len(t, ph.Children, 3)
	assert.Equal(t, "<span>", ph.Children[0].(*ir.Text).Content)
}

func TestCompileMarkupErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{
			name:    "unrecognized directive attr",
			input:   `<p w:bogus="1">x</p>`,
			wantErr: `unrecognized directive "w:bogus"`,
		},
		{
			name:    "unrecognized directive tag",
			input:   `<w:frobnicate>x</w:frobnicate>`,
			wantErr: `unrecognized directive "w:frobnicate"`,
		},
		{
			name:    "missing data attribute",
			input:   `<w:if>x</w:if>`,
			wantErr: `missing attribute "w:test"`,
		},
		{
			name:    "mismatched close tag",
			input:   `<p><b>x</p>`,
			wantErr: `expected </b>, got </p> at 1:9. Open tags are "p > b"`,
		},
		{
			name:    "unclosed element",
			input:   `<p>x`,
			wantErr: "missing closing tag for <p>, opened at 1:1",
		},
		{
			name:    "bad with vars",
			input:   `<div w:with="nope">x</div>`,
			wantErr: `invalid variable assignment "nope"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileMarkupErr(t, tt.input)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseWithVars(t *testing.T) {
	vars, err := parseWithVars("x = 1; y = f(a, b); z = 'a;b'", token.Position{})
	require.NoError(t, err)
	assert.Equal(t, []ir.WithVar{
		{Target: "x", Expr: "1"},
		{Target: "y", Expr: "f(a, b)"},
		{Target: "z", Expr: "'a;b'"},
	}, vars)

	vars, err = parseWithVars(" x = 1 ; ", token.Position{})
	require.NoError(t, err)
	assert.Equal(t, []ir.WithVar{{Target: "x", Expr: "1"}}, vars)

	_, err = parseWithVars("just an expression", token.Position{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid variable assignment")
}

// findNode returns the single node of type T in the tree.
func findNode[T ir.Node](t *testing.T, root ir.Node) T {
	t.Helper()
	nodes := ir.FindAll[T](root)
	require.Len(t, nodes, 1)
	return nodes[0]
}
