package compile

import (
	"strings"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
	"github.com/leapstack-labs/weft/pkg/token"
)

// compileDef registers a named template function: the signature's
// parameter list with per-call defaults, over the compiled body.
func (c *compiler) compileDef(n *ir.Def) error {
	name, params, err := c.parseSignature(n)
	if err != nil {
		return err
	}
	body, err := c.seq(n.Children)
	if err != nil {
		return err
	}
	c.prog.AddFunc(name, params, ensureEmit(body, emits(n.Children)))
	return nil
}

// parseSignature splits a def signature like "greet(name, bold=False)"
// into the function name and its compiled parameters. A bare name
// declares a function of no arguments.
func (c *compiler) parseSignature(n *ir.Def) (string, []runtime.Param, error) {
	src := strings.TrimSpace(n.Signature)
	if src == "" {
		return "", nil, directive.NewCompileErrorf(n.Position, "def directive requires a function signature")
	}
	parsed, err := syntax.ParseExpr(n.Position.File, src, 0)
	if err != nil {
		return "", nil, directive.NewCompileErrorf(n.Position, "invalid function signature %q: %s", src, parseErrMessage(err))
	}
	switch sig := parsed.(type) {
	case *syntax.Ident:
		return sig.Name, nil, nil
	case *syntax.CallExpr:
		name, ok := sig.Fn.(*syntax.Ident)
		if !ok {
			return "", nil, directive.NewCompileErrorf(n.Position, "invalid function signature %q", src)
		}
		params, err := c.parseParams(src, sig.Args, n.Position)
		if err != nil {
			return "", nil, err
		}
		return name.Name, params, nil
	default:
		return "", nil, directive.NewCompileErrorf(n.Position, "invalid function signature %q", src)
	}
}

func (c *compiler) parseParams(src string, args []syntax.Expr, pos token.Position) ([]runtime.Param, error) {
	params := make([]runtime.Param, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case *syntax.Ident:
			params = append(params, runtime.Param{Name: a.Name})
		case *syntax.BinaryExpr:
			name, ok := a.X.(*syntax.Ident)
			if a.Op != syntax.EQ || !ok {
				return nil, directive.NewCompileErrorf(pos, "invalid parameter %q", sliceSpan(src, arg))
			}
			dflt, err := c.parseExprAt(sliceSpan(src, a.Y), pos)
			if err != nil {
				return nil, err
			}
			params = append(params, runtime.Param{Name: name.Name, Default: dflt})
		case *syntax.UnaryExpr:
			name, ok := a.X.(*syntax.Ident)
			if !ok || (a.Op != syntax.STAR && a.Op != syntax.STARSTAR) {
				return nil, directive.NewCompileErrorf(pos, "invalid parameter %q", sliceSpan(src, arg))
			}
			params = append(params, runtime.Param{
				Name:     name.Name,
				Star:     a.Op == syntax.STAR,
				StarStar: a.Op == syntax.STARSTAR,
			})
		default:
			return nil, directive.NewCompileErrorf(pos, "invalid parameter %q", sliceSpan(src, arg))
		}
	}
	return params, nil
}

// compileCall invokes a template function. Keyword children become
// zero-argument closures passed as named arguments; leftover body
// content becomes one closure appended as the final positional
// argument. The result is emitted unescaped, since a function's output
// was escaped as it rendered.
func (c *compiler) compileCall(n *ir.Call) (runtime.Func, error) {
	src := strings.TrimSpace(n.Expr)
	if src == "" {
		return nil, directive.NewCompileErrorf(n.Position, "call directive requires a function expression")
	}
	if !strings.Contains(src, "(") {
		src += "()"
	}
	parsed, err := syntax.ParseExpr(n.Position.File, src, 0)
	if err != nil {
		return nil, directive.NewCompileErrorf(n.Position, "invalid call expression %q: %s", src, parseErrMessage(err))
	}
	call, ok := parsed.(*syntax.CallExpr)
	if !ok {
		return nil, directive.NewCompileErrorf(n.Position, "call expression %q is not a function call", src)
	}

	var positional, named, starred []string
	for _, arg := range call.Args {
		text := sliceSpan(src, arg)
		switch a := arg.(type) {
		case *syntax.BinaryExpr:
			if a.Op == syntax.EQ {
				named = append(named, text)
				continue
			}
			positional = append(positional, text)
		case *syntax.UnaryExpr:
			if a.Op == syntax.STAR || a.Op == syntax.STARSTAR {
				starred = append(starred, text)
				continue
			}
			positional = append(positional, text)
		default:
			positional = append(positional, text)
		}
	}

	type kwClosure struct {
		arg   string
		local string
		body  runtime.Func
	}
	var kws []kwClosure
	var bodyNodes []ir.Node
	for _, child := range n.Children {
		switch k := child.(type) {
		case *ir.CallKeyword:
			body, err := c.seq(k.Children)
			if err != nil {
				return nil, err
			}
			kws = append(kws, kwClosure{
				arg:   k.Name,
				local: "__weft_kw_" + k.Name,
				body:  ensureEmit(body, emits(k.Children)),
			})
		default:
			bodyNodes = append(bodyNodes, child)
		}
	}

	var bodyFunc runtime.Func
	if hasContent(bodyNodes) {
		body, err := c.seq(bodyNodes)
		if err != nil {
			return nil, err
		}
		bodyFunc = ensureEmit(body, emits(bodyNodes))
	}

	parts := make([]string, 0, len(call.Args)+len(kws)+1)
	parts = append(parts, positional...)
	if bodyFunc != nil {
		parts = append(parts, "__weft_call_body")
	}
	parts = append(parts, named...)
	for _, kw := range kws {
		parts = append(parts, kw.arg+"="+kw.local)
	}
	parts = append(parts, starred...)

	rebuilt := sliceSpan(src, call.Fn) + "(" + strings.Join(parts, ", ") + ")"
	expr, err := c.parseExprAt(rebuilt, n.Position)
	if err != nil {
		return nil, err
	}

	return func(rc *runtime.Context, out runtime.Sink) error {
		for _, kw := range kws {
			rc.Locals().Set(kw.local, runtime.NewClosure(kw.arg, rc, kw.body))
		}
		if bodyFunc != nil {
			rc.Locals().Set("__weft_call_body", runtime.NewClosure("body", rc, bodyFunc))
		}
		v, err := expr.Eval(rc)
		if err != nil {
			return err
		}
		s, err := runtime.Stringify(v)
		if err != nil {
			return err
		}
		return out(s)
	}, nil
}

// compileFilter buffers its children's output, passes the joined text
// through the filter callable, and emits the result unescaped.
func (c *compiler) compileFilter(n *ir.Filter) (runtime.Func, error) {
	if strings.TrimSpace(n.Expr) == "" {
		return nil, directive.NewCompileErrorf(n.Position, "filter directive requires a function expression")
	}
	fnExpr, err := c.parseExprAt(n.Expr, n.Position)
	if err != nil {
		return nil, err
	}
	inner, err := c.seq(n.Children)
	if err != nil {
		return nil, err
	}
	body := ensureEmit(inner, emits(n.Children))
	return func(rc *runtime.Context, out runtime.Sink) error {
		fn, err := fnExpr.Eval(rc)
		if err != nil {
			return err
		}
		val, err := runtime.Collect(rc, body)
		if err != nil {
			return err
		}
		res, err := runtime.CallValue(rc, fn, starlark.Tuple{starlark.String(val.String())}, nil)
		if err != nil {
			return err
		}
		s, err := runtime.Stringify(res)
		if err != nil {
			return err
		}
		return out(s)
	}, nil
}

// hasContent reports whether any node contributes more than whitespace.
func hasContent(nodes []ir.Node) bool {
	for _, n := range nodes {
		if t, ok := n.(*ir.Text); ok {
			if strings.TrimSpace(t.Content) == "" {
				continue
			}
		}
		return true
	}
	return false
}

// sliceSpan cuts the source text covered by a parsed node. Scanner
// columns count runes, so the cut walks the source rune-wise.
func sliceSpan(src string, n syntax.Node) string {
	start, end := n.Span()
	startOff := runeOffset(src, int(start.Line), int(start.Col))
	endOff := runeOffset(src, int(end.Line), int(end.Col))
	if startOff < 0 || endOff < 0 || endOff < startOff {
		return ""
	}
	return src[startOff:endOff]
}

// runeOffset converts a 1-based line and rune column into a byte
// offset.
func runeOffset(src string, line, col int) int {
	off := 0
	for line > 1 {
		i := strings.IndexByte(src[off:], '\n')
		if i < 0 {
			return -1
		}
		off += i + 1
		line--
	}
	for col > 1 {
		if off >= len(src) {
			return -1
		}
		_, size := utf8.DecodeRuneInString(src[off:])
		off += size
		col--
	}
	return off
}
