// Package compile lowers resolved template trees into executable
// programs. Every node becomes a runtime.Func producing its output
// fragments; block and def bodies compile to named entries on the
// Program so inheritance and imports can reach them.
//
// Compilation is two-pass: blocks and template functions anywhere in
// the tree are collected and registered first, then all bodies are
// emitted against the complete block table. Embedded expressions are
// parsed once here, with prepared free-name plans; evaluation happens
// per render.
package compile

import (
	"errors"

	"go.starlark.net/syntax"

	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/i18n"
	"github.com/leapstack-labs/weft/pkg/interpolate"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
	"github.com/leapstack-labs/weft/pkg/token"
)

// Options adjust compilation.
type Options struct {
	// File is the resolved source path recorded on the program.
	// Positions inside the tree carry their own files.
	File string
}

// Compile lowers doc into an executable Program. The returned program
// is immutable and safe for concurrent renders once bound to its
// template.
func Compile(doc *ir.Doc, opts Options) (*runtime.Program, error) {
	c := &compiler{
		file:    opts.File,
		prog:    runtime.NewProgram(opts.File, doc.Kind),
		blocks:  make(map[*ir.Block]*runtime.Block),
		hoisted: make(map[*ir.Import]bool),
	}
	c.collect(doc.Root)
	c.hoistImports(doc.Root)

	for _, def := range c.defList {
		if err := c.compileDef(def); err != nil {
			return nil, err
		}
	}
	for _, node := range c.blockList {
		body, err := c.seq(node.Children)
		if err != nil {
			return nil, err
		}
		c.blocks[node].Body = ensureEmit(body, emits(node.Children))
	}
	root, err := c.seq(doc.Root.Children)
	if err != nil {
		return nil, err
	}
	c.prog.Root = ensureEmit(root, emits(doc.Root.Children))
	return c.prog, nil
}

type compiler struct {
	file      string
	prog      *runtime.Program
	blockList []*ir.Block
	blocks    map[*ir.Block]*runtime.Block
	defList   []*ir.Def
	hoisted   map[*ir.Import]bool
}

// collect registers every block and template function ahead of body
// compilation, so slots and expressions anywhere in the tree resolve
// against the complete table.
func (c *compiler) collect(root ir.Node) {
	ir.Walk(root, func(n ir.Node) bool {
		switch v := n.(type) {
		case *ir.Block:
			c.blockList = append(c.blockList, v)
			c.blocks[v] = c.prog.AddBlock(v.Name, nil)
		case *ir.Def:
			c.defList = append(c.defList, v)
		}
		return true
	})
}

// hoistImports records root-level imports with static hrefs for the
// loader to resolve at bind time. Imports at the top of an extends
// subtree count as root-level: extends children never run as output
// flow, so a render-time binding there would never take effect.
func (c *compiler) hoistImports(root *ir.Container) {
	hoist := func(n *ir.Import) {
		if interpolate.HasExpr(n.Href) {
			return
		}
		c.hoisted[n] = true
		c.prog.AddImport(runtime.RootImport{
			Alias:         n.Alias,
			Href:          n.Href,
			IgnoreMissing: n.IgnoreMissing,
			File:          n.Pos().File,
			Line:          n.Pos().Line,
		})
	}
	for _, child := range root.Children {
		switch v := child.(type) {
		case *ir.Import:
			hoist(v)
		case *ir.Extends:
			for _, sub := range v.Children {
				if imp, ok := sub.(*ir.Import); ok {
					hoist(imp)
				}
			}
		}
	}
}

// compileNode lowers one node. Nodes that contribute nothing to the
// output flow (defs, hoisted imports, nulls) compile to nil.
func (c *compiler) compileNode(n ir.Node) (runtime.Func, error) {
	switch v := n.(type) {
	case *ir.Container:
		return c.seq(v.Children)
	case *ir.Text:
		return c.compileText(v), nil
	case *ir.Interpolate:
		f, err := c.compileInterpolate(v)
		return c.annotated(v.Position, f), err
	case *ir.If:
		f, err := c.compileIf(v)
		return c.annotated(v.Position, f), err
	case *ir.For:
		f, err := c.compileFor(v)
		return c.annotated(v.Position, f), err
	case *ir.With:
		f, err := c.compileWith(v)
		return c.annotated(v.Position, f), err
	case *ir.Choose:
		f, err := c.compileChoose(v)
		return c.annotated(v.Position, f), err
	case *ir.Block:
		f, err := c.compileBlockSlot(v)
		return c.annotated(v.Position, f), err
	case *ir.Extends:
		f, err := c.compileExtends(v)
		return c.annotated(v.Position, f), err
	case *ir.Include:
		f, err := c.compileInclude(v)
		return c.annotated(v.Position, f), err
	case *ir.Def:
		return nil, nil
	case *ir.Import:
		if c.hoisted[v] {
			return nil, nil
		}
		f, err := c.compileImport(v)
		return c.annotated(v.Position, f), err
	case *ir.Call:
		f, err := c.compileCall(v)
		return c.annotated(v.Position, f), err
	case *ir.Filter:
		f, err := c.compileFilter(v)
		return c.annotated(v.Position, f), err
	case *ir.Translation:
		f, err := c.compileTranslation(v)
		return c.annotated(v.Position, f), err
	case *ir.Placeholder:
		// reached only outside a translation; render the content
		return c.seq(v.Children)
	case *ir.Comment:
		f, err := c.compileComment(v)
		return c.annotated(v.Position, f), err
	case *ir.Code:
		f, err := c.compileCode(v)
		return c.annotated(v.Position, f), err
	case *ir.Null:
		return nil, nil
	case *ir.Else:
		return nil, directive.NewCompileErrorf(v.Position, "else directive without a matching if")
	case *ir.When:
		return nil, directive.NewCompileErrorf(v.Position, "when directive outside a choose")
	case *ir.Otherwise:
		return nil, directive.NewCompileErrorf(v.Position, "otherwise directive outside a choose")
	case *ir.CallKeyword:
		return nil, directive.NewCompileErrorf(v.Position, "keyword directive outside a call")
	default:
		return nil, directive.NewCompileErrorf(n.Pos(), "unknown node type %T", n)
	}
}

// seq compiles a child list into one producer splicing the children in
// order. Lists with no output-producing children compile to nil.
func (c *compiler) seq(children []ir.Node) (runtime.Func, error) {
	var funcs []runtime.Func
	for _, child := range children {
		f, err := c.compileNode(child)
		if err != nil {
			return nil, err
		}
		if f != nil {
			funcs = append(funcs, f)
		}
	}
	switch len(funcs) {
	case 0:
		return nil, nil
	case 1:
		return funcs[0], nil
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		for _, f := range funcs {
			if err := f(rc, out); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// annotated records pos on any error unwinding through f, building the
// innermost-first location trail render errors carry.
func (c *compiler) annotated(pos token.Position, f runtime.Func) runtime.Func {
	if f == nil {
		return nil
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		if err := f(rc, out); err != nil {
			rc.AddErrorLocation(pos.File, pos.Line)
			return err
		}
		return nil
	}
}

// ensureEmit upholds the producer contract: a compiled function yields
// at least one fragment per run. Bodies that provably emit pass
// through; everything else gains a trailing empty fragment.
func ensureEmit(f runtime.Func, emits bool) runtime.Func {
	if f == nil {
		return func(_ *runtime.Context, out runtime.Sink) error {
			return out("")
		}
	}
	if emits {
		return f
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		if err := f(rc, out); err != nil {
			return err
		}
		return out("")
	}
}

// emits reports whether a child list is statically guaranteed to
// produce at least one fragment on every successful run.
func emits(children []ir.Node) bool {
	for _, child := range children {
		switch v := child.(type) {
		case *ir.Text, *ir.Interpolate, *ir.Call, *ir.Filter, *ir.Comment, *ir.Block:
			return true
		case *ir.Translation:
			if i18n.Message(v) != "" || emits(v.Children) {
				return true
			}
		case *ir.Extends:
			if !v.IgnoreMissing {
				return true
			}
		case *ir.Include:
			if !v.IgnoreMissing {
				return true
			}
		case *ir.With:
			if emits(v.Children) {
				return true
			}
		case *ir.If:
			if v.Else != nil && emits(v.Children) && emits(v.Else.Children) {
				return true
			}
		case *ir.Container:
			if emits(v.Children) {
				return true
			}
		}
	}
	return false
}

// parseExprAt parses an embedded expression, reporting failures as
// compile errors at the node's template position.
func (c *compiler) parseExprAt(src string, pos token.Position) (*runtime.Expr, error) {
	e, err := runtime.ParseExpr(src, pos.File, pos.Line)
	if err != nil {
		var ee *runtime.EvalError
		if errors.As(err, &ee) {
			return nil, directive.NewCompileErrorf(pos, "invalid expression %q: %s", src, ee.Message)
		}
		return nil, directive.NewCompileErrorf(pos, "invalid expression %q: %s", src, err)
	}
	return e, nil
}

// parseCodeAt parses an inline code block, reporting failures as
// compile errors at the node's template position.
func (c *compiler) parseCodeAt(src string, pos token.Position) (*runtime.CodeBlock, error) {
	cb, err := runtime.ParseCode(src, pos.File, pos.Line)
	if err != nil {
		var ee *runtime.EvalError
		if errors.As(err, &ee) {
			return nil, directive.NewCompileErrorf(pos, "invalid code block: %s", ee.Message)
		}
		return nil, directive.NewCompileErrorf(pos, "invalid code block: %s", err)
	}
	return cb, nil
}

// parseErrMessage strips the scanner's position prefix; compile errors
// carry the template position instead.
func parseErrMessage(err error) string {
	if se, ok := err.(syntax.Error); ok {
		return se.Msg
	}
	return err.Error()
}
