package compile

import (
	"errors"
	"strings"

	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/interpolate"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
	"github.com/leapstack-labs/weft/pkg/token"
)

// compileBlockSlot marks the point where a block renders: an override
// in the incoming block table wins, else the local implementation runs.
func (c *compiler) compileBlockSlot(n *ir.Block) (runtime.Func, error) {
	rb, ok := c.blocks[n]
	if !ok {
		return nil, directive.NewCompileErrorf(n.Position, "block %q was not registered", n.Name)
	}
	name := n.Name
	return func(rc *runtime.Context, out runtime.Sink) error {
		impl := rb
		if o, ok := rc.Blocks[name]; ok {
			impl = o
		}
		return impl.Render(rc, out)
	}, nil
}

// compileExtends delegates the whole output to the named parent: the
// parent joins the front of the ancestor stack and this template's
// blocks become the defaults under any incoming overrides, so the
// most-derived implementation of each block renders and super() chains
// rootward. A missing parent marked ignore-missing contributes nothing,
// children included.
func (c *compiler) compileExtends(n *ir.Extends) (runtime.Func, error) {
	href, err := c.hrefFunc(n.Href, n.Position)
	if err != nil {
		return nil, err
	}
	ignore := n.IgnoreMissing
	prog := c.prog
	return func(rc *runtime.Context, out runtime.Sink) error {
		path, err := href(rc)
		if err != nil {
			return err
		}
		parent, err := runtime.Load(rc, prog.Template(), path)
		if err != nil {
			var nf *runtime.TemplateNotFoundError
			if ignore && errors.As(err, &nf) {
				return nil
			}
			return err
		}
		return delegateRoot(rc, out, prog, parent)
	}, nil
}

// compileInclude inlines another template's output in place. The
// inheritance state it passes down is scoped to the included render and
// restored afterwards.
func (c *compiler) compileInclude(n *ir.Include) (runtime.Func, error) {
	href, err := c.hrefFunc(n.Href, n.Position)
	if err != nil {
		return nil, err
	}
	ignore := n.IgnoreMissing
	prog := c.prog
	return func(rc *runtime.Context, out runtime.Sink) error {
		path, err := href(rc)
		if err != nil {
			return err
		}
		target, err := runtime.Load(rc, prog.Template(), path)
		if err != nil {
			var nf *runtime.TemplateNotFoundError
			if ignore && errors.As(err, &nf) {
				return nil
			}
			return err
		}
		savedBases, savedBlocks := rc.Bases, rc.Blocks
		defer func() {
			rc.Bases, rc.Blocks = savedBases, savedBlocks
		}()
		return delegateRoot(rc, out, prog, target)
	}, nil
}

// delegateRoot hands output production to target's root with target
// prepended to the ancestor stack and prog's own blocks merged in as
// defaults under any incoming overrides.
func delegateRoot(rc *runtime.Context, out runtime.Sink, prog *runtime.Program, target runtime.Template) error {
	bases := make([]runtime.Template, 0, len(rc.Bases)+1)
	bases = append(bases, target)
	bases = append(bases, rc.Bases...)

	names := prog.BlockNames()
	blocks := make(map[string]*runtime.Block, len(names)+len(rc.Blocks))
	for _, name := range names {
		if b, ok := prog.Block(name); ok {
			blocks[name] = b
		}
	}
	for name, b := range rc.Blocks {
		blocks[name] = b
	}

	rc.Bases = bases
	rc.Blocks = blocks
	return target.Program().RunRoot(rc, out)
}

// compileImport binds another template's function namespace under an
// alias when the flow reaches it. Root-level imports never get here;
// the loader resolves those at bind time.
func (c *compiler) compileImport(n *ir.Import) (runtime.Func, error) {
	href, err := c.hrefFunc(n.Href, n.Position)
	if err != nil {
		return nil, err
	}
	alias := strings.TrimSpace(n.Alias)
	if alias == "" {
		return nil, directive.NewCompileErrorf(n.Position, "import directive requires an alias")
	}
	ignore := n.IgnoreMissing
	prog := c.prog
	return func(rc *runtime.Context, _ runtime.Sink) error {
		path, err := href(rc)
		if err != nil {
			return err
		}
		t, err := runtime.Load(rc, prog.Template(), path)
		if err != nil {
			var nf *runtime.TemplateNotFoundError
			if ignore && errors.As(err, &nf) {
				rc.Locals().Set(alias, runtime.NewMissingNamespace(alias))
				return nil
			}
			return err
		}
		rc.Locals().Set(alias, runtime.NewNamespace(t))
		return nil
	}, nil
}

// hrefFunc compiles a template reference, which may interpolate
// context values, into a render-time path producer.
func (c *compiler) hrefFunc(href string, pos token.Position) (func(rc *runtime.Context) (string, error), error) {
	if strings.TrimSpace(href) == "" {
		return nil, directive.NewCompileErrorf(pos, "empty template reference")
	}
	segs := interpolate.Parse(href)
	if len(segs) == 1 {
		if lit, ok := segs[0].(interpolate.Literal); ok {
			path := lit.Text
			return func(*runtime.Context) (string, error) { return path, nil }, nil
		}
	}
	type part struct {
		text string
		expr *runtime.Expr
	}
	parts := make([]part, 0, len(segs))
	for _, seg := range segs {
		switch s := seg.(type) {
		case interpolate.Literal:
			parts = append(parts, part{text: s.Text})
		case interpolate.Expr:
			e, err := c.parseExprAt(s.Source, pos)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part{expr: e})
		}
	}
	return func(rc *runtime.Context) (string, error) {
		var b strings.Builder
		for _, p := range parts {
			if p.expr == nil {
				b.WriteString(p.text)
				continue
			}
			v, err := p.expr.Eval(rc)
			if err != nil {
				return "", err
			}
			s, err := runtime.Stringify(v)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}, nil
}
