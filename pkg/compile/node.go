package compile

import (
	"strings"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

func (c *compiler) compileText(n *ir.Text) runtime.Func {
	content := n.Content
	return func(_ *runtime.Context, out runtime.Sink) error {
		return out(content)
	}
}

// compileInterpolate emits an expression's value, escaped unless the
// interpolation was marked noescape or sat inside CDATA text.
func (c *compiler) compileInterpolate(n *ir.Interpolate) (runtime.Func, error) {
	expr, err := c.parseExprAt(n.Expr, n.Position)
	if err != nil {
		return nil, err
	}
	escape := n.AutoEscape
	return func(rc *runtime.Context, out runtime.Sink) error {
		v, err := expr.Eval(rc)
		if err != nil {
			return err
		}
		var s string
		if escape {
			s, err = runtime.Escape(v)
		} else {
			s, err = runtime.Stringify(v)
		}
		if err != nil {
			return err
		}
		return out(s)
	}, nil
}

func (c *compiler) compileIf(n *ir.If) (runtime.Func, error) {
	if strings.TrimSpace(n.Test) == "" {
		return nil, directive.NewCompileErrorf(n.Position, "if directive requires a test expression")
	}
	test, err := c.parseExprAt(n.Test, n.Position)
	if err != nil {
		return nil, err
	}
	body, err := c.seq(n.Children)
	if err != nil {
		return nil, err
	}
	var elseBody runtime.Func
	if n.Else != nil {
		elseBody, err = c.seq(n.Else.Children)
		if err != nil {
			return nil, err
		}
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		v, err := test.Eval(rc)
		if err != nil {
			return err
		}
		branch := elseBody
		if bool(v.Truth()) {
			branch = body
		}
		if branch == nil {
			return nil
		}
		return branch(rc, out)
	}, nil
}

// compileWith binds names for the duration of its children. Each value
// lands in both the function scope and the render context, so called
// functions and included templates observe it; the previous context
// state is restored on every exit path.
func (c *compiler) compileWith(n *ir.With) (runtime.Func, error) {
	type binding struct {
		name string
		expr *runtime.Expr
	}
	bindings := make([]binding, 0, len(n.Vars))
	for _, v := range n.Vars {
		name := strings.TrimSpace(v.Target)
		if name == "" {
			return nil, directive.NewCompileErrorf(n.Position, "with directive requires a target name")
		}
		expr, err := c.parseExprAt(v.Expr, n.Position)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, binding{name: name, expr: expr})
	}
	body, err := c.seq(n.Children)
	if err != nil {
		return nil, err
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		type saved struct {
			name    string
			value   starlark.Value
			present bool
		}
		savedVars := make([]saved, 0, len(bindings))
		defer func() {
			for i := len(savedVars) - 1; i >= 0; i-- {
				s := savedVars[i]
				if s.present {
					rc.SetVar(s.name, s.value)
					rc.Locals().Set(s.name, s.value)
				} else {
					rc.DeleteVar(s.name)
					rc.Locals().Set(s.name, runtime.NewUndefined(s.name))
				}
			}
		}()
		for _, b := range bindings {
			v, err := b.expr.Eval(rc)
			if err != nil {
				return err
			}
			old, present := rc.LookupVar(b.name)
			savedVars = append(savedVars, saved{name: b.name, value: old, present: present})
			rc.SetVar(b.name, v)
			rc.Locals().Set(b.name, v)
		}
		if body == nil {
			return nil
		}
		return body(rc, out)
	}, nil
}

const (
	armPlain = iota
	armWhen
	armOtherwise
)

type chooseArm struct {
	kind int
	test *runtime.Expr
	body runtime.Func
}

// compileChoose renders the first matching when arm. With a choose
// test, an arm matches when its value equals the choose value; without
// one, each arm's own condition is truth-tested. An otherwise arm
// renders whenever no when has matched by the time it is reached, and
// does not itself count as a match. Other children render
// unconditionally in place.
func (c *compiler) compileChoose(n *ir.Choose) (runtime.Func, error) {
	var testExpr *runtime.Expr
	if strings.TrimSpace(n.Test) != "" {
		e, err := c.parseExprAt(n.Test, n.Position)
		if err != nil {
			return nil, err
		}
		testExpr = e
	}
	var arms []chooseArm
	for _, child := range n.Children {
		switch v := child.(type) {
		case *ir.When:
			if strings.TrimSpace(v.Test) == "" {
				return nil, directive.NewCompileErrorf(v.Position, "when directive requires a test expression")
			}
			test, err := c.parseExprAt(v.Test, v.Position)
			if err != nil {
				return nil, err
			}
			body, err := c.seq(v.Children)
			if err != nil {
				return nil, err
			}
			arms = append(arms, chooseArm{kind: armWhen, test: test, body: body})
		case *ir.Otherwise:
			body, err := c.seq(v.Children)
			if err != nil {
				return nil, err
			}
			arms = append(arms, chooseArm{kind: armOtherwise, body: body})
		default:
			f, err := c.compileNode(child)
			if err != nil {
				return nil, err
			}
			if f == nil {
				continue
			}
			arms = append(arms, chooseArm{kind: armPlain, body: f})
		}
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		var chooseVal starlark.Value
		if testExpr != nil {
			v, err := testExpr.Eval(rc)
			if err != nil {
				return err
			}
			chooseVal = v
		}
		matched := false
		for _, arm := range arms {
			switch arm.kind {
			case armWhen:
				if matched {
					continue
				}
				v, err := arm.test.Eval(rc)
				if err != nil {
					return err
				}
				hit := bool(v.Truth())
				if chooseVal != nil {
					eq, err := starlark.Equal(v, chooseVal)
					if err != nil {
						return err
					}
					hit = eq
				}
				if !hit {
					continue
				}
				matched = true
				if arm.body != nil {
					if err := arm.body(rc, out); err != nil {
						return err
					}
				}
			case armOtherwise:
				if matched || arm.body == nil {
					continue
				}
				if err := arm.body(rc, out); err != nil {
					return err
				}
			default:
				if err := arm.body(rc, out); err != nil {
					return err
				}
			}
		}
		return nil
	}, nil
}

// compileCode executes an inline code block; its assignments become
// local bindings visible to following siblings.
func (c *compiler) compileCode(n *ir.Code) (runtime.Func, error) {
	cb, err := c.parseCodeAt(n.Source, n.Position)
	if err != nil {
		return nil, err
	}
	return func(rc *runtime.Context, _ runtime.Sink) error {
		return cb.Exec(rc)
	}, nil
}

func (c *compiler) compileComment(n *ir.Comment) (runtime.Func, error) {
	body, err := c.seq(n.Children)
	if err != nil {
		return nil, err
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		if err := out("<!--"); err != nil {
			return err
		}
		if body != nil {
			if err := body(rc, out); err != nil {
				return err
			}
		}
		return out("-->")
	}, nil
}
