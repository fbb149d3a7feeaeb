package compile

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
	"github.com/leapstack-labs/weft/pkg/token"
)

// compileFor iterates a starlark iterable, binding the loop targets per
// iteration. Cancellation is honored between iterations.
func (c *compiler) compileFor(n *ir.For) (runtime.Func, error) {
	targetSrc, iterSrc, ok := splitEach(n.Each)
	if !ok {
		return nil, directive.NewCompileErrorf(n.Position, "malformed loop %q: expected \"targets in expression\"", n.Each)
	}
	tgt, err := parseTarget(strings.TrimSpace(targetSrc), n.Position)
	if err != nil {
		return nil, err
	}
	iter, err := c.parseExprAt(strings.TrimSpace(iterSrc), n.Position)
	if err != nil {
		return nil, err
	}
	body, err := c.seq(n.Children)
	if err != nil {
		return nil, err
	}
	return func(rc *runtime.Context, out runtime.Sink) error {
		v, err := iter.Eval(rc)
		if err != nil {
			return err
		}
		if u, ok := v.(*runtime.Undefined); ok {
			return &runtime.UndefinedVariableError{Name: u.Name()}
		}
		seq := starlark.Iterate(v)
		if seq == nil {
			return fmt.Errorf("%s value is not iterable", v.Type())
		}
		defer seq.Done()
		var x starlark.Value
		for seq.Next(&x) {
			if err := rc.Err(); err != nil {
				return err
			}
			if err := bindTarget(rc, tgt, x); err != nil {
				return err
			}
			if body == nil {
				continue
			}
			if err := body(rc, out); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

// splitEach splits a loop head "targets in expression" at its first
// top-level "in". Bracketed and quoted sections are skipped, so
// comprehensions and membership tests inside the iterable stay intact.
func splitEach(each string) (targets, expr string, ok bool) {
	depth := 0
	var quote byte
	for i := 0; i+2 <= len(each); i++ {
		ch := each[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case 'i':
			if depth > 0 || each[i+1] != 'n' {
				continue
			}
			if i > 0 && isIdentByte(each[i-1]) {
				continue
			}
			if i+2 < len(each) && isIdentByte(each[i+2]) {
				continue
			}
			return each[:i], each[i+2:], true
		}
	}
	return "", "", false
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= utf8.RuneSelf ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

// target is a compiled loop assignment pattern: a single name, or a
// sequence of nested patterns unpacked positionally.
type target struct {
	name  string
	elems []*target
}

func parseTarget(src string, pos token.Position) (*target, error) {
	if src == "" {
		return nil, directive.NewCompileErrorf(pos, "missing loop target")
	}
	parsed, err := syntax.ParseExpr(pos.File, src, 0)
	if err != nil {
		return nil, directive.NewCompileErrorf(pos, "invalid loop target %q: %s", src, parseErrMessage(err))
	}
	t, err := buildTarget(parsed)
	if err != nil {
		return nil, directive.NewCompileErrorf(pos, "invalid loop target %q: %s", src, err)
	}
	return t, nil
}

func buildTarget(n syntax.Expr) (*target, error) {
	switch v := n.(type) {
	case *syntax.Ident:
		return &target{name: v.Name}, nil
	case *syntax.ParenExpr:
		return buildTarget(v.X)
	case *syntax.TupleExpr:
		return buildTargets(v.List)
	case *syntax.ListExpr:
		return buildTargets(v.List)
	default:
		return nil, fmt.Errorf("cannot assign to %T", n)
	}
}

func buildTargets(list []syntax.Expr) (*target, error) {
	t := &target{elems: make([]*target, 0, len(list))}
	for _, e := range list {
		sub, err := buildTarget(e)
		if err != nil {
			return nil, err
		}
		t.elems = append(t.elems, sub)
	}
	return t, nil
}

// bindTarget assigns v to the pattern in the current function scope,
// unpacking sequences per starlark assignment semantics.
func bindTarget(rc *runtime.Context, t *target, v starlark.Value) error {
	if t.name != "" {
		rc.Locals().Set(t.name, v)
		return nil
	}
	seq := starlark.Iterate(v)
	if seq == nil {
		return fmt.Errorf("cannot unpack %s value", v.Type())
	}
	defer seq.Done()
	i := 0
	var x starlark.Value
	for seq.Next(&x) {
		if i >= len(t.elems) {
			return fmt.Errorf("too many values to unpack (want %d)", len(t.elems))
		}
		if err := bindTarget(rc, t.elems[i], x); err != nil {
			return err
		}
		i++
	}
	if i < len(t.elems) {
		return fmt.Errorf("not enough values to unpack (got %d, want %d)", i, len(t.elems))
	}
	return nil
}
