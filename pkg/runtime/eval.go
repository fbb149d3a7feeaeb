package runtime

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// EvalError represents an error during starlark evaluation of an
// embedded expression or code block.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
	cause   error
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error { return e.cause }

// Expr is a prepared template expression: parsed once at compile time
// together with its free-name plan, evaluated per render against the
// context's resolution chain.
type Expr struct {
	File string
	Line int
	Src  string
	free []string
}

// ParseExpr validates src as a starlark expression and extracts its
// free names.
func ParseExpr(src, file string, line int) (*Expr, error) {
	parsed, err := syntax.ParseExpr(file, src, 0)
	if err != nil {
		return nil, &EvalError{File: file, Line: line, Expr: src, Message: parseMessage(err), cause: err}
	}
	set := newNameSet()
	collectFree(parsed, nil, set)
	return &Expr{File: file, Line: line, Src: src, free: set.names}, nil
}

// FreeNames returns the expression's free names in first-use order.
func (e *Expr) FreeNames() []string { return e.free }

// Eval evaluates the expression against rc.
func (e *Expr) Eval(rc *Context) (starlark.Value, error) {
	thread := rc.thread(e.File)
	defer rc.release(thread)
	env := rc.environ(e.free)
	v, err := starlark.Eval(thread, e.File, e.Src, env) //nolint:staticcheck // SA1019: will migrate to EvalOptions later
	if err != nil {
		return nil, &EvalError{File: e.File, Line: e.Line, Expr: e.Src, Message: evalMessage(err), cause: err}
	}
	return v, nil
}

// CodeBlock is a prepared inline code block. Executing it runs the
// statements REPL-style: assignments land in the current function
// scope, visible to everything after the block.
type CodeBlock struct {
	File string
	Line int
	Src  string
	file *syntax.File
	free []string
}

// ParseCode validates src as a sequence of starlark statements. The
// source is dedented first, since template code blocks usually carry
// the indentation of their surroundings.
func ParseCode(src, file string, line int) (*CodeBlock, error) {
	src = Dedent(src)
	parsed, err := syntax.Parse(file, src, 0)
	if err != nil {
		return nil, &EvalError{File: file, Line: line, Expr: src, Message: parseMessage(err), cause: err}
	}
	set := newNameSet()
	for _, stmt := range parsed.Stmts {
		collectFree(stmt, nil, set)
	}
	return &CodeBlock{File: file, Line: line, Src: src, file: parsed, free: set.names}, nil
}

// Exec runs the code block against rc.
func (c *CodeBlock) Exec(rc *Context) error {
	thread := rc.thread(c.File)
	defer rc.release(thread)
	globals := rc.environ(c.free)
	if err := starlark.ExecREPLChunk(c.file, thread, globals); err != nil {
		return &EvalError{File: c.File, Line: c.Line, Expr: c.Src, Message: evalMessage(err), cause: err}
	}
	if rc.locals != nil {
		for name, v := range globals {
			rc.locals.Set(name, v)
		}
	}
	return nil
}

// CallValue invokes a starlark callable against rc, the way an
// embedded expression would. Filter and translation application go
// through here.
func CallValue(rc *Context, fn starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	name := "call"
	if c, ok := fn.(starlark.Callable); ok {
		name = c.Name()
	}
	thread := rc.thread(name)
	defer rc.release(thread)
	return starlark.Call(thread, fn, args, kwargs)
}

// environ builds the predeclared environment for an evaluation from a
// free-name plan.
func (rc *Context) environ(free []string) starlark.StringDict {
	env := make(starlark.StringDict, len(free))
	for _, name := range free {
		env[name] = rc.Resolve(name)
	}
	return env
}

// parseMessage strips the scanner's position prefix; the surrounding
// EvalError already carries file and line.
func parseMessage(err error) string {
	if se, ok := err.(syntax.Error); ok {
		return se.Msg
	}
	return err.Error()
}

func evalMessage(err error) string {
	if ee, ok := err.(*starlark.EvalError); ok {
		return ee.Msg
	}
	return err.Error()
}

// Dedent removes the longest common leading whitespace from every
// non-blank line.
func Dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := ""
	first := true
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		if first {
			margin = indent
			first = false
			continue
		}
		for !strings.HasPrefix(indent, margin) {
			margin = margin[:len(margin)-1]
		}
	}
	if margin == "" {
		return s
	}
	for i, line := range lines {
		if strings.TrimLeft(line, " \t") == "" {
			continue
		}
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

// nameSet is an insertion-ordered string set.
type nameSet struct {
	names []string
	seen  map[string]bool
}

func newNameSet() *nameSet {
	return &nameSet{seen: make(map[string]bool)}
}

func (s *nameSet) add(name string) {
	if !s.seen[name] {
		s.seen[name] = true
		s.names = append(s.names, name)
	}
}

// collectFree gathers identifiers read by n that are not bound within
// it. bound carries names introduced by enclosing comprehension
// clauses and function parameters; statement-level assignments are
// deliberately not tracked, so a name that is both read and assigned
// in a code block still resolves to its pre-block value.
func collectFree(n syntax.Node, bound map[string]bool, out *nameSet) {
	switch v := n.(type) {
	case nil:
	case *syntax.Ident:
		if !bound[v.Name] {
			out.add(v.Name)
		}
	case *syntax.Literal:
	case *syntax.ParenExpr:
		collectFree(v.X, bound, out)
	case *syntax.UnaryExpr:
		collectFree(v.X, bound, out)
	case *syntax.BinaryExpr:
		collectFree(v.X, bound, out)
		collectFree(v.Y, bound, out)
	case *syntax.DotExpr:
		collectFree(v.X, bound, out)
	case *syntax.IndexExpr:
		collectFree(v.X, bound, out)
		collectFree(v.Y, bound, out)
	case *syntax.SliceExpr:
		collectFree(v.X, bound, out)
		collectFree(v.Lo, bound, out)
		collectFree(v.Hi, bound, out)
		collectFree(v.Step, bound, out)
	case *syntax.CallExpr:
		collectFree(v.Fn, bound, out)
		for _, arg := range v.Args {
			if kw, ok := arg.(*syntax.BinaryExpr); ok && kw.Op == syntax.EQ {
				if _, isIdent := kw.X.(*syntax.Ident); isIdent {
					collectFree(kw.Y, bound, out)
					continue
				}
			}
			collectFree(arg, bound, out)
		}
	case *syntax.ListExpr:
		for _, e := range v.List {
			collectFree(e, bound, out)
		}
	case *syntax.TupleExpr:
		for _, e := range v.List {
			collectFree(e, bound, out)
		}
	case *syntax.DictExpr:
		for _, e := range v.List {
			collectFree(e, bound, out)
		}
	case *syntax.DictEntry:
		collectFree(v.Key, bound, out)
		collectFree(v.Value, bound, out)
	case *syntax.CondExpr:
		collectFree(v.Cond, bound, out)
		collectFree(v.True, bound, out)
		collectFree(v.False, bound, out)
	case *syntax.Comprehension:
		inner := copyBound(bound)
		for i, clause := range v.Clauses {
			switch c := clause.(type) {
			case *syntax.ForClause:
				// The first iterable evaluates in the enclosing
				// scope, later clauses see the loop targets.
				if i == 0 {
					collectFree(c.X, bound, out)
				} else {
					collectFree(c.X, inner, out)
				}
				bindTargets(c.Vars, inner)
			case *syntax.IfClause:
				collectFree(c.Cond, inner, out)
			}
		}
		collectFree(v.Body, inner, out)
	case *syntax.LambdaExpr:
		inner := copyBound(bound)
		for _, p := range v.Params {
			if def, ok := p.(*syntax.BinaryExpr); ok && def.Op == syntax.EQ {
				collectFree(def.Y, bound, out)
				bindTargets(def.X, inner)
				continue
			}
			if star, ok := p.(*syntax.UnaryExpr); ok {
				bindTargets(star.X, inner)
				continue
			}
			bindTargets(p, inner)
		}
		collectFree(v.Body, inner, out)

	case *syntax.ExprStmt:
		collectFree(v.X, bound, out)
	case *syntax.AssignStmt:
		if v.Op != syntax.EQ {
			collectFree(v.LHS, bound, out)
		}
		collectFree(v.RHS, bound, out)
	case *syntax.IfStmt:
		collectFree(v.Cond, bound, out)
		for _, s := range v.True {
			collectFree(s, bound, out)
		}
		for _, s := range v.False {
			collectFree(s, bound, out)
		}
	case *syntax.ForStmt:
		collectFree(v.X, bound, out)
		for _, s := range v.Body {
			collectFree(s, bound, out)
		}
	case *syntax.WhileStmt:
		collectFree(v.Cond, bound, out)
		for _, s := range v.Body {
			collectFree(s, bound, out)
		}
	case *syntax.DefStmt:
		inner := copyBound(bound)
		for _, p := range v.Params {
			if def, ok := p.(*syntax.BinaryExpr); ok && def.Op == syntax.EQ {
				collectFree(def.Y, bound, out)
				bindTargets(def.X, inner)
				continue
			}
			if star, ok := p.(*syntax.UnaryExpr); ok {
				bindTargets(star.X, inner)
				continue
			}
			bindTargets(p, inner)
		}
		for _, s := range v.Body {
			collectFree(s, inner, out)
		}
	case *syntax.ReturnStmt:
		collectFree(v.Result, bound, out)
	case *syntax.BranchStmt, *syntax.LoadStmt:
	}
}

// bindTargets records the identifiers of an assignment target pattern.
func bindTargets(n syntax.Expr, bound map[string]bool) {
	switch v := n.(type) {
	case nil:
	case *syntax.Ident:
		bound[v.Name] = true
	case *syntax.ParenExpr:
		bindTargets(v.X, bound)
	case *syntax.TupleExpr:
		for _, e := range v.List {
			bindTargets(e, bound)
		}
	case *syntax.ListExpr:
		for _, e := range v.List {
			bindTargets(e, bound)
		}
	}
}

func copyBound(bound map[string]bool) map[string]bool {
	inner := make(map[string]bool, len(bound)+4)
	for k := range bound {
		inner[k] = true
	}
	return inner
}
