package runtime

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// Program is one compiled template: the root producer plus the named
// functions and blocks the template defines. The loader binds each
// Program to its Template handle after compilation; that binding
// anchors relative loads and super() resolution.
type Program struct {
	// File is the source path the template was compiled from.
	File string
	// Kind is the source dialect, "markup" or "text".
	Kind string
	// Root produces the whole template. Enter through RunRoot, which
	// scopes the invocation state.
	Root Func

	blocks  map[string]*Block
	defs    map[string]*NamedFunc
	imports []RootImport
	globals map[string]starlark.Value
	tmpl    Template
}

// NewProgram returns an empty program for the given source file and
// dialect.
func NewProgram(file, kind string) *Program {
	return &Program{
		File:    file,
		Kind:    kind,
		blocks:  make(map[string]*Block),
		defs:    make(map[string]*NamedFunc),
		globals: make(map[string]starlark.Value),
	}
}

// Bind attaches the loader-side template handle. Called once by the
// loader after compilation.
func (p *Program) Bind(t Template) { p.tmpl = t }

// Template returns the handle bound by the loader, or nil for programs
// compiled outside a loader.
func (p *Program) Template() Template { return p.tmpl }

// RunRoot drains the template's root function into out. The invocation
// sees the ancestor stack and block overrides currently on rc; state
// changes it makes are scoped to the invocation.
func (p *Program) RunRoot(rc *Context, out Sink) error {
	saved := rc.save()
	rc.enter(NewLocals(), p, rc.Bases, rc.Blocks)
	defer rc.restore(saved)
	return p.Root(rc, out)
}

// AddBlock registers a block implementation under name.
func (p *Program) AddBlock(name string, body Func) *Block {
	b := &Block{Name: name, Body: body, prog: p}
	p.blocks[name] = b
	return b
}

// Block returns the local implementation of the named block.
func (p *Program) Block(name string) (*Block, bool) {
	b, ok := p.blocks[name]
	return b, ok
}

// BlockNames returns the names of the blocks this template defines,
// sorted.
func (p *Program) BlockNames() []string {
	names := make([]string, 0, len(p.blocks))
	for n := range p.blocks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddFunc registers a named template function.
func (p *Program) AddFunc(name string, params []Param, body Func) *NamedFunc {
	f := &NamedFunc{name: name, params: params, body: body, prog: p}
	p.defs[name] = f
	return f
}

// Func returns the named template function.
func (p *Program) Func(name string) (*NamedFunc, bool) {
	f, ok := p.defs[name]
	return f, ok
}

// FuncNames returns the names of the template's functions, sorted.
func (p *Program) FuncNames() []string {
	names := make([]string, 0, len(p.defs))
	for n := range p.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RootImport is an import at template root. The loader resolves these
// once, when it binds the program, and the bindings behave as template
// globals from then on.
type RootImport struct {
	Alias         string
	Href          string
	IgnoreMissing bool
	File          string
	Line          int
}

// AddImport records a root-level import for the loader to resolve.
func (p *Program) AddImport(imp RootImport) {
	p.imports = append(p.imports, imp)
}

// Imports returns the recorded root-level imports.
func (p *Program) Imports() []RootImport { return p.imports }

// SetGlobal installs a load-time binding (a resolved root import).
func (p *Program) SetGlobal(name string, v starlark.Value) {
	p.globals[name] = v
}

// global resolves a module-level name: resolved root imports first,
// then the template's own functions.
func (p *Program) global(name string) (starlark.Value, bool) {
	if v, ok := p.globals[name]; ok {
		return v, true
	}
	if f, ok := p.defs[name]; ok {
		return f, true
	}
	return nil, false
}

// Block is a compiled block implementation tied to the program that
// defined it.
type Block struct {
	Name string
	Body Func
	prog *Program
}

// Program returns the program the implementation belongs to.
func (b *Block) Program() *Program { return b.prog }

// Render runs the implementation with a fresh function scope, its
// super() binding resolved against the current ancestor stack, and the
// defining program's globals in reach.
func (b *Block) Render(rc *Context, out Sink) error {
	locals := NewLocals()
	locals.Set("super", newSuper(rc, rc.Bases, b.prog.Template(), b.Name))
	saved := rc.save()
	rc.enter(locals, b.prog, rc.Bases, rc.Blocks)
	defer rc.restore(saved)
	return b.Body(rc, out)
}

// Param describes one parameter of a named template function.
type Param struct {
	Name string
	// Default is evaluated per call against the calling environment
	// when the argument is absent. Nil marks the parameter required.
	Default *Expr
	// Star collects surplus positional arguments.
	Star bool
	// StarStar collects surplus keyword arguments.
	StarStar bool
}

// NamedFunc is a compiled template function. Expressions call it like
// any starlark function; the result is an Output carrying everything
// the body emitted.
type NamedFunc struct {
	name   string
	params []Param
	body   Func
	prog   *Program
}

var _ starlark.Callable = (*NamedFunc)(nil)

func (f *NamedFunc) Name() string         { return f.name }
func (f *NamedFunc) String() string       { return fmt.Sprintf("<template function %s>", f.name) }
func (f *NamedFunc) Type() string         { return "function" }
func (f *NamedFunc) Freeze()              {}
func (f *NamedFunc) Truth() starlark.Bool { return starlark.True }

func (f *NamedFunc) Hash() (uint32, error) {
	return starlark.String(f.name).Hash()
}

// CallInternal implements starlark.Callable. The render context rides
// the evaluating thread.
func (f *NamedFunc) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	rc := ContextFromThread(thread)
	if rc == nil {
		return nil, fmt.Errorf("template function %s called outside a render", f.name)
	}
	return f.Call(rc, args, kwargs)
}

// Call invokes the function directly, outside expression context.
func (f *NamedFunc) Call(rc *Context, args starlark.Tuple, kwargs []starlark.Tuple) (*Output, error) {
	locals, err := f.bind(rc, args, kwargs)
	if err != nil {
		return nil, err
	}
	saved := rc.save()
	rc.enter(locals, f.prog, nil, nil)
	defer rc.restore(saved)
	return Collect(rc, f.body)
}

// bind matches arguments to parameters. Defaults for absent arguments
// are evaluated before the callee scope is installed, so they see the
// calling environment.
func (f *NamedFunc) bind(rc *Context, args starlark.Tuple, kwargs []starlark.Tuple) (*Locals, error) {
	var regular []Param
	var vararg, kwarg *Param
	for i := range f.params {
		p := &f.params[i]
		switch {
		case p.Star:
			vararg = p
		case p.StarStar:
			kwarg = p
		default:
			regular = append(regular, *p)
		}
	}

	locals := NewLocals()
	bound := make(map[string]bool, len(regular))

	n := len(args)
	if n > len(regular) {
		if vararg == nil {
			return nil, fmt.Errorf("function %s accepts at most %d positional arguments (%d given)", f.name, len(regular), n)
		}
		n = len(regular)
	}
	for i := 0; i < n; i++ {
		locals.Set(regular[i].Name, args[i])
		bound[regular[i].Name] = true
	}
	if vararg != nil {
		rest := make(starlark.Tuple, len(args)-n)
		copy(rest, args[n:])
		locals.Set(vararg.Name, rest)
	}

	var extra *starlark.Dict
	if kwarg != nil {
		extra = starlark.NewDict(len(kwargs))
	}
	for _, kv := range kwargs {
		name, _ := starlark.AsString(kv[0])
		isParam := false
		for _, p := range regular {
			if p.Name == name {
				isParam = true
				break
			}
		}
		switch {
		case isParam:
			if bound[name] {
				return nil, fmt.Errorf("function %s got multiple values for parameter %q", f.name, name)
			}
			locals.Set(name, kv[1])
			bound[name] = true
		case extra != nil:
			if err := extra.SetKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("function %s got an unexpected keyword argument %q", f.name, name)
		}
	}
	if kwarg != nil {
		locals.Set(kwarg.Name, extra)
	}

	for _, p := range regular {
		if bound[p.Name] {
			continue
		}
		if p.Default == nil {
			return nil, fmt.Errorf("function %s missing required argument %q", f.name, p.Name)
		}
		v, err := p.Default.Eval(rc)
		if err != nil {
			return nil, err
		}
		locals.Set(p.Name, v)
	}
	return locals, nil
}

// Closure wraps a compiled body as a zero-argument callable bound to
// the invocation state it was created in. Call keywords and call bodies
// compile to closures; the callee renders them by calling.
type Closure struct {
	name  string
	body  Func
	rc    *Context
	state frameState
}

// NewClosure captures the current invocation state of rc around body.
func NewClosure(name string, rc *Context, body Func) *Closure {
	return &Closure{name: name, body: body, rc: rc, state: rc.save()}
}

var _ starlark.Callable = (*Closure)(nil)

func (c *Closure) Name() string         { return c.name }
func (c *Closure) String() string       { return fmt.Sprintf("<template closure %s>", c.name) }
func (c *Closure) Type() string         { return "function" }
func (c *Closure) Freeze()              {}
func (c *Closure) Truth() starlark.Bool { return starlark.True }

func (c *Closure) Hash() (uint32, error) {
	return starlark.String(c.name).Hash()
}

func (c *Closure) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 || len(kwargs) > 0 {
		return nil, fmt.Errorf("closure %s takes no arguments", c.name)
	}
	rc := c.rc
	saved := rc.save()
	rc.restore(c.state)
	defer rc.restore(saved)
	return Collect(rc, c.body)
}

// Namespace exposes a template's named functions to expressions; an
// import binds one under its alias.
type Namespace struct {
	t Template
}

// NewNamespace wraps t for expression use.
func NewNamespace(t Template) *Namespace {
	return &Namespace{t: t}
}

var (
	_ starlark.Value    = (*Namespace)(nil)
	_ starlark.HasAttrs = (*Namespace)(nil)
)

func (ns *Namespace) String() string       { return fmt.Sprintf("<template %s>", ns.t.Path()) }
func (ns *Namespace) Type() string         { return "template" }
func (ns *Namespace) Freeze()              {}
func (ns *Namespace) Truth() starlark.Bool { return starlark.True }

func (ns *Namespace) Hash() (uint32, error) {
	return starlark.String(ns.t.Path()).Hash()
}

func (ns *Namespace) Attr(name string) (starlark.Value, error) {
	if f, ok := ns.t.Program().Func(name); ok {
		return f, nil
	}
	return nil, nil
}

func (ns *Namespace) AttrNames() []string {
	return ns.t.Program().FuncNames()
}

// NewMissingNamespace stands in for an ignore-missing import whose
// target did not resolve: binding it succeeds, every lookup through it
// fails lazily with UndefinedVariableError.
func NewMissingNamespace(alias string) starlark.Value {
	return &missingNamespace{alias: alias}
}

type missingNamespace struct {
	alias string
}

var (
	_ starlark.Value    = (*missingNamespace)(nil)
	_ starlark.HasAttrs = (*missingNamespace)(nil)
)

func (ns *missingNamespace) String() string       { return fmt.Sprintf("<template %s (missing)>", ns.alias) }
func (ns *missingNamespace) Type() string         { return "template" }
func (ns *missingNamespace) Freeze()              {}
func (ns *missingNamespace) Truth() starlark.Bool { return starlark.False }

func (ns *missingNamespace) Hash() (uint32, error) {
	return starlark.String(ns.alias).Hash()
}

func (ns *missingNamespace) Attr(name string) (starlark.Value, error) {
	return nil, &UndefinedVariableError{Name: ns.alias + "." + name}
}

func (ns *missingNamespace) AttrNames() []string { return nil }
