package runtime

import (
	"context"

	"go.starlark.net/starlark"
)

// Context is the state of one render. It is threaded explicitly through
// every compiled function call; there are no thread- or task-local
// globals. A Context must not be shared between concurrent renders.
type Context struct {
	ctx    context.Context
	loader Loader
	pool   *ThreadPool

	// vars is the stack of render-context mappings. The entry pushed by
	// the render call sits innermost (last); name lookups consult only
	// the innermost mapping.
	vars []map[string]starlark.Value

	// locals is the flat variable scope of the compiled function
	// currently executing. Loop targets, with-bindings, code-block
	// assignments and function parameters all land here. Closures
	// capture the pointer, so later mutations stay visible to them.
	locals *Locals

	// prog is the program whose function is currently executing. Its
	// load-time globals (root-level imports) resolve through here.
	prog *Program

	// Bases is the ancestor stack for inheritance: index 0 is the most
	// rootward template, the last entry the nearest ancestor. Extends
	// prepends to it.
	Bases []Template

	// Blocks is the active block override table. An entry here wins
	// over a program's own block implementation of the same name.
	Blocks map[string]*Block

	frames []Frame
}

// NewContext returns a render context. ctx may be nil; loader may be
// nil for templates that never reference other templates; pool may be
// nil to use a process-wide shared pool.
func NewContext(ctx context.Context, loader Loader, pool *ThreadPool) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if pool == nil {
		pool = defaultPool
	}
	return &Context{ctx: ctx, loader: loader, pool: pool}
}

// Err reports whether the render has been cancelled via its
// context.Context. Compiled loops check it between iterations.
func (rc *Context) Err() error {
	return rc.ctx.Err()
}

// PushVars makes m the innermost render-context mapping. The render
// entry point pushes the caller-supplied variables here and pops them
// in a deferred cleanup.
func (rc *Context) PushVars(m map[string]starlark.Value) {
	if m == nil {
		m = make(map[string]starlark.Value)
	}
	rc.vars = append(rc.vars, m)
}

// PopVars removes the innermost render-context mapping.
func (rc *Context) PopVars() {
	if len(rc.vars) > 0 {
		rc.vars = rc.vars[:len(rc.vars)-1]
	}
}

// Vars returns the innermost render-context mapping, or nil if none has
// been pushed.
func (rc *Context) Vars() map[string]starlark.Value {
	if len(rc.vars) == 0 {
		return nil
	}
	return rc.vars[len(rc.vars)-1]
}

// LookupVar reads name from the innermost render-context mapping.
func (rc *Context) LookupVar(name string) (starlark.Value, bool) {
	m := rc.Vars()
	if m == nil {
		return nil, false
	}
	v, ok := m[name]
	return v, ok
}

// SetVar writes name into the innermost render-context mapping.
// with-bindings write through here so that called functions and
// included templates observe them.
func (rc *Context) SetVar(name string, v starlark.Value) {
	m := rc.Vars()
	if m != nil {
		m[name] = v
	}
}

// DeleteVar removes name from the innermost render-context mapping.
func (rc *Context) DeleteVar(name string) {
	if m := rc.Vars(); m != nil {
		delete(m, name)
	}
}

// Locals returns the variable scope of the currently executing compiled
// function.
func (rc *Context) Locals() *Locals {
	return rc.locals
}

// Resolve looks name up the way an embedded expression sees it: the
// current function scope first, then the owning program's load-time
// globals, then the render builtins for the reserved names, then the
// render-context mapping, then the starlark universe. Names that
// resolve nowhere bind an Undefined marker that fails only when
// operated upon.
func (rc *Context) Resolve(name string) starlark.Value {
	if rc.locals != nil {
		if v, ok := rc.locals.Get(name); ok {
			return v
		}
	}
	if rc.prog != nil {
		if v, ok := rc.prog.global(name); ok {
			return v
		}
	}
	if v, ok := rc.builtin(name); ok {
		return v
	}
	if v, ok := rc.LookupVar(name); ok {
		return v
	}
	if v, ok := starlark.Universe[name]; ok {
		return v
	}
	return NewUndefined(name)
}

// AddErrorLocation records a template location while an error unwinds.
// Innermost locations are recorded first; a location identical to the
// last recorded one is dropped.
func (rc *Context) AddErrorLocation(file string, line int) {
	f := Frame{File: file, Line: line}
	if n := len(rc.frames); n > 0 && rc.frames[n-1] == f {
		return
	}
	rc.frames = append(rc.frames, f)
}

// Frames returns the template locations recorded since the render
// started, innermost first.
func (rc *Context) Frames() []Frame {
	return rc.frames
}

// frameState is the per-function-invocation portion of the context.
// Function entry points swap it so that mutations a compiled function
// makes (extends prepending an ancestor, loop targets, code
// assignments) stay scoped to that invocation.
type frameState struct {
	locals *Locals
	prog   *Program
	bases  []Template
	blocks map[string]*Block
}

func (rc *Context) save() frameState {
	return frameState{locals: rc.locals, prog: rc.prog, bases: rc.Bases, blocks: rc.Blocks}
}

func (rc *Context) restore(s frameState) {
	rc.locals = s.locals
	rc.prog = s.prog
	rc.Bases = s.bases
	rc.Blocks = s.blocks
}

// enter installs the invocation state a compiled function should see.
func (rc *Context) enter(locals *Locals, prog *Program, bases []Template, blocks map[string]*Block) {
	rc.locals = locals
	rc.prog = prog
	rc.Bases = bases
	rc.Blocks = blocks
}

// Locals is the flat variable scope of one compiled function
// invocation. There is no nesting within a function: a loop target or
// code assignment stays bound for the remainder of the invocation.
type Locals struct {
	vars map[string]starlark.Value
}

// NewLocals returns an empty function scope.
func NewLocals() *Locals {
	return &Locals{vars: make(map[string]starlark.Value)}
}

// Get reads a binding.
func (l *Locals) Get(name string) (starlark.Value, bool) {
	v, ok := l.vars[name]
	return v, ok
}

// Set writes a binding.
func (l *Locals) Set(name string, v starlark.Value) {
	l.vars[name] = v
}

// Names returns the bound names in no particular order.
func (l *Locals) Names() []string {
	names := make([]string, 0, len(l.vars))
	for n := range l.vars {
		names = append(names, n)
	}
	return names
}
