// Package runtime executes compiled templates. It provides the
// per-render Context threaded through every compiled function, value
// escaping, the starlark binding for embedded expressions, and the
// inheritance machinery (block override tables and super() resolution)
// that extends/include delegate through.
//
// A compiled template is a graph of Func values. Each Func pushes its
// output fragments into a Sink; draining the root Func in order
// reproduces the rendered document. Funcs are pure closures over
// compiled state and may be invoked any number of times, each run
// replaying the same fragment sequence for the same context.
package runtime

import (
	"errors"
	"fmt"
)

// Sink receives rendered output fragments in document order.
type Sink func(s string) error

// Func is a compiled producer of output fragments.
type Func func(rc *Context, out Sink) error

// Template is the loader-side handle the runtime calls back into when a
// template names another one (extends, include, import). Implemented by
// template.Template.
type Template interface {
	// Path is the resolved source path, used in error messages and for
	// the self-include check.
	Path() string
	// Program is the compiled form bound to this template.
	Program() *Program
}

// Loader resolves and loads templates named by other templates.
// Implemented by template.Loader.
type Loader interface {
	// LoadRelative loads the template at path, resolving relative
	// references against the template doing the loading. from may be
	// nil when there is no loading template.
	LoadRelative(path string, from Template) (Template, error)
}

// Load resolves href through the context's loader on behalf of from.
// Every extends, include and import a compiled template performs goes
// through here.
func Load(rc *Context, from Template, href string) (Template, error) {
	if rc.loader == nil {
		return nil, errors.New("template has no loader attached; load templates through a template.Loader")
	}
	t, err := rc.loader.LoadRelative(href, from)
	if err != nil {
		return nil, err
	}
	if from != nil && t == from {
		return nil, fmt.Errorf("template %q may not include itself", from.Path())
	}
	return t, nil
}

// Collect runs f, buffering every fragment it emits. It is how producer
// output crosses into expression space: function call results, filter
// input and translation placeholders are all collected before use.
func Collect(rc *Context, f Func) (*Output, error) {
	var out Output
	if err := f(rc, out.Append); err != nil {
		return nil, err
	}
	return &out, nil
}
