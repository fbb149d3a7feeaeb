package runtime

import (
	"go.starlark.net/starlark"
)

// builtin resolves the reserved render helpers. value_of and defined
// are rebuilt per lookup so they close over the active context.
func (rc *Context) builtin(name string) (starlark.Value, bool) {
	switch name {
	case "value_of":
		return starlark.NewBuiltin("value_of", rc.valueOf), true
	case "defined":
		return starlark.NewBuiltin("defined", rc.defined), true
	case "Markup":
		return markupBuiltin, true
	}
	return nil, false
}

var markupBuiltin = starlark.NewBuiltin("Markup", markup)

// value_of(name, default=None) reads a render-context variable without
// tripping the undefined machinery.
func (rc *Context) valueOf(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var dflt starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &dflt); err != nil {
		return nil, err
	}
	if v, ok := rc.LookupVar(name); ok {
		return v, nil
	}
	return dflt, nil
}

// defined(name) reports whether a render-context variable exists.
func (rc *Context) defined(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	_, ok := rc.LookupVar(name)
	return starlark.Bool(ok), nil
}

// Markup(value) marks a string as already-escaped markup so it passes
// through output escaping untouched.
func markup(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value = starlark.String("")
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value?", &v); err != nil {
		return nil, err
	}
	s, err := Stringify(v)
	if err != nil {
		return nil, err
	}
	return NewOutput(s), nil
}
