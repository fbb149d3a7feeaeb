package runtime

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// UndefinedVariableError reports an operation on a context name that
// resolved nowhere.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%q is not defined", e.Name)
}

// Undefined is the starlark value bound for a name that resolved
// nowhere. Binding or passing it around is fine; nearly every operation
// on it (stringifying, calling, comparing, indexing, attribute access,
// arithmetic) raises UndefinedVariableError naming the variable, so a
// missing value surfaces at the point it is actually used.
//
// Truth returns false rather than failing: starlark truth tests cannot
// report errors, and a falsy missing value keeps `w:if` guards over
// optional context entries usable.
type Undefined struct {
	name string
}

// NewUndefined returns the marker for name.
func NewUndefined(name string) *Undefined {
	return &Undefined{name: name}
}

var (
	_ starlark.Value     = (*Undefined)(nil)
	_ starlark.Callable  = (*Undefined)(nil)
	_ starlark.HasAttrs  = (*Undefined)(nil)
	_ starlark.HasBinary = (*Undefined)(nil)
	_ starlark.HasUnary  = (*Undefined)(nil)
	_ starlark.Mapping   = (*Undefined)(nil)
)

func (u *Undefined) err() error { return &UndefinedVariableError{Name: u.name} }

// Name returns the variable name the marker stands in for.
func (u *Undefined) Name() string { return u.name }

// String is used by starlark diagnostics only; rendering an Undefined
// is rejected before stringification.
func (u *Undefined) String() string       { return "<undefined " + u.name + ">" }
func (u *Undefined) Type() string         { return "undefined" }
func (u *Undefined) Freeze()              {}
func (u *Undefined) Truth() starlark.Bool { return starlark.False }

func (u *Undefined) Hash() (uint32, error) { return 0, u.err() }

func (u *Undefined) CallInternal(_ *starlark.Thread, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	return nil, u.err()
}

func (u *Undefined) Attr(string) (starlark.Value, error) { return nil, u.err() }
func (u *Undefined) AttrNames() []string                 { return nil }

func (u *Undefined) Binary(syntax.Token, starlark.Value, starlark.Side) (starlark.Value, error) {
	return nil, u.err()
}

func (u *Undefined) Unary(syntax.Token) (starlark.Value, error) { return nil, u.err() }

func (u *Undefined) Get(starlark.Value) (starlark.Value, bool, error) { return nil, false, u.err() }

func (u *Undefined) CompareSameType(syntax.Token, starlark.Value, int) (bool, error) {
	return false, u.err()
}
