package runtime

import (
	"strings"

	"go.starlark.net/starlark"
)

// Output is a buffered fragment sequence. It is the value produced when
// compiled output crosses into expression space: calling a template
// function from an expression returns one, and filter and translation
// placeholders buffer through one. It satisfies the raw-markup contract
// (HTML), so interpolating an Output never double-escapes content that
// was escaped as it was produced.
type Output struct {
	frags []string
}

// NewOutput returns an Output over the given fragments.
func NewOutput(frags ...string) *Output {
	return &Output{frags: frags}
}

// Append adds one fragment. Its method value is a Sink.
func (o *Output) Append(s string) error {
	o.frags = append(o.frags, s)
	return nil
}

// String joins the fragments.
func (o *Output) String() string {
	if len(o.frags) == 1 {
		return o.frags[0]
	}
	return strings.Join(o.frags, "")
}

// HTML marks the joined fragments as already escaped.
func (o *Output) HTML() string { return o.String() }

// Fragments returns the underlying fragment slice.
func (o *Output) Fragments() []string { return o.frags }

var (
	_ starlark.Value    = (*Output)(nil)
	_ starlark.Iterable = (*Output)(nil)
)

func (o *Output) Type() string         { return "output" }
func (o *Output) Freeze()              {}
func (o *Output) Truth() starlark.Bool { return starlark.True }

func (o *Output) Hash() (uint32, error) {
	return starlark.String(o.String()).Hash()
}

// Iterate yields the fragments as strings.
func (o *Output) Iterate() starlark.Iterator {
	return &outputIterator{frags: o.frags}
}

type outputIterator struct {
	frags []string
	i     int
}

func (it *outputIterator) Next(p *starlark.Value) bool {
	if it.i >= len(it.frags) {
		return false
	}
	*p = starlark.String(it.frags[it.i])
	it.i++
	return true
}

func (it *outputIterator) Done() {}
