package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestOutput(t *testing.T) {
	o := NewOutput("a", "b")
	require.NoError(t, o.Append("c"), "unexpected error")

	assert.Equal(t, "abc", o.String())
	assert.Equal(t, "abc", o.HTML(), "output is markup-safe as a whole")
	assert.Equal(t, []string{"a", "b", "c"}, o.Fragments())
}

func TestOutput_AppendIsASink(t *testing.T) {
	o := NewOutput()
	var sink Sink = o.Append
	require.NoError(t, sink("x"), "unexpected error")
	assert.Equal(t, "x", o.String())
}

func TestOutput_Iterate(t *testing.T) {
	o := NewOutput("a", "b")

	it := o.Iterate()
	defer it.Done()

	var got []string
	var v starlark.Value
	for it.Next(&v) {
		s, ok := starlark.AsString(v)
		require.True(t, ok, "fragment should iterate as a string, got %T", v)
		got = append(got, s)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestCollect(t *testing.T) {
	rc := NewContext(nil, nil, nil)
	out, err := Collect(rc, func(rc *Context, out Sink) error {
		if err := out("one"); err != nil {
			return err
		}
		return out("two")
	})
	require.NoError(t, err, "unexpected error")
	assert.Equal(t, []string{"one", "two"}, out.Fragments())
}
