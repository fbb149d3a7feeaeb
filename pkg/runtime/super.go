package runtime

import (
	"fmt"

	"go.starlark.net/starlark"
)

// superValue is the super() callable bound inside a block
// implementation. Calling it renders the nearest ancestor's
// implementation of the same block, handing that ancestor only the
// templates further rootward so that chained super() keeps walking in
// the right direction.
type superValue struct {
	rc       *Context
	eligible []Template
	name     string
}

// newSuper resolves the ancestors owner may delegate to: everything in
// bases before owner, or all of bases when owner is not an ancestor
// itself (the usual case, since the extending leaf is never in the
// stack it passes up).
func newSuper(rc *Context, bases []Template, owner Template, name string) *superValue {
	eligible := bases
	if owner != nil {
		for i, t := range bases {
			if t == owner {
				eligible = bases[:i]
				break
			}
		}
	}
	return &superValue{rc: rc, eligible: eligible, name: name}
}

var _ starlark.Callable = (*superValue)(nil)

func (s *superValue) Name() string         { return "super" }
func (s *superValue) String() string       { return fmt.Sprintf("<super %s>", s.name) }
func (s *superValue) Type() string         { return "function" }
func (s *superValue) Freeze()              {}
func (s *superValue) Truth() starlark.Bool { return starlark.True }

func (s *superValue) Hash() (uint32, error) {
	return starlark.String(s.name).Hash()
}

func (s *superValue) CallInternal(_ *starlark.Thread, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("super takes no arguments (%d given)", len(args))
	}
	rc := s.rc
	for n := len(s.eligible); n > 0; n-- {
		impl, ok := s.eligible[n-1].Program().Block(s.name)
		if !ok {
			continue
		}
		saved := rc.save()
		rc.Bases = s.eligible[:n-1]
		rc.Blocks = nil
		out, err := Collect(rc, impl.Render)
		rc.restore(saved)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return NewOutput(), nil
}
