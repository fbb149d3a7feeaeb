package runtime

import (
	"html"

	"go.starlark.net/starlark"
)

// Markuper is the raw-markup contract: values exposing HTML pass
// through Escape unmodified. Output implements it; context values may
// too, to inject pre-escaped markup.
type Markuper interface {
	HTML() string
}

// Escape renders v for interpolation into markup. Raw-markup values
// pass through untouched, None disappears, anything else is stringified
// and has the five markup-significant characters entity-escaped.
// Operating on an Undefined fails with UndefinedVariableError.
func Escape(v starlark.Value) (string, error) {
	if u, ok := v.(*Undefined); ok {
		return "", u.err()
	}
	if m, ok := v.(Markuper); ok {
		return m.HTML(), nil
	}
	if _, ok := v.(starlark.NoneType); ok {
		return "", nil
	}
	s, err := Stringify(v)
	if err != nil {
		return "", err
	}
	return html.EscapeString(s), nil
}

// Stringify renders v as text with no escaping: strings unwrap rather
// than quote, raw-markup values join, None prints as "None", everything
// else uses its starlark representation.
func Stringify(v starlark.Value) (string, error) {
	switch val := v.(type) {
	case *Undefined:
		return "", val.err()
	case starlark.String:
		return string(val), nil
	default:
		if m, ok := v.(Markuper); ok {
			return m.HTML(), nil
		}
		return v.String(), nil
	}
}
