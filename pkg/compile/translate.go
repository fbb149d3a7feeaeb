package compile

import (
	"strings"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/weft/pkg/i18n"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// compileTranslation looks the node's message id up through the
// injected `_` binding, renders each placeholder, and substitutes the
// rendered values into the translated text by literal ${name}
// replacement. The result is emitted unescaped; placeholder output was
// escaped as it was produced. Without a `_` binding the message id
// passes through untranslated.
func (c *compiler) compileTranslation(n *ir.Translation) (runtime.Func, error) {
	msgid := i18n.Message(n)
	if msgid == "" {
		// comment-only node; render whatever content it carries
		return c.seq(n.Children)
	}

	type place struct {
		name string
		body runtime.Func
	}
	var places []place
	for _, seg := range i18n.Segments(n) {
		if seg.Name == "" {
			continue
		}
		body, err := c.seq(seg.Nodes)
		if err != nil {
			return nil, err
		}
		places = append(places, place{name: seg.Name, body: ensureEmit(body, emits(seg.Nodes))})
	}

	return func(rc *runtime.Context, out runtime.Sink) error {
		message := msgid
		if fn := rc.Resolve("_"); fn != nil {
			if _, missing := fn.(*runtime.Undefined); !missing {
				v, err := runtime.CallValue(rc, fn, starlark.Tuple{starlark.String(msgid)}, nil)
				if err != nil {
					return err
				}
				s, err := runtime.Stringify(v)
				if err != nil {
					return err
				}
				message = s
			}
		}
		for _, p := range places {
			val, err := runtime.Collect(rc, p.body)
			if err != nil {
				return err
			}
			message = strings.ReplaceAll(message, "${"+p.name+"}", val.String())
		}
		return out(message)
	}, nil
}
