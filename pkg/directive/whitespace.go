package directive

import (
	"strings"

	"github.com/leapstack-labs/weft/pkg/token"
)

const whitespaceAttr = nsMain + ":whitespace"

func isWSByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// entirelyWS reports whether s contains only ASCII whitespace.
// Non-breaking spaces and other unicode whitespace are content.
func entirelyWS(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isWSByte(s[i]) {
			return false
		}
	}
	return true
}

// splitLeading splits s into its leading whitespace run and the rest.
func splitLeading(s string) (ws, rest string) {
	i := 0
	for i < len(s) && isWSByte(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

// splitTrailing splits s into content and its trailing whitespace run.
// It reports ok false when the content itself spans more than one line;
// such text is left untouched.
func splitTrailing(s string) (content, ws string, ok bool) {
	i := len(s)
	for i > 0 && isWSByte(s[i-1]) {
		i--
	}
	if strings.ContainsAny(s[:i], "\r\n") {
		return "", "", false
	}
	return s[:i], s[i:], true
}

func parseWhitespaceMode(value string, pos token.Position) (bool, error) {
	switch value {
	case "strip":
		return true, nil
	case "preserve":
		return false, nil
	default:
		return false, NewCompileErrorf(pos,
			"invalid whitespace mode %q: expected \"strip\" or \"preserve\"", value)
	}
}

// stripWhitespace walks the element tree applying the whitespace mode.
// A w:whitespace attribute or element switches the mode for its
// subtree. In strip mode, whitespace-only text at element boundaries is
// removed, as are newline-bearing whitespace runs adjacent to element
// siblings.
func stripWhitespace(el *Element, strip bool) error {
	if !el.fragment && el.name.String() == whitespaceAttr {
		a, ok := el.attrs.pop(nsMain + ":value")
		if !ok {
			return NewCompileErrorf(el.position,
				"missing attribute %q in element %s", nsMain+":value", el)
		}
		mode, err := parseWhitespaceMode(a.Value, a.ValuePos)
		if err != nil {
			return err
		}
		strip = mode
		el.fragment = true
	} else if a, ok := el.attrs.pop(whitespaceAttr); ok {
		mode, err := parseWhitespaceMode(a.Value, a.ValuePos)
		if err != nil {
			return err
		}
		strip = mode
		if el.attrs.empty() {
			el.space = ""
		}
	}

	if strip {
		children := el.children
		out := make([]treeNode, 0, len(children))
		for i, n := range children {
			t, isText := n.(token.Text)
			if !isText {
				out = append(out, n)
				continue
			}
			var preceding, following treeNode
			if i > 0 {
				preceding = children[i-1]
			}
			if i < len(children)-1 {
				following = children[i+1]
			}

			if preceding == nil {
				ws, rest := splitLeading(t.Content)
				t.Content = rest
				t.Position = t.Position.Advance(ws)
			}
			if following == nil {
				if content, _, ok := splitTrailing(t.Content); ok {
					t.Content = content
				}
			}
			if _, isEl := following.(*Element); isEl {
				if content, ws, ok := splitTrailing(t.Content); ok && strings.ContainsAny(ws, "\r\n") {
					t.Content = content
				}
			}
			if _, isEl := preceding.(*Element); isEl {
				if ws, rest := splitLeading(t.Content); strings.ContainsAny(ws, "\r\n") {
					t.Content = rest
					t.Position = t.Position.Advance(ws)
				}
			}

			if t.Content != "" {
				out = append(out, t)
			}
		}
		el.children = out
	}

	for _, n := range el.children {
		if child, ok := n.(*Element); ok {
			if err := stripWhitespace(child, strip); err != nil {
				return err
			}
		}
	}
	return nil
}

// stripSpacesBetweenDirectives removes whitespace-only text runs that
// follow a tag form directive, so stacked directives do not leave blank
// lines between themselves in output.
func stripSpacesBetweenDirectives(el *Element) {
	afterDirective := false
	var drop map[int]bool
	for i, n := range el.children {
		child, isEl := n.(*Element)
		isDir := isEl && child.isDirective()
		isWS := false
		if t, ok := n.(token.Text); ok {
			isWS = entirelyWS(t.Content)
		}

		if !afterDirective {
			afterDirective = isDir
		} else {
			switch {
			case isDir:
				continue
			case isWS:
				if drop == nil {
					drop = make(map[int]bool)
				}
				drop[i] = true
			default:
				afterDirective = false
			}
		}
		if isEl {
			stripSpacesBetweenDirectives(child)
		}
	}
	if len(drop) > 0 {
		out := make([]treeNode, 0, len(el.children)-len(drop))
		for i, n := range el.children {
			if !drop[i] {
				out = append(out, n)
			}
		}
		el.children = out
	}
}

// combineEntities folds entity references into neighboring text nodes
// so interpolation scanning sees one uninterrupted string across the
// former token boundaries.
func combineEntities(el *Element) {
	out := make([]treeNode, 0, len(el.children))
	var acc *token.Text
	flush := func() {
		if acc != nil {
			out = append(out, *acc)
			acc = nil
		}
	}
	for _, n := range el.children {
		if child, ok := n.(*Element); ok {
			combineEntities(child)
		}
		switch t := n.(type) {
		case token.Text:
			if acc == nil {
				tt := t
				acc = &tt
			} else {
				acc.Content += t.Content
			}
		case token.Entity:
			if acc == nil {
				acc = &token.Text{Position: t.Position, Content: t.Source}
			} else {
				acc.Content += t.Source
			}
		default:
			flush()
			out = append(out, n)
		}
	}
	flush()
	el.children = out
}
