package directive

import (
	"strings"

	"github.com/leapstack-labs/weft/pkg/interpolate"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/token"
)

// piTarget is the processing instruction target carrying inline code.
const piTarget = "weft"

// htmlEmptyAttrs are attributes omitted entirely when their single
// interpolated value evaluates to None, so <input checked="$checked"/>
// renders as <input/> when checked is unset.
var htmlEmptyAttrs = map[string]bool{
	"checked":  true,
	"declare":  true,
	"defer":    true,
	"disabled": true,
	"ismap":    true,
	"multiple": true,
	"nohref":   true,
	"readonly": true,
	"selected": true,
}

// CompileMarkup resolves lexed markup tokens into an IR tree.
func CompileMarkup(tokens []token.Markup, file string) (*ir.Container, error) {
	root, err := BuildMarkup(tokens)
	if err != nil {
		return nil, err
	}
	if err := stripWhitespace(root, false); err != nil {
		return nil, err
	}
	stripSpacesBetweenDirectives(root)
	combineEntities(root)

	resolved, err := resolveNode(root)
	if err != nil {
		return nil, err
	}
	container := resolved.(*ir.Container)
	container.Position = token.Position{File: file, Line: 1, Col: 1}
	stripUnwanted(container)
	concatTexts(container)
	if err := attachElses(container); err != nil {
		return nil, err
	}
	return container, nil
}

// resolveNode compiles one element tree node to IR.
func resolveNode(n treeNode) (ir.Node, error) {
	switch t := n.(type) {
	case *Element:
		if t.fragment {
			c := &ir.Container{Position: t.position}
			if err := resolveChildren(t, c); err != nil {
				return nil, err
			}
			return c, nil
		}
		matches, remaining, err := scanDirectives(t)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return resolveDirectiveElement(t, matches, remaining)
		}
		return resolveVanillaElement(remaining)

	case token.Text:
		return resolveText(t), nil

	case token.PI:
		if t.Target == piTarget {
			return &ir.Code{Position: t.Position, Source: dedent(t.Content)}, nil
		}
		return &ir.Text{Position: t.Position, Content: t.Source()}, nil

	case token.Entity:
		return &ir.Text{Position: t.Position, Content: t.Source}, nil

	case token.Comment:
		// <!--! comments are for template authors only.
		if strings.HasPrefix(t.Content, "!") {
			return &ir.Text{Position: t.Position}, nil
		}
		return &ir.Text{Position: t.Position, Content: "<!--" + t.Content + "-->"}, nil

	case token.Decl:
		return &ir.Text{Position: t.Position, Content: t.Source}, nil

	case token.CDATA:
		return &ir.Text{Position: t.Position, Content: t.Source(), CDATA: true}, nil

	default:
		return nil, NewCompileErrorf(n.Pos(), "unknown node type %T", n)
	}
}

func resolveChildren(el *Element, c *ir.Container) error {
	for _, child := range el.children {
		n, err := resolveNode(child)
		if err != nil {
			return err
		}
		c.Append(n)
	}
	return nil
}

// resolveText scans a text node for interpolations, producing a
// container of Text and Interpolate nodes. Interpolations inside CDATA
// text are never escaped.
func resolveText(t token.Text) ir.Node {
	c := &ir.Container{Position: t.Position}
	cur := 0
	for _, seg := range interpolate.Parse(t.Content) {
		switch s := seg.(type) {
		case interpolate.Literal:
			c.Append(&ir.Text{
				Position: t.Position.Advance(t.Content[:cur]),
				Content:  s.Text,
				CDATA:    t.CDATA,
			})
		case interpolate.Expr:
			c.Append(&ir.Interpolate{
				Position:   t.Position.Advance(t.Content[:s.Offset]),
				Expr:       unescapeEntities(s.Source),
				AutoEscape: s.AutoEscape && !t.CDATA,
			})
			cur = s.End
		}
	}
	return c
}

func resolveVanillaElement(el *Element) (ir.Node, error) {
	c := &ir.Container{Position: el.position}
	c.Append(openTagIR(el, "", nil, ""))
	if err := resolveChildren(el, c); err != nil {
		return nil, err
	}
	c.Append(closeTagIR(el, "", ""))
	return c, nil
}

// resolveDirectiveElement lowers an element carrying directives. Outer
// directives wrap the whole element, inner directives wrap only its
// children, both nesting in descriptor table order.
func resolveDirectiveElement(el *Element, matches []match, remaining *Element) (ir.Node, error) {
	var outer, inner []match
	for _, m := range matches {
		if m.desc.Inner {
			inner = append(inner, m)
		} else {
			outer = append(outer, m)
		}
	}

	var extraAttrs []string
	var stripCond, tagExpr string
	for _, m := range matches {
		switch m.desc.Kind {
		case KindAttrs:
			extraAttrs = append(extraAttrs, m.data["attrs"])
		case KindStrip:
			if strings.TrimSpace(m.data["strip"]) == "" {
				stripCond = "True"
			} else {
				stripCond = m.data["strip"]
			}
		case KindTag:
			tagExpr = m.data["tag"]
		}
	}

	container := &ir.Container{Position: el.position}
	work, err := appendChain(container, outer)
	if err != nil {
		return nil, err
	}

	ir.Append(work, openTagIR(remaining, tagExpr, extraAttrs, stripCond))

	innerWork, err := appendChain(work, inner)
	if err != nil {
		return nil, err
	}
	for _, child := range remaining.children {
		n, err := resolveNode(child)
		if err != nil {
			return nil, err
		}
		ir.Append(innerWork, n)
	}

	ir.Append(work, closeTagIR(remaining, tagExpr, stripCond))
	return container, nil
}

// appendChain nests the IR node of each directive inside the previous
// one and returns the innermost. When the innermost node cannot hold
// children (include, import, content, replace), subsequent output is
// routed into a Null sink under parent and discarded.
func appendChain(parent ir.Node, matches []match) (ir.Node, error) {
	work := parent
	for _, m := range matches {
		switch m.desc.Kind {
		case KindAttrs, KindStrip, KindTag:
			continue
		}
		n, err := makeNode(m)
		if err != nil {
			return nil, err
		}
		ir.Append(work, n)
		work = n
	}
	if !appendsChildren(work) {
		sink := &ir.Null{Position: work.Pos()}
		ir.Append(parent, sink)
		work = sink
	}
	return work, nil
}

// openTagIR compiles an element's open tag. A strip condition
// suppresses the tags; "True" and "1" do so unconditionally. A tag
// expression replaces the static name. Extra attribute expressions
// merge over the static attributes at render time.
func openTagIR(el *Element, tagExpr string, extraAttrs []string, stripCond string) ir.Node {
	if el.fragment && tagExpr == "" {
		return &ir.Container{Position: el.position}
	}

	var body []ir.Node
	body = append(body, &ir.Text{Position: el.position, Content: "<"})
	if tagExpr != "" {
		body = append(body, &ir.Interpolate{Position: el.endPos, Expr: tagExpr, AutoEscape: true})
	} else {
		body = append(body, &ir.Text{Position: el.position, Content: el.name.String()})
	}
	body = append(body, &ir.Text{Position: el.position, Content: el.space})

	if len(extraAttrs) > 0 {
		body = append(body, &ir.Code{Position: el.position, Source: "__weft_attrs = {}"})
		for _, expr := range extraAttrs {
			body = append(body, &ir.Code{Position: el.position, Source: "__weft_attrs.update(" + expr + ")"})
		}
	}

	for _, a := range el.attrs.all() {
		if len(extraAttrs) > 0 {
			guard := &ir.If{
				Position: a.Position,
				Test:     "'" + a.Name.String() + "' not in __weft_attrs",
				Children: attrIR(a),
			}
			body = append(body, guard)
		} else {
			body = append(body, attrIR(a)...)
		}
	}

	if len(extraAttrs) > 0 {
		loop := &ir.For{
			Position: el.endPos,
			Each:     "__weft_attr_k, __weft_attr_v in __weft_attrs.items()",
			Children: []ir.Node{&ir.If{
				Position: el.endPos,
				Test:     "__weft_attr_v != None",
				Children: []ir.Node{
					&ir.Text{Position: el.endPos, Content: " "},
					&ir.Interpolate{Position: el.endPos, Expr: "__weft_attr_k", AutoEscape: true},
					&ir.Text{Position: el.endPos, Content: `="`},
					&ir.Interpolate{Position: el.endPos, Expr: "__weft_attr_v", AutoEscape: true},
					&ir.Text{Position: el.endPos, Content: `"`},
				},
			}},
		}
		body = append(body, loop)
	}

	body = append(body, &ir.Text{Position: el.endPos, Content: el.end})
	return wrapStrip(body, stripCond, el.position)
}

func closeTagIR(el *Element, tagExpr, stripCond string) ir.Node {
	if el.closeTag == "" || (el.fragment && tagExpr == "") {
		return &ir.Text{Position: el.closePos}
	}
	var body []ir.Node
	if tagExpr != "" {
		body = []ir.Node{
			&ir.Text{Position: el.closePos, Content: "</"},
			&ir.Interpolate{Position: el.closePos, Expr: tagExpr, AutoEscape: true},
			&ir.Text{Position: el.closePos, Content: ">"},
		}
	} else {
		body = []ir.Node{&ir.Text{Position: el.closePos, Content: el.closeTag}}
	}
	return wrapStrip(body, stripCond, el.closePos)
}

// wrapStrip wraps tag output in its strip condition.
func wrapStrip(body []ir.Node, stripCond string, pos token.Position) ir.Node {
	switch stripCond {
	case "":
		return &ir.Container{Position: pos, Children: body}
	case "True", "1":
		return &ir.Null{Position: pos, Children: body}
	default:
		return &ir.If{Position: pos, Test: "not (" + stripCond + ")", Children: body}
	}
}

// attrIR compiles one static attribute, scanning its value for
// interpolations.
func attrIR(a token.Attr) []ir.Node {
	if !a.HasValue {
		return []ir.Node{&ir.Text{Position: a.Position, Content: a.Source()}}
	}
	quote := string(a.Quote)
	intro := &ir.Text{
		Position: a.Position,
		Content:  a.Name.String() + a.Space1 + "=" + a.Space2 + quote,
	}
	outro := &ir.Text{
		Position: a.ValuePos.Advance(a.Value),
		Content:  quote + a.Space3,
	}

	segs := interpolate.Parse(a.Value)

	if htmlEmptyAttrs[a.Name.String()] && len(segs) == 1 {
		if expr, ok := segs[0].(interpolate.Expr); ok {
			return []ir.Node{&ir.With{
				Position: a.Position,
				Vars:     []ir.WithVar{{Target: "__weft_tmp", Expr: unescapeEntities(expr.Source)}},
				Children: []ir.Node{&ir.If{
					Position: a.Position,
					Test:     "__weft_tmp != None",
					Children: []ir.Node{
						intro,
						&ir.Interpolate{Position: a.ValuePos, Expr: "__weft_tmp", AutoEscape: true},
						outro,
					},
				}},
			}}
		}
	}

	nodes := []ir.Node{intro}
	cur := 0
	for _, seg := range segs {
		switch s := seg.(type) {
		case interpolate.Literal:
			nodes = append(nodes, &ir.Text{
				Position: a.ValuePos.Advance(a.Value[:cur]),
				Content:  s.Text,
			})
		case interpolate.Expr:
			nodes = append(nodes, &ir.Interpolate{
				Position:   a.ValuePos.Advance(a.Value[:s.Offset]),
				Expr:       unescapeEntities(s.Source),
				AutoEscape: true,
			})
			cur = s.End
		}
	}
	return append(nodes, outro)
}

// stripUnwanted drops Null nodes and empty text, and splices plain
// containers into their parents.
func stripUnwanted(root ir.Node) {
	ir.Rewrite(root, func(children []ir.Node) []ir.Node {
		out := make([]ir.Node, 0, len(children))
		for _, c := range children {
			switch t := c.(type) {
			case *ir.Container:
				out = append(out, t.Children...)
			case *ir.Text:
				if t.Content != "" {
					out = append(out, t)
				}
			case *ir.Null:
			default:
				out = append(out, c)
			}
		}
		return out
	})
}

// concatTexts merges adjacent text nodes.
func concatTexts(root ir.Node) {
	ir.Rewrite(root, func(children []ir.Node) []ir.Node {
		out := make([]ir.Node, 0, len(children))
		var last *ir.Text
		for _, c := range children {
			if t, ok := c.(*ir.Text); ok {
				if last != nil {
					last.Content += t.Content
					continue
				}
				last = t
			} else {
				last = nil
			}
			out = append(out, c)
		}
		return out
	})
}

// attachElses moves each else marker into the nearest preceding If
// sibling's else branch.
func attachElses(root ir.Node) error {
	var firstErr error
	ir.Rewrite(root, func(children []ir.Node) []ir.Node {
		if firstErr != nil {
			return children
		}
		out := children
		for i := 0; i < len(out); i++ {
			elseNode, ok := out[i].(*ir.Else)
			if !ok {
				continue
			}
			attached := false
			for j := i - 1; j >= 0; j-- {
				if ifNode, ok := out[j].(*ir.If); ok {
					ifNode.Else = elseNode
					attached = true
					break
				}
			}
			if !attached {
				firstErr = NewCompileError(elseNode.Position, "w:else without a w:if")
				return out
			}
			out = append(out[:i], out[i+1:]...)
			i--
		}
		return out
	})
	return firstErr
}

// dedent removes the longest common leading whitespace from every
// non-blank line of s.
func dedent(s string) string {
	lines := strings.Split(s, "\n")
	margin := ""
	found := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		if !found {
			margin, found = indent, true
			continue
		}
		margin = commonPrefix(margin, indent)
	}
	if margin == "" {
		return s
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, margin)
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
