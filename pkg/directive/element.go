package directive

import (
	"strings"

	"github.com/leapstack-labs/weft/pkg/token"
)

// treeNode is one node of the raw element tree: either a markup token
// carried through verbatim, or an *Element.
type treeNode interface {
	Pos() token.Position
}

// Element is a node of the markup element tree produced by BuildMarkup.
// A fragment element emits no tags of its own: the tree root is one,
// and tag form directives are converted into one during resolution.
type Element struct {
	name     token.QName
	space    string // whitespace between the tag name and first attribute
	end      string // ">" or "/>"
	attrs    *attrSet
	position token.Position
	endPos   token.Position // position of the open tag's end marker
	closeTag string         // close tag source, "" when self-closing
	closePos token.Position
	fragment bool
	children []treeNode
}

func newElement(t token.OpenTag) *Element {
	end := ">"
	if t.SelfClosing {
		end = "/>"
	}
	el := &Element{
		name:     t.Name,
		space:    t.Space,
		end:      end,
		attrs:    newAttrSet(t.Name.Space, t.Attrs),
		position: t.Position,
		closePos: t.Position,
	}
	el.endPos = t.Position.Advance(el.openTagHead())
	return el
}

// Pos returns the position of the element's open tag.
func (e *Element) Pos() token.Position { return e.position }

// openTagHead reconstructs the open tag source up to its end marker.
func (e *Element) openTagHead() string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(e.name.String())
	sb.WriteString(e.space)
	for _, a := range e.attrs.all() {
		sb.WriteString(a.Source())
	}
	return sb.String()
}

func (e *Element) openTag() string {
	if e.fragment {
		return ""
	}
	return e.openTagHead() + e.end
}

func (e *Element) String() string {
	if e.closeTag != "" {
		return e.openTag() + "..." + e.closeTag
	}
	return e.openTag()
}

// clone copies the element and its attribute set. Children are shared:
// resolution replaces the element but keeps its subtree.
func (e *Element) clone() *Element {
	c := *e
	c.attrs = e.attrs.clone()
	return &c
}

// isDirective reports whether the element is a tag form directive of
// the main namespace.
func (e *Element) isDirective() bool {
	return e.name.Space == nsMain
}

// attrSet holds an element's attributes in source order, addressable by
// qualified name. An unprefixed attribute name inherits the element's
// namespace prefix, or "html" when the element itself has none, so that
// <w:if test="..."> and <div w:if="..."> resolve through the same keys.
type attrSet struct {
	prefix string
	attrs  []token.Attr
}

func newAttrSet(space string, attrs []token.Attr) *attrSet {
	if space == "" {
		space = "html"
	}
	s := &attrSet{prefix: space, attrs: make([]token.Attr, len(attrs))}
	copy(s.attrs, attrs)
	return s
}

func (s *attrSet) qualify(name token.QName) string {
	if name.Space == "" {
		return s.prefix + ":" + name.Local
	}
	return name.String()
}

func (s *attrSet) index(qname string) int {
	for i, a := range s.attrs {
		if s.qualify(a.Name) == qname {
			return i
		}
	}
	return -1
}

func (s *attrSet) has(qname string) bool { return s.index(qname) >= 0 }

// pop removes and returns the attribute stored under qname.
func (s *attrSet) pop(qname string) (token.Attr, bool) {
	i := s.index(qname)
	if i < 0 {
		return token.Attr{}, false
	}
	a := s.attrs[i]
	s.attrs = append(s.attrs[:i:i], s.attrs[i+1:]...)
	return a, true
}

func (s *attrSet) empty() bool       { return len(s.attrs) == 0 }
func (s *attrSet) all() []token.Attr { return s.attrs }

// names returns the qualified names of the remaining attributes.
func (s *attrSet) names() []string {
	qnames := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		qnames[i] = s.qualify(a.Name)
	}
	return qnames
}

func (s *attrSet) clone() *attrSet {
	c := &attrSet{prefix: s.prefix, attrs: make([]token.Attr, len(s.attrs))}
	copy(c.attrs, s.attrs)
	return c
}

// BuildMarkup assembles lexed markup tokens into an element tree. The
// returned root is a fragment holding the document's top level nodes.
func BuildMarkup(tokens []token.Markup) (*Element, error) {
	root := &Element{name: token.QName{Local: "#fragment"}, fragment: true, attrs: newAttrSet("", nil)}
	stack := []*Element{root}
	head := root
	for _, tok := range tokens {
		switch t := tok.(type) {
		case token.OpenTag:
			el := newElement(t)
			head.children = append(head.children, el)
			if !t.SelfClosing {
				stack = append(stack, el)
				head = el
			}
		case token.CloseTag:
			if t.Name != head.name {
				return nil, NewCompileErrorf(t.Position,
					"expected </%s>, got %s at %d:%d. Open tags are %q",
					head.name, t.Source(), t.Position.Line, t.Position.Col, openTags(stack))
			}
			head.closeTag = t.Source()
			head.closePos = t.Position
			stack = stack[:len(stack)-1]
			head = stack[len(stack)-1]
		default:
			head.children = append(head.children, tok)
		}
	}
	if len(stack) > 1 {
		top := stack[len(stack)-1]
		return nil, NewCompileErrorf(top.position,
			"missing closing tag for <%s>, opened at %d:%d. Open tags are %q",
			top.name, top.position.Line, top.position.Col, openTags(stack))
	}
	return root, nil
}

func openTags(stack []*Element) string {
	names := make([]string, 0, len(stack)-1)
	for _, el := range stack[1:] {
		names = append(names, el.name.String())
	}
	return strings.Join(names, " > ")
}

// scanDirectives matches the element against the descriptor table,
// returning its directives in table order together with the element
// stripped of all directive attributes. Anything left in the reserved
// main namespace afterwards is an unknown directive.
func scanDirectives(el *Element) ([]match, *Element, error) {
	remaining := el
	if remaining.attrs.has("xmlns:"+nsMain) || remaining.attrs.has("xmlns:"+nsI18n) {
		remaining = el.clone()
		remaining.attrs.pop("xmlns:" + nsMain)
		remaining.attrs.pop("xmlns:" + nsI18n)
	}

	var matches []match
	for i := range table {
		m, rem, ok, err := table[i].match(remaining)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			matches = append(matches, m)
			remaining = rem
		}
	}

	if remaining.attrs.empty() {
		remaining.space = ""
	}
	if !remaining.fragment && remaining.name.Space == nsMain {
		return nil, nil, NewCompileErrorf(el.position,
			"unrecognized directive %q in element %s", remaining.name, el)
	}
	for _, qname := range remaining.attrs.names() {
		if strings.HasPrefix(qname, nsMain+":") {
			return nil, nil, NewCompileErrorf(el.position,
				"unrecognized directive %q in element %s", qname, el)
		}
	}
	return matches, remaining, nil
}

// match tries the descriptor's primary name and aliases against the
// element, in tag form then attribute form.
func (d *Descriptor) match(el *Element) (match, *Element, bool, error) {
	names := make([]string, 0, 1+len(d.Aliases))
	names = append(names, d.Name)
	names = append(names, d.Aliases...)
	for _, name := range names {
		m, rem, ok, err := d.matchName(name, el)
		if err != nil || ok {
			return m, rem, ok, err
		}
	}
	return match{}, nil, false, nil
}

func (d *Descriptor) matchName(name string, el *Element) (match, *Element, bool, error) {
	qname := d.NS + ":" + name
	data := map[string]string{}
	pos := el.position
	var remaining *Element

	switch {
	case !d.AttrOnly && !el.fragment && el.name.String() == qname:
		// Tag form: the element becomes a fragment keeping children,
		// remaining attributes and close tag.
		remaining = el.clone()
		remaining.fragment = true
		if !d.Empty {
			if a, ok := remaining.attrs.pop(d.qualifiedData()); ok {
				data[d.DataAttr] = a.Value
			} else if d.Default != nil {
				data[d.DataAttr] = *d.Default
			} else {
				return match{}, nil, false, NewCompileErrorf(el.position,
					"missing attribute %q in element %s", d.qualifiedData(), el)
			}
		}

	case el.attrs.has(qname):
		// Attribute form.
		remaining = el.clone()
		a, _ := remaining.attrs.pop(qname)
		pos = a.ValuePos
		if !d.Empty {
			data[d.DataAttr] = a.Value
		}

	default:
		return match{}, nil, false, nil
	}

	for _, extra := range d.Extra {
		q := d.NS + ":" + extra.Name
		if a, ok := remaining.attrs.pop(q); ok {
			data[extra.Name] = a.Value
		} else if extra.Required {
			return match{}, nil, false, NewCompileErrorf(el.position,
				"missing attribute %q in element %s", q, el)
		}
	}
	for k, v := range data {
		data[k] = unescapeEntities(v)
	}
	return match{desc: d, data: data, pos: pos}, remaining, true, nil
}

func (d *Descriptor) qualifiedData() string { return d.NS + ":" + d.DataAttr }
