// Package token defines source positions and the token types produced by
// the weft lexers. Markup tokens keep enough verbatim detail (quoting,
// spacing) that unmodified source can be reconstructed from them.
package token

import "strings"

// QName is a qualified name with at most one namespace prefix.
type QName struct {
	Space string // namespace prefix, "" if none
	Local string
}

// ParseQName splits a name on its first colon.
func ParseQName(s string) QName {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return QName{Space: s[:i], Local: s[i+1:]}
	}
	return QName{Local: s}
}

func (q QName) String() string {
	if q.Space != "" {
		return q.Space + ":" + q.Local
	}
	return q.Local
}

// Markup is implemented by all tokens of the markup grammar.
type Markup interface {
	Pos() Position
	markup()
}

// TextToken is implemented by all tokens of the delimited-text grammar.
type TextToken interface {
	Pos() Position
	textToken()
}

// Attr is a single attribute within an open tag. Space1 precedes the
// equals sign, Space2 follows it, and Space3 trails the value (or the
// bare name for valueless attributes), separating it from the next
// attribute or the tag end.
type Attr struct {
	Position Position
	ValuePos Position
	Name     QName
	Value    string
	Quote    byte // '"' or '\'', 0 for valueless attributes
	HasValue bool
	Space1   string
	Space2   string
	Space3   string
}

// Source reconstructs the attribute as it appeared in the input.
func (a Attr) Source() string {
	if !a.HasValue {
		return a.Name.String() + a.Space3
	}
	q := string(a.Quote)
	return a.Name.String() + a.Space1 + "=" + a.Space2 + q + a.Value + q + a.Space3
}

// OpenTag is an opening or self-closing tag.
type OpenTag struct {
	Position    Position
	Name        QName
	Space       string // whitespace between the tag name and the first attribute
	Attrs       []Attr
	SelfClosing bool
}

func (t OpenTag) Pos() Position { return t.Position }
func (t OpenTag) markup()       {}

// Source reconstructs the tag as it appeared in the input.
func (t OpenTag) Source() string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(t.Name.String())
	sb.WriteString(t.Space)
	for _, a := range t.Attrs {
		sb.WriteString(a.Source())
	}
	if t.SelfClosing {
		sb.WriteByte('/')
	}
	sb.WriteByte('>')
	return sb.String()
}

// CloseTag is a closing tag.
type CloseTag struct {
	Position Position
	Name     QName
	Space    string // whitespace before '>'
}

func (t CloseTag) Pos() Position  { return t.Position }
func (t CloseTag) markup()        {}
func (t CloseTag) Source() string { return "</" + t.Name.String() + t.Space + ">" }

// Text is a run of literal text. CDATA is set for script/style bodies,
// CDATA sections and all delimited-text content; interpolations inside
// CDATA text are never markup-escaped.
type Text struct {
	Position Position
	Content  string
	CDATA    bool
}

func (t Text) Pos() Position { return t.Position }
func (t Text) markup()       {}
func (t Text) textToken()    {}

// Entity is a character or numeric entity reference, captured verbatim.
type Entity struct {
	Position Position
	Source   string
}

func (t Entity) Pos() Position { return t.Position }
func (t Entity) markup()       {}

// Comment is a <!-- --> comment; Content excludes the markers.
type Comment struct {
	Position Position
	Content  string
}

func (t Comment) Pos() Position { return t.Position }
func (t Comment) markup()       {}

// PI is a processing instruction <?target content?>.
type PI struct {
	Position Position
	Target   string
	Content  string
}

func (t PI) Pos() Position { return t.Position }
func (t PI) markup()       {}

// Source reconstructs the instruction as it appeared in the input.
func (t PI) Source() string { return "<?" + t.Target + t.Content + "?>" }

// Decl is a markup declaration such as a doctype; Source is verbatim.
type Decl struct {
	Position Position
	Source   string
}

func (t Decl) Pos() Position { return t.Position }
func (t Decl) markup()       {}

// CDATA is an explicit <![CDATA[ ]]> section; Content excludes the
// markers, Source reconstructs them.
type CDATA struct {
	Position Position
	Content  string
}

func (t CDATA) Pos() Position  { return t.Position }
func (t CDATA) markup()        {}
func (t CDATA) Source() string { return "<![CDATA[" + t.Content + "]]>" }
