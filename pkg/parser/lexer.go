// Package parser turns weft template source into positioned token
// sequences. It contains one lexer per dialect: Lexer for the markup
// grammar and TextLexer for the {% %} delimited-text grammar.
package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/weft/pkg/token"
)

// Lexer tokenizes markup template source.
type Lexer struct {
	input    string
	file     string
	pos      int // current byte position in input
	line     int // current line number (1-based)
	col      int // current column number (1-based, in runes)
	lastLine int // line at start of current token
	lastCol  int // column at start of current token
}

// NewLexer creates a new markup lexer for the given input.
func NewLexer(input, file string) *Lexer {
	return &Lexer{
		input: input,
		file:  file,
		pos:   0,
		line:  1,
		col:   1,
	}
}

// Lex tokenizes markup source in one call.
func Lex(input, file string) ([]token.Markup, error) {
	return NewLexer(input, file).Tokenize()
}

// Tokenize converts the input into a slice of tokens.
func (l *Lexer) Tokenize() ([]token.Markup, error) {
	var tokens []token.Markup

	for l.pos < len(l.input) {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok...)
	}

	return tokens, nil
}

// nextToken scans the next token (or token group, for implicit CDATA
// after a script/style open tag) from the input.
func (l *Lexer) nextToken() ([]token.Markup, error) {
	switch {
	case l.matchString("<!--"):
		tok, err := l.scanComment()
		if err != nil {
			return nil, err
		}
		return []token.Markup{tok}, nil

	case l.matchString("<![CDATA["):
		tok, err := l.scanCDATA()
		if err != nil {
			return nil, err
		}
		return []token.Markup{tok}, nil

	case l.matchString("<!"):
		tok, err := l.scanDeclaration()
		if err != nil {
			return nil, err
		}
		return []token.Markup{tok}, nil

	case l.matchString("<?"):
		tok, err := l.scanPI()
		if err != nil {
			return nil, err
		}
		return []token.Markup{tok}, nil

	case l.matchString("</"):
		tok, err := l.scanCloseTag()
		if err != nil {
			return nil, err
		}
		return []token.Markup{tok}, nil

	case l.startsOpenTag():
		return l.scanOpenTag()

	case l.startsEntity():
		return []token.Markup{l.scanEntity()}, nil

	default:
		return []token.Markup{l.scanText()}, nil
	}
}

// scanText scans literal text up to the next construct or EOF. A '<' or
// '&' that cannot begin a construct is consumed as text.
func (l *Lexer) scanText() token.Markup {
	l.markStart()
	start := l.pos

	l.advance()
	for l.pos < len(l.input) {
		r := l.peek()
		if r == '<' && l.startsConstruct() {
			break
		}
		if r == '&' && l.startsEntity() {
			break
		}
		l.advance()
	}

	return token.Text{
		Position: l.startPosition(),
		Content:  l.input[start:l.pos],
	}
}

// startsConstruct reports whether the input at the current position
// begins any markup construct other than an entity.
func (l *Lexer) startsConstruct() bool {
	rest := l.input[l.pos:]
	if strings.HasPrefix(rest, "<!") || strings.HasPrefix(rest, "<?") {
		return true
	}
	if strings.HasPrefix(rest, "</") {
		return true
	}
	return l.startsOpenTag()
}

// startsOpenTag reports whether the input begins an open tag: '<'
// followed by a name character.
func (l *Lexer) startsOpenTag() bool {
	rest := l.input[l.pos:]
	if len(rest) < 2 || rest[0] != '<' {
		return false
	}
	r, _ := utf8.DecodeRuneInString(rest[1:])
	return isNameStart(r)
}

// startsEntity reports whether the input begins a well-formed entity
// reference: &name; or &#N; or &#xH;.
func (l *Lexer) startsEntity() bool {
	return l.entityLen() > 0
}

// entityLen returns the byte length of the entity at the current
// position, or 0 if the input does not begin one.
func (l *Lexer) entityLen() int {
	rest := l.input[l.pos:]
	if len(rest) < 3 || rest[0] != '&' {
		return 0
	}
	i := 1
	switch {
	case strings.HasPrefix(rest, "&#x"):
		i = 3
		for i < len(rest) && isHexDigit(rest[i]) {
			i++
		}
		if i == 3 {
			return 0
		}
	case strings.HasPrefix(rest, "&#"):
		i = 2
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		if i == 2 {
			return 0
		}
	default:
		for i < len(rest) && isASCIILetter(rest[i]) {
			i++
		}
		if i == 1 {
			return 0
		}
	}
	if i < len(rest) && rest[i] == ';' {
		return i + 1
	}
	return 0
}

func (l *Lexer) scanEntity() token.Markup {
	l.markStart()
	n := l.entityLen()
	src := l.input[l.pos : l.pos+n]
	l.advanceBy(n)
	return token.Entity{Position: l.startPosition(), Source: src}
}

func (l *Lexer) scanComment() (token.Markup, error) {
	l.markStart()
	l.advanceBy(len("<!--"))
	start := l.pos

	end := strings.Index(l.input[l.pos:], "-->")
	if end < 0 {
		return nil, NewLexError(l.startPosition(), "unclosed comment: missing '-->'")
	}
	l.advanceBy(end + len("-->"))

	return token.Comment{
		Position: l.startPosition(),
		Content:  l.input[start : start+end],
	}, nil
}

func (l *Lexer) scanCDATA() (token.Markup, error) {
	l.markStart()
	l.advanceBy(len("<![CDATA["))
	start := l.pos

	end := strings.Index(l.input[l.pos:], "]]>")
	if end < 0 {
		return nil, NewLexError(l.startPosition(), "unclosed CDATA section: missing ']]>'")
	}
	l.advanceBy(end + len("]]>"))

	return token.CDATA{
		Position: l.startPosition(),
		Content:  l.input[start : start+end],
	}, nil
}

func (l *Lexer) scanDeclaration() (token.Markup, error) {
	l.markStart()
	start := l.pos
	l.advanceBy(len("<!"))

	end := strings.IndexByte(l.input[l.pos:], '>')
	if end < 0 {
		return nil, NewLexError(l.startPosition(), "unclosed declaration: missing '>'")
	}
	l.advanceBy(end + 1)

	return token.Decl{
		Position: l.startPosition(),
		Source:   l.input[start:l.pos],
	}, nil
}

func (l *Lexer) scanPI() (token.Markup, error) {
	l.markStart()
	l.advanceBy(len("<?"))

	target := l.scanName()
	start := l.pos

	end := strings.Index(l.input[l.pos:], "?>")
	if end < 0 {
		return nil, NewLexError(l.startPosition(), "unclosed processing instruction: missing '?>'")
	}
	l.advanceBy(end + len("?>"))

	return token.PI{
		Position: l.startPosition(),
		Target:   target,
		Content:  l.input[start : start+end],
	}, nil
}

func (l *Lexer) scanCloseTag() (token.Markup, error) {
	l.markStart()
	l.advanceBy(len("</"))

	name := l.scanQName()
	if name.Local == "" {
		return nil, NewLexError(l.startPosition(), "malformed close tag: expected tag name")
	}
	space := l.scanSpace()
	if l.peek() != '>' {
		return nil, NewLexErrorf(l.startPosition(), "malformed close tag </%s: missing '>'", name)
	}
	l.advance()

	return token.CloseTag{Position: l.startPosition(), Name: name, Space: space}, nil
}

// scanOpenTag scans an open or self-closing tag. For script and style
// elements it also scans the raw body up to the matching close tag as
// one opaque CDATA text token; if no close tag follows, the element is
// lexed as an ordinary open tag instead.
func (l *Lexer) scanOpenTag() ([]token.Markup, error) {
	l.markStart()
	l.advance() // '<'

	name := l.scanQName()
	space := l.scanSpace()

	var attrs []token.Attr
	selfClosing := false
	for {
		if l.pos >= len(l.input) {
			return nil, NewLexErrorf(l.startPosition(), "unclosed tag <%s: missing '>'", name)
		}
		r := l.peek()
		if r == '>' {
			l.advance()
			break
		}
		if r == '/' {
			l.advance()
			if l.peek() != '>' {
				return nil, NewLexErrorf(l.startPosition(), "malformed tag <%s: expected '>' after '/'", name)
			}
			l.advance()
			selfClosing = true
			break
		}
		if !isNameStart(r) {
			return nil, NewLexErrorf(l.position(), "malformed tag <%s: unexpected %q", name, r)
		}
		attr, err := l.scanAttr()
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	open := token.OpenTag{
		Position:    l.startPosition(),
		Name:        name,
		Space:       space,
		Attrs:       attrs,
		SelfClosing: selfClosing,
	}

	if !selfClosing && name.Space == "" && (name.Local == "script" || name.Local == "style") {
		if body, ok := l.scanRawBody(name.Local); ok {
			return []token.Markup{open, body}, nil
		}
	}
	return []token.Markup{open}, nil
}

// scanRawBody consumes script/style content up to (not including) the
// exact close tag. Returns ok=false, consuming nothing, if the close
// tag never appears.
func (l *Lexer) scanRawBody(local string) (token.Markup, bool) {
	end := strings.Index(l.input[l.pos:], "</"+local+">")
	if end < 0 {
		return nil, false
	}
	l.markStart()
	start := l.pos
	l.advanceBy(end)
	return token.Text{
		Position: l.startPosition(),
		Content:  l.input[start:l.pos],
		CDATA:    true,
	}, true
}

func (l *Lexer) scanAttr() (token.Attr, error) {
	attrPos := l.position()
	name := l.scanQName()
	ws := l.scanSpace()

	if l.peek() != '=' {
		// Valueless attribute; the scanned whitespace trails it.
		return token.Attr{
			Position: attrPos,
			Name:     name,
			HasValue: false,
			Space3:   ws,
		}, nil
	}

	l.advance() // '='
	space2 := l.scanSpace()

	quote := l.peek()
	if quote != '"' && quote != '\'' {
		return token.Attr{}, NewLexErrorf(l.position(), "attribute %s: expected quoted value", name)
	}
	l.advance()
	valuePos := l.position()
	start := l.pos
	for l.pos < len(l.input) && l.peek() != quote {
		l.advance()
	}
	if l.pos >= len(l.input) {
		return token.Attr{}, NewLexErrorf(valuePos, "attribute %s: unclosed value, missing %q", name, quote)
	}
	value := l.input[start:l.pos]
	l.advance() // closing quote
	space3 := l.scanSpace()

	return token.Attr{
		Position: attrPos,
		ValuePos: valuePos,
		Name:     name,
		Value:    value,
		Quote:    byte(quote),
		HasValue: true,
		Space1:   ws,
		Space2:   space2,
		Space3:   space3,
	}, nil
}

// scanQName scans a possibly-prefixed name. The prefix is split on the
// first colon only.
func (l *Lexer) scanQName() token.QName {
	first := l.scanName()
	if l.peek() == ':' {
		save := l.pos
		saveLine, saveCol := l.line, l.col
		l.advance()
		second := l.scanName()
		if second != "" {
			return token.QName{Space: first, Local: second}
		}
		l.pos, l.line, l.col = save, saveLine, saveCol
	}
	return token.QName{Local: first}
}

// scanName scans a tag or attribute name.
func (l *Lexer) scanName() string {
	start := l.pos
	for l.pos < len(l.input) {
		r := l.peek()
		if l.pos == start {
			if !isNameStart(r) {
				break
			}
		} else if !isNameRune(r) {
			break
		}
		l.advance()
	}
	return l.input[start:l.pos]
}

// scanSpace scans a run of whitespace.
func (l *Lexer) scanSpace() string {
	start := l.pos
	for l.pos < len(l.input) && isSpace(l.peek()) {
		l.advance()
	}
	return l.input[start:l.pos]
}

// Helper methods

// peek returns the current rune without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

// advance moves to the next rune, updating position tracking.
func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.pos += size

	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

// advanceBy moves forward n bytes, updating position tracking.
func (l *Lexer) advanceBy(n int) {
	end := l.pos + n
	for l.pos < end && l.pos < len(l.input) {
		l.advance()
	}
}

// matchString checks if the input at the current position matches s.
func (l *Lexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// markStart records the position of the start of the current token.
func (l *Lexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

// position returns the current position.
func (l *Lexer) position() token.Position {
	return token.Position{File: l.file, Line: l.line, Col: l.col}
}

// startPosition returns the position recorded by markStart.
func (l *Lexer) startPosition() token.Position {
	return token.Position{File: l.file, Line: l.lastLine, Col: l.lastCol}
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// isNameStart reports whether r can begin a tag or attribute name.
func isNameStart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// isNameRune reports whether r can continue a tag or attribute name.
func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'
}
