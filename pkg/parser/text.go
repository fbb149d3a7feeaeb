package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/weft/pkg/token"
)

// statementNames is the closed set of statement names recognized by the
// delimited-text grammar.
var statementNames = map[string]bool{
	"for":       true,
	"if":        true,
	"extends":   true,
	"block":     true,
	"def":       true,
	"import":    true,
	"include":   true,
	"with":      true,
	"choose":    true,
	"when":      true,
	"otherwise": true,
	"filter":    true,
	"call":      true,
	"else":      true,
	"transname": true,
	"trans":     true,
}

// TextLexer tokenizes delimited-text template source.
type TextLexer struct {
	input    string
	file     string
	pos      int
	line     int
	col      int
	lastLine int
	lastCol  int
}

// NewTextLexer creates a new text-dialect lexer for the given input.
func NewTextLexer(input, file string) *TextLexer {
	return &TextLexer{
		input: input,
		file:  file,
		line:  1,
		col:   1,
	}
}

// LexText tokenizes text-dialect source in one call.
func LexText(input, file string) ([]token.TextToken, error) {
	return NewTextLexer(input, file).Tokenize()
}

// Tokenize converts the input into a slice of tokens. All text tokens
// are CDATA: interpolated values in the text dialect are never escaped.
func (l *TextLexer) Tokenize() ([]token.TextToken, error) {
	var tokens []token.TextToken

	for l.pos < len(l.input) {
		if l.matchString("{%") {
			tok, err := l.scanStatement()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			continue
		}
		tokens = append(tokens, l.scanText())
	}

	return tokens, nil
}

// scanText scans literal text up to the next '{%' or EOF. A '{' not
// followed by '%' is text.
func (l *TextLexer) scanText() token.TextToken {
	l.markStart()
	start := l.pos

	l.advance()
	for l.pos < len(l.input) && !l.matchString("{%") {
		l.advance()
	}

	return token.Text{
		Position: l.startPosition(),
		Content:  l.input[start:l.pos],
		CDATA:    true,
	}
}

// scanStatement scans one {%[-+] name args [-+]%} statement.
func (l *TextLexer) scanStatement() (token.TextToken, error) {
	l.markStart()
	start := l.pos
	l.advanceBy(2) // '{%'

	trimBefore := l.scanTrimMode()
	l.skipSpace()

	name := l.scanWord()
	if name == "" {
		return nil, NewLexError(l.startPosition(), "malformed statement: expected statement name after '{%'")
	}

	if rest, isEnd := strings.CutPrefix(name, "end"); isEnd {
		if rest != "" && !statementNames[rest] {
			return nil, NewLexErrorf(l.startPosition(), "unknown end statement %q", name)
		}
		l.skipSpace()
		trimAfter, err := l.scanCloser(name)
		if err != nil {
			return nil, err
		}
		return token.EndStmt{
			Position:   l.startPosition(),
			Name:       rest,
			TrimBefore: trimBefore,
			TrimAfter:  trimAfter,
			Source:     l.input[start:l.pos],
		}, nil
	}

	if !statementNames[name] {
		return nil, NewLexErrorf(l.startPosition(), "unknown statement %q", name)
	}

	l.skipSpace()
	argsPos := l.position()
	argsStart := l.pos

	var argsEnd int
	var trimAfter token.TrimMode
	for {
		if l.pos >= len(l.input) {
			return nil, NewLexError(l.startPosition(), "unclosed statement: missing '%}'")
		}
		r := l.peek()
		if r == '\'' || r == '"' {
			if err := l.scanQuoted(byte(r)); err != nil {
				return nil, err
			}
			continue
		}
		if (r == '-' || r == '+') && l.matchAt(1, "%}") {
			argsEnd = l.pos
			var err error
			trimAfter, err = l.scanCloser(name)
			if err != nil {
				return nil, err
			}
			break
		}
		if l.matchString("%}") {
			argsEnd = l.pos
			l.advanceBy(2)
			trimAfter = token.TrimLine
			break
		}
		l.advance()
	}

	return token.Stmt{
		Position:   l.startPosition(),
		Name:       name,
		Args:       strings.TrimRight(l.input[argsStart:argsEnd], " \t\r\n"),
		ArgsPos:    argsPos,
		TrimBefore: trimBefore,
		TrimAfter:  trimAfter,
		Source:     l.input[start:l.pos],
	}, nil
}

// scanCloser consumes an optional trim modifier followed by '%}'.
func (l *TextLexer) scanCloser(name string) (token.TrimMode, error) {
	mode := l.scanTrimMode()
	if !l.matchString("%}") {
		return mode, NewLexErrorf(l.startPosition(), "malformed statement %q: expected '%%}'", name)
	}
	l.advanceBy(2)
	return mode, nil
}

// scanTrimMode consumes a leading '-' or '+' modifier if present.
func (l *TextLexer) scanTrimMode() token.TrimMode {
	switch l.peek() {
	case '-':
		l.advance()
		return token.TrimAll
	case '+':
		l.advance()
		return token.TrimNone
	default:
		return token.TrimLine
	}
}

// scanQuoted consumes a quoted string honoring backslash escapes. The
// quotes and escapes are kept verbatim; unescaping happens when the
// directive layer splits arguments.
func (l *TextLexer) scanQuoted(quote byte) error {
	quotePos := l.position()
	l.advance()
	for l.pos < len(l.input) {
		r := l.peek()
		if r == '\\' {
			l.advance()
			l.advance()
			continue
		}
		if byte(r) == quote {
			l.advance()
			return nil
		}
		l.advance()
	}
	return NewLexErrorf(quotePos, "unclosed string in statement: missing %q", quote)
}

// scanWord scans a run of ASCII letters.
func (l *TextLexer) scanWord() string {
	start := l.pos
	for l.pos < len(l.input) && isASCIILetter(l.input[l.pos]) {
		l.advance()
	}
	return l.input[start:l.pos]
}

func (l *TextLexer) skipSpace() {
	for l.pos < len(l.input) && isSpace(l.peek()) {
		l.advance()
	}
}

func (l *TextLexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *TextLexer) advance() {
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

func (l *TextLexer) advanceBy(n int) {
	end := l.pos + n
	for l.pos < end && l.pos < len(l.input) {
		l.advance()
	}
}

func (l *TextLexer) matchString(s string) bool {
	return strings.HasPrefix(l.input[l.pos:], s)
}

// matchAt checks for s at the given byte offset from the current position.
func (l *TextLexer) matchAt(offset int, s string) bool {
	if l.pos+offset > len(l.input) {
		return false
	}
	return strings.HasPrefix(l.input[l.pos+offset:], s)
}

func (l *TextLexer) markStart() {
	l.lastLine = l.line
	l.lastCol = l.col
}

func (l *TextLexer) position() token.Position {
	return token.Position{File: l.file, Line: l.line, Col: l.col}
}

func (l *TextLexer) startPosition() token.Position {
	return token.Position{File: l.file, Line: l.lastLine, Col: l.lastCol}
}
