package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/weft/pkg/token"
)

func TestLexerBasicDocument(t *testing.T) {
	tokens, err := Lex(`<html><body class="x">hi</body></html>`, "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 5)

	open, ok := tokens[0].(token.OpenTag)
	require.True(t, ok)
	assert.Equal(t, "html", open.Name.Local)
	assert.False(t, open.SelfClosing)

	body, ok := tokens[1].(token.OpenTag)
	require.True(t, ok)
	require.Len(t, body.Attrs, 1)
	assert.Equal(t, "class", body.Attrs[0].Name.Local)
	assert.Equal(t, "x", body.Attrs[0].Value)
	assert.Equal(t, byte('"'), body.Attrs[0].Quote)

	text, ok := tokens[2].(token.Text)
	require.True(t, ok)
	assert.Equal(t, "hi", text.Content)
	assert.False(t, text.CDATA)

	closeTag, ok := tokens[3].(token.CloseTag)
	require.True(t, ok)
	assert.Equal(t, "body", closeTag.Name.Local)
}

func TestLexerPositions(t *testing.T) {
	tokens, err := Lex("a\n<b>", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	assert.Equal(t, token.Position{File: "test.html", Line: 1, Col: 1}, tokens[0].Pos())
	assert.Equal(t, token.Position{File: "test.html", Line: 2, Col: 1}, tokens[1].Pos())
}

func TestLexerNamespacedTag(t *testing.T) {
	tokens, err := Lex(`<w:if test="x"/>`, "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	open, ok := tokens[0].(token.OpenTag)
	require.True(t, ok)
	assert.Equal(t, token.QName{Space: "w", Local: "if"}, open.Name)
	assert.True(t, open.SelfClosing)
	require.Len(t, open.Attrs, 1)
	assert.Equal(t, token.QName{Local: "test"}, open.Attrs[0].Name)
}

func TestLexerAttrForms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, attrs []token.Attr)
	}{
		{
			name:  "single quoted",
			input: `<a href='x'></a>`,
			check: func(t *testing.T, attrs []token.Attr) {
				require.Len(t, attrs, 1)
				assert.Equal(t, "x", attrs[0].Value)
				assert.Equal(t, byte('\''), attrs[0].Quote)
			},
		},
		{
			name:  "valueless",
			input: `<input disabled>`,
			check: func(t *testing.T, attrs []token.Attr) {
				require.Len(t, attrs, 1)
				assert.Equal(t, "disabled", attrs[0].Name.Local)
				assert.False(t, attrs[0].HasValue)
			},
		},
		{
			name:  "spacing preserved",
			input: "<a b = 'c'  d='e'></a>",
			check: func(t *testing.T, attrs []token.Attr) {
				require.Len(t, attrs, 2)
				assert.Equal(t, " ", attrs[0].Space2)
				assert.Equal(t, "  ", attrs[0].Space3)
				assert.Equal(t, "b = 'c'  ", attrs[0].Source())
			},
		},
		{
			name:  "multiple valueless",
			input: `<input disabled required>`,
			check: func(t *testing.T, attrs []token.Attr) {
				require.Len(t, attrs, 2)
				assert.Equal(t, "disabled", attrs[0].Name.Local)
				assert.Equal(t, "required", attrs[1].Name.Local)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input, "test.html")
			require.NoError(t, err)
			require.NotEmpty(t, tokens)
			open, ok := tokens[0].(token.OpenTag)
			require.True(t, ok)
			tt.check(t, open.Attrs)
		})
	}
}

func TestLexerComment(t *testing.T) {
	tokens, err := Lex("<!-- note -->", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	c, ok := tokens[0].(token.Comment)
	require.True(t, ok)
	assert.Equal(t, " note ", c.Content)
}

func TestLexerCDATA(t *testing.T) {
	tokens, err := Lex("<![CDATA[a < b]]>", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	c, ok := tokens[0].(token.CDATA)
	require.True(t, ok)
	assert.Equal(t, "a < b", c.Content)
	assert.Equal(t, "<![CDATA[a < b]]>", c.Source())
}

func TestLexerPI(t *testing.T) {
	tokens, err := Lex("<?weft x = 1 ?>", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	pi, ok := tokens[0].(token.PI)
	require.True(t, ok)
	assert.Equal(t, "weft", pi.Target)
	assert.Equal(t, " x = 1 ", pi.Content)
}

func TestLexerDeclaration(t *testing.T) {
	tokens, err := Lex("<!DOCTYPE html>", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	d, ok := tokens[0].(token.Decl)
	require.True(t, ok)
	assert.Equal(t, "<!DOCTYPE html>", d.Source)
}

func TestLexerEntities(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		entity string
	}{
		{name: "named", input: "a&amp;b", entity: "&amp;"},
		{name: "decimal", input: "a&#38;b", entity: "&#38;"},
		{name: "hex", input: "a&#x26;b", entity: "&#x26;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex(tt.input, "test.html")
			require.NoError(t, err)
			require.Len(t, tokens, 3)
			e, ok := tokens[1].(token.Entity)
			require.True(t, ok)
			assert.Equal(t, tt.entity, e.Source)
		})
	}
}

func TestLexerBareAmpersandIsText(t *testing.T) {
	tokens, err := Lex("fish & chips", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	text, ok := tokens[0].(token.Text)
	require.True(t, ok)
	assert.Equal(t, "fish & chips", text.Content)
}

func TestLexerLooseAngleBracketIsText(t *testing.T) {
	tokens, err := Lex("1 < 2", "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	text, ok := tokens[0].(token.Text)
	require.True(t, ok)
	assert.Equal(t, "1 < 2", text.Content)
}

func TestLexerScriptBodyIsCDATA(t *testing.T) {
	tokens, err := Lex(`<script>if (a < b) alert("&")</script>`, "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	text, ok := tokens[1].(token.Text)
	require.True(t, ok)
	assert.True(t, text.CDATA)
	assert.Equal(t, `if (a < b) alert("&")`, text.Content)

	_, ok = tokens[2].(token.CloseTag)
	assert.True(t, ok)
}

func TestLexerScriptWithoutCloseFallsBack(t *testing.T) {
	tokens, err := Lex(`<script>var a = 1;`, "test.html")
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	_, ok := tokens[0].(token.OpenTag)
	require.True(t, ok)
	text, ok := tokens[1].(token.Text)
	require.True(t, ok)
	assert.Equal(t, "var a = 1;", text.Content)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "unclosed comment", input: "<!-- x", wantErr: "unclosed comment"},
		{name: "unclosed cdata", input: "<![CDATA[x", wantErr: "unclosed CDATA section"},
		{name: "unclosed pi", input: "<?weft x", wantErr: "unclosed processing instruction"},
		{name: "unclosed declaration", input: "<!DOCTYPE html", wantErr: "unclosed declaration"},
		{name: "unclosed tag", input: "<a href='x'", wantErr: "unclosed tag"},
		{name: "unquoted attribute value", input: "<a href=x>", wantErr: "expected quoted value"},
		{name: "unclosed attribute value", input: `<a href="x`, wantErr: "unclosed value"},
		{name: "malformed close tag", input: "</a x>", wantErr: "malformed close tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex(tt.input, "test.html")
			require.Error(t, err)
			var lexErr *LexError
			require.ErrorAs(t, err, &lexErr)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), "test.html:")
		})
	}
}

func TestLexerRoundTrip(t *testing.T) {
	// Lexing and re-serializing the token stream must reproduce the
	// input byte for byte.
	inputs := []string{
		`<html><body class="x" id='y'>hi &amp; bye</body></html>`,
		"<!DOCTYPE html>\n<p>a<br/>b</p>",
		`<a b = 'c'  d>text</a>`,
		"<!-- c --><![CDATA[raw]]><?weft x = 1 ?>",
	}

	for _, input := range inputs {
		tokens, err := Lex(input, "test.html")
		require.NoError(t, err)

		var out string
		for _, tok := range tokens {
			switch v := tok.(type) {
			case token.OpenTag:
				out += v.Source()
			case token.CloseTag:
				out += v.Source()
			case token.Text:
				out += v.Content
			case token.Entity:
				out += v.Source
			case token.Comment:
				out += "<!--" + v.Content + "-->"
			case token.CDATA:
				out += v.Source()
			case token.PI:
				out += v.Source()
			case token.Decl:
				out += v.Source
			}
		}
		assert.Equal(t, input, out)
	}
}
