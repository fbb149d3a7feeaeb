// Package directive resolves lexed template tokens into the typed IR
// tree. It contains the element tree builder for the markup dialect,
// the statement tree builder for the text dialect, the directive
// descriptor table shared by both, and the whitespace normalization
// passes.
package directive

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/token"
)

// Namespace prefixes reserved for directives.
const (
	nsMain = "w"
	nsI18n = "i18n"
)

// Kind identifies a directive. The set is closed: the resolver matches
// names against the descriptor table and rejects anything else in the
// reserved namespace.
type Kind uint8

// Directive kinds, in descriptor table order.
const (
	KindComment Kind = iota
	KindWith
	KindDef
	KindExtends
	KindInclude
	KindBlock
	KindImport
	KindWhen
	KindCase // alias form of when taking a value to compare
	KindOtherwise
	KindElse
	KindFor
	KindIf
	KindSwitch // choose under its switch alias
	KindChoose
	KindCall
	KindKeyword
	KindContent
	KindReplace
	KindFilter
	KindAttrs
	KindStrip
	KindTag
	KindTranslate
	KindTransName
	KindTransComment
	KindWhitespace // strip/preserve marker, handled before IR construction
)

func (k Kind) String() string {
	switch k {
	case KindComment:
		return "comment"
	case KindWith:
		return "with"
	case KindDef:
		return "def"
	case KindExtends:
		return "extends"
	case KindInclude:
		return "include"
	case KindBlock:
		return "block"
	case KindImport:
		return "import"
	case KindWhen:
		return "when"
	case KindCase:
		return "case"
	case KindOtherwise:
		return "otherwise"
	case KindElse:
		return "else"
	case KindFor:
		return "for"
	case KindIf:
		return "if"
	case KindSwitch:
		return "switch"
	case KindChoose:
		return "choose"
	case KindCall:
		return "call"
	case KindKeyword:
		return "keyword"
	case KindContent:
		return "content"
	case KindReplace:
		return "replace"
	case KindFilter:
		return "filter"
	case KindAttrs:
		return "attrs"
	case KindStrip:
		return "strip"
	case KindTag:
		return "tag"
	case KindTranslate:
		return "translate"
	case KindTransName:
		return "transname"
	case KindTransComment:
		return "transcomment"
	case KindWhitespace:
		return "whitespace"
	default:
		return "unknown"
	}
}

// ExtraAttr declares an additional data attribute a directive accepts.
type ExtraAttr struct {
	Name     string
	Required bool
}

// Descriptor declares how one directive is recognized on an element
// and which data attributes it consumes.
type Descriptor struct {
	Kind     Kind
	Name     string // primary name within the namespace
	Aliases  []string
	NS       string  // "w" or "i18n"
	DataAttr string  // attribute carrying the directive expression
	Default  *string // nil means the data attribute is required
	Empty    bool    // directive takes no data attribute value
	Extra    []ExtraAttr
	Inner    bool // wraps children only; otherwise wraps the whole element
	AttrOnly bool // attribute form only, no tag form
}

func defaultValue(s string) *string { return &s }

// table is the ordered directive set. Elements are tested against each
// descriptor in turn; matched directives nest outer to inner in this
// same order.
var table = []Descriptor{
	{Kind: KindComment, NS: nsMain, Name: "comment", DataAttr: "comment", Empty: true},
	{Kind: KindWith, NS: nsMain, Name: "with", DataAttr: "vars"},
	{Kind: KindDef, NS: nsMain, Name: "def", DataAttr: "function"},
	{Kind: KindExtends, NS: nsMain, Name: "extends", DataAttr: "href",
		Extra: []ExtraAttr{{Name: "ignore-missing"}}},
	{Kind: KindInclude, NS: nsMain, Name: "include", DataAttr: "href",
		Extra: []ExtraAttr{{Name: "ignore-missing"}}},
	{Kind: KindBlock, NS: nsMain, Name: "block", DataAttr: "name", Inner: true},
	{Kind: KindImport, NS: nsMain, Name: "import", DataAttr: "href",
		Extra: []ExtraAttr{{Name: "alias", Required: true}, {Name: "ignore-missing"}}},
	{Kind: KindWhen, NS: nsMain, Name: "when", DataAttr: "test"},
	{Kind: KindCase, NS: nsMain, Name: "case", DataAttr: "value"},
	{Kind: KindOtherwise, NS: nsMain, Name: "otherwise", DataAttr: "otherwise", Empty: true},
	{Kind: KindElse, NS: nsMain, Name: "else", DataAttr: "else", Empty: true},
	{Kind: KindFor, NS: nsMain, Name: "for", DataAttr: "each"},
	{Kind: KindIf, NS: nsMain, Name: "if", DataAttr: "test"},
	{Kind: KindSwitch, NS: nsMain, Name: "switch", DataAttr: "test", Default: defaultValue("True")},
	{Kind: KindChoose, NS: nsMain, Name: "choose", DataAttr: "test", Default: defaultValue("True")},
	{Kind: KindCall, NS: nsMain, Name: "call", DataAttr: "function", Inner: true},
	{Kind: KindKeyword, NS: nsMain, Name: "keyword", DataAttr: "name"},
	{Kind: KindContent, NS: nsMain, Name: "content", DataAttr: "value", Inner: true},
	{Kind: KindReplace, NS: nsMain, Name: "replace", DataAttr: "value"},
	{Kind: KindFilter, NS: nsMain, Name: "filter", DataAttr: "function", Inner: true},
	{Kind: KindAttrs, NS: nsMain, Name: "attrs", DataAttr: "attrs", AttrOnly: true},
	{Kind: KindStrip, NS: nsMain, Name: "strip", DataAttr: "strip", AttrOnly: true},
	{Kind: KindTag, NS: nsMain, Name: "tag", DataAttr: "tag", AttrOnly: true},
	{Kind: KindTranslate, NS: nsI18n, Name: "translate", Aliases: []string{"trans", "message"},
		DataAttr: "message", Default: defaultValue(""), Inner: true,
		Extra: []ExtraAttr{{Name: "comment"}, {Name: "whitespace"}}},
	{Kind: KindTransName, NS: nsI18n, Name: "name", Aliases: []string{"s"},
		DataAttr: "name", Default: defaultValue(""),
		Extra: []ExtraAttr{{Name: "expr"}}},
	{Kind: KindTransComment, NS: nsI18n, Name: "comment", DataAttr: "comment", Inner: true},
}

// match records one directive found on an element, with the data
// attributes it consumed.
type match struct {
	desc *Descriptor
	data map[string]string
	pos  token.Position
}

// makeNode constructs the IR node for a matched directive. The attrs,
// strip, tag and whitespace kinds produce no node of their own.
func makeNode(m match) (ir.Node, error) {
	data, pos := m.data, m.pos

	switch m.desc.Kind {
	case KindComment:
		return &ir.Comment{Position: pos}, nil
	case KindWith:
		vars, err := parseWithVars(data["vars"], pos)
		if err != nil {
			return nil, err
		}
		return &ir.With{Position: pos, Vars: vars}, nil
	case KindDef:
		return &ir.Def{Position: pos, Signature: data["function"]}, nil
	case KindExtends:
		_, ignore := data["ignore-missing"]
		return &ir.Extends{Position: pos, Href: data["href"], IgnoreMissing: ignore}, nil
	case KindInclude:
		_, ignore := data["ignore-missing"]
		return &ir.Include{Position: pos, Href: data["href"], IgnoreMissing: ignore}, nil
	case KindBlock:
		return &ir.Block{Position: pos, Name: data["name"]}, nil
	case KindImport:
		_, ignore := data["ignore-missing"]
		return &ir.Import{Position: pos, Href: data["href"], Alias: data["alias"], IgnoreMissing: ignore}, nil
	case KindWhen:
		return &ir.When{Position: pos, Test: data["test"]}, nil
	case KindCase:
		return &ir.When{Position: pos, Test: data["value"]}, nil
	case KindOtherwise:
		return &ir.Otherwise{Position: pos}, nil
	case KindElse:
		return &ir.Else{Position: pos}, nil
	case KindFor:
		return &ir.For{Position: pos, Each: data["each"]}, nil
	case KindIf:
		return &ir.If{Position: pos, Test: data["test"]}, nil
	case KindSwitch, KindChoose:
		return &ir.Choose{Position: pos, Test: data["test"]}, nil
	case KindCall:
		return &ir.Call{Position: pos, Expr: data["function"]}, nil
	case KindKeyword:
		return &ir.CallKeyword{Position: pos, Name: data["name"]}, nil
	case KindContent, KindReplace:
		return &ir.Interpolate{Position: pos, Expr: data["value"], AutoEscape: true}, nil
	case KindFilter:
		return &ir.Filter{Position: pos, Expr: data["function"]}, nil
	case KindTranslate:
		return &ir.Translation{
			Position:   pos,
			Message:    data["message"],
			Comment:    data["comment"],
			Whitespace: data["whitespace"],
		}, nil
	case KindTransName:
		name, expr := data["name"], data["expr"]
		if name == "" {
			name = expr
		}
		n := &ir.Placeholder{Position: pos, Name: name}
		if expr != "" {
			n.Children = []ir.Node{&ir.Interpolate{Position: pos, Expr: expr, AutoEscape: true}}
		}
		return n, nil
	case KindTransComment:
		return &ir.Translation{Position: pos, Comment: data["comment"]}, nil
	default:
		return nil, NewCompileErrorf(pos, "directive %s produces no node", m.desc.Kind)
	}
}

// appendsChildren reports whether the directive's node accepts resolved
// element children. Include and Import stand alone.
func appendsChildren(n ir.Node) bool {
	switch n.(type) {
	case *ir.Include, *ir.Import, *ir.Interpolate:
		return false
	default:
		return true
	}
}

// parseWithVars splits a "target = expr; target = expr" variable list,
// honoring quotes. Each piece is split on its first '='.
func parseWithVars(src string, pos token.Position) ([]ir.WithVar, error) {
	var vars []ir.WithVar
	for _, piece := range splitOutsideQuotes(src, ';') {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		target, expr, ok := strings.Cut(piece, "=")
		if !ok {
			return nil, NewCompileErrorf(pos, "invalid variable assignment %q: expected \"name = expression\"", piece)
		}
		vars = append(vars, ir.WithVar{
			Target: strings.TrimSpace(target),
			Expr:   strings.TrimSpace(expr),
		})
	}
	return vars, nil
}

// splitOutsideQuotes splits s on sep wherever sep appears outside
// single or double quotes. Backslash escapes within quotes are skipped.
func splitOutsideQuotes(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			quote := s[i]
			i++
			for i < len(s) {
				if s[i] == '\\' {
					i += 2
					continue
				}
				if s[i] == quote {
					break
				}
				i++
			}
			if i >= len(s) {
				i = len(s) - 1
			}
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// unescapeEntities resolves HTML entity references in directive data
// values, so attribute-encoded expressions like a &gt; b evaluate.
func unescapeEntities(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return html.UnescapeString(s)
}
