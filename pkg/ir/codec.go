package ir

import (
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/leapstack-labs/weft/pkg/token"
)

// FormatVersion identifies the serialized tree layout. Cached documents
// carrying a different version are discarded by the loader.
const FormatVersion = 1

// Doc wraps a resolved tree together with the dialect that produced it
// for serialization to the compiled-template cache.
type Doc struct {
	Version int
	Kind    string // source dialect, "markup" or "text"
	Root    *Container
}

// jsonNode is the flat serialized form of any Node. Kind discriminates;
// the remaining fields are populated per kind.
type jsonNode struct {
	Kind          string     `json:"k"`
	File          string     `json:"f,omitempty"`
	Line          int        `json:"l,omitempty"`
	Col           int        `json:"c,omitempty"`
	Content       string     `json:"content,omitempty"`
	CDATA         bool       `json:"cdata,omitempty"`
	Expr          string     `json:"expr,omitempty"`
	NoEscape      bool       `json:"noEscape,omitempty"`
	Test          string     `json:"test,omitempty"`
	Each          string     `json:"each,omitempty"`
	Vars          []WithVar  `json:"vars,omitempty"`
	Name          string     `json:"name,omitempty"`
	Href          string     `json:"href,omitempty"`
	Alias         string     `json:"alias,omitempty"`
	IgnoreMissing bool       `json:"ignoreMissing,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	Source        string     `json:"source,omitempty"`
	Message       string     `json:"message,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	Whitespace    string     `json:"whitespace,omitempty"`
	Children      []jsonNode `json:"children,omitempty"`
	Else          *jsonNode  `json:"else,omitempty"`
}

type jsonDoc struct {
	Version int      `json:"version"`
	Kind    string   `json:"kind"`
	Root    jsonNode `json:"root"`
}

// EncodeDoc writes doc to w as JSON.
func EncodeDoc(w io.Writer, doc *Doc) error {
	jd := jsonDoc{
		Version: doc.Version,
		Kind:    doc.Kind,
		Root:    encodeNode(doc.Root),
	}
	return gojson.NewEncoder(w).Encode(jd)
}

// DecodeDoc reads a JSON document from r. Callers are expected to
// check doc.Version against FormatVersion.
func DecodeDoc(r io.Reader) (*Doc, error) {
	var jd jsonDoc
	if err := gojson.NewDecoder(r).Decode(&jd); err != nil {
		return nil, err
	}
	root, err := decodeNode(jd.Root)
	if err != nil {
		return nil, err
	}
	container, ok := root.(*Container)
	if !ok {
		return nil, fmt.Errorf("document root is %q, want container", jd.Root.Kind)
	}
	return &Doc{Version: jd.Version, Kind: jd.Kind, Root: container}, nil
}

func encodeNodes(nodes []Node) []jsonNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]jsonNode, len(nodes))
	for i, n := range nodes {
		out[i] = encodeNode(n)
	}
	return out
}

func encodeNode(n Node) jsonNode {
	pos := n.Pos()
	j := jsonNode{File: pos.File, Line: pos.Line, Col: pos.Col}

	switch v := n.(type) {
	case *Container:
		j.Kind = "container"
		j.Children = encodeNodes(v.Children)
	case *Text:
		j.Kind = "text"
		j.Content = v.Content
		j.CDATA = v.CDATA
	case *Interpolate:
		j.Kind = "interpolate"
		j.Expr = v.Expr
		j.NoEscape = !v.AutoEscape
	case *If:
		j.Kind = "if"
		j.Test = v.Test
		j.Children = encodeNodes(v.Children)
		if v.Else != nil {
			e := encodeNode(v.Else)
			j.Else = &e
		}
	case *Else:
		j.Kind = "else"
		j.Children = encodeNodes(v.Children)
	case *For:
		j.Kind = "for"
		j.Each = v.Each
		j.Children = encodeNodes(v.Children)
	case *With:
		j.Kind = "with"
		j.Vars = v.Vars
		j.Children = encodeNodes(v.Children)
	case *Choose:
		j.Kind = "choose"
		j.Test = v.Test
		j.Children = encodeNodes(v.Children)
	case *When:
		j.Kind = "when"
		j.Test = v.Test
		j.Children = encodeNodes(v.Children)
	case *Otherwise:
		j.Kind = "otherwise"
		j.Children = encodeNodes(v.Children)
	case *Block:
		j.Kind = "block"
		j.Name = v.Name
		j.Children = encodeNodes(v.Children)
	case *Extends:
		j.Kind = "extends"
		j.Href = v.Href
		j.IgnoreMissing = v.IgnoreMissing
		j.Children = encodeNodes(v.Children)
	case *Include:
		j.Kind = "include"
		j.Href = v.Href
		j.IgnoreMissing = v.IgnoreMissing
	case *Def:
		j.Kind = "def"
		j.Signature = v.Signature
		j.Children = encodeNodes(v.Children)
	case *Import:
		j.Kind = "import"
		j.Href = v.Href
		j.Alias = v.Alias
		j.IgnoreMissing = v.IgnoreMissing
	case *Call:
		j.Kind = "call"
		j.Expr = v.Expr
		j.Children = encodeNodes(v.Children)
	case *CallKeyword:
		j.Kind = "callKeyword"
		j.Name = v.Name
		j.Children = encodeNodes(v.Children)
	case *Filter:
		j.Kind = "filter"
		j.Expr = v.Expr
		j.Children = encodeNodes(v.Children)
	case *Translation:
		j.Kind = "translation"
		j.Message = v.Message
		j.Comment = v.Comment
		j.Whitespace = v.Whitespace
		j.Children = encodeNodes(v.Children)
	case *Placeholder:
		j.Kind = "placeholder"
		j.Name = v.Name
		j.Children = encodeNodes(v.Children)
	case *Comment:
		j.Kind = "comment"
		j.Children = encodeNodes(v.Children)
	case *Code:
		j.Kind = "code"
		j.Source = v.Source
	case *Null:
		j.Kind = "null"
		j.Children = encodeNodes(v.Children)
	}
	return j
}

func decodeNodes(nodes []jsonNode) ([]Node, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]Node, len(nodes))
	for i, j := range nodes {
		n, err := decodeNode(j)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func decodeNode(j jsonNode) (Node, error) {
	pos := token.Position{File: j.File, Line: j.Line, Col: j.Col}
	children, err := decodeNodes(j.Children)
	if err != nil {
		return nil, err
	}

	switch j.Kind {
	case "container":
		return &Container{Position: pos, Children: children}, nil
	case "text":
		return &Text{Position: pos, Content: j.Content, CDATA: j.CDATA}, nil
	case "interpolate":
		return &Interpolate{Position: pos, Expr: j.Expr, AutoEscape: !j.NoEscape}, nil
	case "if":
		n := &If{Position: pos, Test: j.Test, Children: children}
		if j.Else != nil {
			e, err := decodeNode(*j.Else)
			if err != nil {
				return nil, err
			}
			elseNode, ok := e.(*Else)
			if !ok {
				return nil, fmt.Errorf("if else branch is %q, want else", j.Else.Kind)
			}
			n.Else = elseNode
		}
		return n, nil
	case "else":
		return &Else{Position: pos, Children: children}, nil
	case "for":
		return &For{Position: pos, Each: j.Each, Children: children}, nil
	case "with":
		return &With{Position: pos, Vars: j.Vars, Children: children}, nil
	case "choose":
		return &Choose{Position: pos, Test: j.Test, Children: children}, nil
	case "when":
		return &When{Position: pos, Test: j.Test, Children: children}, nil
	case "otherwise":
		return &Otherwise{Position: pos, Children: children}, nil
	case "block":
		return &Block{Position: pos, Name: j.Name, Children: children}, nil
	case "extends":
		return &Extends{Position: pos, Href: j.Href, IgnoreMissing: j.IgnoreMissing, Children: children}, nil
	case "include":
		return &Include{Position: pos, Href: j.Href, IgnoreMissing: j.IgnoreMissing}, nil
	case "def":
		return &Def{Position: pos, Signature: j.Signature, Children: children}, nil
	case "import":
		return &Import{Position: pos, Href: j.Href, Alias: j.Alias, IgnoreMissing: j.IgnoreMissing}, nil
	case "call":
		return &Call{Position: pos, Expr: j.Expr, Children: children}, nil
	case "callKeyword":
		return &CallKeyword{Position: pos, Name: j.Name, Children: children}, nil
	case "filter":
		return &Filter{Position: pos, Expr: j.Expr, Children: children}, nil
	case "translation":
		return &Translation{Position: pos, Message: j.Message, Comment: j.Comment, Whitespace: j.Whitespace, Children: children}, nil
	case "placeholder":
		return &Placeholder{Position: pos, Name: j.Name, Children: children}, nil
	case "comment":
		return &Comment{Position: pos, Children: children}, nil
	case "code":
		return &Code{Position: pos, Source: j.Source}, nil
	case "null":
		return &Null{Position: pos, Children: children}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", j.Kind)
	}
}
