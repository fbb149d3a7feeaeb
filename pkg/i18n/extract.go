package i18n

import (
	"fmt"
	"sort"

	"go.starlark.net/syntax"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// Extracted is one occurrence of a translatable message in a template.
type Extracted struct {
	ID      string
	Plural  string
	Comment string
	File    string
	Line    int
}

// Extract collects the translatable messages of a resolved template
// tree: every translation node's message id, plus string literals
// passed to `_`, `gettext` and `ngettext` inside embedded expressions
// and code blocks. Expressions that fail to parse are skipped; the
// compiler reports those.
func Extract(doc *ir.Doc) []Extracted {
	var out []Extracted
	ir.Walk(doc.Root, func(n ir.Node) bool {
		pos := n.Pos()
		switch v := n.(type) {
		case *ir.Translation:
			if id := Message(v); id != "" {
				out = append(out, Extracted{ID: id, Comment: v.Comment, File: pos.File, Line: pos.Line})
			}
		case *ir.Interpolate:
			out = append(out, scanExpr(v.Expr, pos.File, pos.Line)...)
		case *ir.If:
			out = append(out, scanExpr(v.Test, pos.File, pos.Line)...)
		case *ir.For:
			out = append(out, scanCode("for "+v.Each+": pass", pos.File, pos.Line)...)
		case *ir.With:
			for _, w := range v.Vars {
				out = append(out, scanExpr(w.Expr, pos.File, pos.Line)...)
			}
		case *ir.Choose:
			out = append(out, scanExpr(v.Test, pos.File, pos.Line)...)
		case *ir.When:
			out = append(out, scanExpr(v.Test, pos.File, pos.Line)...)
		case *ir.Call:
			out = append(out, scanExpr(v.Expr, pos.File, pos.Line)...)
		case *ir.Filter:
			out = append(out, scanExpr(v.Expr, pos.File, pos.Line)...)
		case *ir.Code:
			out = append(out, scanCode(runtime.Dedent(v.Source), pos.File, pos.Line)...)
		}
		return true
	})
	return out
}

// Skeleton folds extracted occurrences into a catalog file ready to be
// filled in: one entry per distinct message, sorted by id, with line
// references merged. Counted messages are seeded with empty one/other
// plural slots.
func Skeleton(msgs []Extracted) *File {
	index := make(map[string]int)
	file := &File{}
	for _, m := range msgs {
		key := m.ID + "\x00" + m.Plural
		i, ok := index[key]
		if !ok {
			i = len(file.Messages)
			index[key] = i
			e := Entry{ID: m.ID, Plural: m.Plural}
			if m.Plural != "" {
				e.Plurals = map[string]string{"one": "", "other": ""}
			}
			file.Messages = append(file.Messages, e)
		}
		e := &file.Messages[i]
		if e.Comment == "" {
			e.Comment = m.Comment
		}
		if m.File != "" {
			e.Refs = append(e.Refs, fmt.Sprintf("%s:%d", m.File, m.Line))
		}
	}
	sort.SliceStable(file.Messages, func(i, j int) bool {
		return file.Messages[i].ID < file.Messages[j].ID
	})
	return file
}

func scanExpr(src, file string, line int) []Extracted {
	if src == "" {
		return nil
	}
	parsed, err := syntax.ParseExpr("", src, 0)
	if err != nil {
		return nil
	}
	return scanNode(parsed, file, line)
}

func scanCode(src, file string, line int) []Extracted {
	parsed, err := syntax.Parse("", src, 0)
	if err != nil {
		return nil
	}
	var out []Extracted
	for _, stmt := range parsed.Stmts {
		out = append(out, scanNode(stmt, file, line)...)
	}
	return out
}

// scanNode walks a starlark syntax tree for gettext-family calls with
// literal first arguments.
func scanNode(root syntax.Node, file string, line int) []Extracted {
	var out []Extracted
	syntax.Walk(root, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok {
			return true
		}
		fn, ok := call.Fn.(*syntax.Ident)
		if !ok {
			return true
		}
		switch fn.Name {
		case "_", "gettext":
			if id, ok := stringArg(call, 0); ok && id != "" {
				out = append(out, Extracted{ID: id, File: file, Line: line})
			}
		case "ngettext":
			id, ok1 := stringArg(call, 0)
			pl, ok2 := stringArg(call, 1)
			if ok1 && ok2 && id != "" {
				out = append(out, Extracted{ID: id, Plural: pl, File: file, Line: line})
			}
		}
		return true
	})
	return out
}

func stringArg(call *syntax.CallExpr, i int) (string, bool) {
	if i >= len(call.Args) {
		return "", false
	}
	lit, ok := call.Args[i].(*syntax.Literal)
	if !ok || lit.Token != syntax.STRING {
		return "", false
	}
	s, ok := lit.Value.(string)
	return s, ok
}
