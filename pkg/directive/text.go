package directive

import (
	"strings"
	"unicode"

	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/token"
)

// stmtFrame is a statement with its nested content. The zero frame is
// the tree root. End trims are recorded when the closing statement is
// seen; an end statement arriving while an else frame is open closes
// both the else and its enclosing if, recording trims on both.
type stmtFrame struct {
	stmt          token.Stmt
	children      []treeNode
	hasEnd        bool
	endTrimBefore token.TrimMode
	endTrimAfter  token.TrimMode
}

func (f *stmtFrame) Pos() token.Position { return f.stmt.Position }

// openclose statements stand alone, without an end tag.
func isOpenClose(name string) bool {
	return name == "import" || name == "include"
}

// buildText assembles lexed text-dialect tokens into a statement tree.
func buildText(tokens []token.TextToken) (*stmtFrame, error) {
	root := &stmtFrame{}
	stack := []*stmtFrame{root}
	head := root
	for _, tok := range tokens {
		switch t := tok.(type) {
		case token.Stmt:
			frame := &stmtFrame{stmt: t}
			head.children = append(head.children, frame)
			if !isOpenClose(t.Name) {
				stack = append(stack, frame)
				head = frame
			}

		case token.EndStmt:
			if head.stmt.Name == "else" {
				// The end closes the enclosing if through the else.
				head.hasEnd = true
				head.endTrimBefore, head.endTrimAfter = t.TrimBefore, t.TrimAfter
				stack = stack[:len(stack)-1]
				head = stack[len(stack)-1]
			}
			if head == root || (t.Name != "" && t.Name != head.stmt.Name) {
				return nil, NewCompileErrorf(t.Position,
					"unexpected %s at %d:%d", t.Source, t.Position.Line, t.Position.Col)
			}
			head.hasEnd = true
			head.endTrimBefore, head.endTrimAfter = t.TrimBefore, t.TrimAfter
			stack = stack[:len(stack)-1]
			head = stack[len(stack)-1]

		default:
			head.children = append(head.children, tok)
		}
	}
	if len(stack) > 1 {
		top := stack[len(stack)-1]
		return nil, NewCompileErrorf(top.stmt.Position,
			"missing end tag for %s, opened at %d:%d",
			top.stmt.Source, top.stmt.Position.Line, top.stmt.Position.Col)
	}
	return root, nil
}

// CompileText resolves lexed text-dialect tokens into an IR tree.
func CompileText(tokens []token.TextToken, file string) (*ir.Container, error) {
	root, err := buildText(tokens)
	if err != nil {
		return nil, err
	}
	trimStatementWhitespace(root)

	container := &ir.Container{Position: token.Position{File: file, Line: 1, Col: 1}}
	if err := resolveTextChildren(root.children, container); err != nil {
		return nil, err
	}
	stripUnwanted(container)
	concatTexts(container)
	return container, nil
}

func resolveTextChildren(children []treeNode, parent ir.Node) error {
	for _, c := range children {
		n, err := resolveTextNode(c)
		if err != nil {
			return err
		}
		ir.Append(parent, n)
	}
	return nil
}

func resolveTextNode(n treeNode) (ir.Node, error) {
	switch t := n.(type) {
	case *stmtFrame:
		return resolveStatement(t)
	case token.Text:
		return resolveText(t), nil
	default:
		return nil, NewCompileErrorf(n.Pos(), "unknown node type %T", n)
	}
}

func resolveStatement(f *stmtFrame) (ir.Node, error) {
	stmt := f.stmt
	pos := stmt.Position
	args := splitStmtArgs(stmt.Args)

	var node ir.Node
	switch stmt.Name {
	case "include":
		if len(args) == 0 {
			return nil, NewCompileErrorf(pos, "missing template path in {%% include %%}")
		}
		return &ir.Include{Position: pos, Href: args[0],
			IgnoreMissing: hasFlag(args[1:], "ignore-missing")}, nil

	case "extends":
		if len(args) == 0 {
			return nil, NewCompileErrorf(pos, "missing template path in {%% extends %%}")
		}
		node = &ir.Extends{Position: pos, Href: args[0],
			IgnoreMissing: hasFlag(args[1:], "ignore-missing")}

	case "import":
		if len(args) != 3 || args[1] != "as" {
			return nil, NewCompileError(pos,
				`syntax error: should be "import 'path/to/template.txt' as alias_name".`)
		}
		return &ir.Import{Position: pos, Href: args[0], Alias: args[2]}, nil

	case "block":
		if len(args) == 0 {
			return nil, NewCompileErrorf(pos, "missing block name in {%% block %%}")
		}
		node = &ir.Block{Position: pos, Name: args[0]}

	case "for":
		node = &ir.For{Position: pos, Each: stmt.Args}

	case "def":
		node = &ir.Def{Position: pos, Signature: stmt.Args}

	case "with":
		vars, err := parseWithVars(stmt.Args, pos)
		if err != nil {
			return nil, err
		}
		node = &ir.With{Position: pos, Vars: vars}

	case "choose":
		node = &ir.Choose{Position: pos, Test: stmt.Args}

	case "when":
		node = &ir.When{Position: pos, Test: stmt.Args}

	case "otherwise":
		node = &ir.Otherwise{Position: pos}

	case "filter":
		node = &ir.Filter{Position: pos, Expr: stmt.Args}

	case "call":
		node = &ir.Call{Position: pos, Expr: stmt.Args}

	case "trans":
		if len(args) > 1 {
			return nil, NewCompileError(pos, `syntax error: should be "trans 'message text'".`)
		}
		message := ""
		if len(args) == 1 {
			message = args[0]
		}
		node = &ir.Translation{Position: pos, Message: message}

	case "transname":
		if len(args) != 1 {
			return nil, NewCompileError(pos, `syntax error: should be "transname placeholder_name".`)
		}
		node = &ir.Placeholder{Position: pos, Name: args[0]}

	case "if":
		return resolveIfStatement(f)

	case "else":
		// An else is consumed by its enclosing if; reaching one here
		// means it had no if around it.
		return nil, NewCompileErrorf(pos, "unexpected %s at %d:%d", stmt.Source, pos.Line, pos.Col)

	default:
		return nil, NewCompileErrorf(pos, "unknown statement %q", stmt.Name)
	}

	if err := resolveTextChildren(f.children, node); err != nil {
		return nil, err
	}
	return node, nil
}

// resolveIfStatement compiles an if frame. An else frame in final
// position becomes the else branch.
func resolveIfStatement(f *stmtFrame) (ir.Node, error) {
	n := &ir.If{Position: f.stmt.Position, Test: f.stmt.Args}
	children := f.children
	if len(children) > 0 {
		if last, ok := children[len(children)-1].(*stmtFrame); ok && last.stmt.Name == "else" {
			children = children[:len(children)-1]
			elseNode := &ir.Else{Position: last.stmt.Position}
			if err := resolveTextChildren(last.children, elseNode); err != nil {
				return nil, err
			}
			n.Else = elseNode
		}
	}
	if err := resolveTextChildren(children, n); err != nil {
		return nil, err
	}
	return n, nil
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// splitStmtArgs splits statement arguments into words. A quoted string
// forms one argument with its quotes removed; everything else splits on
// whitespace.
func splitStmtArgs(raw string) []string {
	var args []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			args = append(args, word.String())
			word.Reset()
		}
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\'' || c == '"':
			flush()
			end := len(raw)
			for j := i + 1; j < len(raw); j++ {
				if raw[j] == '\\' {
					j++
					continue
				}
				if raw[j] == c {
					end = j
					break
				}
			}
			args = append(args, raw[i+1:end])
			i = end
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			flush()
		default:
			word.WriteByte(c)
		}
	}
	flush()
	return args
}

// trimStatementWhitespace applies each statement's trim modes to the
// text around it. The default mode trims up to the adjacent newline,
// '-' trims all adjacent whitespace and '+' preserves it. Openclose
// statements have no end tag and so never trim following text.
func trimStatementWhitespace(f *stmtFrame) {
	if f.stmt.Name != "" && len(f.children) > 0 {
		if t, ok := f.children[0].(token.Text); ok {
			t.Content = trimStart(t.Content, f.stmt.TrimAfter)
			f.children[0] = t
		}
		if f.hasEnd {
			if t, ok := f.children[len(f.children)-1].(token.Text); ok {
				t.Content = trimEnd(t.Content, f.endTrimBefore)
				f.children[len(f.children)-1] = t
			}
		}
	}

	for i := 0; i+1 < len(f.children); i++ {
		if pt, ok := f.children[i].(token.Text); ok {
			if nf, ok := f.children[i+1].(*stmtFrame); ok {
				pt.Content = trimEnd(pt.Content, nf.stmt.TrimBefore)
				f.children[i] = pt
			}
		}
		if pf, ok := f.children[i].(*stmtFrame); ok && pf.hasEnd {
			if nt, ok := f.children[i+1].(token.Text); ok {
				nt.Content = trimStart(nt.Content, pf.endTrimAfter)
				f.children[i+1] = nt
			}
		}
	}

	for _, c := range f.children {
		if child, ok := c.(*stmtFrame); ok {
			trimStatementWhitespace(child)
		}
	}
}

// trimStart trims whitespace at the start of text following a
// statement.
func trimStart(s string, mode token.TrimMode) string {
	switch mode {
	case token.TrimNone:
		return s
	case token.TrimAll:
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	default:
		i := 0
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		switch {
		case i < len(s) && s[i] == '\n':
			return s[i+1:]
		case i < len(s) && s[i] == '\r':
			if i+1 < len(s) && s[i+1] == '\n' {
				return s[i+2:]
			}
			return s[i+1:]
		default:
			return s
		}
	}
}

// trimEnd trims whitespace at the end of text preceding a statement.
// The default mode keeps the newline itself.
func trimEnd(s string, mode token.TrimMode) string {
	switch mode {
	case token.TrimNone:
		return s
	case token.TrimAll:
		return strings.TrimRightFunc(s, unicode.IsSpace)
	default:
		i := len(s)
		for i > 0 && (s[i-1] == ' ' || s[i-1] == '\t') {
			i--
		}
		if i > 0 && (s[i-1] == '\n' || s[i-1] == '\r') {
			return s[:i]
		}
		return s
	}
}
