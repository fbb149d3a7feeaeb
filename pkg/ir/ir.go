// Package ir defines the intermediate representation produced by
// directive resolution and consumed by the compiler. Nodes form a tree;
// every node carries the source position it was derived from.
//
// A template such as:
//
//	<w:for each="i, x in enumerate(xs)">
//	    <a w:if="x.href" href="$x.href">link to ${x.name}</a>
//	</w:for>
//
// is modelled as:
//
//	For{Each: "i, x in enumerate(xs)", Children: [
//	    If{Test: "x.href", Children: [
//	        Text{Content: `<a href="`},
//	        Interpolate{Expr: "x.href", AutoEscape: true},
//	        Text{Content: `">link to `},
//	        Interpolate{Expr: "x.name", AutoEscape: true},
//	        Text{Content: "</a>"}]}]}
package ir

import "github.com/leapstack-labs/weft/pkg/token"

// Node is the interface for all IR nodes.
type Node interface {
	Pos() token.Position
	node() // marker method to restrict implementation
}

// Container is a generic sequence of nodes with no semantics of its
// own. The resolver's normalization pass splices plain containers into
// their parents, so compiled trees contain them only at the root.
type Container struct {
	Position token.Position
	Children []Node
}

// Append adds child to this node's list of children.
func (n *Container) Append(child Node) {
	n.Children = append(n.Children, child)
}

// Extend adds all children to this node's list of children.
func (n *Container) Extend(children []Node) {
	n.Children = append(n.Children, children...)
}

// Text is literal output emitted verbatim. CDATA records that the text
// came from a raw section (CDATA, script/style bodies, or any text in
// the text dialect); it renders identically but is retained for tree
// regeneration.
type Text struct {
	Position token.Position
	Content  string
	CDATA    bool
}

// Interpolate evaluates an expression and emits its string value,
// escaped unless AutoEscape is false.
type Interpolate struct {
	Position   token.Position
	Expr       string
	AutoEscape bool
}

// If renders its children when Test evaluates truthy, otherwise the
// Else branch (if any).
type If struct {
	Position token.Position
	Test     string
	Children []Node
	Else     *Else
}

// Else holds the else branch of an If. During resolution it also
// appears transiently as a placeholder sibling of its If before being
// attached.
type Else struct {
	Position token.Position
	Children []Node
}

// For renders its children once per iteration. Each must be in the
// form "<targets> in <expr>".
type For struct {
	Position token.Position
	Each     string
	Children []Node
}

// WithVar is a single "target = expr" binding of a With node.
type WithVar struct {
	Target string `json:"target"`
	Expr   string `json:"expr"`
}

// With introduces variable bindings scoped to its children.
type With struct {
	Position token.Position
	Vars     []WithVar
	Children []Node
}

// Choose renders the first matching When child, or any Otherwise
// children if no When matched. With a non-empty Test, each When's test
// is compared for equality against the Test value; with an empty Test,
// each When's test is evaluated as a boolean.
type Choose struct {
	Position token.Position
	Test     string
	Children []Node
}

// When is one alternative within a Choose.
type When struct {
	Position token.Position
	Test     string
	Children []Node
}

// Otherwise renders within a Choose when no When has matched.
type Otherwise struct {
	Position token.Position
	Children []Node
}

// Block is a named, overridable output region.
type Block struct {
	Position token.Position
	Name     string
	Children []Node
}

// Extends delegates root output to the parent template named by Href,
// supplying this template's blocks as overrides.
type Extends struct {
	Position      token.Position
	Href          string
	IgnoreMissing bool
	Children      []Node
}

// Include splices the output of another template in place.
type Include struct {
	Position      token.Position
	Href          string
	IgnoreMissing bool
}

// Def defines a callable template function. Signature is the function
// name with an optional parameter list, e.g. "greet(name, bold=False)".
type Def struct {
	Position  token.Position
	Signature string
	Children  []Node
}

// Import binds another template's functions to Alias.
type Import struct {
	Position      token.Position
	Href          string
	Alias         string
	IgnoreMissing bool
}

// Call invokes a template function, passing the rendered children as
// the function body and any CallKeyword children as named arguments.
type Call struct {
	Position token.Position
	Expr     string
	Children []Node
}

// CallKeyword is a keyword argument to an enclosing Call whose value is
// a rendered template snippet.
type CallKeyword struct {
	Position token.Position
	Name     string
	Children []Node
}

// Filter pipes the rendered children through a function.
type Filter struct {
	Position token.Position
	Expr     string
	Children []Node
}

// Translation marks its children as a translatable message.
type Translation struct {
	Position token.Position
	// Message overrides the extracted message when non-empty.
	Message string
	// Comment is an extracted note for translators.
	Comment string
	// Whitespace is one of "normalize" (default), "trim" or "dedent".
	Whitespace string
	Children   []Node
}

// Placeholder names a dynamic part inside a Translation.
type Placeholder struct {
	Position token.Position
	Name     string
	Children []Node
}

// Comment is source commentary producing no output.
type Comment struct {
	Position token.Position
	Children []Node
}

// Code is inline code executed for effect, producing no output.
type Code struct {
	Position token.Position
	Source   string
}

// Null produces no output. It stands in for stripped markup so that
// positions of surrounding nodes stay accurate during resolution; the
// normalization pass removes it along with its children.
type Null struct {
	Position token.Position
	Children []Node
}

func (n *Container) Pos() token.Position   { return n.Position }
func (n *Text) Pos() token.Position        { return n.Position }
func (n *Interpolate) Pos() token.Position { return n.Position }
func (n *If) Pos() token.Position          { return n.Position }
func (n *Else) Pos() token.Position        { return n.Position }
func (n *For) Pos() token.Position         { return n.Position }
func (n *With) Pos() token.Position        { return n.Position }
func (n *Choose) Pos() token.Position      { return n.Position }
func (n *When) Pos() token.Position        { return n.Position }
func (n *Otherwise) Pos() token.Position   { return n.Position }
func (n *Block) Pos() token.Position       { return n.Position }
func (n *Extends) Pos() token.Position     { return n.Position }
func (n *Include) Pos() token.Position     { return n.Position }
func (n *Def) Pos() token.Position         { return n.Position }
func (n *Import) Pos() token.Position      { return n.Position }
func (n *Call) Pos() token.Position        { return n.Position }
func (n *CallKeyword) Pos() token.Position { return n.Position }
func (n *Filter) Pos() token.Position      { return n.Position }
func (n *Translation) Pos() token.Position { return n.Position }
func (n *Placeholder) Pos() token.Position { return n.Position }
func (n *Comment) Pos() token.Position     { return n.Position }
func (n *Code) Pos() token.Position        { return n.Position }
func (n *Null) Pos() token.Position        { return n.Position }

func (*Container) node()   {}
func (*Text) node()        {}
func (*Interpolate) node() {}
func (*If) node()          {}
func (*Else) node()        {}
func (*For) node()         {}
func (*With) node()        {}
func (*Choose) node()      {}
func (*When) node()        {}
func (*Otherwise) node()   {}
func (*Block) node()       {}
func (*Extends) node()     {}
func (*Include) node()     {}
func (*Def) node()         {}
func (*Import) node()      {}
func (*Call) node()        {}
func (*CallKeyword) node() {}
func (*Filter) node()      {}
func (*Translation) node() {}
func (*Placeholder) node() {}
func (*Comment) node()     {}
func (*Code) node()        {}
func (*Null) node()        {}
