package ir

import "github.com/leapstack-labs/weft/pkg/token"

// Children returns the direct children of n in order, including
// secondary lists such as an If's else branch.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Container:
		return v.Children
	case *If:
		if v.Else != nil {
			out := make([]Node, 0, len(v.Children)+1)
			out = append(out, v.Children...)
			return append(out, v.Else)
		}
		return v.Children
	case *Else:
		return v.Children
	case *For:
		return v.Children
	case *With:
		return v.Children
	case *Choose:
		return v.Children
	case *When:
		return v.Children
	case *Otherwise:
		return v.Children
	case *Block:
		return v.Children
	case *Extends:
		return v.Children
	case *Def:
		return v.Children
	case *Call:
		return v.Children
	case *CallKeyword:
		return v.Children
	case *Filter:
		return v.Children
	case *Translation:
		return v.Children
	case *Placeholder:
		return v.Children
	case *Comment:
		return v.Children
	case *Null:
		return v.Children
	default:
		return nil
	}
}

// Append adds children to n's child list, reporting false when n is
// not a container node.
func Append(n Node, children ...Node) bool {
	switch v := n.(type) {
	case *Container:
		v.Children = append(v.Children, children...)
	case *If:
		v.Children = append(v.Children, children...)
	case *Else:
		v.Children = append(v.Children, children...)
	case *For:
		v.Children = append(v.Children, children...)
	case *With:
		v.Children = append(v.Children, children...)
	case *Choose:
		v.Children = append(v.Children, children...)
	case *When:
		v.Children = append(v.Children, children...)
	case *Otherwise:
		v.Children = append(v.Children, children...)
	case *Block:
		v.Children = append(v.Children, children...)
	case *Extends:
		v.Children = append(v.Children, children...)
	case *Def:
		v.Children = append(v.Children, children...)
	case *Call:
		v.Children = append(v.Children, children...)
	case *CallKeyword:
		v.Children = append(v.Children, children...)
	case *Filter:
		v.Children = append(v.Children, children...)
	case *Translation:
		v.Children = append(v.Children, children...)
	case *Placeholder:
		v.Children = append(v.Children, children...)
	case *Comment:
		v.Children = append(v.Children, children...)
	case *Null:
		v.Children = append(v.Children, children...)
	default:
		return false
	}
	return true
}

// Walk visits n and its descendants in pre-order. If fn returns false
// the node's children are not visited.
func Walk(n Node, fn func(Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// FindAll returns all nodes of type T in the tree rooted at root, in
// pre-order.
func FindAll[T Node](root Node) []T {
	var out []T
	Walk(root, func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// Rewrite applies fn to every child list in the tree rooted at n,
// bottom-up, replacing each list with fn's result. An If's else branch
// is rewritten through its Else node, not the If's own list.
func Rewrite(n Node, fn func([]Node) []Node) {
	rewrite(n, fn)
}

func rewrite(n Node, fn func([]Node) []Node) {
	apply := func(children []Node) []Node {
		for _, c := range children {
			rewrite(c, fn)
		}
		return fn(children)
	}

	switch v := n.(type) {
	case *Container:
		v.Children = apply(v.Children)
	case *If:
		v.Children = apply(v.Children)
		if v.Else != nil {
			rewrite(v.Else, fn)
		}
	case *Else:
		v.Children = apply(v.Children)
	case *For:
		v.Children = apply(v.Children)
	case *With:
		v.Children = apply(v.Children)
	case *Choose:
		v.Children = apply(v.Children)
	case *When:
		v.Children = apply(v.Children)
	case *Otherwise:
		v.Children = apply(v.Children)
	case *Block:
		v.Children = apply(v.Children)
	case *Extends:
		v.Children = apply(v.Children)
	case *Def:
		v.Children = apply(v.Children)
	case *Call:
		v.Children = apply(v.Children)
	case *CallKeyword:
		v.Children = apply(v.Children)
	case *Filter:
		v.Children = apply(v.Children)
	case *Translation:
		v.Children = apply(v.Children)
	case *Placeholder:
		v.Children = apply(v.Children)
	case *Comment:
		v.Children = apply(v.Children)
	case *Null:
		v.Children = apply(v.Children)
	}
}

// SetPos sets the position of n.
func SetPos(n Node, pos token.Position) {
	switch v := n.(type) {
	case *Container:
		v.Position = pos
	case *Text:
		v.Position = pos
	case *Interpolate:
		v.Position = pos
	case *If:
		v.Position = pos
	case *Else:
		v.Position = pos
	case *For:
		v.Position = pos
	case *With:
		v.Position = pos
	case *Choose:
		v.Position = pos
	case *When:
		v.Position = pos
	case *Otherwise:
		v.Position = pos
	case *Block:
		v.Position = pos
	case *Extends:
		v.Position = pos
	case *Include:
		v.Position = pos
	case *Def:
		v.Position = pos
	case *Import:
		v.Position = pos
	case *Call:
		v.Position = pos
	case *CallKeyword:
		v.Position = pos
	case *Filter:
		v.Position = pos
	case *Translation:
		v.Position = pos
	case *Placeholder:
		v.Position = pos
	case *Comment:
		v.Position = pos
	case *Code:
		v.Position = pos
	case *Null:
		v.Position = pos
	}
}
