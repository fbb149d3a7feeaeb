// Package interpolate scans template text for $-interpolations. The
// scanner never fails: input that does not form a complete
// interpolation is passed through as literal text.
//
// Recognized forms:
//
//	$name, $name.attr, $name[0], $name[1:-1], $name['key']
//	${any balanced expression}
//	$!name, $!{expr}   (interpolation with escaping disabled)
//	$$                 (literal dollar)
package interpolate

import "strings"

// Segment is one piece of an interpolated string: either a Literal or
// an Expr.
type Segment interface {
	segment()
}

// Literal is a run of plain text.
type Literal struct {
	Text string
}

func (Literal) segment() {}

// Expr is one interpolated expression.
type Expr struct {
	// Offset is the byte offset of the '$' within the scanned string;
	// End is the offset just past the interpolation.
	Offset int
	End    int
	// Source is the expression text to evaluate.
	Source string
	// AutoEscape is false for $! interpolations, whose values bypass
	// output escaping.
	AutoEscape bool
}

func (Expr) segment() {}

// Parse splits input into literal and expression segments. Adjacent
// literals are merged, so no two consecutive segments are Literals.
func Parse(input string) []Segment {
	var segs []Segment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, Literal{Text: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(input) {
		if input[i] != '$' {
			next := strings.IndexByte(input[i:], '$')
			if next < 0 {
				lit.WriteString(input[i:])
				break
			}
			lit.WriteString(input[i : i+next])
			i += next
			continue
		}

		// '$$' escapes to a literal dollar.
		if i+1 < len(input) && input[i+1] == '$' {
			lit.WriteByte('$')
			i += 2
			continue
		}

		start := i
		exprAt := i + 1
		autoEscape := true
		if exprAt < len(input) && input[exprAt] == '!' {
			exprAt++
			autoEscape = false
		}

		if source, end, ok := scanExpr(input, exprAt); ok {
			flush()
			segs = append(segs, Expr{Offset: start, End: end, Source: source, AutoEscape: autoEscape})
			i = end
			continue
		}

		// A dollar that begins no interpolation is literal text. Any
		// '!' after it is rescanned as ordinary text.
		lit.WriteByte('$')
		i++
	}

	flush()
	return segs
}

// HasExpr reports whether input contains at least one interpolation.
func HasExpr(input string) bool {
	for _, seg := range Parse(input) {
		if _, ok := seg.(Expr); ok {
			return true
		}
	}
	return false
}

// scanExpr scans a delimited or simple expression starting at i.
// It returns the expression source and the position after it.
func scanExpr(input string, i int) (source string, end int, ok bool) {
	if i >= len(input) {
		return "", 0, false
	}
	if input[i] == '{' {
		return scanDelimited(input, i)
	}
	return scanSimple(input, i)
}

// scanDelimited scans ${...} content with balanced braces. i is at the
// opening brace.
func scanDelimited(input string, i int) (string, int, bool) {
	depth := 1
	for j := i + 1; j < len(input); j++ {
		switch input[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return input[i+1 : j], j + 1, true
			}
		}
	}
	return "", 0, false
}

// scanSimple scans an identifier followed by attribute and subscript
// accesses. The scan stops at the first piece that does not extend the
// path, leaving it as literal text.
func scanSimple(input string, i int) (string, int, bool) {
	j := scanIdent(input, i)
	if j == i {
		return "", 0, false
	}

	for j < len(input) {
		switch input[j] {
		case '.':
			k := scanIdent(input, j+1)
			if k == j+1 {
				return input[i:j], j, true
			}
			j = k
		case '[':
			k, ok := scanSubscript(input, j)
			if !ok {
				return input[i:j], j, true
			}
			j = k
		default:
			return input[i:j], j, true
		}
	}
	return input[i:j], j, true
}

// scanIdent scans an identifier (ASCII letter or underscore, then
// letters, digits and underscores) and returns the position after it.
func scanIdent(input string, i int) int {
	j := i
	for j < len(input) {
		c := input[j]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			j++
			continue
		}
		if j > i && c >= '0' && c <= '9' {
			j++
			continue
		}
		break
	}
	return j
}

// scanSubscript scans a [...] access. i is at the opening bracket. The
// content is either a slice form (index and up to two :ranges, spaces
// allowed) or a quoted key.
func scanSubscript(input string, i int) (int, bool) {
	if j, ok := scanSliceForm(input, i+1); ok {
		return j, true
	}
	if j, ok := scanQuotedKey(input, i+1); ok {
		return j, true
	}
	return 0, false
}

// scanSliceForm scans [ws] [index] [ws] [:range] [ws] [:range] then a
// closing bracket.
func scanSliceForm(input string, i int) (int, bool) {
	j := skipSpaces(input, i)
	j = scanIndex(input, j)
	j = skipSpaces(input, j)
	j = scanRange(input, j)
	j = skipSpaces(input, j)
	j = scanRange(input, j)
	if j < len(input) && input[j] == ']' {
		return j + 1, true
	}
	return 0, false
}

// scanRange scans an optional ":" [ws] [index].
func scanRange(input string, i int) int {
	if i >= len(input) || input[i] != ':' {
		return i
	}
	j := skipSpaces(input, i+1)
	return scanIndex(input, j)
}

// scanIndex scans an optional integer, possibly negative with spaces
// after the sign.
func scanIndex(input string, i int) int {
	j := i
	if j < len(input) && input[j] == '-' {
		j = skipSpaces(input, j+1)
		if k := scanDigits(input, j); k > j {
			return k
		}
		return i
	}
	return scanDigits(input, j)
}

func scanDigits(input string, i int) int {
	j := i
	for j < len(input) && input[j] >= '0' && input[j] <= '9' {
		j++
	}
	return j
}

// scanQuotedKey scans a 'key' or "key" subscript with backslash
// escapes, followed immediately by the closing bracket.
func scanQuotedKey(input string, i int) (int, bool) {
	if i >= len(input) || (input[i] != '\'' && input[i] != '"') {
		return 0, false
	}
	quote := input[i]
	j := i + 1
	for j < len(input) {
		switch input[j] {
		case '\\':
			j += 2
			continue
		case quote:
			if j+1 < len(input) && input[j+1] == ']' {
				return j + 2, true
			}
			return 0, false
		}
		j++
	}
	return 0, false
}

func skipSpaces(input string, i int) int {
	j := i
	for j < len(input) && (input[j] == ' ' || input[j] == '\t') {
		j++
	}
	return j
}
