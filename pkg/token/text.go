package token

// TrimMode controls whitespace trimming around a {% %} statement.
type TrimMode int

// TrimMode constants for statement whitespace control.
const (
	TrimLine TrimMode = iota // default: trim to the adjacent newline
	TrimAll                  // '-': trim all adjacent whitespace
	TrimNone                 // '+': trim nothing
)

func (m TrimMode) String() string {
	switch m {
	case TrimLine:
		return "line"
	case TrimAll:
		return "all"
	case TrimNone:
		return "none"
	default:
		return "unknown"
	}
}

// Stmt is an opening statement {% name args %}.
type Stmt struct {
	Position   Position
	Name       string
	Args       string // verbatim argument text, surrounding whitespace trimmed
	ArgsPos    Position
	TrimBefore TrimMode
	TrimAfter  TrimMode
	Source     string // the statement as it appeared in the input
}

func (t Stmt) Pos() Position { return t.Position }
func (t Stmt) textToken()    {}

// EndStmt is a closing statement {% endname %} or bare {% end %}.
type EndStmt struct {
	Position   Position
	Name       string // "" for a bare end
	TrimBefore TrimMode
	TrimAfter  TrimMode
	Source     string
}

func (t EndStmt) Pos() Position { return t.Position }
func (t EndStmt) textToken()    {}
