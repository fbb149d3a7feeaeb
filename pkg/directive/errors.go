package directive

import (
	"fmt"

	"github.com/leapstack-labs/weft/pkg/token"
)

// baseError provides common error functionality.
type baseError struct {
	pos token.Position
	msg string
}

func (e *baseError) Position() token.Position { return e.pos }
func (e *baseError) Error() string            { return fmt.Sprintf("%s: %s", e.pos, e.msg) }

// CompileError represents a structural or directive error found while
// resolving a token stream into a tree.
type CompileError struct {
	baseError
}

// NewCompileError creates a new compile error.
func NewCompileError(pos token.Position, msg string) *CompileError {
	return &CompileError{baseError: baseError{pos: pos, msg: msg}}
}

// NewCompileErrorf creates a new compile error with formatting.
func NewCompileErrorf(pos token.Position, format string, args ...any) *CompileError {
	return &CompileError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}
