package runtime

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateNotFoundError reports a template path that resolved to no
// file. Extends and include nodes marked ignore-missing swallow it.
type TemplateNotFoundError struct {
	Path string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Path)
}

// Frame is one template location on an error's path out of a render.
type Frame struct {
	File string
	Line int
}

// RenderError wraps an error raised while output was being produced,
// carrying the template locations it unwound through, innermost first.
// The cause stays reachable through errors.Is/As.
type RenderError struct {
	cause  error
	Frames []Frame
}

func (e *RenderError) Error() string {
	var b strings.Builder
	b.WriteString(e.cause.Error())
	b.WriteString("\noutput generation started at ")
	for i, f := range e.Frames {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat("    ", i))
		}
		fmt.Fprintf(&b, "%q, line %d", f.File, f.Line)
	}
	return b.String()
}

func (e *RenderError) Unwrap() error { return e.cause }

// WrapRender annotates err with the locations recorded during the
// render. Errors that already carry render locations pass through
// untouched, as do errors recorded against no location at all.
func WrapRender(err error, frames []Frame) error {
	if err == nil {
		return nil
	}
	var re *RenderError
	if errors.As(err, &re) {
		return err
	}
	if len(frames) == 0 {
		return err
	}
	return &RenderError{cause: err, Frames: frames}
}
