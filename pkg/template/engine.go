package template

import (
	"bytes"
	"context"
	"strings"

	"github.com/leapstack-labs/weft/pkg/spi"
)

// Engine adapts a Loader to the spi.Engine contract so weft can sit in
// an engine registry next to other template languages.
type Engine struct {
	loader *Loader
}

var (
	_ spi.Engine  = (*Engine)(nil)
	_ spi.Sniffer = (*Engine)(nil)
)

// NewEngine wraps a loader for registration with spi.Register.
func NewEngine(l *Loader) *Engine {
	return &Engine{loader: l}
}

// Name implements spi.Engine.
func (e *Engine) Name() string { return "weft" }

// Render loads the template at path and renders it with vars.
func (e *Engine) Render(ctx context.Context, path string, vars map[string]any) ([]byte, error) {
	t, err := e.loader.Load(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.RenderTo(ctx, &buf, vars); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SniffSource reports whether source carries weft directive or
// interpolation markers.
func (e *Engine) SniffSource(source string) bool {
	for _, marker := range []string{"${", "{%", "<w:", " w:", "xmlns:w="} {
		if strings.Contains(source, marker) {
			return true
		}
	}
	return false
}
