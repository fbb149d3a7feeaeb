package preview

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapstack-labs/weft/pkg/compile"
	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/parser"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// The preview pages are weft templates themselves, compiled once at
// server start and rendered in memory.
const indexSrc = `<!DOCTYPE html>
<html>
<head>
<title>weft preview</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 40rem; }
li { margin: 0.25rem 0; }
.empty { color: #888; }
</style>
</head>
<body>
<h1>Templates</h1>
<w:choose>
<ul w:when="templates"><li w:for="t in templates"><a href="/view/${t}">$t</a></li></ul>
<p w:otherwise="" class="empty">No templates found under the configured directories.</p>
</w:choose>
</body>
</html>
`

// reloadScript is injected into rendered pages so they reconnect to the
// event stream and reload on invalidation.
const reloadScript = `<script>new EventSource("/events").addEventListener("reload",function(){location.reload()});</script>`

// page is one compiled in-memory preview template.
type page struct {
	prog *runtime.Program
}

// newPage compiles an embedded markup source.
func newPage(name, src string) (*page, error) {
	tokens, err := parser.Lex(src, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse preview page %s: %w", name, err)
	}
	root, err := directive.CompileMarkup(tokens, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve preview page %s: %w", name, err)
	}
	prog, err := compile.Compile(&ir.Doc{Version: ir.FormatVersion, Kind: "markup", Root: root}, compile.Options{File: name})
	if err != nil {
		return nil, fmt.Errorf("failed to compile preview page %s: %w", name, err)
	}
	return &page{prog: prog}, nil
}

// render draws the page with vars.
func (p *page) render(ctx context.Context, vars map[string]any) (string, error) {
	converted, err := runtime.ConvertVars(vars)
	if err != nil {
		return "", err
	}
	rc := runtime.NewContext(ctx, nil, nil)
	rc.PushVars(converted)
	defer rc.PopVars()

	var b strings.Builder
	err = p.prog.RunRoot(rc, func(s string) error {
		_, werr := b.WriteString(s)
		return werr
	})
	if err != nil {
		return "", runtime.WrapRender(err, rc.Frames())
	}
	return b.String(), nil
}
