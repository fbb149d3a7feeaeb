// Package template is the loading and rendering surface of weft. A
// Loader resolves template references against its search roots, compiles
// sources through the dialect pipeline and caches the compiled programs
// three ways: per resolution, per content hash, and as serialized trees
// on disk. Templates rendered through a Loader resolve their extends,
// include and import references back through it.
package template

import (
	"context"
	"io"
	"strings"

	"github.com/leapstack-labs/weft/pkg/i18n"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// Template is one compiled template. It is immutable once loaded and
// safe for concurrent renders.
type Template struct {
	path   string
	kind   string
	doc    *ir.Doc
	prog   *runtime.Program
	loader *Loader
}

// Path returns the resolved source path.
func (t *Template) Path() string { return t.path }

// Kind returns the source dialect, KindMarkup or KindText.
func (t *Template) Kind() string { return t.kind }

// Doc returns the resolved tree the template was compiled from.
func (t *Template) Doc() *ir.Doc { return t.doc }

// Program returns the compiled program bound to this template.
func (t *Template) Program() *runtime.Program { return t.prog }

// Func returns the named template function, for embedders and tests.
func (t *Template) Func(name string) (*runtime.NamedFunc, bool) {
	return t.prog.Func(name)
}

// Render draws the template with vars and returns the output.
func (t *Template) Render(ctx context.Context, vars map[string]any) (string, error) {
	var b strings.Builder
	if err := t.RenderTo(ctx, &b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}

// RenderTo draws the template with vars into w. The variable mapping is
// augmented with the `_`, `gettext` and `ngettext` translation bindings;
// caller-supplied entries of the same name win. Errors raised while
// output is produced come back wrapped with the template locations they
// unwound through.
func (t *Template) RenderTo(ctx context.Context, w io.Writer, vars map[string]any) error {
	var tr i18n.Translator
	if t.loader != nil {
		tr = t.loader.translator
	}
	merged := i18n.Bindings(tr)
	for k, v := range vars {
		merged[k] = v
	}
	converted, err := runtime.ConvertVars(merged)
	if err != nil {
		return err
	}

	var loader runtime.Loader
	if t.loader != nil {
		loader = t.loader
	}
	rc := runtime.NewContext(ctx, loader, nil)
	rc.PushVars(converted)
	defer rc.PopVars()

	err = t.prog.RunRoot(rc, func(s string) error {
		_, werr := io.WriteString(w, s)
		return werr
	})
	return runtime.WrapRender(err, rc.Frames())
}
