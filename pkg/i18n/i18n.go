// Package i18n translates rendered template content. It defines the
// Translator interface renders resolve messages through, YAML message
// catalogs with language matching and CLDR plural selection, the
// starlark bindings injected into every render, and the extraction of
// translatable messages from resolved template trees.
package i18n

import (
	"go.starlark.net/starlark"
)

// Translator resolves message ids to translated strings.
type Translator interface {
	// Gettext returns the translation of msg, or msg itself when the
	// catalog has none.
	Gettext(msg string) string
	// Ngettext returns the translation of the singular/plural pair for
	// count n, falling back to singular for n == 1 and plural otherwise.
	Ngettext(singular, plural string, n int) string
}

// NullTranslator passes every message through untranslated.
type NullTranslator struct{}

func (NullTranslator) Gettext(msg string) string { return msg }

func (NullTranslator) Ngettext(singular, plural string, n int) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Bindings returns the callables a render injects into the template
// context: `_` and `gettext` resolve single messages through t,
// `ngettext` resolves singular/plural pairs by count.
func Bindings(t Translator) map[string]any {
	if t == nil {
		t = NullTranslator{}
	}
	gettext := starlark.NewBuiltin("gettext", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}
		return starlark.String(t.Gettext(msg)), nil
	})
	ngettext := starlark.NewBuiltin("ngettext", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var singular, plural string
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 3, &singular, &plural, &n); err != nil {
			return nil, err
		}
		return starlark.String(t.Ngettext(singular, plural, n)), nil
	})
	return map[string]any{
		"_":        gettext,
		"gettext":  gettext,
		"ngettext": ngettext,
	}
}
