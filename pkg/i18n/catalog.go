package i18n

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// File is the YAML layout of one message catalog.
type File struct {
	Language string  `yaml:"language"`
	Messages []Entry `yaml:"messages"`
}

// Entry is one translatable message in a catalog file. Str carries the
// singular translation; Plurals maps CLDR form names (zero, one, two,
// few, many, other) to the per-form translations of a counted message.
type Entry struct {
	ID      string            `yaml:"id"`
	Plural  string            `yaml:"plural,omitempty"`
	Str     string            `yaml:"str,omitempty"`
	Plurals map[string]string `yaml:"plurals,omitempty"`
	Comment string            `yaml:"comment,omitempty"`
	Refs    []string          `yaml:"refs,omitempty"`
}

// formNames maps catalog plural keys onto CLDR plural forms.
var formNames = map[string]plural.Form{
	"zero":  plural.Zero,
	"one":   plural.One,
	"two":   plural.Two,
	"few":   plural.Few,
	"many":  plural.Many,
	"other": plural.Other,
}

// Catalog holds loaded message tables for any number of languages and
// selects the closest one per render by language tag.
type Catalog struct {
	mu      sync.RWMutex
	tags    []language.Tag
	matcher language.Matcher
	tables  map[language.Tag]*table
}

type table struct {
	singular map[string]string
	plurals  map[string]map[plural.Form]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[language.Tag]*table)}
}

// LoadFile reads one YAML catalog file into the catalog.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := c.Load(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load reads one YAML catalog. Catalogs for the same language merge;
// later entries win.
func (c *Catalog) Load(r io.Reader) error {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return err
	}
	tag, err := language.Parse(file.Language)
	if err != nil {
		return fmt.Errorf("catalog language %q: %w", file.Language, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tag]
	if t == nil {
		t = &table{
			singular: make(map[string]string),
			plurals:  make(map[string]map[plural.Form]string),
		}
		c.tables[tag] = t
		c.tags = append(c.tags, tag)
		sort.Slice(c.tags, func(i, j int) bool { return c.tags[i].String() < c.tags[j].String() })
		c.matcher = language.NewMatcher(c.tags)
	}
	for _, e := range file.Messages {
		if e.Str != "" {
			t.singular[e.ID] = e.Str
		}
		if len(e.Plurals) == 0 {
			continue
		}
		forms := make(map[plural.Form]string, len(e.Plurals))
		for name, str := range e.Plurals {
			form, ok := formNames[name]
			if !ok {
				return fmt.Errorf("message %q: unknown plural form %q", e.ID, name)
			}
			if str != "" {
				forms[form] = str
			}
		}
		t.plurals[e.ID] = forms
	}
	return nil
}

// Languages returns the loaded languages in deterministic order.
func (c *Catalog) Languages() []language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]language.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// Translator returns the closest translator for tag, or a
// NullTranslator when nothing in the catalog matches.
func (c *Catalog) Translator(tag language.Tag) Translator {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.tags) == 0 || tag == language.Und {
		return NullTranslator{}
	}
	_, index, conf := c.matcher.Match(tag)
	if conf == language.No {
		return NullTranslator{}
	}
	matched := c.tags[index]
	return &translator{tag: matched, table: c.tables[matched]}
}

// translator resolves messages against one language table.
type translator struct {
	tag   language.Tag
	table *table
}

func (t *translator) Gettext(msg string) string {
	if s, ok := t.table.singular[msg]; ok {
		return s
	}
	return msg
}

func (t *translator) Ngettext(singular, other string, n int) string {
	if forms, ok := t.table.plurals[singular]; ok {
		digits, exp := decimalDigits(n)
		form := plural.Cardinal.MatchDigits(t.tag, digits, exp, 0)
		if s, ok := forms[form]; ok {
			return s
		}
		if s, ok := forms[plural.Other]; ok {
			return s
		}
	}
	if n == 1 {
		return t.Gettext(singular)
	}
	if s, ok := t.table.singular[other]; ok {
		return s
	}
	return other
}

// decimalDigits renders n for CLDR plural matching: its decimal digits
// as byte values in big-endian order, plus the exponent.
func decimalDigits(n int) ([]byte, int) {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return nil, 0
	}
	s := strconv.Itoa(n)
	digits := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		digits[i] = s[i] - '0'
	}
	return digits, len(digits)
}
