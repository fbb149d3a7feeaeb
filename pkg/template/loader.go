package template

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/leapstack-labs/weft/pkg/compile"
	"github.com/leapstack-labs/weft/pkg/directive"
	"github.com/leapstack-labs/weft/pkg/i18n"
	"github.com/leapstack-labs/weft/pkg/ir"
	"github.com/leapstack-labs/weft/pkg/parser"
	"github.com/leapstack-labs/weft/pkg/runtime"
)

// Source dialects.
const (
	KindMarkup = "markup"
	KindText   = "text"
)

// kindByExt maps file extensions to dialects. Extensions not listed fall
// back to the loader's default.
var kindByExt = map[string]string{
	".txt":   KindText,
	".htm":   KindMarkup,
	".html":  KindMarkup,
	".xhtml": KindMarkup,
	".xhtm":  KindMarkup,
	".xml":   KindMarkup,
}

// Config holds loader configuration.
type Config struct {
	// Paths are the template search roots, highest priority first.
	Paths []string
	// DefaultKind is the dialect for extensions outside the extension
	// map. Defaults to KindMarkup.
	DefaultKind string
	// AutoReload revalidates cached templates against source mtimes,
	// transitively through the templates they load.
	AutoReload bool
	// AllowAbsolutePaths permits absolute hrefs and relative references
	// that resolve outside the search roots.
	AllowAbsolutePaths bool
	// CacheDir persists compiled trees across processes. Empty falls
	// back to the WEFT_CACHE environment variable; empty again disables
	// the disk cache.
	CacheDir string
	// Translator resolves the translation bindings injected into every
	// render. Nil renders untranslated.
	Translator i18n.Translator
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Loader resolves template references to files, compiles them and caches
// the result. Templates loaded through one Loader resolve their extends,
// include and import references through it as well. A Loader is safe for
// concurrent use.
type Loader struct {
	paths       []string
	defaultKind string
	autoReload  bool
	allowAbs    bool
	cacheDir    string
	translator  i18n.Translator
	logger      *slog.Logger

	mu        sync.RWMutex
	cache     map[cacheKey]cacheEntry
	byContent map[contentKey]contentEntry
	graph     *depGraph

	flight singleflight.Group
}

// cacheKey identifies one resolution of a template: the same file loaded
// from two different templates lives under two keys, sharing one
// compiled Template through the content cache.
type cacheKey struct {
	path string // resolved source path
	from string // path of the loading template, "" for direct loads
	kind string
}

type cacheEntry struct {
	tmpl  *Template
	mtime time.Time
}

type contentKey struct {
	path string
	kind string
}

type contentEntry struct {
	hash [sha256.Size]byte
	tmpl *Template
}

// New creates a loader over the given search roots.
func New(cfg Config) (*Loader, error) {
	paths := make([]string, len(cfg.Paths))
	for i, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve search path %q: %w", p, err)
		}
		paths[i] = abs
	}

	kind := cfg.DefaultKind
	if kind == "" {
		kind = KindMarkup
	}
	if kind != KindMarkup && kind != KindText {
		return nil, fmt.Errorf("unknown dialect %q", kind)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = os.Getenv("WEFT_CACHE")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Loader{
		paths:       paths,
		defaultKind: kind,
		autoReload:  cfg.AutoReload,
		allowAbs:    cfg.AllowAbsolutePaths,
		cacheDir:    cacheDir,
		translator:  cfg.Translator,
		logger:      logger,
		cache:       make(map[cacheKey]cacheEntry),
		byContent:   make(map[contentKey]contentEntry),
		graph:       newDepGraph(),
	}, nil
}

// Paths returns the configured search roots, resolved to absolute paths.
func (l *Loader) Paths() []string {
	out := make([]string, len(l.paths))
	copy(out, l.paths)
	return out
}

// Discover walks the search roots and returns the root-relative paths
// of every file carrying a known template extension, sorted. A path
// shadowed by a higher-priority root appears once.
func (l *Loader) Discover() ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, root := range l.paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				if os.IsNotExist(walkErr) && path == root {
					return fs.SkipDir
				}
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			if _, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if !seen[rel] {
				seen[rel] = true
				out = append(out, rel)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk template directory %q: %w", root, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

// KindFor returns the dialect the loader selects for path by extension.
func (l *Loader) KindFor(path string) string {
	if kind, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return l.defaultKind
}

// Load loads the template at path, resolving it through the search
// roots.
func (l *Loader) Load(path string) (*Template, error) {
	return l.load(path, "", "")
}

// LoadKind loads path as the named dialect regardless of its extension.
func (l *Loader) LoadKind(path, kind string) (*Template, error) {
	if kind != KindMarkup && kind != KindText {
		return nil, fmt.Errorf("unknown dialect %q", kind)
	}
	return l.load(path, "", kind)
}

// LoadRelative implements runtime.Loader: it loads path on behalf of
// from, resolving relative references against from's own directory, and
// records the dependency for revalidation and watch invalidation.
func (l *Loader) LoadRelative(path string, from runtime.Template) (runtime.Template, error) {
	fromPath := ""
	if from != nil {
		fromPath = from.Path()
	}
	t, err := l.load(path, fromPath, "")
	if err != nil {
		return nil, err
	}
	if fromPath != "" {
		l.mu.Lock()
		l.graph.addEdge(t.path, fromPath)
		l.mu.Unlock()
	}
	return t, nil
}

func (l *Loader) load(name, from, kind string) (*Template, error) {
	path, err := l.resolve(name, from)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		kind = l.KindFor(path)
	}
	key := cacheKey{path: path, from: from, kind: kind}

	l.mu.RLock()
	entry, hit := l.cache[key]
	l.mu.RUnlock()
	if hit && (!l.autoReload || l.fresh(path)) {
		return entry.tmpl, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &runtime.TemplateNotFoundError{Path: name}
		}
		return nil, fmt.Errorf("failed to stat template %q: %w", path, err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %q: %w", path, err)
	}
	mtime := info.ModTime()
	sum := sha256.Sum256(src)

	// Unchanged content recompiles to the same program; reuse it and
	// refresh the entry.
	l.mu.Lock()
	if ce, ok := l.byContent[contentKey{path, kind}]; ok && ce.hash == sum {
		l.cache[key] = cacheEntry{tmpl: ce.tmpl, mtime: mtime}
		l.graph.touch(path, mtime)
		l.mu.Unlock()
		return ce.tmpl, nil
	}
	l.mu.Unlock()

	v, err, _ := l.flight.Do(flightKey(path, kind, sum), func() (any, error) {
		return l.build(path, kind, src, mtime)
	})
	if err != nil {
		return nil, err
	}
	tmpl := v.(*Template)

	l.mu.Lock()
	l.byContent[contentKey{path, kind}] = contentEntry{hash: sum, tmpl: tmpl}
	l.cache[key] = cacheEntry{tmpl: tmpl, mtime: mtime}
	l.mu.Unlock()
	return tmpl, nil
}

func flightKey(path, kind string, sum [sha256.Size]byte) string {
	return fmt.Sprintf("%s\x00%s\x00%x", path, kind, sum)
}

// fresh reports whether the cached compilation of path is current: its
// own source and every template it transitively loads must carry the
// mtime recorded when they were last read.
func (l *Loader) fresh(path string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.freshOne(path) {
		return false
	}
	for _, dep := range l.graph.dependencies(path) {
		if !l.freshOne(dep) {
			return false
		}
	}
	return true
}

func (l *Loader) freshOne(path string) bool {
	recorded, ok := l.graph.mtime(path)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.ModTime().Equal(recorded)
}

// build compiles path from the disk cache or from source. It runs under
// the loader's singleflight group, keyed by content, so concurrent first
// loads compile once.
func (l *Loader) build(path, kind string, src []byte, mtime time.Time) (*Template, error) {
	doc := l.readCached(path, kind, mtime)
	cached := doc != nil
	if doc == nil {
		var err error
		doc, err = parseDoc(src, path, kind)
		if err != nil {
			return nil, err
		}
	}

	prog, err := compile.Compile(doc, compile.Options{File: path})
	if err != nil {
		return nil, err
	}
	t := &Template{path: path, kind: kind, doc: doc, prog: prog, loader: l}
	prog.Bind(t)

	l.mu.Lock()
	l.graph.reset(path, mtime)
	l.mu.Unlock()

	if err := l.bindImports(t); err != nil {
		return nil, err
	}
	if !cached {
		l.writeCached(path, doc)
	}
	l.logger.Debug("compiled template", "path", path, "kind", kind, "disk_cache", cached)
	return t, nil
}

// parseDoc lexes and resolves source into a tree under the given
// dialect.
func parseDoc(src []byte, path, kind string) (*ir.Doc, error) {
	var root *ir.Container
	switch kind {
	case KindText:
		tokens, err := parser.LexText(string(src), path)
		if err != nil {
			return nil, err
		}
		root, err = directive.CompileText(tokens, path)
		if err != nil {
			return nil, err
		}
	default:
		tokens, err := parser.Lex(string(src), path)
		if err != nil {
			return nil, err
		}
		root, err = directive.CompileMarkup(tokens, path)
		if err != nil {
			return nil, err
		}
	}
	return &ir.Doc{Version: ir.FormatVersion, Kind: kind, Root: root}, nil
}

// bindImports resolves the template's root-level imports and installs
// the namespaces as program globals. The bindings live for the cached
// lifetime of the template.
func (l *Loader) bindImports(t *Template) error {
	for _, imp := range t.prog.Imports() {
		if target, err := l.resolve(imp.Href, t.path); err == nil && target == t.path {
			return fmt.Errorf("%s:%d: template %q may not import itself", imp.File, imp.Line, t.path)
		}
		dep, err := l.load(imp.Href, t.path, "")
		if err != nil {
			var missing *runtime.TemplateNotFoundError
			if imp.IgnoreMissing && errors.As(err, &missing) {
				t.prog.SetGlobal(imp.Alias, runtime.NewMissingNamespace(imp.Alias))
				continue
			}
			return fmt.Errorf("%s:%d: %w", imp.File, imp.Line, err)
		}
		t.prog.SetGlobal(imp.Alias, runtime.NewNamespace(dep))

		l.mu.Lock()
		l.graph.addEdge(dep.path, t.path)
		l.mu.Unlock()
	}
	return nil
}

// resolve locates name on disk. Relative references resolve against the
// directory of the loading template first, then the search roots in
// order; candidates escaping every root are skipped unless absolute
// paths are allowed. A candidate that is the loading template itself is
// deferred until every other candidate has been tried, so a template
// extending its own filename reaches a lower-priority root.
func (l *Loader) resolve(name, from string) (string, error) {
	if filepath.IsAbs(name) {
		if l.allowAbs {
			if path := filepath.Clean(name); isFile(path) {
				return path, nil
			}
		}
		return "", &runtime.TemplateNotFoundError{Path: name}
	}

	dirs := make([]string, 0, len(l.paths)+1)
	if from != "" {
		dirs = append(dirs, filepath.Dir(from))
	}
	dirs = append(dirs, l.paths...)

	self := ""
	for _, dir := range dirs {
		candidate := filepath.Clean(filepath.Join(dir, name))
		if !l.allowAbs && !l.inRoots(candidate) {
			continue
		}
		if !isFile(candidate) {
			continue
		}
		if candidate == from {
			self = candidate
			continue
		}
		return candidate, nil
	}
	if self != "" {
		return self, nil
	}
	return "", &runtime.TemplateNotFoundError{Path: name}
}

// inRoots reports whether path lies inside one of the search roots.
func (l *Loader) inRoots(path string) bool {
	for _, root := range l.paths {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// invalidate drops every cached artifact for the changed paths and for
// the templates that transitively load them, returning the affected
// paths sorted.
func (l *Loader) invalidate(changed []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	affected := l.graph.affected(changed)
	drop := make(map[string]bool, len(affected))
	for _, p := range affected {
		drop[p] = true
	}
	for key := range l.cache {
		if drop[key.path] {
			delete(l.cache, key)
		}
	}
	for key := range l.byContent {
		if drop[key.path] {
			delete(l.byContent, key)
		}
	}
	return affected
}
