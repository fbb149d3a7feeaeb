// Package spi provides service provider interfaces for embedding weft
// next to other template engines: a registry of engines keyed by name,
// a source-sniffing hook for dispatching unknown sources, and the
// context-provider contract render pipelines feed variables through.
package spi

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Engine renders templates for one template language.
type Engine interface {
	// Name is the registry key, lowercase.
	Name() string
	// Render draws the template at path with vars.
	Render(ctx context.Context, path string, vars map[string]any) ([]byte, error)
}

// Sniffer is implemented by engines that can recognize their own
// sources. Sniff consults it when picking an engine for unknown input.
type Sniffer interface {
	// SniffSource reports whether source looks like this engine's
	// language.
	SniffSource(source string) bool
}

// ContextProvider supplies render variables. Providers are merged in
// order by the caller; later entries win.
type ContextProvider interface {
	Context(ctx context.Context) (map[string]any, error)
}

// Engine registry
var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// Register adds an engine to the global registry, replacing any engine
// of the same name.
func Register(e Engine) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[strings.ToLower(e.Name())] = e
}

// Lookup returns an engine by name.
func Lookup(name string) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, ok := engines[strings.ToLower(name)]
	return e, ok
}

// Engines returns all registered engine names (sorted).
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sniff picks an engine name for a source of unknown origin by asking
// each registered engine that implements Sniffer, in name order.
// Returns "" when nothing claims it.
func Sniff(source string) string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s, ok := engines[name].(Sniffer); ok && s.SniffSource(source) {
			return name
		}
	}
	return ""
}
