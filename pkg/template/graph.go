package template

import (
	"sort"
	"time"
)

// depGraph tracks which templates load which. Nodes are resolved source
// paths carrying the file mtime observed when the path was last read; an
// edge runs from a dependency to each template that loads it. The loader
// consults the dependency side for auto-reload revalidation and the
// dependent side for watch-driven invalidation. Callers synchronize
// through the loader mutex.
type depGraph struct {
	mtimes     map[string]time.Time
	deps       map[string][]string // template -> templates it loads
	dependents map[string][]string // template -> templates loading it
}

func newDepGraph() *depGraph {
	return &depGraph{
		mtimes:     make(map[string]time.Time),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}
}

// touch records the source mtime observed for path.
func (g *depGraph) touch(path string, mtime time.Time) {
	g.mtimes[path] = mtime
}

// mtime returns the recorded mtime for path.
func (g *depGraph) mtime(path string) (time.Time, bool) {
	m, ok := g.mtimes[path]
	return m, ok
}

// reset re-registers path after a recompile. Its dependency edges are
// dropped, to be re-added as the new program loads templates; edges from
// other templates onto path are kept.
func (g *depGraph) reset(path string, mtime time.Time) {
	g.mtimes[path] = mtime
	for _, dep := range g.deps[path] {
		g.dependents[dep] = remove(g.dependents[dep], path)
	}
	delete(g.deps, path)
}

// addEdge records that child loads dep.
func (g *depGraph) addEdge(dep, child string) {
	if dep == child {
		return
	}
	if !contains(g.deps[child], dep) {
		g.deps[child] = append(g.deps[child], dep)
	}
	if !contains(g.dependents[dep], child) {
		g.dependents[dep] = append(g.dependents[dep], child)
	}
}

// dependencies returns every path the template at path loads, directly
// or transitively, sorted.
func (g *depGraph) dependencies(path string) []string {
	found := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, dep := range g.deps[id] {
			if !found[dep] {
				found[dep] = true
				mark(dep)
			}
		}
	}
	mark(path)

	return sorted(found)
}

// affected returns the changed paths together with every template that
// transitively loads one of them, sorted.
func (g *depGraph) affected(changed []string) []string {
	found := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		if found[id] {
			return
		}
		found[id] = true
		for _, child := range g.dependents[id] {
			mark(child)
		}
	}
	for _, id := range changed {
		mark(id)
	}

	return sorted(found)
}

func sorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// contains checks if a slice contains a string.
func contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

func remove(slice []string, str string) []string {
	for i, s := range slice {
		if s == str {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}
