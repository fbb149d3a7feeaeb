package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectUntil drains invalidation batches until every want path has
// been seen or the deadline passes.
func collectUntil(t *testing.T, ch <-chan []string, want ...string) {
	t.Helper()
	seen := make(map[string]bool)
	deadline := time.After(10 * time.Second)
	for {
		missing := false
		for _, w := range want {
			if !seen[w] {
				missing = true
			}
		}
		if !missing {
			return
		}
		select {
		case batch, ok := <-ch:
			require.True(t, ok, "watch channel closed early")
			for _, p := range batch {
				seen[p] = true
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v, saw %v", want, seen)
		}
	}
}

func TestWatch_InvalidatesDependents(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"base.html": `B1`,
		"page.html": `(<w:include href="base.html"/>)`,
	})
	l := newLoader(t, Config{Paths: []string{root}})

	// Render once so the include edge is on record.
	assert.Equal(t, "(B1)", renderPath(t, l, "page.html", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.Watch(ctx)
	require.NoError(t, err, "unexpected error")

	base := filepath.Join(root, "base.html")
	require.NoError(t, os.WriteFile(base, []byte(`B2`), 0o644))

	collectUntil(t, ch, base, filepath.Join(root, "page.html"))

	// The batch dropped the cache entries, so the next load recompiles
	// even without auto-reload.
	assert.Equal(t, "(B2)", renderPath(t, l, "page.html", nil))
}

func TestWatch_PicksUpNewDirectories(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"page.html": `x`,
	})
	l := newLoader(t, Config{Paths: []string{root}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.Watch(ctx)
	require.NoError(t, err, "unexpected error")

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a moment to pick up the new directory before
	// writing into it.
	time.Sleep(250 * time.Millisecond)
	fresh := filepath.Join(sub, "fresh.html")
	require.NoError(t, os.WriteFile(fresh, []byte(`new`), 0o644))

	collectUntil(t, ch, fresh)
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"page.html": `x`,
	})
	l := newLoader(t, Config{Paths: []string{root}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.Watch(ctx)
	require.NoError(t, err, "unexpected error")

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte(`scratch`), 0o644))

	select {
	case batch := <-ch:
		t.Fatalf("unexpected batch %v", batch)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatch_ClosesOnCancel(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"page.html": `x`,
	})
	l := newLoader(t, Config{Paths: []string{root}})

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Watch(ctx)
	require.NoError(t, err, "unexpected error")

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel did not close")
		}
	}
}

func TestWatch_MissingRoot(t *testing.T) {
	l := newLoader(t, Config{Paths: []string{filepath.Join(t.TempDir(), "gone")}})

	_, err := l.Watch(context.Background())
	require.Error(t, err, "expected error")
	assert.Contains(t, err.Error(), "failed to watch")
}

func TestWatchable(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"page.html": `x`,
	})
	l := newLoader(t, Config{Paths: []string{root}})

	assert.True(t, l.watchable("/any/where/page.html"))
	assert.True(t, l.watchable("/any/where/NOTE.TXT"))
	assert.False(t, l.watchable("/any/where/readme.md"))

	// Files the loader has read are watchable whatever their extension.
	path := filepath.Join(root, "page.html")
	_, err := l.Load("page.html")
	require.NoError(t, err, "unexpected error")
	l.mu.Lock()
	l.graph.touch("/srv/custom.tpl", time.Now())
	l.mu.Unlock()
	assert.True(t, l.watchable("/srv/custom.tpl"))
	assert.True(t, l.watchable(path))
}
