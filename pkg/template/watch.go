package template

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay batches filesystem events that land together, such as an
// editor writing a temp file and renaming it over the original.
const debounceDelay = 100 * time.Millisecond

// Watch reports template invalidations until ctx is cancelled. Each
// batch carries the changed files together with every template that
// transitively loads one of them; the corresponding cache entries are
// dropped before the batch is delivered, so the next load recompiles.
// The channel closes when the watcher stops.
func (l *Loader) Watch(ctx context.Context) (<-chan []string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, root := range l.paths {
		if err := watchDirRecursive(watcher, root); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", root, err)
		}
	}

	ch := make(chan []string)
	go l.watchLoop(ctx, watcher, ch)
	return ch, nil
}

func (l *Loader) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, ch chan<- []string) {
	defer close(ch)
	defer func() { _ = watcher.Close() }()

	pending := make(map[string]bool)
	flush := make(chan struct{}, 1)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watchDirRecursive(watcher, event.Name)
					continue
				}
			}
			path := filepath.Clean(event.Name)
			if !l.watchable(path) {
				continue
			}
			pending[path] = true

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				select {
				case flush <- struct{}{}:
				default:
				}
			})

		case <-flush:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			pending = make(map[string]bool)

			affected := l.invalidate(changed)
			l.logger.Debug("templates invalidated", "changed", len(changed), "affected", len(affected))
			select {
			case ch <- affected:
			case <-ctx.Done():
				return
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("watcher error", "error", err)
		}
	}
}

// watchable reports whether a changed file can affect a render: it
// carries a known template extension, or the loader has already read it.
func (l *Loader) watchable(path string) bool {
	if _, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return true
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, known := l.graph.mtime(path)
	return known
}

// watchDirRecursive adds dir and all its subdirectories to the watcher,
// skipping hidden directories.
func watchDirRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}
