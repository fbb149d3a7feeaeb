package template

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/weft/pkg/ir"
)

// cacheVersionDir returns the disk cache directory for the current
// serialization format. Bumping ir.FormatVersion strands older files
// instead of tripping over them.
func (l *Loader) cacheVersionDir() string {
	return filepath.Join(l.cacheDir, strconv.Itoa(ir.FormatVersion))
}

// cacheFileName builds the cache file name for a source path: the path
// with every byte outside [A-Za-z0-9-] replaced by an underscore, then
// an underscore and the hex SHA-256 of the path itself to keep distinct
// paths from colliding.
func cacheFileName(path string) string {
	escaped := []byte(path)
	for i := 0; i < len(escaped); i++ {
		b := escaped[i]
		if b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '-' {
			continue
		}
		escaped[i] = '_'
	}
	return fmt.Sprintf("%s_%x.json", escaped, sha256.Sum256([]byte(path)))
}

// readCached returns the cached tree for path, or nil when the disk
// cache is disabled, older than the source, unreadable, or of a
// different format version or dialect.
func (l *Loader) readCached(path, kind string, mtime time.Time) *ir.Doc {
	if l.cacheDir == "" {
		return nil
	}
	file := filepath.Join(l.cacheVersionDir(), cacheFileName(path))
	info, err := os.Stat(file)
	if err != nil || info.ModTime().Before(mtime) {
		return nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil
	}
	defer f.Close()

	doc, err := ir.DecodeDoc(f)
	if err != nil {
		l.logger.Debug("discarding unreadable template cache", "file", file, "error", err)
		return nil
	}
	if doc.Version != ir.FormatVersion || doc.Kind != kind {
		return nil
	}
	return doc
}

// writeCached persists doc for path, atomically via a temp file and
// rename. Failures are logged and swallowed; the template is already
// compiled.
func (l *Loader) writeCached(path string, doc *ir.Doc) {
	if l.cacheDir == "" {
		return
	}
	dir := l.cacheVersionDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.logger.Warn("failed to create template cache directory", "dir", dir, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, ".weft-*")
	if err != nil {
		l.logger.Warn("failed to write template cache", "path", path, "error", err)
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := ir.EncodeDoc(tmp, doc); err != nil {
		_ = tmp.Close()
		l.logger.Warn("failed to write template cache", "path", path, "error", err)
		return
	}
	if err := tmp.Close(); err != nil {
		l.logger.Warn("failed to write template cache", "path", path, "error", err)
		return
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, cacheFileName(path))); err != nil {
		l.logger.Warn("failed to write template cache", "path", path, "error", err)
	}
}
