// Package scan discovers source video files under a file or directory root.
//
// A scan is lazy: the returned sequence walks the tree while the consumer
// pulls, and each range over it starts a fresh walk. Entries are visited in
// lexicographic order per directory. Symbolic links are followed, and every
// directory and file is tracked by its resolved path so link cycles and
// aliases are walked once; the first path in walk order wins.
package scan

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrScan is matched (errors.Is) by every [ScanError].
var ErrScan = errors.New("scan failed")

// ErrUnsupported is wrapped when a file root has an extension the scanner
// does not accept.
var ErrUnsupported = errors.New("unsupported file type")

// ScanError reports a root that cannot be scanned.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrScan) true for every ScanError.
func (e *ScanError) Is(target error) bool { return target == ErrScan }

// SourceFile is one discovered video file. RelPath is relative to the scan
// root (the base name for a single-file root).
type SourceFile struct {
	Path    string
	RelPath string
	Size    int64
	ModTime time.Time
}

// Logger is the subset of logging.Logger the scanner needs.
type Logger interface {
	Warn(format string, args ...interface{})
}

// Options configures a Scanner.
type Options struct {
	Recursive  bool
	Extensions []string // Lowercase with leading dot.
	Logger     Logger   // Receives warnings for skipped entries; may be nil.
}

// Scanner walks roots with fixed options. It holds no per-scan state and is
// safe to reuse.
type Scanner struct {
	recursive bool
	exts      map[string]bool
	log       Logger
}

// New returns a Scanner for opts.
func New(opts Options) *Scanner {
	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		e = strings.ToLower(e)
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts[e] = true
	}
	return &Scanner{recursive: opts.Recursive, exts: exts, log: opts.Logger}
}

// Supported reports whether path has an accepted extension.
func (s *Scanner) Supported(path string) bool {
	return s.exts[strings.ToLower(filepath.Ext(path))]
}

// Scan validates root and returns a sequence over its video files. A missing
// or unreadable root, or a file root with an unsupported extension, returns
// a *ScanError.
func (s *Scanner) Scan(root string) (iter.Seq[SourceFile], error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	if !info.IsDir() {
		if !info.Mode().IsRegular() || !s.Supported(abs) {
			return nil, &ScanError{Path: root, Err: ErrUnsupported}
		}
		return func(yield func(SourceFile) bool) {
			// Re-stat so a restarted sequence sees current size and mtime.
			fi, err := os.Stat(abs)
			if err != nil {
				s.warn("skipping %s: %v", abs, err)
				return
			}
			yield(SourceFile{Path: abs, RelPath: filepath.Base(abs), Size: fi.Size(), ModTime: fi.ModTime()})
		}, nil
	}

	dir, err := os.Open(abs)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}
	_, err = dir.ReadDir(1)
	dir.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ScanError{Path: root, Err: err}
	}

	return func(yield func(SourceFile) bool) {
		w := &walk{s: s, root: abs, visited: make(map[string]bool), seen: make(map[string]bool)}
		w.dir(abs, yield)
	}, nil
}

// walk holds the state of one pass over a directory tree.
type walk struct {
	s       *Scanner
	root    string
	visited map[string]bool // resolved directories
	seen    map[string]bool // resolved files
}

// dir yields the files under path. It returns false once the consumer stops.
func (w *walk) dir(path string, yield func(SourceFile) bool) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.s.warn("skipping directory %s: %v", path, err)
		return true
	}
	if w.visited[resolved] {
		return true
	}
	w.visited[resolved] = true

	entries, err := os.ReadDir(path)
	if err != nil {
		w.s.warn("cannot read directory %s: %v", path, err)
		// ReadDir returns what it read before the error; keep going with that.
	}

	for _, e := range entries {
		p := filepath.Join(path, e.Name())
		info, err := entryInfo(p, e)
		if err != nil {
			w.s.warn("skipping %s: %v", p, err)
			continue
		}

		if info.IsDir() {
			if !w.s.recursive {
				continue
			}
			if !w.dir(p, yield) {
				return false
			}
			continue
		}
		if !info.Mode().IsRegular() || !w.s.Supported(p) {
			continue
		}

		resolved, err := filepath.EvalSymlinks(p)
		if err != nil {
			w.s.warn("skipping %s: %v", p, err)
			continue
		}
		if w.seen[resolved] {
			continue
		}
		w.seen[resolved] = true

		rel, err := filepath.Rel(w.root, p)
		if err != nil {
			rel = e.Name()
		}
		if !yield(SourceFile{Path: p, RelPath: rel, Size: info.Size(), ModTime: info.ModTime()}) {
			return false
		}
	}
	return true
}

// entryInfo stats e, following symbolic links.
func entryInfo(path string, e fs.DirEntry) (fs.FileInfo, error) {
	if e.Type()&fs.ModeSymlink != 0 {
		return os.Stat(path)
	}
	return e.Info()
}

func (s *Scanner) warn(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Warn(format, args...)
	}
}
