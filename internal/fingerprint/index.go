package fingerprint

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/backmassage/vid2audio/internal/scan"
)

// Key identifies a cached fingerprint. A changed size or modification time
// misses the cache.
type Key struct {
	Path    string
	Size    int64
	ModTime time.Time
	Mode    Mode
	Window  int64
}

// Store persists fingerprints across runs. Implementations must be safe for
// concurrent use.
type Store interface {
	Lookup(ctx context.Context, key Key) (Fingerprint, bool, error)
	Save(ctx context.Context, key Key, fp Fingerprint) error
}

// Membership is the result of registering a file.
type Membership struct {
	Fingerprint    Fingerprint
	Representative string // Path of the first file with this fingerprint.
	Duplicate      bool   // True when the registered file is not the representative.
}

// Group is a fingerprint with its representative and every duplicate seen.
type Group struct {
	Fingerprint    Fingerprint
	Representative string
	Duplicates     []string
}

// Option configures an Index.
type Option func(*Index)

// WithMode sets the fingerprint mode. Unknown modes fall back to sampled.
func WithMode(m Mode) Option {
	return func(ix *Index) {
		switch m {
		case ModeSampled, ModeFull, ModeOff:
			ix.mode = m
		}
	}
}

// WithWindow sets the sampled-mode window in bytes.
func WithWindow(n int64) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.window = n
		}
	}
}

// WithStore attaches a persistent fingerprint cache.
func WithStore(s Store) Option {
	return func(ix *Index) { ix.store = s }
}

type memoEntry struct {
	size    int64
	modTime time.Time
	fp      Fingerprint
}

// Index memoizes fingerprints and tracks one representative per fingerprint.
// It is safe for concurrent use and may be shared across runs.
type Index struct {
	mode   Mode
	window int64
	store  Store

	mu   sync.Mutex
	memo map[string]memoEntry
	reps map[Fingerprint]string
	dups map[Fingerprint][]string
}

// NewIndex returns an empty Index in sampled mode with [DefaultWindow].
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		mode:   ModeSampled,
		window: DefaultWindow,
		memo:   make(map[string]memoEntry),
		reps:   make(map[Fingerprint]string),
		dups:   make(map[Fingerprint][]string),
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Mode returns the mode the index fingerprints with.
func (ix *Index) Mode() Mode { return ix.mode }

// Fingerprint returns the fingerprint of f, computing it at most once per
// path while f's size and modification time are unchanged. Store errors are
// not fatal: the fingerprint is computed instead.
func (ix *Index) Fingerprint(ctx context.Context, f scan.SourceFile) (Fingerprint, error) {
	ix.mu.Lock()
	e, ok := ix.memo[f.Path]
	ix.mu.Unlock()
	if ok && e.size == f.Size && e.modTime.Equal(f.ModTime) {
		return e.fp, nil
	}

	key := Key{Path: f.Path, Size: f.Size, ModTime: f.ModTime, Mode: ix.mode, Window: ix.window}
	var fp Fingerprint
	if ix.store != nil && ix.mode != ModeOff {
		if cached, hit, err := ix.store.Lookup(ctx, key); err == nil && hit {
			fp = cached
		}
	}
	if fp == "" {
		computed, err := compute(ctx, f.Path, ix.mode, ix.window)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", f.Path, err)
		}
		fp = computed
		if ix.store != nil && ix.mode != ModeOff {
			_ = ix.store.Save(ctx, key, fp)
		}
	}

	ix.mu.Lock()
	ix.memo[f.Path] = memoEntry{size: f.Size, modTime: f.ModTime, fp: fp}
	ix.mu.Unlock()
	return fp, nil
}

// Register fingerprints f and claims its fingerprint. The first path to
// claim a fingerprint is its representative; every other path is reported as
// a duplicate. Registering the same path again returns the same answer.
func (ix *Index) Register(ctx context.Context, f scan.SourceFile) (Membership, error) {
	fp, err := ix.Fingerprint(ctx, f)
	if err != nil {
		return Membership{}, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	rep, ok := ix.reps[fp]
	if !ok {
		ix.reps[fp] = f.Path
		return Membership{Fingerprint: fp, Representative: f.Path}, nil
	}
	if rep == f.Path {
		return Membership{Fingerprint: fp, Representative: rep}, nil
	}
	if !slices.Contains(ix.dups[fp], f.Path) {
		ix.dups[fp] = append(ix.dups[fp], f.Path)
	}
	return Membership{Fingerprint: fp, Representative: rep, Duplicate: true}, nil
}

// Groups returns every fingerprint with at least one duplicate, ordered by
// representative path. Duplicate lists are sorted.
func (ix *Index) Groups() []Group {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	groups := make([]Group, 0, len(ix.dups))
	for fp, dups := range ix.dups {
		if len(dups) == 0 {
			continue
		}
		d := slices.Clone(dups)
		slices.Sort(d)
		groups = append(groups, Group{Fingerprint: fp, Representative: ix.reps[fp], Duplicates: d})
	}
	slices.SortFunc(groups, func(a, b Group) int {
		return strings.Compare(a.Representative, b.Representative)
	})
	return groups
}
