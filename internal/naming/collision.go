package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver tracks target paths claimed by source files within one
// run and resolves clashes by appending " (N)" to the stem. Sources must be
// offered in a stable order for repeated runs to map identically. All
// methods are goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // folded target path → source path that owns it
	counters map[string]int    // folded requested path → next suffix
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve returns the final target path for source. If requested is
// unclaimed (or already owned by source) it is returned as-is; otherwise a
// " (N)" variant is generated. Paths are compared case-insensitively so the
// result is safe on case-folding filesystems.
func (cr *CollisionResolver) Resolve(source, requested string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	key := fold(requested)
	owner, exists := cr.owners[key]
	if !exists || owner == source {
		cr.owners[key] = source
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := cr.counters[key]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, counter, ext))
		cKey := fold(candidate)
		cOwner, cExists := cr.owners[cKey]
		if !cExists || cOwner == source {
			cr.counters[key] = counter + 1
			cr.owners[cKey] = source
			return candidate
		}
		counter++
	}
}

// Owner returns the source that claimed target, if any.
func (cr *CollisionResolver) Owner(target string) (string, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	s, ok := cr.owners[fold(target)]
	return s, ok
}

func fold(p string) string { return strings.ToLower(filepath.Clean(p)) }
