package fingerprint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/vid2audio/internal/scan"
	"github.com/backmassage/vid2audio/internal/testsupport"
)

func source(t *testing.T, path string) scan.SourceFile {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return scan.SourceFile{Path: path, RelPath: filepath.Base(path), Size: info.Size(), ModTime: info.ModTime()}
}

func TestRegister_FirstIsRepresentative(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	c := filepath.Join(dir, "c.mp4")
	testsupport.WritePattern(t, a, 4096, 'x')
	testsupport.WritePattern(t, b, 4096, 'x')
	testsupport.WritePattern(t, c, 4096, 'y')

	ix := NewIndex()
	ctx := context.Background()

	ma, err := ix.Register(ctx, source(t, a))
	require.NoError(t, err)
	assert.False(t, ma.Duplicate)
	assert.Equal(t, a, ma.Representative)

	mb, err := ix.Register(ctx, source(t, b))
	require.NoError(t, err)
	assert.True(t, mb.Duplicate)
	assert.Equal(t, a, mb.Representative)
	assert.Equal(t, ma.Fingerprint, mb.Fingerprint)

	mc, err := ix.Register(ctx, source(t, c))
	require.NoError(t, err)
	assert.False(t, mc.Duplicate)

	again, err := ix.Register(ctx, source(t, a))
	require.NoError(t, err)
	assert.False(t, again.Duplicate, "representative re-registration must be idempotent")
	_, err = ix.Register(ctx, source(t, b))
	require.NoError(t, err)

	groups := ix.Groups()
	require.Len(t, groups, 1)
	assert.Equal(t, a, groups[0].Representative)
	assert.Equal(t, []string{b}, groups[0].Duplicates)
}

func TestSampled_SizeDistinguishes(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.mp4")
	large := filepath.Join(dir, "large.mp4")
	testsupport.WritePattern(t, small, 1000, 'z')
	testsupport.WritePattern(t, large, 1001, 'z')

	ix := NewIndex()
	fa, err := ix.Fingerprint(context.Background(), source(t, small))
	require.NoError(t, err)
	fb, err := ix.Fingerprint(context.Background(), source(t, large))
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

// Files that differ only between the sampled windows collide in sampled mode
// and are told apart in full mode.
func TestModes_MiddleDifference(t *testing.T) {
	dir := t.TempDir()
	const window = 1024
	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	testsupport.WritePattern(t, a, 8*window, 'm')
	testsupport.WritePattern(t, b, 8*window, 'm')

	f, err := os.OpenFile(b, os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("different"), 4*window)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	ctx := context.Background()
	sampled := NewIndex(WithWindow(window))
	sa, _ := sampled.Fingerprint(ctx, source(t, a))
	sb, _ := sampled.Fingerprint(ctx, source(t, b))
	assert.Equal(t, sa, sb)

	full := NewIndex(WithMode(ModeFull))
	fa, _ := full.Fingerprint(ctx, source(t, a))
	fb, _ := full.Fingerprint(ctx, source(t, b))
	assert.NotEqual(t, fa, fb)
	assert.NotEqual(t, sa, fa, "modes must not share fingerprints")
}

func TestModeOff_NeverDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.mp4")
	b := filepath.Join(dir, "b.mp4")
	testsupport.WritePattern(t, a, 100, 'q')
	testsupport.WritePattern(t, b, 100, 'q')

	ix := NewIndex(WithMode(ModeOff))
	for _, p := range []string{a, b} {
		m, err := ix.Register(context.Background(), source(t, p))
		require.NoError(t, err)
		assert.False(t, m.Duplicate)
	}
	assert.Empty(t, ix.Groups())
}

func TestFingerprint_MissingFile(t *testing.T) {
	ix := NewIndex()
	_, err := ix.Fingerprint(context.Background(), scan.SourceFile{Path: filepath.Join(t.TempDir(), "gone.mp4")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFingerprint_Cancelled(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.mp4")
	testsupport.WriteFile(t, p, 4096)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewIndex(WithMode(ModeFull)).Fingerprint(ctx, source(t, p))
	assert.ErrorIs(t, err, context.Canceled)
}

type memStore struct {
	mu      sync.Mutex
	entries map[Key]Fingerprint
	lookups int
	saves   int
}

func (m *memStore) Lookup(_ context.Context, k Key) (Fingerprint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	fp, ok := m.entries[k]
	return fp, ok, nil
}

func (m *memStore) Save(_ context.Context, k Key, fp Fingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.entries[k] = fp
	return nil
}

func TestFingerprint_StoreAndMemo(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.mp4")
	testsupport.WriteFile(t, p, 2048)
	src := source(t, p)
	store := &memStore{entries: make(map[Key]Fingerprint)}
	ctx := context.Background()

	first := NewIndex(WithStore(store))
	fp1, err := first.Fingerprint(ctx, src)
	require.NoError(t, err)
	_, err = first.Fingerprint(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups, "second call should be memoized")
	assert.Equal(t, 1, store.saves)

	// A new index reads the persisted value without hashing; a sentinel
	// value proves the file was not read.
	key := Key{Path: src.Path, Size: src.Size, ModTime: src.ModTime, Mode: ModeSampled, Window: DefaultWindow}
	store.entries[key] = "cached"
	fp2, err := NewIndex(WithStore(store)).Fingerprint(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint("cached"), fp2)
	assert.NotEqual(t, fp1, fp2)
}

func TestRegister_ConcurrentSingleRepresentative(t *testing.T) {
	dir := t.TempDir()
	const n = 16
	files := make([]scan.SourceFile, n)
	for i := range files {
		p := filepath.Join(dir, string(rune('a'+i))+".mp4")
		testsupport.WritePattern(t, p, 512, 'k')
		files[i] = source(t, p)
	}

	ix := NewIndex()
	var wg sync.WaitGroup
	var mu sync.Mutex
	reps := 0
	for _, f := range files {
		wg.Add(1)
		go func(f scan.SourceFile) {
			defer wg.Done()
			m, err := ix.Register(context.Background(), f)
			if err != nil {
				t.Error(err)
				return
			}
			if !m.Duplicate {
				mu.Lock()
				reps++
				mu.Unlock()
			}
		}(f)
	}
	wg.Wait()

	assert.Equal(t, 1, reps)
	groups := ix.Groups()
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Duplicates, n-1)
}
