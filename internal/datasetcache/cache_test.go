package datasetcache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dcmcache/internal/domain"
)

// countingScope records acquisitions and releases.
type countingScope struct {
	mu       sync.Mutex
	acquired int
	released int
	fail     error
}

func (s *countingScope) Acquire(string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.acquired++
	return func() {
		s.mu.Lock()
		s.released++
		s.mu.Unlock()
	}, nil
}

func makeSource(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "Abdomen CT")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "nested"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "1-01"), []byte("one"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "nested", "1-02"), []byte("two"), 0o600))
	return src
}

func listRoot(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestImport_CopiesTree(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t)
	c := New(root)

	ds, err := c.Import(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "Abdomen CT", ds.Name)
	assert.Equal(t, filepath.Join(root, ds.ID.String()), ds.Directory)
	assert.Equal(t, ds.Directory, c.Resolve(ds))

	data, err := os.ReadFile(filepath.Join(ds.Directory, "nested", "1-02"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))
	assert.Equal(t, []string{ds.ID.String()}, listRoot(t, root))
}

func TestImport_UniqueIDs(t *testing.T) {
	root := t.TempDir()
	src := makeSource(t)
	c := New(root)

	const n = 16
	ids := make(chan uuid.UUID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ds, err := c.Import(context.Background(), src)
			assert.NoError(t, err)
			ids <- ds.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uuid.UUID]bool{}
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, n)
	require.Len(t, listRoot(t, root), n)
}

func TestImport_ReleasesScopeOnSuccess(t *testing.T) {
	scope := &countingScope{}
	c := New(t.TempDir(), WithScope(scope))

	_, err := c.Import(context.Background(), makeSource(t))
	require.NoError(t, err)
	require.Equal(t, 1, scope.acquired)
	require.Equal(t, 1, scope.released)
}

func TestImport_ReleasesScopeOnFailure(t *testing.T) {
	root := t.TempDir()
	scope := &countingScope{}
	c := New(root, WithScope(scope))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Import(ctx, makeSource(t))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, scope.acquired)
	require.Equal(t, 1, scope.released)
	require.Empty(t, listRoot(t, root), "no staging or dataset directory left behind")
}

func TestImport_AcquireFailureDoesNotRelease(t *testing.T) {
	scope := &countingScope{fail: errors.New("denied")}
	c := New(t.TempDir(), WithScope(scope))

	_, err := c.Import(context.Background(), makeSource(t))
	require.ErrorContains(t, err, "denied")
	require.Zero(t, scope.released)
}

func TestImport_MissingSource(t *testing.T) {
	root := t.TempDir()
	c := New(root)

	_, err := c.Import(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, listRoot(t, root))
}

func TestImport_CollisionIsFatal(t *testing.T) {
	root := t.TempDir()
	fixed := uuid.MustParse("0b7d5c8e-54b5-4b8a-9a8c-0f0e3b6b9a11")
	c := New(root, WithIDGenerator(func() uuid.UUID { return fixed }))
	src := makeSource(t)

	first, err := c.Import(context.Background(), src)
	require.NoError(t, err)

	_, err = c.Import(context.Background(), src)
	require.ErrorIs(t, err, os.ErrExist)

	require.Equal(t, []string{fixed.String()}, listRoot(t, root))
	_, err = os.Stat(filepath.Join(first.Directory, "1-01"))
	require.NoError(t, err)
}

func TestImport_UncreatableRoot(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	c := New(filepath.Join(file, "root"))

	_, err := c.Import(context.Background(), makeSource(t))
	require.ErrorIs(t, err, domain.ErrNoCacheDirectory)
}

func TestRemove(t *testing.T) {
	c := New(t.TempDir())
	ds, err := c.Import(context.Background(), makeSource(t))
	require.NoError(t, err)

	require.NoError(t, c.Remove(context.Background(), ds))
	_, err = os.Stat(ds.Directory)
	require.True(t, os.IsNotExist(err))

	err = c.Remove(context.Background(), ds)
	require.ErrorIs(t, err, domain.ErrDatasetNotFound)
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	c := New(root)
	src := makeSource(t)

	a, err := c.Import(context.Background(), src)
	require.NoError(t, err)
	b, err := c.Import(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, os.Mkdir(filepath.Join(root, "previews"), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, stagingPrefix+uuid.NewString()), 0o750))
	require.NoError(t, os.Mkdir(filepath.Join(root, "0B7D5C8E-54B5-4B8A-9A8C-0F0E3B6B9A11"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, uuid.NewString()), nil, 0o600))

	ids, err := c.Scan(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, ids)

	require.NoError(t, c.CleanStaging())
	ids, err = c.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)
}

func TestWithScopedAccess_ReleasesOnError(t *testing.T) {
	scope := &countingScope{}
	boom := errors.New("boom")

	err := WithScopedAccess(scope, "/src", func() error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, scope.released)
}

func TestWithScopedAccess_ReleasesOnPanic(t *testing.T) {
	scope := &countingScope{}

	require.Panics(t, func() {
		_ = WithScopedAccess(scope, "/src", func() error { panic("copy exploded") })
	})
	require.Equal(t, 1, scope.released)
}

func TestDirScope_RejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := DirScope{}.Acquire(file)
	require.Error(t, err)
}
