package paths

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dcmcache/internal/domain"
)

func TestResolveCacheRoot_Configured(t *testing.T) {
	want := filepath.Join(t.TempDir(), "nested", "cache")

	got, err := ResolveCacheRoot(want)
	require.NoError(t, err)
	require.Equal(t, want, got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestResolveCacheRoot_FallsBackToUserCacheDir(t *testing.T) {
	base := t.TempDir()
	orig := userCacheDir
	userCacheDir = func() (string, error) { return base, nil }
	t.Cleanup(func() { userCacheDir = orig })

	got, err := ResolveCacheRoot("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "dcmcache"), got)
}

func TestResolveCacheRoot_NoUserCacheDir(t *testing.T) {
	orig := userCacheDir
	userCacheDir = func() (string, error) { return "", errors.New("$HOME is not defined") }
	t.Cleanup(func() { userCacheDir = orig })

	_, err := ResolveCacheRoot("")
	require.ErrorIs(t, err, domain.ErrNoCacheDirectory)
}

func TestResolveCacheRoot_Uncreatable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	_, err := ResolveCacheRoot(filepath.Join(file, "cache"))
	require.ErrorIs(t, err, domain.ErrNoCacheDirectory)
}

func TestReserved(t *testing.T) {
	require.True(t, Reserved("previews"))
	require.True(t, Reserved("meshes"))
	require.True(t, Reserved("catalog.db-wal"))
	require.False(t, Reserved("0b7d5c8e-54b5-4b8a-9a8c-0f0e3b6b9a11"))
}
