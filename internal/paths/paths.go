// Package paths resolves the on-disk locations dcmcache uses.
package paths

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/dcmcache/internal/domain"
)

const (
	appDir      = "dcmcache"
	previewsDir = "previews"
	meshesDir   = "meshes"
	catalogFile = "catalog.db"
)

// userCacheDir is swapped in tests.
var userCacheDir = os.UserCacheDir

// ResolveCacheRoot returns the configured root, or <user cache dir>/dcmcache
// when configured is empty. The directory is created if missing.
func ResolveCacheRoot(configured string) (string, error) {
	root := configured
	if root == "" {
		base, err := userCacheDir()
		if err != nil {
			return "", fmt.Errorf("%w: %w", domain.ErrNoCacheDirectory, err)
		}
		root = filepath.Join(base, appDir)
	}

	root, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNoCacheDirectory, err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrNoCacheDirectory, err)
	}
	return root, nil
}

// PreviewsDir is where decoded slice previews are cached.
func PreviewsDir(root string) string {
	return filepath.Join(root, previewsDir)
}

// MeshesDir is where reconstructed meshes are cached.
func MeshesDir(root string) string {
	return filepath.Join(root, meshesDir)
}

// CatalogPath is the sqlite catalog location.
func CatalogPath(root string) string {
	return filepath.Join(root, catalogFile)
}

// Reserved reports whether a top-level entry in the cache root belongs to
// dcmcache itself rather than to a dataset.
func Reserved(name string) bool {
	switch name {
	case previewsDir, meshesDir, catalogFile, catalogFile + "-wal", catalogFile + "-shm":
		return true
	}
	return false
}
