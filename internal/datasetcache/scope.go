package datasetcache

import (
	"fmt"
	"os"
)

// Scope grants temporary access to an externally supplied source directory.
type Scope interface {
	// Acquire obtains access to path. The returned release func must be
	// called exactly once when access is no longer needed.
	Acquire(path string) (release func(), err error)
}

// WithScopedAccess runs fn while holding access to path. Release happens
// exactly once on every exit path, and only if acquisition succeeded.
func WithScopedAccess(scope Scope, path string, fn func() error) (err error) {
	release, err := scope.Acquire(path)
	if err != nil {
		return fmt.Errorf("acquiring access to %s: %w", path, err)
	}
	defer release()
	return fn()
}

// DirScope acquires access by holding an open handle on the directory.
type DirScope struct{}

// Acquire implements Scope.
func (DirScope) Acquire(path string) (func(), error) {
	f, err := os.Open(path) //nolint:gosec // G304: import source is user supplied
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return func() { _ = f.Close() }, nil
}
