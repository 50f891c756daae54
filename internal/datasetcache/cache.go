// Package datasetcache owns the identity-addressed copies of imported
// datasets under the cache root.
package datasetcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
)

const stagingPrefix = ".staging-"

// Cache stores each imported dataset at <root>/<uuid>.
type Cache struct {
	root  string
	scope Scope
	newID func() uuid.UUID
}

// Option configures a Cache.
type Option func(*Cache)

// WithScope sets how source directories are acquired. Defaults to DirScope.
func WithScope(s Scope) Option {
	return func(c *Cache) { c.scope = s }
}

// WithIDGenerator overrides uuid.New.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(c *Cache) { c.newID = fn }
}

// New creates a Cache rooted at root.
func New(root string, opts ...Option) *Cache {
	c := &Cache{
		root:  root,
		scope: DirScope{},
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the cache root.
func (c *Cache) Root() string {
	return c.root
}

// Resolve returns the directory for ds.
func (c *Cache) Resolve(ds domain.Dataset) string {
	return domain.DatasetDirectory(c.root, ds.ID)
}

// Import copies source into a fresh identity. The copy is staged and renamed
// into place, so a failed import never leaves a visible dataset directory.
func (c *Cache) Import(ctx context.Context, source string) (domain.Dataset, error) {
	source = filepath.Clean(source)
	if err := os.MkdirAll(c.root, 0o750); err != nil {
		return domain.Dataset{}, fmt.Errorf("%w: %w", domain.ErrNoCacheDirectory, err)
	}

	id := c.newID()
	ds := domain.NewDataset(c.root, id, filepath.Base(source))

	err := WithScopedAccess(c.scope, source, func() error {
		return c.stageAndCommit(ctx, source, id)
	})
	if err != nil {
		log.ErrorErr(log.CatCache, "Import failed", err, "source", source, "id", id)
		return domain.Dataset{}, err
	}

	log.Info(log.CatCache, "Imported dataset", "id", id, "name", ds.Name, "source", source)
	return ds, nil
}

func (c *Cache) stageAndCommit(ctx context.Context, source string, id uuid.UUID) (err error) {
	staging := filepath.Join(c.root, stagingPrefix+id.String())
	if err := os.Mkdir(staging, 0o750); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := copyTree(ctx, source, staging); err != nil {
		return fmt.Errorf("copying %s: %w", source, err)
	}

	final := domain.DatasetDirectory(c.root, id)
	if _, statErr := os.Lstat(final); statErr == nil {
		return fmt.Errorf("dataset directory %s: %w", final, fs.ErrExist)
	}
	if err := os.Rename(staging, final); err != nil {
		return fmt.Errorf("committing dataset: %w", err)
	}
	return nil
}

// copyTree copies regular files and directories from src into dst, which
// must already exist. Other entry types are skipped.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			return os.Mkdir(target, 0o750)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			log.Debug(log.CatCache, "Skipping non-regular entry", "path", path, "mode", d.Type().String())
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: walking the import source
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // G304: inside staging dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Remove deletes the dataset directory recursively.
func (c *Cache) Remove(ctx context.Context, ds domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := c.Resolve(ds)
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", domain.ErrDatasetNotFound, ds.ID, err)
		}
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	log.Info(log.CatCache, "Removed dataset", "id", ds.ID, "name", ds.Name)
	return nil
}

// Scan lists the ids of dataset directories present under the root, sorted
// by their canonical text. Staging directories and other entries are ignored.
func (c *Cache) Scan(ctx context.Context) ([]uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning cache root: %w", err)
	}

	var ids []uuid.UUID
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := ParseDirName(e.Name())
		if !ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// ParseDirName reports whether name is a canonical dataset directory name.
func ParseDirName(name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(name)
	if err != nil || id.String() != name {
		return uuid.Nil, false
	}
	return id, true
}

// CleanStaging removes leftovers from interrupted imports.
func (c *Cache) CleanStaging() error {
	matches, err := filepath.Glob(filepath.Join(c.root, stagingPrefix+"*"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
