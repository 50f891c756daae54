// Package sliceindex enumerates and validates the slice files of a dataset
// and keeps their memoized decode and metadata results.
package sliceindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/dcmcache/internal/cachemanager"
	"github.com/zjrosen/dcmcache/internal/dicomkit"
	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/paths"
)

// DefaultConcurrency bounds parallel validation within one listing.
const DefaultConcurrency = 8

// arena holds the Slice objects of one dataset, keyed by file name.
type arena struct {
	mu     sync.Mutex
	slices map[string]*Slice
}

func newArena() *arena {
	return &arena{slices: make(map[string]*Slice)}
}

// Index lists valid slices per dataset.
type Index struct {
	root        string
	factory     dicomkit.Factory
	arenas      cachemanager.CacheManager[string, *arena]
	concurrency int
}

// Option configures an Index.
type Option func(*Index)

// WithConcurrency sets the validation fan-out.
func WithConcurrency(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.concurrency = n
		}
	}
}

// New creates an Index. Previews are stored under root.
func New(root string, factory dicomkit.Factory, opts ...Option) *Index {
	ix := &Index{
		root:        root,
		factory:     factory,
		arenas:      cachemanager.NewInMemoryCacheManager[string, *arena]("slice-arenas", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// ListValidSlices returns the dataset's valid slices sorted by file name in
// byte order. Files the toolkit rejects are skipped silently. Repeated calls
// return the same *Slice for the same file.
func (ix *Index) ListValidSlices(ctx context.Context, ds domain.Dataset) ([]*Slice, error) {
	entries, err := os.ReadDir(ds.Directory)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", ds.Directory, err)
	}

	toolkit, err := ix.factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrToolkitInitFailed, err)
	}

	candidates := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			candidates = append(candidates, e.Name())
		}
	}

	valid := make([]bool, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.concurrency)
	for i, name := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			valid[i] = toolkit.IsValid(gctx, filepath.Join(ds.Directory, name))
			if !valid[i] {
				log.Debug(log.CatSlices, "Skipping invalid slice", "dataset", ds.ID, "file", name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(candidates))
	for i, name := range candidates {
		if valid[i] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	a := ix.arenas.GetOrSet(ctx, ds.ID.String(), newArena, cachemanager.NoExpiration)
	previewDir := filepath.Join(paths.PreviewsDir(ix.root), ds.ID.String())

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*Slice, 0, len(names))
	keep := make(map[string]*Slice, len(names))
	for _, name := range names {
		s, ok := a.slices[name]
		if !ok {
			s = newSlice(name, filepath.Join(ds.Directory, name), filepath.Join(previewDir, name+".bmp"), toolkit)
		}
		keep[name] = s
		out = append(out, s)
	}
	a.slices = keep

	log.Debug(log.CatSlices, "Listed slices", "dataset", ds.ID, "valid", len(out), "entries", len(entries))
	return out, nil
}

// Lookup returns the valid slice named name, or ErrFileNotFound.
func (ix *Index) Lookup(ctx context.Context, ds domain.Dataset, name string) (*Slice, error) {
	slices, err := ix.ListValidSlices(ctx, ds)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(slices), func(i int) bool { return slices[i].Name() >= name })
	if i < len(slices) && slices[i].Name() == name {
		return slices[i], nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
}

// Close drops every arena. Previews on disk are kept for the next run.
func (ix *Index) Close(ctx context.Context) error {
	n := ix.arenas.Len()
	if err := ix.arenas.Flush(ctx); err != nil {
		return fmt.Errorf("flushing slice arenas: %w", err)
	}
	log.Debug(log.CatSlices, "Released slice arenas", "count", n)
	return nil
}

// Evict drops the dataset's arena and its cached previews.
func (ix *Index) Evict(ctx context.Context, id uuid.UUID) error {
	_ = ix.arenas.Delete(ctx, id.String())
	dir := filepath.Join(paths.PreviewsDir(ix.root), id.String())
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing previews: %w", err)
	}
	return nil
}
