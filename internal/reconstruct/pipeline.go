// Package reconstruct turns a dataset's slices into a cached surface mesh.
package reconstruct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
)

// Reconstructor extracts an isosurface from the slices in dir and returns the
// path of an intermediate mesh.
type Reconstructor interface {
	ExtractIsosurface(ctx context.Context, dir, name string, threshold float64) (string, error)
}

// Converter converts an intermediate mesh into binary USD at output.
type Converter interface {
	Convert(ctx context.Context, input, output string) (string, error)
}

// Observer receives pipeline outcomes. Used for metrics.
type Observer interface {
	ObserveReconstruction(outcome string, d time.Duration)
}

// Outcomes reported to an Observer.
const (
	OutcomeCached    = "cached"
	OutcomeBuilt     = "built"
	OutcomeReconFail = "reconstruction_failed"
	OutcomeConvFail  = "conversion_failed"
)

// Pipeline produces or reuses the mesh for a dataset. Meshes are cached at
// <meshDir>/<name>.usd keyed by dataset name only, so a cached mesh is
// returned regardless of the requested threshold.
type Pipeline struct {
	meshDir       string
	reconstructor Reconstructor
	converter     Converter
	observer      Observer
	group         singleflight.Group
}

// NewPipeline creates a Pipeline caching meshes in meshDir.
func NewPipeline(meshDir string, r Reconstructor, c Converter) *Pipeline {
	return &Pipeline{meshDir: meshDir, reconstructor: r, converter: c}
}

// WithObserver sets an outcome observer.
func (p *Pipeline) WithObserver(o Observer) *Pipeline {
	p.observer = o
	return p
}

// MeshPath returns the cache path for a dataset name.
func (p *Pipeline) MeshPath(name string) string {
	return filepath.Join(p.meshDir, meshFileName(name))
}

// Cached returns the mesh path if a valid mesh is cached for name.
func (p *Pipeline) Cached(name string) (string, bool) {
	path := p.MeshPath(name)
	return path, IsValidMesh(path)
}

// Reconstruct returns the mesh for ds, building it at threshold on a cache
// miss. Concurrent calls for the same name share one build.
func (p *Pipeline) Reconstruct(ctx context.Context, ds domain.Dataset, threshold float64) (string, error) {
	start := time.Now()
	if path, ok := p.Cached(ds.Name); ok {
		log.Debug(log.CatRecon, "Mesh cache hit", "name", ds.Name)
		p.observe(OutcomeCached, start)
		return path, nil
	}

	v, err, shared := p.group.Do(ds.Name, func() (any, error) {
		if path, ok := p.Cached(ds.Name); ok {
			return path, nil
		}
		return p.build(ctx, ds, threshold)
	})
	if shared {
		log.Debug(log.CatRecon, "Joined in-flight reconstruction", "name", ds.Name)
	}
	if err != nil {
		return "", err
	}
	p.observe(OutcomeBuilt, start)
	return v.(string), nil
}

func (p *Pipeline) build(ctx context.Context, ds domain.Dataset, threshold float64) (string, error) {
	log.Info(log.CatRecon, "Reconstructing mesh", "dataset", ds.ID, "name", ds.Name, "threshold", threshold)
	start := time.Now()

	intermediate, err := p.reconstructor.ExtractIsosurface(ctx, ds.Directory, ds.Name, threshold)
	if err != nil {
		p.observe(OutcomeReconFail, start)
		return "", fmt.Errorf("%w: %w", domain.ErrReconstructionFailed, err)
	}
	if intermediate == "" {
		p.observe(OutcomeReconFail, start)
		return "", fmt.Errorf("%w: no output", domain.ErrReconstructionFailed)
	}
	defer func() { _ = os.Remove(intermediate) }()
	if _, err := os.Stat(intermediate); err != nil {
		p.observe(OutcomeReconFail, start)
		return "", fmt.Errorf("%w: %w", domain.ErrReconstructionFailed, err)
	}

	dest := p.MeshPath(ds.Name)
	if err := p.convert(ctx, intermediate, dest); err != nil {
		p.observe(OutcomeConvFail, start)
		return "", fmt.Errorf("%w: %w", domain.ErrConversionFailed, err)
	}

	log.Info(log.CatRecon, "Mesh ready", "name", ds.Name, "path", dest, "duration", time.Since(start))
	return dest, nil
}

// convert writes to a temp file beside dest, validates it, then renames it
// into place. dest is never left holding a partial file.
func (p *Pipeline) convert(ctx context.Context, intermediate, dest string) error {
	if err := os.MkdirAll(p.meshDir, 0o750); err != nil {
		return fmt.Errorf("creating mesh directory: %w", err)
	}
	tmp, err := os.CreateTemp(p.meshDir, ".convert-*"+MeshExtension)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	out, err := p.converter.Convert(ctx, intermediate, tmpPath)
	if err != nil {
		return err
	}
	if out != tmpPath {
		defer func() { _ = os.Remove(out) }()
	}
	if !IsValidMesh(out) {
		return fmt.Errorf("output is not a %s file", USDCHeader)
	}
	return os.Rename(out, dest)
}

// Evict removes the cached mesh for name.
func (p *Pipeline) Evict(name string) error {
	err := os.Remove(p.MeshPath(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("evicting mesh: %w", err)
	}
	log.Debug(log.CatRecon, "Evicted mesh", "name", name)
	return nil
}

func (p *Pipeline) observe(outcome string, start time.Time) {
	if p.observer != nil {
		p.observer.ObserveReconstruction(outcome, time.Since(start))
	}
}
