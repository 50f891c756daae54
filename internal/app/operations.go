package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/reconstruct"
	"github.com/zjrosen/dcmcache/internal/registry"
	"github.com/zjrosen/dcmcache/internal/sliceindex"
	"github.com/zjrosen/dcmcache/internal/tracing"
	"github.com/zjrosen/dcmcache/internal/workers"
)

// Import copies source into the cache and makes it live.
func (s *Service) Import(ctx context.Context, source string) (ds domain.Dataset, err error) {
	ctx, span := s.startSpan(ctx, "import")
	defer func() { tracing.End(span, err) }()

	ds, err = workers.Run(ctx, s.pool, func(ctx context.Context) (domain.Dataset, error) {
		ds, err := s.cache.Import(ctx, source)
		if err != nil {
			return domain.Dataset{}, err
		}
		ds.ImportedAt = time.Now().UTC().Truncate(time.Millisecond)
		if err := s.catalog.Save(ctx, ds); err != nil {
			if rmErr := s.cache.Remove(context.WithoutCancel(ctx), ds); rmErr != nil {
				log.ErrorErr(log.CatCache, "Failed to roll back import", rmErr, "id", ds.ID)
			}
			return domain.Dataset{}, fmt.Errorf("recording dataset: %w", err)
		}
		return ds, nil
	})
	if s.recorder != nil {
		s.recorder.ObserveImport(err)
	}
	if err != nil {
		return domain.Dataset{}, err
	}
	span.SetAttributes(
		attribute.String(tracing.AttrDatasetID, ds.ID.String()),
		attribute.String(tracing.AttrDatasetName, ds.Name),
	)

	// The directory exists now; the live list must learn about it even if
	// the caller has gone away.
	return exec[domain.Dataset](context.WithoutCancel(ctx), s, NewAddDatasetCommand(s.source, ds))
}

// Remove deletes a dataset's directory, drops it from the live list and
// purges its entity. If the directory cannot be deleted the dataset stays
// live and the error is returned. A directory that is already gone counts
// as deleted.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := s.startSpan(ctx, "remove")
	span.SetAttributes(attribute.String(tracing.AttrDatasetID, id.String()))
	defer func() { tracing.End(span, err) }()

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return err
	}
	err = s.pool.Do(ctx, func(ctx context.Context) error {
		return s.cache.Remove(ctx, ds)
	})
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn(log.CatCache, "Dataset directory already gone", "id", id, "dir", ds.Directory)
	} else if err != nil {
		return err
	}

	r, err := exec[removal](context.WithoutCancel(ctx), s, NewRemoveDatasetCommand(s.source, id))
	if err != nil {
		return err
	}
	s.cleanup(context.WithoutCancel(ctx), []removal{r})
	return nil
}

// cleanup drops derived artifacts of datasets that left the live list.
// Failures are logged; the datasets are already gone.
func (s *Service) cleanup(ctx context.Context, removed []removal) {
	if len(removed) == 0 {
		return
	}
	err := s.pool.Do(ctx, func(ctx context.Context) error {
		var errs []error
		for _, r := range removed {
			if err := s.catalog.Delete(ctx, r.Dataset.ID); err != nil {
				errs = append(errs, err)
			}
			if err := s.index.Evict(ctx, r.Dataset.ID); err != nil {
				errs = append(errs, err)
			}
			if r.EvictMesh {
				if err := s.pipeline.Evict(r.Dataset.Name); err != nil {
					errs = append(errs, err)
				}
			}
		}
		return errors.Join(errs...)
	})
	if err != nil {
		log.Warn(log.CatCache, "Cleanup after removal incomplete", "datasets", len(removed), "error", err)
	}
}

// ListDatasets returns the live datasets in insertion order.
func (s *Service) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	return exec[[]domain.Dataset](ctx, s, NewListDatasetsCommand(s.source))
}

// Dataset returns one live dataset.
func (s *Service) Dataset(ctx context.Context, id uuid.UUID) (domain.Dataset, error) {
	return s.dataset(ctx, id)
}

func (s *Service) dataset(ctx context.Context, id uuid.UUID) (domain.Dataset, error) {
	return exec[domain.Dataset](ctx, s, NewGetDatasetCommand(s.source, id))
}

// ListValidSlices returns the dataset's valid slices in file name order.
func (s *Service) ListValidSlices(ctx context.Context, id uuid.UUID) (out []*sliceindex.Slice, err error) {
	ctx, span := s.startSpan(ctx, "list_slices")
	span.SetAttributes(attribute.String(tracing.AttrDatasetID, id.String()))
	defer func() { tracing.End(span, err) }()

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return workers.Run(ctx, s.pool, func(ctx context.Context) ([]*sliceindex.Slice, error) {
		return s.index.ListValidSlices(ctx, ds)
	})
}

// SliceMetadata returns the projected metadata of one slice.
func (s *Service) SliceMetadata(ctx context.Context, id uuid.UUID, name string) (md *domain.Metadata, err error) {
	ctx, span := s.startSpan(ctx, "slice_metadata")
	span.SetAttributes(
		attribute.String(tracing.AttrDatasetID, id.String()),
		attribute.String(tracing.AttrSliceName, name),
	)
	defer func() { tracing.End(span, err) }()

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return workers.Run(ctx, s.pool, func(ctx context.Context) (*domain.Metadata, error) {
		slice, err := s.index.Lookup(ctx, ds, name)
		if err != nil {
			return nil, err
		}
		return slice.Metadata(ctx)
	})
}

// SlicePreview returns the decoded preview of one slice.
func (s *Service) SlicePreview(ctx context.Context, id uuid.UUID, name string) (p *sliceindex.Preview, err error) {
	ctx, span := s.startSpan(ctx, "slice_preview")
	span.SetAttributes(
		attribute.String(tracing.AttrDatasetID, id.String()),
		attribute.String(tracing.AttrSliceName, name),
	)
	defer func() { tracing.End(span, err) }()

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return nil, err
	}
	return workers.Run(ctx, s.pool, func(ctx context.Context) (*sliceindex.Preview, error) {
		slice, err := s.index.Lookup(ctx, ds, name)
		if err != nil {
			return nil, err
		}
		return slice.DecodedImage(ctx)
	})
}

// Mesh is a reconstructed mesh and the threshold its request resolved to.
type Mesh struct {
	DatasetID uuid.UUID
	Path      string
	Threshold float64
}

// Reconstruct returns the dataset's mesh, building it on first request.
// A nil threshold selects the configured default.
func (s *Service) Reconstruct(ctx context.Context, id uuid.UUID, requested *float64) (mesh Mesh, err error) {
	threshold := s.resolveThreshold(requested)
	ctx, span := s.startSpan(ctx, "reconstruct")
	span.SetAttributes(
		attribute.String(tracing.AttrDatasetID, id.String()),
		attribute.Float64(tracing.AttrThreshold, threshold),
	)
	defer func() { tracing.End(span, err) }()

	ds, err := s.dataset(ctx, id)
	if err != nil {
		return Mesh{}, err
	}
	path, err := workers.Run(ctx, s.pool, func(ctx context.Context) (string, error) {
		return s.pipeline.Reconstruct(ctx, ds, threshold)
	})
	if err != nil {
		return Mesh{}, err
	}
	span.SetAttributes(attribute.String(tracing.AttrMeshPath, path))
	return Mesh{DatasetID: id, Path: path, Threshold: threshold}, nil
}

type attachOutcome struct {
	entity registry.Entity
	err    error
}

// Attach reconstructs the dataset's mesh and registers it as a live entity.
// A second Attach while one is pending or attached fails with
// ErrEntityAlreadyExists. Once started, the reconstruction runs to
// completion even if ctx is cancelled; cancelling only stops the wait.
func (s *Service) Attach(ctx context.Context, id uuid.UUID, requested *float64) (entity registry.Entity, err error) {
	threshold := s.resolveThreshold(requested)
	ctx, span := s.startSpan(ctx, "attach")
	span.SetAttributes(
		attribute.String(tracing.AttrDatasetID, id.String()),
		attribute.Float64(tracing.AttrThreshold, threshold),
	)
	defer func() { tracing.End(span, err) }()

	pending, err := exec[pendingAttach](ctx, s, NewBeginAttachCommand(s.source, id))
	if err != nil {
		return registry.Entity{}, err
	}

	done := make(chan attachOutcome, 1)
	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		loaded, loadErr := s.loadEntity(bg, pending.Dataset, threshold)
		cmd := NewCompleteAttachCommand(s.source, id, pending.Ticket, loaded, loadErr)
		attached, err := exec[registry.Entity](bg, s, cmd)
		done <- attachOutcome{entity: attached, err: err}
	}()

	select {
	case out := <-done:
		return out.entity, out.err
	case <-ctx.Done():
		return registry.Entity{}, ctx.Err()
	}
}

// loadEntity runs on the worker pool and produces the entity for ds.
func (s *Service) loadEntity(ctx context.Context, ds domain.Dataset, threshold float64) (*registry.Entity, error) {
	return workers.Run(ctx, s.pool, func(ctx context.Context) (*registry.Entity, error) {
		path, err := s.pipeline.Reconstruct(ctx, ds, threshold)
		if err != nil {
			return nil, err
		}
		if !reconstruct.IsValidMesh(path) {
			return nil, fmt.Errorf("%w: loading %s", domain.ErrConversionFailed, path)
		}
		return registry.NewEntity(ds.ID, path), nil
	})
}

// Detach removes the dataset's attached entity.
func (s *Service) Detach(ctx context.Context, id uuid.UUID) (registry.Entity, error) {
	return exec[registry.Entity](ctx, s, NewDetachCommand(s.source, id))
}

// SetInteractionEnabled toggles all gestures of the dataset's attached entity.
func (s *Service) SetInteractionEnabled(ctx context.Context, id uuid.UUID, enabled bool) (registry.Entity, error) {
	return exec[registry.Entity](ctx, s, NewSetInteractionCommand(s.source, id, enabled))
}

// Entities returns the attached entities sorted by name.
func (s *Service) Entities(ctx context.Context) ([]registry.Entity, error) {
	return exec[[]registry.Entity](ctx, s, NewListEntitiesCommand(s.source))
}

func (s *Service) resolveThreshold(requested *float64) float64 {
	if requested != nil {
		return *requested
	}
	return s.threshold
}
