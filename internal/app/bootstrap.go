package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/tracing"
	"github.com/zjrosen/dcmcache/internal/watcher"
	"github.com/zjrosen/dcmcache/internal/workers"
)

// Bootstrap rebuilds the live list from the dataset directories under the
// cache root. Leftovers of interrupted imports are removed, directories the
// catalog does not know are recorded under their id, and catalog rows
// without a directory are deleted.
func (s *Service) Bootstrap(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "bootstrap")
	defer func() { tracing.End(span, err) }()

	if err := s.cache.CleanStaging(); err != nil {
		log.Warn(log.CatCache, "Failed to clean staging directories", "error", err)
	}
	n, err := s.reconcile(ctx, owner.SourceInternal, true)
	if err != nil {
		return err
	}
	log.Info(log.CatCache, "Bootstrapped dataset cache", "root", s.cache.Root(), "datasets", n)
	return nil
}

// Reconcile brings the live list in line with the directories on disk.
func (s *Service) Reconcile(ctx context.Context) error {
	_, err := s.reconcile(ctx, s.source, false)
	return err
}

func (s *Service) reconcile(ctx context.Context, source owner.CommandSource, persist bool) (int, error) {
	scannedAt := time.Now().UTC().Truncate(time.Millisecond)
	found, err := workers.Run(ctx, s.pool, func(ctx context.Context) ([]domain.Dataset, error) {
		return s.discover(ctx, persist)
	})
	if err != nil {
		return 0, err
	}

	removed, err := exec[[]removal](ctx, s, NewReconcileCommand(source, found, scannedAt))
	if err != nil {
		return 0, err
	}
	s.cleanup(context.WithoutCancel(ctx), removed)
	return len(found), nil
}

// discover lists the datasets on disk, ordered by import time. Names and
// import times come from the catalog when it has them.
func (s *Service) discover(ctx context.Context, persist bool) ([]domain.Dataset, error) {
	ids, err := s.cache.Scan(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	known := make(map[uuid.UUID]domain.Dataset, len(rows))
	for _, ds := range rows {
		known[ds.ID] = ds
	}

	root := s.cache.Root()
	found := make([]domain.Dataset, 0, len(ids))
	for _, id := range ids {
		if ds, ok := known[id]; ok {
			ds.Directory = domain.DatasetDirectory(root, id)
			found = append(found, ds)
			delete(known, id)
			continue
		}

		ds := domain.NewDataset(root, id, id.String())
		if info, err := os.Stat(ds.Directory); err == nil {
			ds.ImportedAt = info.ModTime().UTC().Truncate(time.Millisecond)
		}
		if persist {
			if err := s.catalog.Save(ctx, ds); err != nil {
				return nil, fmt.Errorf("recording %s: %w", id, err)
			}
			log.Info(log.CatDB, "Recorded unknown dataset directory", "id", id)
		}
		found = append(found, ds)
	}

	if persist {
		var errs []error
		for id := range known {
			errs = append(errs, s.catalog.Delete(ctx, id))
		}
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("pruning catalog: %w", err)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].ImportedAt.Before(found[j].ImportedAt)
	})
	return found, nil
}

// Watch reconciles the live list whenever dataset directories appear in or
// disappear from the cache root, until ctx is cancelled.
func (s *Service) Watch(ctx context.Context, cfg watcher.Config) error {
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return err
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if _, err := s.reconcile(ctx, owner.SourceWatcher, false); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.ErrorErr(log.CatWatcher, "Reconcile failed", err)
			}
		}
	}
}
