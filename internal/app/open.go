package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/dcmcache/internal/config"
	"github.com/zjrosen/dcmcache/internal/datasetcache"
	"github.com/zjrosen/dcmcache/internal/dicomkit"
	"github.com/zjrosen/dcmcache/internal/infrastructure/sqlite"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/paths"
	"github.com/zjrosen/dcmcache/internal/pubsub"
	"github.com/zjrosen/dcmcache/internal/reconstruct"
	"github.com/zjrosen/dcmcache/internal/sliceindex"
	"github.com/zjrosen/dcmcache/internal/workers"
)

type openOptions struct {
	tracer        trace.Tracer
	recorder      Recorder
	source        owner.CommandSource
	factory       dicomkit.Factory
	reconstructor reconstruct.Reconstructor
	converter     reconstruct.Converter
}

// Option customizes Open.
type Option func(*openOptions)

// WithTracer sets the tracer for service and owner spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *openOptions) { o.tracer = t }
}

// WithRecorder sets the metrics sink. When it also observes worker tasks or
// reconstructions it is wired into the pool and the pipeline.
func WithRecorder(r Recorder) Option {
	return func(o *openOptions) { o.recorder = r }
}

// WithSource tags owner commands with where they came from.
func WithSource(src owner.CommandSource) Option {
	return func(o *openOptions) { o.source = src }
}

// WithToolkitFactory replaces the DICOM toolkit.
func WithToolkitFactory(f dicomkit.Factory) Option {
	return func(o *openOptions) { o.factory = f }
}

// WithReconstructionTools replaces the configured external mesh commands.
func WithReconstructionTools(r reconstruct.Reconstructor, c reconstruct.Converter) Option {
	return func(o *openOptions) {
		o.reconstructor = r
		o.converter = c
	}
}

// Open builds, starts and bootstraps a Service from cfg.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	o := openOptions{factory: dicomkit.NewFactory()}
	for _, opt := range opts {
		opt(&o)
	}

	root, err := paths.ResolveCacheRoot(cfg.Cache.Root)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.NewDB(paths.CatalogPath(root))
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	meshDir := paths.MeshesDir(root)
	rc := cfg.Reconstruction
	if o.reconstructor == nil {
		o.reconstructor = reconstruct.NewExecReconstructor(rc.Reconstructor, filepath.Join(meshDir, ".work"), rc.Timeout)
	}
	if o.converter == nil {
		o.converter = reconstruct.NewExecConverter(rc.Converter, rc.Timeout)
	}
	pipeline := reconstruct.NewPipeline(meshDir, o.reconstructor, o.converter)

	poolCfg := workers.Config{MaxWorkers: cfg.Workers.Max}
	if o.recorder != nil {
		if obs, ok := o.recorder.(reconstruct.Observer); ok {
			pipeline.WithObserver(obs)
		}
		if obs, ok := o.recorder.(workers.Observer); ok {
			poolCfg.Observer = obs
		}
	}

	svc := New(Deps{
		Cache:            datasetcache.New(root),
		Catalog:          db.DatasetRepository(),
		Index:            sliceindex.New(root, o.factory),
		Pipeline:         pipeline,
		Pool:             workers.New(poolCfg),
		Bus:              pubsub.NewBroker[any](),
		Tracer:           o.tracer,
		Recorder:         o.recorder,
		Source:           o.source,
		DefaultThreshold: &rc.Threshold,
	})
	svc.OnClose(db.Close)

	if err := svc.Start(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	if err := svc.Bootstrap(ctx); err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("bootstrapping cache: %w", err)
	}
	return svc, nil
}
