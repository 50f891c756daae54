// Package app is the application service: the operations the HTTP API and
// the CLI expose, composed from the dataset cache, the slice index, the
// reconstruction pipeline and the entity registry.
//
// Mutable state (the live dataset list and the entity registry) belongs to
// an owner goroutine and changes only through owner commands. Blocking work
// (copies, scans, decodes, reconstructions) runs on the worker pool, and
// its results are handed back to the owner before anyone else observes them.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/dcmcache/internal/config"
	"github.com/zjrosen/dcmcache/internal/datasetcache"
	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/pubsub"
	"github.com/zjrosen/dcmcache/internal/reconstruct"
	"github.com/zjrosen/dcmcache/internal/sliceindex"
	"github.com/zjrosen/dcmcache/internal/tracing"
	"github.com/zjrosen/dcmcache/internal/workers"
)

// Recorder receives gauge and counter updates. Implemented by metrics.Metrics.
type Recorder interface {
	SetDatasets(n int)
	SetEntities(n int)
	ObserveImport(err error)
	owner.Observer
}

// Deps are the components a Service composes.
type Deps struct {
	Cache    *datasetcache.Cache
	Catalog  domain.DatasetRepository
	Index    *sliceindex.Index
	Pipeline *reconstruct.Pipeline
	Pool     *workers.Pool
	Bus      *pubsub.Broker[any]

	// Optional.
	Tracer   trace.Tracer
	Recorder Recorder
	Source   owner.CommandSource

	// DefaultThreshold is used when a request names no threshold.
	// Nil selects config.DefaultThreshold.
	DefaultThreshold *float64
}

// Service implements the exposed operations.
type Service struct {
	cache     *datasetcache.Cache
	catalog   domain.DatasetRepository
	index     *sliceindex.Index
	pipeline  *reconstruct.Pipeline
	pool      *workers.Pool
	bus       *pubsub.Broker[any]
	tracer    trace.Tracer
	recorder  Recorder
	source    owner.CommandSource
	threshold float64

	owner   *owner.Processor
	state   *state
	closers []func() error

	// inflight tracks attach tasks that outlive their caller.
	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Service. Call Start before using it.
func New(deps Deps) *Service {
	tracer := deps.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	source := deps.Source
	if source == "" {
		source = owner.SourceInternal
	}
	bus := deps.Bus
	if bus == nil {
		bus = pubsub.NewBroker[any]()
	}

	middlewares := []owner.Middleware{
		owner.NewLoggingMiddleware(),
		tracing.NewMiddleware(tracer),
	}
	if deps.Recorder != nil {
		middlewares = append(middlewares, owner.NewMetricsMiddleware(deps.Recorder))
	}

	s := &Service{
		cache:     deps.Cache,
		catalog:   deps.Catalog,
		index:     deps.Index,
		pipeline:  deps.Pipeline,
		pool:      deps.Pool,
		bus:       bus,
		tracer:    tracer,
		recorder:  deps.Recorder,
		source:    source,
		threshold: config.DefaultThreshold,
		owner: owner.NewProcessor(
			owner.WithEventBus(bus),
			owner.WithMiddleware(middlewares...),
		),
		state: newState(deps.Recorder),
	}
	if deps.DefaultThreshold != nil {
		s.threshold = *deps.DefaultThreshold
	}
	s.state.register(s.owner)
	return s
}

// Start runs the owner goroutine until Close.
func (s *Service) Start(ctx context.Context) error {
	go s.owner.Run(context.WithoutCancel(ctx))
	return s.owner.WaitForReady(ctx)
}

// Close waits for in-flight attaches, drains the owner, stops the worker
// pool and the event bus, then runs the functions registered with OnClose.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.inflight.Wait()
		s.owner.Drain()
		s.pool.Close()
		if err := s.index.Close(context.Background()); err != nil {
			errs = append(errs, err)
		}
		s.bus.Close()
		for i := len(s.closers) - 1; i >= 0; i-- {
			errs = append(errs, s.closers[i]())
		}
	})
	return errors.Join(errs...)
}

// OnClose registers fn to run at the end of Close, in reverse order.
func (s *Service) OnClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Root returns the cache root.
func (s *Service) Root() string {
	return s.cache.Root()
}

// Subscribe streams lifecycle events (DatasetEvent, EntityEvent and
// owner.CommandErrorEvent payloads) until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context) <-chan pubsub.Event[any] {
	return s.bus.Subscribe(ctx)
}

// exec submits cmd to the owner and waits for its single result.
func exec[T any](ctx context.Context, s *Service, cmd owner.Command) (T, error) {
	var zero T
	tracing.Link(ctx, cmd)
	res, err := s.owner.SubmitAndWait(ctx, cmd)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", cmd.Type(), err)
	}
	if res.Error != nil {
		return zero, res.Error
	}
	if res.Data == nil {
		return zero, nil
	}
	data, ok := res.Data.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result %T", cmd.Type(), res.Data)
	}
	return data, nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, tracing.SpanPrefixService+name)
}
