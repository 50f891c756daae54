// Package api exposes the dataset cache over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/dcmcache/internal/app"
	"github.com/zjrosen/dcmcache/internal/domain"
	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/pubsub"
	"github.com/zjrosen/dcmcache/internal/registry"
	"github.com/zjrosen/dcmcache/internal/sliceindex"
)

// Service is the subset of app.Service the API calls.
type Service interface {
	Import(ctx context.Context, source string) (domain.Dataset, error)
	Remove(ctx context.Context, id uuid.UUID) error
	ListDatasets(ctx context.Context) ([]domain.Dataset, error)
	ListValidSlices(ctx context.Context, id uuid.UUID) ([]*sliceindex.Slice, error)
	SliceMetadata(ctx context.Context, id uuid.UUID, name string) (*domain.Metadata, error)
	SlicePreview(ctx context.Context, id uuid.UUID, name string) (*sliceindex.Preview, error)
	Reconstruct(ctx context.Context, id uuid.UUID, threshold *float64) (app.Mesh, error)
	Attach(ctx context.Context, id uuid.UUID, threshold *float64) (registry.Entity, error)
	Detach(ctx context.Context, id uuid.UUID) (registry.Entity, error)
	SetInteractionEnabled(ctx context.Context, id uuid.UUID, enabled bool) (registry.Entity, error)
	Entities(ctx context.Context) ([]registry.Entity, error)
	Subscribe(ctx context.Context) <-chan pubsub.Event[any]
}

// RequestObserver records HTTP request outcomes. Implemented by metrics.Metrics.
type RequestObserver interface {
	ObserveRequest(method, route string, code int, d time.Duration)
}

// Options configure a Server.
type Options struct {
	// ServiceName labels HTTP spans.
	ServiceName    string
	TracerProvider trace.TracerProvider
	Observer       RequestObserver
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
}

// Server routes HTTP requests to a Service.
type Server struct {
	svc    Service
	router *gin.Engine
}

// NewServer builds the router.
func NewServer(svc Service, opts Options) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = "dcmcache"
	}

	router := gin.New()
	router.Use(gin.Recovery())
	otelOpts := []otelgin.Option{}
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelgin.WithTracerProvider(opts.TracerProvider))
	}
	router.Use(otelgin.Middleware(opts.ServiceName, otelOpts...))
	router.Use(requestLogger(opts.Observer))

	s := &Server{svc: svc, router: router}
	s.registerRoutes(opts.MetricsHandler)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatAPI, "Listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request and reports it to obs under its route
// template, so ids do not explode metric cardinality.
func requestLogger(obs RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		if obs != nil {
			obs.ObserveRequest(c.Request.Method, route, status, elapsed)
		}
		if status >= http.StatusInternalServerError {
			log.Warn(log.CatAPI, "Request failed", "method", c.Request.Method, "route", route, "status", status, "duration", elapsed)
			return
		}
		log.Debug(log.CatAPI, "Request", "method", c.Request.Method, "route", route, "status", status, "duration", elapsed)
	}
}
