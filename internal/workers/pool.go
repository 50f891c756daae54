// Package workers runs blocking work (decoding, reconstruction, mesh loading)
// off the owner goroutine with bounded concurrency.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/zjrosen/dcmcache/internal/log"
)

// DefaultMaxWorkers is the default number of tasks allowed to run at once.
const DefaultMaxWorkers = 4

// ErrPoolClosed is returned when work is submitted to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// ErrTaskPanicked is returned when a task panics. The panic is recovered and
// logged with its stack.
var ErrTaskPanicked = errors.New("worker task panicked")

// Observer is notified as tasks start and finish. Used for metrics.
type Observer interface {
	TaskStarted()
	TaskFinished(err error)
}

// Config holds configuration for the pool.
type Config struct {
	MaxWorkers int // Maximum concurrent tasks (default: 4)
	Observer   Observer
}

// Pool bounds how many tasks run concurrently. Callers block in Do until
// their task has run; the pool never queues work on its own goroutines.
type Pool struct {
	slots    chan struct{}
	observer Observer
	closed   atomic.Bool
	active   atomic.Int64
	wg       sync.WaitGroup
	mu       sync.RWMutex
}

// New creates a pool from cfg.
func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	return &Pool{
		slots:    make(chan struct{}, cfg.MaxWorkers),
		observer: cfg.Observer,
	}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Do waits for a free slot, runs fn with ctx and returns its error. It
// returns ctx.Err() if ctx ends before a slot frees up, ErrPoolClosed after
// Close and ErrTaskPanicked if fn panics.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	// Hold the read lock while registering with wg so Close cannot start
	// waiting between the closed check and wg.Add.
	p.mu.RLock()
	if p.closed.Load() {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()
	defer p.wg.Done()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-p.slots }()

	return p.run(ctx, fn)
}

func (p *Pool) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	p.active.Add(1)
	if p.observer != nil {
		p.observer.TaskStarted()
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatWorkers, "Worker panic recovered",
				"panic", r,
				"stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
		}
		p.active.Add(-1)
		if p.observer != nil {
			p.observer.TaskFinished(err)
		}
	}()

	return fn(ctx)
}

// Close rejects new work and waits for running tasks to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	log.Debug(log.CatWorkers, "Closing worker pool", "active", p.Active())
	p.wg.Wait()
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
