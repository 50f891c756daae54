// Package owner provides the single goroutine that owns mutable application
// state. Commands are processed one at a time in FIFO order, so handlers can
// read and write the live dataset list and the entity registry without locks.
package owner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zjrosen/dcmcache/internal/log"
	"github.com/zjrosen/dcmcache/internal/pubsub"
)

// DefaultQueueCapacity is the default buffer size for the command queue.
const DefaultQueueCapacity = 256

// Option configures the Processor.
type Option func(*Processor)

// WithQueueCapacity sets the command queue buffer capacity.
func WithQueueCapacity(capacity int) Option {
	return func(p *Processor) {
		p.queueCapacity = capacity
	}
}

// WithEventBus sets the event bus for publishing command result events.
func WithEventBus(bus *pubsub.Broker[any]) Option {
	return func(p *Processor) {
		p.eventBus = bus
	}
}

// WithMiddleware adds middleware to be applied to all handlers.
// Middleware is applied in order: first middleware wraps outermost.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(p *Processor) {
		p.middlewares = append(p.middlewares, middlewares...)
	}
}

// Processor processes commands sequentially in FIFO order.
type Processor struct {
	queue         chan queueItem
	queueCapacity int

	handlers    map[CommandType]Handler
	middlewares []Middleware
	eventBus    *pubsub.Broker[any]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// submitMu guards sends on queue against Drain closing it.
	submitMu sync.RWMutex
	running  atomic.Bool
	started  atomic.Bool
	readyCh  chan struct{}

	processedCount atomic.Int64
	errorCount     atomic.Int64
}

// queueItem wraps a command with an optional result channel for SubmitAndWait.
type queueItem struct {
	cmd      Command
	resultCh chan *CommandResult // nil for fire-and-forget Submit
}

// NewProcessor creates a Processor with the given options.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		queueCapacity: DefaultQueueCapacity,
		handlers:      make(map[CommandType]Handler),
		readyCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queue = make(chan queueItem, p.queueCapacity)
	return p
}

// RegisterHandler registers a handler for a command type.
// Must be called before Run. The handler is wrapped with all configured middleware.
func (p *Processor) RegisterHandler(cmdType CommandType, handler Handler) {
	p.handlers[cmdType] = ChainMiddleware(handler, p.middlewares...)
}

// Run starts the command processing loop. It blocks until ctx is cancelled,
// Stop is called or Drain finishes. Run can only be called once.
func (p *Processor) Run(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	// Add to wait group BEFORE setting running to avoid race with Drain()
	p.wg.Add(1)
	p.running.Store(true)
	close(p.readyCh)

	defer func() {
		p.running.Store(false)
		p.wg.Done()
	}()

	log.Debug(log.CatOwner, "Owner started", "capacity", p.queueCapacity)

	for {
		select {
		case <-p.ctx.Done():
			return
		case item, ok := <-p.queue:
			if !ok {
				return
			}
			p.processItem(item)
		}
	}
}

// WaitForReady blocks until the processor accepts commands.
func (p *Processor) WaitForReady(ctx context.Context) error {
	select {
	case <-p.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit adds a command to the queue for asynchronous processing.
// Returns ErrQueueFull if the queue is at capacity.
func (p *Processor) Submit(cmd Command) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if !p.running.Load() {
		return ErrNotRunning
	}

	select {
	case p.queue <- queueItem{cmd: cmd}:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitAndWait queues cmd and waits for its result. The result is delivered
// exactly once, through the return value. Handler failures are reported in
// CommandResult.Error; the returned error covers only submission and waiting.
func (p *Processor) SubmitAndWait(ctx context.Context, cmd Command) (*CommandResult, error) {
	resultCh := make(chan *CommandResult, 1)

	p.submitMu.RLock()
	if !p.running.Load() {
		p.submitMu.RUnlock()
		return nil, ErrNotRunning
	}
	select {
	case p.queue <- queueItem{cmd: cmd, resultCh: resultCh}:
		p.submitMu.RUnlock()
	case <-ctx.Done():
		p.submitMu.RUnlock()
		return nil, ctx.Err()
	case <-p.ctx.Done():
		p.submitMu.RUnlock()
		return nil, ErrNotRunning
	}

	select {
	case result := <-resultCh:
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrNotRunning
	}
}

// Stop cancels the processing context and waits for shutdown.
// Pending commands in the queue are NOT processed.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Drain processes all queued commands and then stops.
func (p *Processor) Drain() {
	p.submitMu.Lock()
	if !p.running.Load() {
		p.submitMu.Unlock()
		return
	}
	p.running.Store(false)
	close(p.queue)
	p.submitMu.Unlock()

	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}

// IsRunning returns true if the processor is currently accepting commands.
func (p *Processor) IsRunning() bool {
	return p.running.Load()
}

// ProcessedCount returns the total number of commands processed.
func (p *Processor) ProcessedCount() int64 {
	return p.processedCount.Load()
}

// ErrorCount returns the total number of commands that resulted in errors.
func (p *Processor) ErrorCount() int64 {
	return p.errorCount.Load()
}

// QueueLength returns the current number of pending commands.
func (p *Processor) QueueLength() int {
	return len(p.queue)
}

func (p *Processor) processItem(item queueItem) {
	result := p.processCommand(item.cmd)

	p.processedCount.Add(1)
	if !result.Success {
		p.errorCount.Add(1)
	}

	if item.resultCh != nil {
		item.resultCh <- result
	}
}

// processCommand validates, routes and executes cmd. It never returns nil.
func (p *Processor) processCommand(cmd Command) (result *CommandResult) {
	if err := cmd.Validate(); err != nil {
		p.emitErrorEvent(cmd, err)
		return &CommandResult{Error: err}
	}

	handler, ok := p.handlers[cmd.Type()]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrUnknownCommandType, cmd.Type())
		p.emitErrorEvent(cmd, err)
		return &CommandResult{Error: err}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatOwner, "Command handler panic recovered",
				"command_type", cmd.Type().String(),
				"panic", r,
				"stack", string(debug.Stack()))
			err := fmt.Errorf("%w: %v", ErrHandlerPanicked, r)
			p.emitErrorEvent(cmd, err)
			result = &CommandResult{Error: err}
		}
	}()

	result, err := handler.Handle(p.ctx, cmd)
	if err != nil {
		p.emitErrorEvent(cmd, err)
		return &CommandResult{Error: err}
	}
	if result == nil {
		result = &CommandResult{Success: true}
	}

	p.emitEvents(result.Events)
	return result
}

func (p *Processor) emitEvents(events []any) {
	if p.eventBus == nil {
		return
	}
	for _, event := range events {
		p.eventBus.Publish(pubsub.UpdatedEvent, event)
	}
}

func (p *Processor) emitErrorEvent(cmd Command, err error) {
	if p.eventBus == nil {
		return
	}
	p.eventBus.Publish(pubsub.UpdatedEvent, CommandErrorEvent{
		CommandID:   cmd.ID(),
		CommandType: cmd.Type(),
		Error:       err,
		Timestamp:   time.Now(),
	})
}

// CommandErrorEvent is published when a command fails validation, routing or
// handling.
type CommandErrorEvent struct {
	CommandID   string
	CommandType CommandType
	Error       error
	Timestamp   time.Time
}
