package owner

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Command is an explicit intent to change owner state.
type Command interface {
	// ID returns a unique command identifier for tracing/correlation.
	ID() string
	// Type returns the command type for routing to handlers.
	Type() CommandType
	// Validate checks command preconditions before execution.
	Validate() error
	// CreatedAt returns when the command was created.
	CreatedAt() time.Time
}

// CommandType identifies the kind of command for handler routing.
type CommandType string

// String returns the string representation of the CommandType.
func (ct CommandType) String() string {
	return string(ct)
}

// CommandSource identifies where the command originated.
type CommandSource string

const (
	// SourceAPI indicates the command came from an HTTP request.
	SourceAPI CommandSource = "api"
	// SourceCLI indicates the command came from a CLI invocation.
	SourceCLI CommandSource = "cli"
	// SourceWatcher indicates the command came from the cache directory watcher.
	SourceWatcher CommandSource = "watcher"
	// SourceInternal indicates the command was system-generated (e.g., bootstrap).
	SourceInternal CommandSource = "internal"
)

// BaseCommand provides common fields for all commands.
// Concrete command types should embed this struct.
type BaseCommand struct {
	id          string
	cmdType     CommandType
	createdAt   time.Time
	source      CommandSource
	spanContext trace.SpanContext
}

// NewBaseCommand creates a BaseCommand with a generated UUID and current timestamp.
func NewBaseCommand(cmdType CommandType, source CommandSource) BaseCommand {
	return BaseCommand{
		id:        uuid.New().String(),
		cmdType:   cmdType,
		createdAt: time.Now(),
		source:    source,
	}
}

// ID returns the unique command identifier.
func (b *BaseCommand) ID() string {
	return b.id
}

// Type returns the command type for handler routing.
func (b *BaseCommand) Type() CommandType {
	return b.cmdType
}

// CreatedAt returns when the command was created.
func (b *BaseCommand) CreatedAt() time.Time {
	return b.createdAt
}

// Source returns the origin of this command.
func (b *BaseCommand) Source() CommandSource {
	return b.source
}

// TraceID returns the trace ID of the attached span context, if any.
func (b *BaseCommand) TraceID() string {
	if b.spanContext.IsValid() {
		return b.spanContext.TraceID().String()
	}
	return ""
}

// SpanContext returns the OpenTelemetry span context for trace propagation.
func (b *BaseCommand) SpanContext() trace.SpanContext {
	return b.spanContext
}

// SetSpanContext links the command to the span of the request that created it.
func (b *BaseCommand) SetSpanContext(sc trace.SpanContext) {
	b.spanContext = sc
}

// Validate is a no-op for BaseCommand. Concrete commands should override this.
func (b *BaseCommand) Validate() error {
	return nil
}

// CommandResult contains the outcome of command execution.
type CommandResult struct {
	// Success indicates whether the command executed successfully.
	Success bool
	// Events contains events to publish on the event bus.
	Events []any
	// Error contains the error if Success is false.
	Error error
	// Data contains optional result data for the caller.
	Data any
}

// SuccessResult returns a successful result carrying data and events.
func SuccessResult(data any, events ...any) *CommandResult {
	return &CommandResult{Success: true, Data: data, Events: events}
}

// Handler processes one command type on the owner goroutine.
type Handler interface {
	Handle(ctx context.Context, cmd Command) (*CommandResult, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, cmd Command) (*CommandResult, error)

// Handle calls f(ctx, cmd).
func (f HandlerFunc) Handle(ctx context.Context, cmd Command) (*CommandResult, error) {
	return f(ctx, cmd)
}

var (
	// ErrQueueFull is returned when the command queue has reached capacity.
	ErrQueueFull = errors.New("command queue is full")
	// ErrNotRunning is returned when commands are submitted before Run or after shutdown.
	ErrNotRunning = errors.New("owner is not running")
	// ErrUnknownCommandType is returned when no handler is registered for a command.
	ErrUnknownCommandType = errors.New("unknown command type")
	// ErrHandlerPanicked is returned when a handler panics.
	ErrHandlerPanicked = errors.New("command handler panicked")
)
