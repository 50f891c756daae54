package owner

import (
	"context"
	"time"

	"github.com/zjrosen/dcmcache/internal/log"
)

// Middleware wraps a Handler to add additional behavior.
type Middleware func(Handler) Handler

// ChainMiddleware applies middlewares to a handler in reverse order.
// The first middleware in the list will be the outermost wrapper.
func ChainMiddleware(handler Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// Observer is notified after every handled command. Used for metrics.
type Observer interface {
	ObserveCommand(cmdType CommandType, success bool, d time.Duration)
}

// NewLoggingMiddleware creates a middleware that logs command execution.
func NewLoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			start := time.Now()

			traceID := ""
			if hasTraceID, ok := cmd.(interface{ TraceID() string }); ok {
				traceID = hasTraceID.TraceID()
			}
			source := ""
			if hasSource, ok := cmd.(interface{ Source() CommandSource }); ok {
				source = string(hasSource.Source())
			}

			result, err := next.Handle(ctx, cmd)
			duration := time.Since(start)

			switch {
			case err != nil:
				log.Warn(log.CatOwner, "command failed",
					"command_id", cmd.ID(),
					"command_type", cmd.Type().String(),
					"trace_id", traceID,
					"duration", duration,
					"source", source,
					"error", err.Error(),
				)
			case result != nil && !result.Success:
				errMsg := ""
				if result.Error != nil {
					errMsg = result.Error.Error()
				}
				log.Warn(log.CatOwner, "command completed with error result",
					"command_id", cmd.ID(),
					"command_type", cmd.Type().String(),
					"trace_id", traceID,
					"duration", duration,
					"source", source,
					"error", errMsg,
				)
			default:
				log.Debug(log.CatOwner, "command completed",
					"command_id", cmd.ID(),
					"command_type", cmd.Type().String(),
					"trace_id", traceID,
					"duration", duration,
					"source", source,
				)
			}

			return result, err
		})
	}
}

// NewMetricsMiddleware reports each command's outcome and duration to obs.
func NewMetricsMiddleware(obs Observer) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
			start := time.Now()
			result, err := next.Handle(ctx, cmd)
			success := err == nil && (result == nil || result.Success)
			obs.ObserveCommand(cmd.Type(), success, time.Since(start))
			return result, err
		})
	}
}
