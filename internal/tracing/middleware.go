package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/dcmcache/internal/owner"
)

// NewMiddleware creates owner middleware that wraps each command in a span.
// A command carrying the span context of the request that submitted it gets
// a child span, so traces continue across the hop onto the owner goroutine.
// A nil tracer yields a pass-through.
func NewMiddleware(tracer trace.Tracer) owner.Middleware {
	if tracer == nil {
		return func(next owner.Handler) owner.Handler { return next }
	}

	return func(next owner.Handler) owner.Handler {
		return owner.HandlerFunc(func(ctx context.Context, cmd owner.Command) (*owner.CommandResult, error) {
			ctx = restoreSpanContext(ctx, cmd)

			ctx, span := tracer.Start(ctx, SpanPrefixCommand+cmd.Type().String(),
				trace.WithSpanKind(trace.SpanKindInternal),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String(AttrCommandID, cmd.ID()),
				attribute.String(AttrCommandType, cmd.Type().String()),
			)
			if hasSource, ok := cmd.(interface{ Source() owner.CommandSource }); ok {
				span.SetAttributes(attribute.String(AttrCommandSource, string(hasSource.Source())))
			}

			result, err := next.Handle(ctx, cmd)

			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			case result != nil && !result.Success:
				if result.Error != nil {
					span.RecordError(result.Error)
					span.SetStatus(codes.Error, result.Error.Error())
				} else {
					span.SetStatus(codes.Error, "command failed without error details")
				}
			default:
				span.SetStatus(codes.Ok, "")
			}

			return result, err
		})
	}
}

// Link copies the span context of ctx onto cmd so the owner-side span becomes
// its child.
func Link(ctx context.Context, cmd owner.Command) {
	if setter, ok := cmd.(interface{ SetSpanContext(trace.SpanContext) }); ok {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			setter.SetSpanContext(sc)
		}
	}
}

func restoreSpanContext(ctx context.Context, cmd owner.Command) context.Context {
	if hasSpanContext, ok := cmd.(interface{ SpanContext() trace.SpanContext }); ok {
		if sc := hasSpanContext.SpanContext(); sc.IsValid() {
			return trace.ContextWithRemoteSpanContext(ctx, sc)
		}
	}
	return ctx
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
