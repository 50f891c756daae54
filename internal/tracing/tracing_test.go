package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zjrosen/dcmcache/internal/config"
	"github.com/zjrosen/dcmcache/internal/owner"
)

type testCommand struct {
	owner.BaseCommand
}

func newTestCommand() *testCommand {
	return &testCommand{BaseCommand: owner.NewBaseCommand("import_dataset", owner.SourceAPI)}
}

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	rec := tracetest.NewSpanRecorder()
	return rec, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(config.TracingConfig{Enabled: false})
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NotNil(t, p.TracerProvider())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Exporters(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "traces", "traces.jsonl")
		p, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "file", FilePath: path})
		require.NoError(t, err)
		require.True(t, p.Enabled())
		require.FileExists(t, path)
		require.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("file without path", func(t *testing.T) {
		_, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "file"})
		require.Error(t, err)
	})

	t.Run("none", func(t *testing.T) {
		p, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "none"})
		require.NoError(t, err)
		require.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := NewProvider(config.TracingConfig{Enabled: true, Exporter: "zipkin"})
		require.ErrorContains(t, err, "unsupported exporter type")
	})
}

func TestMiddleware_RecordsCommandSpan(t *testing.T) {
	rec, tp := newRecorder()
	h := NewMiddleware(tp.Tracer("test"))(owner.HandlerFunc(func(context.Context, owner.Command) (*owner.CommandResult, error) {
		return owner.SuccessResult(nil), nil
	}))

	cmd := newTestCommand()
	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "owner.command.import_dataset", spans[0].Name())
	require.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := attrMap(spans[0].Attributes())
	require.Equal(t, cmd.ID(), attrs[AttrCommandID])
	require.Equal(t, "import_dataset", attrs[AttrCommandType])
	require.Equal(t, "api", attrs[AttrCommandSource])
}

func TestMiddleware_RecordsFailures(t *testing.T) {
	rec, tp := newRecorder()
	mw := NewMiddleware(tp.Tracer("test"))

	failing := mw(owner.HandlerFunc(func(context.Context, owner.Command) (*owner.CommandResult, error) {
		return nil, errors.New("boom")
	}))
	failedResult := mw(owner.HandlerFunc(func(context.Context, owner.Command) (*owner.CommandResult, error) {
		return &owner.CommandResult{Error: errors.New("stale")}, nil
	}))

	_, _ = failing.Handle(context.Background(), newTestCommand())
	_, _ = failedResult.Handle(context.Background(), newTestCommand())

	spans := rec.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)
	require.Equal(t, codes.Error, spans[1].Status().Code)
	require.Equal(t, "stale", spans[1].Status().Description)
}

func TestMiddleware_ContinuesSubmitterTrace(t *testing.T) {
	rec, tp := newRecorder()
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "http.request")
	cmd := newTestCommand()
	Link(ctx, cmd)
	parent.End()

	h := NewMiddleware(tracer)(owner.HandlerFunc(func(context.Context, owner.Command) (*owner.CommandResult, error) {
		return nil, nil
	}))
	_, err := h.Handle(context.Background(), cmd)
	require.NoError(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	child := spans[1]
	require.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())
	require.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	require.Equal(t, parent.SpanContext().TraceID().String(), cmd.TraceID())
}

func TestMiddleware_NilTracerPassesThrough(t *testing.T) {
	called := false
	h := NewMiddleware(nil)(owner.HandlerFunc(func(context.Context, owner.Command) (*owner.CommandResult, error) {
		called = true
		return nil, nil
	}))
	_, err := h.Handle(context.Background(), newTestCommand())
	require.NoError(t, err)
	require.True(t, called)
}

func TestFileExporter_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traces.jsonl")
	exp, err := NewFileExporter(path)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	tracer := tp.Tracer("test")
	ctx, parent := tracer.Start(context.Background(), "service.reconstruct")
	parent.SetAttributes(attribute.String(AttrDatasetName, "Abdomen"))
	_, child := tracer.Start(ctx, "owner.command.attach")
	End(child, errors.New("stale"))
	End(parent, nil)
	require.NoError(t, tp.Shutdown(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	var records []SpanRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r SpanRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, 2)

	require.Equal(t, "owner.command.attach", records[0].Name)
	require.Equal(t, "ERROR", records[0].Status)
	require.Equal(t, records[1].SpanID, records[0].ParentSpanID)
	require.Contains(t, records[0].Events, "exception")

	require.Equal(t, "service.reconstruct", records[1].Name)
	require.Equal(t, "OK", records[1].Status)
	require.Equal(t, "Abdomen", records[1].Attributes[AttrDatasetName])
}

func TestFileExporter_ShutdownIsIdempotent(t *testing.T) {
	exp, err := NewFileExporter(filepath.Join(t.TempDir(), "t.jsonl"))
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(context.Background()))
	require.NoError(t, exp.Shutdown(context.Background()))
	require.Error(t, exp.ExportSpans(context.Background(), nil))
}
