package owner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dcmcache/internal/log"
)

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, cmd Command) (*CommandResult, error) {
				order = append(order, name+":before")
				r, err := next.Handle(ctx, cmd)
				order = append(order, name+":after")
				return r, err
			})
		}
	}
	base := HandlerFunc(func(context.Context, Command) (*CommandResult, error) {
		order = append(order, "handler")
		return nil, nil
	})

	_, _ = ChainMiddleware(base, mw("outer"), mw("inner")).Handle(context.Background(), newTestCommand(cmdTest, 0))

	require.Equal(t, []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}, order)
}

func TestLoggingMiddleware_LogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	log.InitWriter(&buf)

	h := NewLoggingMiddleware()(HandlerFunc(func(context.Context, Command) (*CommandResult, error) {
		return nil, errors.New("dataset not found")
	}))
	cmd := newTestCommand(cmdTest, 0)
	_, err := h.Handle(context.Background(), cmd)
	require.Error(t, err)

	out := buf.String()
	require.Contains(t, out, "[WARN] [owner] command failed")
	require.Contains(t, out, "command_id="+cmd.ID())
	require.Contains(t, out, "error=dataset not found")
}

type recordingObserver struct {
	types   []CommandType
	success []bool
}

func (o *recordingObserver) ObserveCommand(cmdType CommandType, success bool, _ time.Duration) {
	o.types = append(o.types, cmdType)
	o.success = append(o.success, success)
}

func TestMetricsMiddleware(t *testing.T) {
	obs := &recordingObserver{}
	ok := NewMetricsMiddleware(obs)(HandlerFunc(func(context.Context, Command) (*CommandResult, error) {
		return SuccessResult(nil), nil
	}))
	failing := NewMetricsMiddleware(obs)(HandlerFunc(func(context.Context, Command) (*CommandResult, error) {
		return &CommandResult{Error: errors.New("x")}, nil
	}))

	_, _ = ok.Handle(context.Background(), newTestCommand(cmdTest, 0))
	_, _ = failing.Handle(context.Background(), newTestCommand(cmdOther, 0))

	require.Equal(t, []CommandType{cmdTest, cmdOther}, obs.types)
	require.Equal(t, []bool{true, false}, obs.success)
}
