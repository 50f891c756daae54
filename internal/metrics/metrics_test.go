package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dcmcache/internal/reconstruct"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveImport(nil)
	m.ObserveImport(errors.New("copy failed"))
	m.ObserveImport(nil)
	require.InDelta(t, 2, testutil.ToFloat64(m.imports.WithLabelValues("success")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.imports.WithLabelValues("error")), 0)

	m.ObserveReconstruction(reconstruct.OutcomeBuilt, time.Second)
	m.ObserveReconstruction(reconstruct.OutcomeCached, time.Millisecond)
	m.ObserveReconstruction(reconstruct.OutcomeCached, time.Millisecond)
	require.InDelta(t, 2, testutil.ToFloat64(m.reconstructions.WithLabelValues(reconstruct.OutcomeCached)), 0)

	m.ObserveCommand("attach", true, time.Millisecond)
	m.ObserveCommand("attach", false, time.Millisecond)
	require.InDelta(t, 1, testutil.ToFloat64(m.commands.WithLabelValues("attach", "error")), 0)
}

func TestMetrics_Gauges(t *testing.T) {
	m := New()

	m.SetDatasets(3)
	m.SetEntities(1)
	require.InDelta(t, 3, testutil.ToFloat64(m.datasets), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.entities), 0)

	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished(nil)
	require.InDelta(t, 1, testutil.ToFloat64(m.tasksActive), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.tasks.WithLabelValues("success")), 0)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/v1/datasets", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `dcmcache_http_requests_total{code="200",method="GET",route="/v1/datasets"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}
