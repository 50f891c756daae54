// Package metrics exposes Prometheus collectors for the cache, the owner,
// the worker pool, the reconstruction pipeline and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zjrosen/dcmcache/internal/owner"
	"github.com/zjrosen/dcmcache/internal/reconstruct"
	"github.com/zjrosen/dcmcache/internal/workers"
)

const namespace = "dcmcache"

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	datasets        prometheus.Gauge
	entities        prometheus.Gauge
	imports         *prometheus.CounterVec
	reconstructions *prometheus.CounterVec
	reconstructTime *prometheus.HistogramVec
	commands        *prometheus.CounterVec
	commandTime     *prometheus.HistogramVec
	tasksActive     prometheus.Gauge
	tasks           *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpRequestTime *prometheus.HistogramVec
}

var (
	_ reconstruct.Observer = (*Metrics)(nil)
	_ workers.Observer     = (*Metrics)(nil)
	_ owner.Observer       = (*Metrics)(nil)
)

// New creates a Metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		datasets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "datasets",
			Help:      "Live datasets in the cache",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entities_attached",
			Help:      "Datasets with an attached entity",
		}),
		imports: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imports_total",
			Help:      "Dataset imports by status",
		}, []string{"status"}),
		reconstructions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconstruct",
			Name:      "total",
			Help:      "Reconstruction requests by outcome",
		}, []string{"outcome"}),
		reconstructTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconstruct",
			Name:      "duration_seconds",
			Help:      "Reconstruction latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"outcome"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "owner",
			Name:      "commands_total",
			Help:      "Owner commands by type and status",
		}, []string{"type", "status"}),
		commandTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "owner",
			Name:      "command_duration_seconds",
			Help:      "Owner command handling latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"type"}),
		tasksActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "active",
			Help:      "Worker tasks currently running",
		}),
		tasks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workers",
			Name:      "tasks_total",
			Help:      "Finished worker tasks by status",
		}, []string{"status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpRequestTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetDatasets records the number of live datasets.
func (m *Metrics) SetDatasets(n int) {
	m.datasets.Set(float64(n))
}

// SetEntities records the number of attached entities.
func (m *Metrics) SetEntities(n int) {
	m.entities.Set(float64(n))
}

// ObserveImport counts one import attempt.
func (m *Metrics) ObserveImport(err error) {
	m.imports.WithLabelValues(status(err)).Inc()
}

// ObserveReconstruction implements reconstruct.Observer.
func (m *Metrics) ObserveReconstruction(outcome string, d time.Duration) {
	m.reconstructions.WithLabelValues(outcome).Inc()
	m.reconstructTime.WithLabelValues(outcome).Observe(d.Seconds())
}

// ObserveCommand implements owner.Observer.
func (m *Metrics) ObserveCommand(cmdType owner.CommandType, success bool, d time.Duration) {
	s := "success"
	if !success {
		s = "error"
	}
	m.commands.WithLabelValues(cmdType.String(), s).Inc()
	m.commandTime.WithLabelValues(cmdType.String()).Observe(d.Seconds())
}

// TaskStarted implements workers.Observer.
func (m *Metrics) TaskStarted() {
	m.tasksActive.Inc()
}

// TaskFinished implements workers.Observer.
func (m *Metrics) TaskFinished(err error) {
	m.tasksActive.Dec()
	m.tasks.WithLabelValues(status(err)).Inc()
}

// ObserveRequest counts one HTTP request. route is the matched route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestTime.WithLabelValues(method, route).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
