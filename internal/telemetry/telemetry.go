package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry collects run-level metrics. A nil *Telemetry is a valid no-op
// collector, so callers never guard their instrumentation sites.
type Telemetry struct {
	registry *prometheus.Registry

	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	factsMerged   prometheus.Counter
	gapsRecorded  prometheus.Counter
	oracleRetries *prometheus.CounterVec
}

// New builds a Telemetry backed by its own registry.
func New() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "runs_total",
			Help:      "Research runs by terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scout",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of research runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "tool_calls_total",
			Help:      "Supervisor tool decisions by kind.",
		}, []string{"kind"}),
		factsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "facts_merged_total",
			Help:      "Facts accepted into the canonical set.",
		}),
		gapsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "gaps_recorded_total",
			Help:      "Gaps recorded from degraded operations.",
		}),
		oracleRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "oracle_retries_total",
			Help:      "Oracle call retries by operation.",
		}, []string{"op"}),
	}
	t.registry.MustRegister(t.runs, t.runDuration, t.toolCalls, t.factsMerged, t.gapsRecorded, t.oracleRetries)
	return t
}

// Handler exposes the metrics endpoint for this collector's registry.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Serve runs a standalone metrics server. Blocks until the listener fails.
func (t *Telemetry) Serve(port int) error {
	if t == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

func (t *Telemetry) RunFinished(status string, elapsed time.Duration) {
	if t == nil {
		return
	}
	t.runs.WithLabelValues(status).Inc()
	t.runDuration.Observe(elapsed.Seconds())
}

func (t *Telemetry) ToolCall(kind string) {
	if t == nil {
		return
	}
	t.toolCalls.WithLabelValues(kind).Inc()
}

func (t *Telemetry) FactsMerged(n int) {
	if t == nil || n <= 0 {
		return
	}
	t.factsMerged.Add(float64(n))
}

func (t *Telemetry) GapRecorded() {
	if t == nil {
		return
	}
	t.gapsRecorded.Inc()
}

func (t *Telemetry) OracleRetry(op string) {
	if t == nil {
		return
	}
	t.oracleRetries.WithLabelValues(op).Inc()
}
