package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bountywatch"

// Metrics holds the sync collectors on a private registry so several
// instances can coexist in tests. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	platformFailures *prometheus.CounterVec
	scopeChanges     *prometheus.CounterVec
	programsTracked  *prometheus.GaugeVec
	lastSuccess      *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall clock time of a full sync run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		platformFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_failures_total",
			Help:      "Platform and program failures by kind.",
		}, []string{"platform", "kind"}),
		scopeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_changes_total",
			Help:      "Scope changes applied by the diff engine.",
		}, []string{"platform", "change"}),
		programsTracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "programs_tracked",
			Help:      "Programs fetched in the last successful platform sync.",
		}, []string{"platform"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "platform_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful platform sync.",
		}, []string{"platform"}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.platformFailures,
		m.scopeChanges,
		m.programsTracked,
		m.lastSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordFailure(platform, kind string) {
	if m == nil {
		return
	}
	m.platformFailures.WithLabelValues(platform, kind).Inc()
}

func (m *Metrics) RecordScopeChanges(platform, change string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.scopeChanges.WithLabelValues(platform, change).Add(float64(n))
}

func (m *Metrics) RecordPlatformSuccess(platform string, programs int, at time.Time) {
	if m == nil {
		return
	}
	m.programsTracked.WithLabelValues(platform).Set(float64(programs))
	m.lastSuccess.WithLabelValues(platform).Set(float64(at.Unix()))
}
