package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskibarqy/odds-grading/internal/usecase"
)

const metricsNamespace = "odds_grading"

var _ usecase.Metrics = (*Metrics)(nil)

// Metrics holds the collection and grading counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	snapshotsSaved    *prometheus.CounterVec
	openingsSaved     *prometheus.CounterVec
	providerFailures  *prometheus.CounterVec
	providerFallbacks *prometheus.CounterVec
	recordsSkipped    *prometheus.CounterVec
	storeWriteFails   *prometheus.CounterVec
	picksGraded       *prometheus.CounterVec
	picksUnsettleable *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	httpRequests      *prometheus.CounterVec
	circuitOpen       *prometheus.GaugeVec
	circuitChanges    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		snapshotsSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "snapshots_saved_total",
			Help:      "Odds snapshots appended to the store.",
		}, []string{"sport", "provider"}),
		openingsSaved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "opening_snapshots_total",
			Help:      "Snapshots stored as the opening line of their market.",
		}, []string{"sport"}),
		providerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_failures_total",
			Help:      "Provider fetches that failed or returned nothing.",
		}, []string{"provider", "sport", "reason"}),
		providerFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_fallbacks_total",
			Help:      "Collections served by the backup provider.",
		}, []string{"sport"}),
		recordsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_records_skipped_total",
			Help:      "Malformed or started games dropped before storage.",
		}, []string{"provider", "sport"}),
		storeWriteFails: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "store_write_failures_total",
			Help:      "Snapshot batches the store rejected.",
		}, []string{"sport"}),
		picksGraded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "picks_graded_total",
			Help:      "Picks settled by outcome.",
		}, []string{"sport", "outcome"}),
		picksUnsettleable: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "picks_unsettleable_total",
			Help:      "Picks the settlement rules could not grade.",
		}, []string{"reason"}),
		jobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of batch job runs.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status.",
		}, []string{"method", "route", "status"}),
		circuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_open",
			Help:      "1 while the dependency circuit breaker rejects calls.",
		}, []string{"dependency"}),
		circuitChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "circuit_transitions_total",
			Help:      "Circuit breaker state transitions.",
		}, []string{"dependency", "to"}),
	}
}

func (m *Metrics) SnapshotsSaved(sport, provider string, inserted, openings int) {
	if inserted > 0 {
		m.snapshotsSaved.WithLabelValues(sport, provider).Add(float64(inserted))
	}
	if openings > 0 {
		m.openingsSaved.WithLabelValues(sport).Add(float64(openings))
	}
}

func (m *Metrics) ProviderFailure(provider, sport, reason string) {
	m.providerFailures.WithLabelValues(provider, sport, reason).Inc()
}

func (m *Metrics) ProviderFallback(sport string) {
	m.providerFallbacks.WithLabelValues(sport).Inc()
}

func (m *Metrics) RecordsSkipped(provider, sport string, n int) {
	if n > 0 {
		m.recordsSkipped.WithLabelValues(provider, sport).Add(float64(n))
	}
}

func (m *Metrics) StoreWriteFailure(sport string) {
	m.storeWriteFails.WithLabelValues(sport).Inc()
}

func (m *Metrics) PickGraded(sport, outcome string) {
	m.picksGraded.WithLabelValues(sport, outcome).Inc()
}

func (m *Metrics) PickUnsettleable(reason string) {
	m.picksUnsettleable.WithLabelValues(reason).Inc()
}

func (m *Metrics) JobDuration(job string, d time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *Metrics) HTTPRequest(method, route string, status int) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// CircuitStateChanged tracks a breaker transition. Half-open counts as
// closed for the gauge since trial calls are let through.
func (m *Metrics) CircuitStateChanged(dependency, to string) {
	open := 0.0
	if to == "open" {
		open = 1
	}
	m.circuitOpen.WithLabelValues(dependency).Set(open)
	m.circuitChanges.WithLabelValues(dependency, to).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
