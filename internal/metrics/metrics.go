// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for one crawl process. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	pagesTotal          *prometheus.CounterVec
	bytesTotal          prometheus.Counter
	fetchFailuresTotal  prometheus.Counter
	duplicateClaims     prometheus.Counter
	linksDiscovered     prometheus.Counter
	enqueueDroppedTotal prometheus.Counter
	sinkErrorsTotal     prometheus.Counter
	inFlight            prometheus.Gauge
	frontierPending     prometheus.Gauge
	activeWorkers       prometheus.Gauge
	fetchDuration       prometheus.Histogram
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the crawler collectors with reg. Use a fresh registry per
// process (or per test); registering twice with the same registry panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages recorded, labeled by status class.",
			},
			[]string{"status"},
		),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_bytes_total",
			Help: "Total number of response body bytes fetched.",
		}),
		fetchFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_fetch_failures_total",
			Help: "Total number of fetches that produced no response.",
		}),
		duplicateClaims: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_duplicate_claims_total",
			Help: "Total number of dequeued URLs skipped because another worker already claimed them.",
		}),
		linksDiscovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_links_discovered_total",
			Help: "Total number of links enqueued from in-domain pages.",
		}),
		enqueueDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_enqueue_dropped_total",
			Help: "Total number of links dropped because the frontier was already closed.",
		}),
		sinkErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_sink_errors_total",
			Help: "Total number of result records the sink failed to accept.",
		}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_in_flight",
			Help: "Number of URLs currently being processed.",
		}),
		frontierPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_frontier_pending",
			Help: "Number of URLs waiting in the frontier.",
		}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_active_workers",
			Help: "Number of worker goroutines that have not exited.",
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_fetch_duration_seconds",
			Help:    "Histogram of fetch latencies, including failed fetches.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_api_requests_total",
				Help: "Total number of status API requests.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_api_request_duration_seconds",
				Help:    "Histogram of status API latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler returns an http.Handler exposing the collectors in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// ClassifyStatus groups HTTP status codes for the pages counter.
func ClassifyStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// ObservePage counts a recorded page.
func (m *Metrics) ObservePage(status int, bytesFetched int) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(ClassifyStatus(status)).Inc()
	if bytesFetched > 0 {
		m.bytesTotal.Add(float64(bytesFetched))
	}
}

// ObserveFetch records the latency of one fetch attempt.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.Observe(d.Seconds())
}

// IncFetchFailures counts a transport failure.
func (m *Metrics) IncFetchFailures() {
	if m == nil {
		return
	}
	m.fetchFailuresTotal.Inc()
}

// IncDuplicateClaims counts a lost claim.
func (m *Metrics) IncDuplicateClaims() {
	if m == nil {
		return
	}
	m.duplicateClaims.Inc()
}

// AddLinksDiscovered counts links handed to the frontier.
func (m *Metrics) AddLinksDiscovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.linksDiscovered.Add(float64(n))
}

// IncEnqueueDropped counts a link dropped after close.
func (m *Metrics) IncEnqueueDropped() {
	if m == nil {
		return
	}
	m.enqueueDroppedTotal.Inc()
}

// IncSinkErrors counts a failed sink write.
func (m *Metrics) IncSinkErrors() {
	if m == nil {
		return
	}
	m.sinkErrorsTotal.Inc()
}

// SetFrontier publishes the current frontier depth and in-flight count.
func (m *Metrics) SetFrontier(pending, inFlight int) {
	if m == nil {
		return
	}
	m.frontierPending.Set(float64(pending))
	m.inFlight.Set(float64(inFlight))
}

// IncActiveWorkers increments the active workers gauge.
func (m *Metrics) IncActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func (m *Metrics) DecActiveWorkers() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

// ObserveHTTPRequest records one status API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
