package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AppMetrics holds every metric family the consolidator exports.
type AppMetrics struct {
	// Consolidation
	DocumentsProcessedTotal CounterVec
	DocumentProcessDuration HistogramVec
	TokensClassifiedTotal   CounterVec
	TokensResolvedTotal     CounterVec
	RecordsSkippedTotal     CounterVec
	SpeciesPerDocument      HistogramVec
	CurationEntries         GaugeVec
	CurationReloadsTotal    CounterVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Infrastructure
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageProcessDuration HistogramVec
	ErrorsTotal            CounterVec
}

var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDocumentDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	DefaultSpeciesBuckets          = []float64{0, 1, 2, 5, 10, 20, 50, 100, 200}
)

// NewAppMetrics registers all families on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.DocumentsProcessedTotal = collector.RegisterCounter("documents_processed_total", "Documents consolidated", "status")
	m.DocumentProcessDuration = collector.RegisterHistogram("document_process_duration_seconds", "Per-document consolidation time", DefaultDocumentDurationBuckets, "source")
	m.TokensClassifiedTotal = collector.RegisterCounter("tokens_classified_total", "Tokens by classifier verdict", "verdict", "reason")
	m.TokensResolvedTotal = collector.RegisterCounter("tokens_resolved_total", "Accepted tokens by resolution method", "method")
	m.RecordsSkippedTotal = collector.RegisterCounter("records_skipped_total", "Malformed records skipped", "reason")
	m.SpeciesPerDocument = collector.RegisterHistogram("species_per_document", "Distinct canonical species per document", DefaultSpeciesBuckets)
	m.CurationEntries = collector.RegisterGauge("curation_entries", "Entries in the active curation table", "view")
	m.CurationReloadsTotal = collector.RegisterCounter("curation_reloads_total", "Curation table reloads", "status")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Result store query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Result cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Result cache misses", "cache")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Queue message processing duration", DefaultHTTPDurationBuckets, "topic", "status")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component", "component", "code")

	return m
}

// NewNopMetrics returns AppMetrics whose observations are discarded.
func NewNopMetrics() *AppMetrics {
	return NewAppMetrics(NewNopCollector())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// RecordDocument counts one document and observes its duration.
func (m *AppMetrics) RecordDocument(source, status string, d time.Duration, species int) {
	m.DocumentsProcessedTotal.WithLabelValues(status).Inc()
	m.DocumentProcessDuration.WithLabelValues(source).Observe(d.Seconds())
	if status == "ok" {
		m.SpeciesPerDocument.WithLabelValues().Observe(float64(species))
	}
}

// RecordClassification counts n tokens with the given verdict.
func (m *AppMetrics) RecordClassification(accepted bool, reason string, n int) {
	verdict := "accepted"
	if !accepted {
		verdict = "rejected"
	}
	if reason == "" {
		reason = "none"
	}
	m.TokensClassifiedTotal.WithLabelValues(verdict, reason).Add(float64(n))
}

// RecordResolution counts n tokens resolved by method.
func (m *AppMetrics) RecordResolution(method string, n int) {
	m.TokensResolvedTotal.WithLabelValues(method).Add(float64(n))
}

// RecordSkipped counts n malformed records.
func (m *AppMetrics) RecordSkipped(reason string, n int) {
	m.RecordsSkippedTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordHTTPRequest counts and times one HTTP request.
func (m *AppMetrics) RecordHTTPRequest(method, path string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordDBQuery times a store operation and counts failures.
func (m *AppMetrics) RecordDBQuery(db, operation string, d time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(db, operation).Observe(d.Seconds())
	if err != nil {
		m.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

// RecordCacheAccess counts a cache hit or miss.
func (m *AppMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordMessage times one consumed queue message.
func (m *AppMetrics) RecordMessage(topic, status string, d time.Duration) {
	m.MessageProcessDuration.WithLabelValues(topic, status).Observe(d.Seconds())
}

// RecordError counts an error by component and code.
func (m *AppMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}

// ---------------------------------------------------------------------------
// Nop collector
// ---------------------------------------------------------------------------

type nopCollector struct{ registry *prometheus.Registry }

// NewNopCollector returns a collector that registers nothing.
func NewNopCollector() MetricsCollector {
	return nopCollector{registry: prometheus.NewRegistry()}
}

func (nopCollector) RegisterCounter(string, string, ...string) CounterVec { return noopCounterVec{} }
func (nopCollector) RegisterGauge(string, string, ...string) GaugeVec     { return noopGaugeVec{} }
func (nopCollector) RegisterHistogram(string, string, []float64, ...string) HistogramVec {
	return noopHistogramVec{}
}
func (c nopCollector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}
func (c nopCollector) Gatherer() prometheus.Gatherer       { return c.registry }
func (nopCollector) MustRegister(...prometheus.Collector) {}
