// Package metrics defines the Prometheus collectors exposed at GET /metrics,
// grounded on the teacher's pkg/metrics/metrics.go and
// infrastructure/middleware/metrics.go (the HTTP instrumentation wrapper),
// trimmed of the blockchain-specific collectors (oracle/datafeed/bus-fanout/
// module-lifecycle) that have no analog in an accounting gateway and
// replaced with vendor-call, sync-job, and SIE-parse collectors instead.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "accounting_gateway", Subsystem: "http",
		Name: "inflight_requests", Help: "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounting_gateway", Subsystem: "http",
		Name: "requests_total", Help: "Total number of HTTP requests handled.",
	}, []string{"method", "path", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accounting_gateway", Subsystem: "http",
		Name: "request_duration_seconds", Help: "Duration of HTTP requests.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "path"})

	vendorCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounting_gateway", Subsystem: "vendor",
		Name: "requests_total", Help: "Total outbound vendor API calls.",
	}, []string{"vendor", "resource_type", "status"})

	vendorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accounting_gateway", Subsystem: "vendor",
		Name: "request_duration_seconds", Help: "Duration of outbound vendor API calls.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"vendor", "resource_type"})

	syncJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounting_gateway", Subsystem: "sync",
		Name: "jobs_total", Help: "Total sync jobs executed, by vendor and outcome.",
	}, []string{"vendor", "status"})

	syncDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "accounting_gateway", Subsystem: "sync",
		Name: "job_duration_seconds", Help: "Duration of sync job executions.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"vendor"})

	syncEntitiesProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounting_gateway", Subsystem: "sync",
		Name: "entities_processed_total", Help: "Total canonical entity records processed by sync jobs.",
	}, []string{"vendor", "entity_type"})

	sieParses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "accounting_gateway", Subsystem: "sie",
		Name: "parses_total", Help: "Total SIE file parse attempts.",
	}, []string{"status"})
)

func init() {
	Registry.MustRegister(
		httpInFlight, httpRequests, httpDuration,
		vendorCalls, vendorDuration,
		syncJobs, syncDuration, syncEntitiesProcessed,
		sieParses,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the router with HTTP request-count/duration/in-flight
// collection. NewRouter mounts it after Recovery and SecurityHeaders, so it
// times every middleware mounted after it plus the handler.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordVendorCall records one outbound vendor API call.
func RecordVendorCall(vendor, resourceType, status string, duration time.Duration) {
	if resourceType == "" {
		resourceType = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	vendorCalls.WithLabelValues(vendor, resourceType, status).Inc()
	vendorDuration.WithLabelValues(vendor, resourceType).Observe(duration.Seconds())
}

// RecordSyncJob records one sync job execution outcome and duration.
func RecordSyncJob(vendor string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	syncJobs.WithLabelValues(vendor, status).Inc()
	syncDuration.WithLabelValues(vendor).Observe(duration.Seconds())
}

// RecordSyncEntities adds count to the processed-entities total for a
// vendor/entity-type pair.
func RecordSyncEntities(vendor, entityType string, count int) {
	if count <= 0 {
		return
	}
	syncEntitiesProcessed.WithLabelValues(vendor, entityType).Add(float64(count))
}

// RecordSIEParse records one SIE file parse attempt's outcome.
func RecordSIEParse(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sieParses.WithLabelValues(status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path-parameter segments so the requests_total
// cardinality stays bounded: consent/connection ids are replaced with a
// placeholder, everything else (including resource-type segments, which are
// a small closed set) is kept as-is.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// looksLikeID treats any long, mixed alphanumeric (or UUID-shaped) segment as
// an identifier rather than a literal route token; every literal token in
// this API ("consents", "sie-upload", "sales-invoices", ...) is short and
// lower-kebab, so this heuristic rarely misfires.
func looksLikeID(segment string) bool {
	if len(segment) < 16 {
		return false
	}
	hasDigit := false
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			hasDigit = true
			break
		}
	}
	return hasDigit
}
