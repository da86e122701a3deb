package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	intakeTotal         *prometheus.CounterVec
	reviewResolvedTotal *prometheus.CounterVec
	importRowsTotal     *prometheus.CounterVec
	statusChangesTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtrail",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jobtrail",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "jobtrail",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	intakeTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtrail",
			Subsystem: "intake",
			Name:      "emails_total",
			Help:      "Total accepted inbound emails by dedup outcome.",
		},
		[]string{"service", "outcome"},
	)
	reviewResolvedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtrail",
			Subsystem: "review",
			Name:      "resolved_total",
			Help:      "Total review queue entries resolved by action.",
		},
		[]string{"service", "action"},
	)
	importRowsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtrail",
			Subsystem: "import",
			Name:      "rows_total",
			Help:      "Total spreadsheet import rows by result.",
		},
		[]string{"service", "result"},
	)
	statusChangesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobtrail",
			Subsystem: "applications",
			Name:      "manual_status_changes_total",
			Help:      "Total manual application status changes.",
		},
		[]string{"service", "to_status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		intakeTotal,
		reviewResolvedTotal,
		importRowsTotal,
		statusChangesTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		intakeTotal:         intakeTotal,
		reviewResolvedTotal: reviewResolvedTotal,
		importRowsTotal:     importRowsTotal,
		statusChangesTotal:  statusChangesTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses resource ids so the path label stays low cardinality.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/applications/"):
		return "/v1/applications/{application_id}"
	case strings.HasPrefix(path, "/v1/emails/"):
		return "/v1/emails/{email_id}"
	case strings.HasPrefix(path, "/v1/review-queue/"):
		return "/v1/review-queue/{entry_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordIntake(service string, duplicate bool) {
	outcome := "accepted"
	if duplicate {
		outcome = "duplicate"
	}
	m.intakeTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordReviewResolution(service, action string) {
	if action == "" {
		action = "unknown"
	}
	m.reviewResolvedTotal.WithLabelValues(service, action).Inc()
}

func (m *HTTPServerMetrics) RecordImportRows(service string, imported, skipped, failed int) {
	if imported > 0 {
		m.importRowsTotal.WithLabelValues(service, "imported").Add(float64(imported))
	}
	if skipped > 0 {
		m.importRowsTotal.WithLabelValues(service, "skipped").Add(float64(skipped))
	}
	if failed > 0 {
		m.importRowsTotal.WithLabelValues(service, "error").Add(float64(failed))
	}
}

func (m *HTTPServerMetrics) RecordStatusChange(service, toStatus string) {
	if toStatus == "" {
		toStatus = "unknown"
	}
	m.statusChangesTotal.WithLabelValues(service, toStatus).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
