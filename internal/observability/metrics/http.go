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

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// ServerMetrics carries the Prometheus instruments of the retrieval service
// on a private registry, so only deliberately registered series are exposed.
type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal     *prometheus.CounterVec
	retrievalLatency   *prometheus.HistogramVec
	retrievalCoverage  *prometheus.HistogramVec
	fusedResults       *prometheus.HistogramVec
	sourceQueriesTotal *prometheus.CounterVec
	sourceLatency      *prometheus.HistogramVec
	cacheEventsTotal   *prometheus.CounterVec
	answerTotal        *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ti",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ti",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ti",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ti",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by fusion method and trust tier.",
		},
		[]string{"service", "fusion", "trust"},
	)
	retrievalLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ti",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Fused retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievalCoverage := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ti",
			Subsystem: "retrieval",
			Name:      "coverage",
			Help:      "Fraction of attempted sources that returned data.",
			Buckets:   []float64{0, 0.25, 0.34, 0.5, 0.67, 0.75, 1},
		},
		[]string{"service"},
	)
	fusedResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ti",
			Subsystem: "retrieval",
			Name:      "fused_results",
			Help:      "Distribution of fused results per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	sourceQueriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ti",
			Subsystem: "source",
			Name:      "queries_total",
			Help:      "Total per-source query outcomes.",
		},
		[]string{"service", "source", "status"},
	)
	sourceLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ti",
			Subsystem: "source",
			Name:      "query_duration_seconds",
			Help:      "Per-source query duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "source"},
	)
	cacheEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ti",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Retrieval cache hits and misses.",
		},
		[]string{"service", "result"},
	)
	answerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ti",
			Subsystem: "answer",
			Name:      "requests_total",
			Help:      "Total answer requests by confidence.",
		},
		[]string{"service", "confidence"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalLatency,
		retrievalCoverage,
		fusedResults,
		sourceQueriesTotal,
		sourceLatency,
		cacheEventsTotal,
		answerTotal,
	)

	return &ServerMetrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		retrievalTotal:     retrievalTotal,
		retrievalLatency:   retrievalLatency,
		retrievalCoverage:  retrievalCoverage,
		fusedResults:       fusedResults,
		sourceQueriesTotal: sourceQueriesTotal,
		sourceLatency:      sourceLatency,
		cacheEventsTotal:   cacheEventsTotal,
		answerTotal:        answerTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/experiments/"):
		return "/v1/experiments/{experiment_id}"
	default:
		return path
	}
}

// RecordRetrieval observes one served (non-cached) retrieval response.
func (m *ServerMetrics) RecordRetrieval(service string, resp *domain.RetrievalResponse) {
	if resp == nil {
		return
	}
	m.retrievalTotal.WithLabelValues(service, string(resp.FusionMethod), string(resp.EvidenceQuality)).Inc()
	m.retrievalLatency.WithLabelValues(service).Observe(float64(resp.LatencyMs) / 1000.0)
	m.retrievalCoverage.WithLabelValues(service).Observe(resp.Coverage)
	m.fusedResults.WithLabelValues(service).Observe(float64(len(resp.Results)))

	for _, outcome := range resp.SourceOutcomes {
		m.sourceQueriesTotal.WithLabelValues(service, string(outcome.Source), string(outcome.Status)).Inc()
		m.sourceLatency.WithLabelValues(service, string(outcome.Source)).Observe(float64(outcome.LatencyMs) / 1000.0)
	}
}

func (m *ServerMetrics) RecordCacheEvent(service string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheEventsTotal.WithLabelValues(service, result).Inc()
}

func (m *ServerMetrics) RecordAnswer(service, confidence string) {
	if confidence == "" {
		confidence = "unknown"
	}
	m.answerTotal.WithLabelValues(service, confidence).Inc()
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
