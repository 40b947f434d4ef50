package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answerTotal         *prometheus.CounterVec
	answerDuration      *prometheus.HistogramVec
	answerFailedTotal   *prometheus.CounterVec
	degradedPathTotal   *prometheus.CounterVec
	groundingRetryTotal prometheus.Counter
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evidence",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "evidence",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answerTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "answer",
			Name:      "completed_total",
			Help:      "Total completed answers by complexity tier and grounding outcome.",
		},
		[]string{"service", "tier", "verified"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "evidence",
			Subsystem: "answer",
			Name:      "duration_seconds",
			Help:      "End-to-end answer pipeline duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"service", "tier"},
	)
	answerFailedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "answer",
			Name:      "failed_total",
			Help:      "Total failed answers by pipeline stage.",
		},
		[]string{"service", "stage"},
	)
	degradedPathTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total answers served with a degraded retrieval path.",
		},
		[]string{"service", "path"},
	)
	groundingRetryTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "evidence",
			Subsystem: "grounding",
			Name:      "regenerations_total",
			Help:      "Total constrained regenerations after a failed numeric check.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answerTotal,
		answerDuration,
		answerFailedTotal,
		degradedPathTotal,
		groundingRetryTotal,
	)

	return &ServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		answerTotal:         answerTotal,
		answerDuration:      answerDuration,
		answerFailedTotal:   answerFailedTotal,
		degradedPathTotal:   degradedPathTotal,
		groundingRetryTotal: groundingRetryTotal,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
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
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// PipelineMetrics adapter for the answer use case.

type PipelineMetrics struct {
	service string
	server  *ServerMetrics
}

func NewPipelineMetrics(service string, server *ServerMetrics) *PipelineMetrics {
	return &PipelineMetrics{service: service, server: server}
}

func (m *PipelineMetrics) AnswerCompleted(tier domain.ComplexityTier, verified bool, duration time.Duration) {
	m.server.answerTotal.WithLabelValues(m.service, string(tier), strconv.FormatBool(verified)).Inc()
	m.server.answerDuration.WithLabelValues(m.service, string(tier)).Observe(duration.Seconds())
}

func (m *PipelineMetrics) AnswerFailed(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.server.answerFailedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *PipelineMetrics) RetrievalDegraded(path string) {
	if path == "" {
		path = "unknown"
	}
	m.server.degradedPathTotal.WithLabelValues(m.service, path).Inc()
}

func (m *PipelineMetrics) GroundingRetried() {
	m.server.groundingRetryTotal.Inc()
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
