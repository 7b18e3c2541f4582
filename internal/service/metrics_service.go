package service

import (
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a lightweight summary for debug endpoints.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	IntentsTotal             uint64    `json:"intents_total"`
	FailedIntents            uint64    `json:"failed_intents"`
	LLMRequests              uint64    `json:"llm_requests"`
	AttachAttempts           uint64    `json:"voice_attach_attempts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	intents         *prometheus.CounterVec
	llmRequests     *prometheus.CounterVec
	attachAttempts  *prometheus.CounterVec

	requestCount         uint64
	requestDurationTotal uint64
	intentCount          uint64
	failedIntentCount    uint64
	llmCount             uint64
	attachCount          uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	intents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agent_intents_total",
		Help: "Teacher requests by classified intent and outcome",
	}, []string{"intent", "success"})

	llmRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Chat completion calls by purpose and outcome",
	}, []string{"purpose", "outcome"})

	attachAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_agent_attach_attempts_total",
		Help: "Attempts to attach knowledge base documents to the voice agent",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, intents, llmRequests, attachAttempts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		intents:         intents,
		llmRequests:     llmRequests,
		attachAttempts:  attachAttempts,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// ObserveIntent counts one processed teacher request.
func (m *MetricsService) ObserveIntent(intent string, success bool) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent, strconv.FormatBool(success)).Inc()
	atomic.AddUint64(&m.intentCount, 1)
	if !success {
		atomic.AddUint64(&m.failedIntentCount, 1)
	}
}

// ObserveLLMRequest counts one chat completion call.
func (m *MetricsService) ObserveLLMRequest(purpose, outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(purpose, outcome).Inc()
	atomic.AddUint64(&m.llmCount, 1)
}

// ObserveVoiceAttach counts one knowledge base attach attempt.
func (m *MetricsService) ObserveVoiceAttach(outcome string) {
	if m == nil {
		return
	}
	m.attachAttempts.WithLabelValues(outcome).Inc()
	atomic.AddUint64(&m.attachCount, 1)
}

// Snapshot returns aggregated metrics suitable for debug endpoints.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		IntentsTotal:             atomic.LoadUint64(&m.intentCount),
		FailedIntents:            atomic.LoadUint64(&m.failedIntentCount),
		LLMRequests:              atomic.LoadUint64(&m.llmCount),
		AttachAttempts:           atomic.LoadUint64(&m.attachCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
