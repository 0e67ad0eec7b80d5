package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Evaluation metrics
	EvalsTotal    *prometheus.CounterVec
	EvalDuration  *prometheus.HistogramVec
	EvalsInFlight prometheus.Gauge
	SandboxReady  prometheus.Gauge

	// Bridge and hub metrics
	BridgeRequests *prometheus.CounterVec
	HubCalls       *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health API
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	TotalEvaluations  int64   `json:"total_evaluations"`
	FailedEvaluations int64   `json:"failed_evaluations"`
	ActiveConnections int64   `json:"active_connections"`
	AvgEvalSeconds    float64 `json:"avg_eval_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	evalSeconds float64
}

// NewMetrics creates a metrics collector backed by its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolrc_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolrc_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolrc_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolrc_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Evaluation metrics
		EvalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolrc_evaluations_total",
				Help: "Total number of plugin evaluations",
			},
			[]string{"outcome", "phase"},
		),
		EvalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolrc_evaluation_duration_seconds",
				Help:    "Plugin evaluation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		EvalsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolrc_evaluations_in_flight",
				Help: "Number of evaluations waiting for a result",
			},
		),
		SandboxReady: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolrc_sandbox_ready",
				Help: "1 when the sandbox context has signalled readiness",
			},
		),

		// Bridge and hub metrics
		BridgeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolrc_bridge_requests_total",
				Help: "Total number of eval-tool-request events handled",
			},
			[]string{"status"},
		),
		HubCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolrc_hub_calls_total",
				Help: "Total number of evaluations requested through the hub client",
			},
			[]string{"status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolrc_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolrc_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "event"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "toolrc_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry all collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format for this collector
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordEvaluation records a finished evaluation. phase is empty on success.
func (m *Metrics) RecordEvaluation(success bool, phase string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.EvalsTotal.WithLabelValues(outcome, phase).Inc()
	m.EvalDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalEvaluations++
	m.snapshot.evalSeconds += duration.Seconds()
	if !success {
		m.snapshot.FailedEvaluations++
	}
	m.mu.Unlock()
}

// IncEvalsInFlight increments the in-flight evaluation gauge
func (m *Metrics) IncEvalsInFlight() {
	if m == nil {
		return
	}
	m.EvalsInFlight.Inc()
}

// DecEvalsInFlight decrements the in-flight evaluation gauge
func (m *Metrics) DecEvalsInFlight() {
	if m == nil {
		return
	}
	m.EvalsInFlight.Dec()
}

// SetSandboxReady mirrors the sandbox readiness state
func (m *Metrics) SetSandboxReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.SandboxReady.Set(1)
	} else {
		m.SandboxReady.Set(0)
	}
}

// RecordBridgeRequest records a handled bridge request
func (m *Metrics) RecordBridgeRequest(status string) {
	if m == nil {
		return
	}
	m.BridgeRequests.WithLabelValues(status).Inc()
}

// RecordHubCall records the outcome of a hub client evaluation
func (m *Metrics) RecordHubCall(status string) {
	if m == nil {
		return
	}
	m.HubCalls.WithLabelValues(status).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, event string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, event).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current values
func (m *Metrics) GetSnapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	if s.TotalEvaluations > 0 {
		s.AvgEvalSeconds = s.evalSeconds / float64(s.TotalEvaluations)
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
