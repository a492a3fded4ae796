package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tool metrics
	ToolCalls    *prometheus.CounterVec
	ToolDuration *prometheus.HistogramVec

	// Execution metrics
	CommandsBlocked *prometheus.CounterVec
	JobsRunning     prometheus.Gauge
	JobsFinished    *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	OutputLines     prometheus.Counter

	startTime time.Time
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsh_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentsh_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .025, .1, .5, 1, 5, 30, 120, 600, 3600},
			},
			[]string{"method", "path"},
		),

		ToolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsh_tool_calls_total",
				Help: "Total number of tool calls by outcome code",
			},
			[]string{"tool", "outcome"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentsh_tool_duration_seconds",
				Help:    "Tool call duration in seconds",
				Buckets: []float64{.001, .01, .1, .5, 1, 5, 30, 120, 600, 3600},
			},
			[]string{"tool"},
		),

		CommandsBlocked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsh_commands_blocked_total",
				Help: "Commands rejected by the safety filter",
			},
			[]string{"category"},
		),
		JobsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentsh_jobs_running",
				Help: "Number of background jobs in running state",
			},
		),
		JobsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentsh_jobs_finished_total",
				Help: "Jobs reaching a terminal status",
			},
			[]string{"status"},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentsh_sessions_active",
				Help: "Number of active terminal sessions",
			},
		),
		OutputLines: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentsh_output_lines_total",
				Help: "Output lines produced by commands",
			},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "agentsh_uptime_seconds",
			Help: "Service uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordToolCall records a tool call and its outcome code
func (m *Metrics) RecordToolCall(tool, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordBlocked counts a safety filter rejection
func (m *Metrics) RecordBlocked(category string) {
	if m == nil {
		return
	}
	m.CommandsBlocked.WithLabelValues(category).Inc()
}

// SetJobsRunning sets the running job gauge
func (m *Metrics) SetJobsRunning(count int) {
	if m == nil {
		return
	}
	m.JobsRunning.Set(float64(count))
}

// RecordJobFinished counts a job reaching status
func (m *Metrics) RecordJobFinished(status string, lines int) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.OutputLines.Add(float64(lines))
}

// SetSessionsActive sets the number of active sessions
func (m *Metrics) SetSessionsActive(count int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(count))
}

// AddOutputLines counts lines produced outside of jobs
func (m *Metrics) AddOutputLines(lines int) {
	if m == nil {
		return
	}
	m.OutputLines.Add(float64(lines))
}
