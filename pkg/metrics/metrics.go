package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	alertsTotal      *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	dispatchRejected prometheus.Counter
	locationResults  *prometheus.CounterVec

	voiceTriggers prometheus.Counter
	voiceSessions *prometheus.CounterVec

	contactOps   *prometheus.CounterVec
	chatMessages *prometheus.CounterVec

	sessionsActive prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		alertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_alerts_total",
				Help: "Emergency alerts dispatched, by trigger method and outcome",
			},
			[]string{"method", "status"},
		),
		deliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_alert_deliveries_total",
				Help: "Per-recipient alert deliveries, by channel and outcome",
			},
			[]string{"channel", "status"},
		),
		dispatchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "safeher_dispatch_duration_seconds",
				Help:    "Time from trigger to completed dispatch",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		),
		dispatchRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "safeher_dispatch_rejected_total",
				Help: "Triggers ignored because a dispatch was already running",
			},
		),
		locationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_location_acquisitions_total",
				Help: "Location acquisition outcomes",
			},
			[]string{"status"},
		),

		voiceTriggers: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "safeher_voice_triggers_total",
				Help: "Trigger phrases detected in captured speech",
			},
		),
		voiceSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_voice_sessions_total",
				Help: "Voice capture sessions, by how they ended",
			},
			[]string{"outcome"},
		),

		contactOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_contact_operations_total",
				Help: "Contact registry operations",
			},
			[]string{"operation", "result"},
		),
		chatMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "safeher_chat_messages_total",
				Help: "Chat messages appended, by role",
			},
			[]string{"role"},
		),

		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "safeher_sessions_active",
				Help: "Sessions currently held in memory",
			},
		),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Recorders are no-ops on a nil *Metrics so components can run without a registry.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordAlert(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.alertsTotal.WithLabelValues(method, status).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordDelivery(channel, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) RecordDispatchRejected() {
	if m == nil {
		return
	}
	m.dispatchRejected.Inc()
}

func (m *Metrics) RecordLocation(status string) {
	if m == nil {
		return
	}
	m.locationResults.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordVoiceTrigger() {
	if m == nil {
		return
	}
	m.voiceTriggers.Inc()
}

func (m *Metrics) RecordVoiceSessionEnd(outcome string) {
	if m == nil {
		return
	}
	m.voiceSessions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordContactOperation(operation, result string) {
	if m == nil {
		return
	}
	m.contactOps.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RecordChatMessage(role string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(role).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}
