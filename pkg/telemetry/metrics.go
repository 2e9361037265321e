package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leadforge/leadforge/pkg/engine"
)

var _ engine.SchedulerMetrics = (*Metrics)(nil)

// Metrics provides Prometheus metrics for LeadForge.
type Metrics struct {
	config MetricsConfig

	// Scheduler metrics
	ticksStarted   prometheus.Counter
	ticksCompleted *prometheus.CounterVec
	tickDuration   prometheus.Histogram

	// Send metrics
	sendsAttempted *prometheus.CounterVec
	sendDuration   *prometheus.HistogramVec
	sendRetries    prometheus.Counter
	sendsExhausted prometheus.Counter

	// Membership metrics
	membershipsByStatus *prometheus.GaugeVec
	stepsAdvanced       *prometheus.CounterVec

	// Pipeline metrics
	dealsByStage  *prometheus.GaugeVec
	pipelineValue prometheus.Gauge
	stageMoves    *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	dueMemberships prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Scheduler metrics
		ticksStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_started_total",
				Help:      "Total number of scheduler ticks started",
			},
		),
		ticksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticks_completed_total",
				Help:      "Total number of scheduler ticks completed",
			},
			[]string{"status"},
		),
		tickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Duration of scheduler ticks in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		// Send metrics
		sendsAttempted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_attempted_total",
				Help:      "Total number of outreach send attempts",
			},
			[]string{"channel", "status"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "send_duration_seconds",
				Help:      "Duration of outreach sends in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel"},
		),
		sendRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_retries_total",
				Help:      "Total number of send retries after a failed attempt",
			},
		),
		sendsExhausted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sends_exhausted_total",
				Help:      "Total number of memberships that hit the send attempt cap",
			},
		),

		// Membership metrics
		membershipsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memberships",
				Help:      "Current number of campaign memberships by status",
			},
			[]string{"status"},
		),
		stepsAdvanced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_advanced_total",
				Help:      "Total number of membership step advancements",
			},
			[]string{"campaign_id"},
		),

		// Pipeline metrics
		dealsByStage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deals",
				Help:      "Current number of deals by pipeline stage",
			},
			[]string{"stage"},
		),
		pipelineValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_value",
				Help:      "Total monetary value of all deals in the pipeline",
			},
		),
		stageMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_moves_total",
				Help:      "Total number of deal stage transitions",
			},
			[]string{"from", "to"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// System metrics
		dueMemberships: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "due_memberships",
				Help:      "Number of memberships due at the last tick",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.ticksStarted,
		m.ticksCompleted,
		m.tickDuration,
		m.sendsAttempted,
		m.sendDuration,
		m.sendRetries,
		m.sendsExhausted,
		m.membershipsByStatus,
		m.stepsAdvanced,
		m.dealsByStage,
		m.pipelineValue,
		m.stageMoves,
		m.errorsByClass,
		m.errorsByCode,
		m.dueMemberships,
	)

	return m, nil
}

// Scheduler Metrics

// RecordTickStarted increments the counter for started ticks.
func (m *Metrics) RecordTickStarted() {
	if m.ticksStarted == nil {
		return
	}
	m.ticksStarted.Inc()
}

// RecordTickCompleted records a completed tick with its status and duration.
func (m *Metrics) RecordTickCompleted(status string, duration time.Duration) {
	if m.ticksCompleted == nil {
		return
	}
	m.ticksCompleted.WithLabelValues(status).Inc()
	m.tickDuration.Observe(duration.Seconds())
}

// SetDueMemberships sets the number of memberships due at the last tick.
func (m *Metrics) SetDueMemberships(count float64) {
	if m.dueMemberships == nil {
		return
	}
	m.dueMemberships.Set(count)
}

// Send Metrics

// RecordSend records an outreach send attempt with its outcome and duration.
func (m *Metrics) RecordSend(channel, status string, duration time.Duration) {
	if m.sendsAttempted == nil {
		return
	}
	m.sendsAttempted.WithLabelValues(channel, status).Inc()
	m.sendDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordSendRetry records a retried send attempt.
func (m *Metrics) RecordSendRetry() {
	if m.sendRetries == nil {
		return
	}
	m.sendRetries.Inc()
}

// RecordSendExhausted records a membership hitting the send attempt cap.
func (m *Metrics) RecordSendExhausted() {
	if m.sendsExhausted == nil {
		return
	}
	m.sendsExhausted.Inc()
}

// Membership Metrics

// SetMembershipCount sets the current count of memberships for a status.
func (m *Metrics) SetMembershipCount(status string, count float64) {
	if m.membershipsByStatus == nil {
		return
	}
	m.membershipsByStatus.WithLabelValues(status).Set(count)
}

// RecordStepAdvanced records a membership step advancement.
func (m *Metrics) RecordStepAdvanced(campaignID string) {
	if m.stepsAdvanced == nil {
		return
	}
	m.stepsAdvanced.WithLabelValues(campaignID).Inc()
}

// Pipeline Metrics

// SetDealCount sets the current count of deals for a stage.
func (m *Metrics) SetDealCount(stage string, count float64) {
	if m.dealsByStage == nil {
		return
	}
	m.dealsByStage.WithLabelValues(stage).Set(count)
}

// SetPipelineValue sets the total pipeline value.
func (m *Metrics) SetPipelineValue(value float64) {
	if m.pipelineValue == nil {
		return
	}
	m.pipelineValue.Set(value)
}

// RecordStageMove records a deal stage transition.
func (m *Metrics) RecordStageMove(from, to string) {
	if m.stageMoves == nil {
		return
	}
	m.stageMoves.WithLabelValues(from, to).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
