package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type MetricsCollector struct {
	registry            *prometheus.Registry
	assignments         *prometheus.CounterVec
	assignmentDuration  *prometheus.HistogramVec
	simulations         *prometheus.CounterVec
	simulationDuration  prometheus.Histogram
	simulationSteps     prometheus.Histogram
	compileConfidence   prometheus.Histogram
	lowConfidenceRules  prometheus.Counter
	cursorResets        *prometheus.CounterVec
	notificationsQueued *prometheus.CounterVec
	logger              *slog.Logger
}

func NewMetricsCollector(logger *slog.Logger) *MetricsCollector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	collector := &MetricsCollector{
		registry: registry,
		assignments: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "approver_assignments_total",
			Help: "Approver assignments by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		assignmentDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "approver_assignment_duration_seconds",
			Help:    "Time taken to select an approver",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		simulations: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "rule_simulations_total",
			Help: "Rule graph simulation runs by final status",
		}, []string{"status"}),
		simulationDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "rule_simulation_duration_seconds",
			Help:    "Time taken to walk a rule graph",
			Buckets: prometheus.DefBuckets,
		}),
		simulationSteps: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "rule_simulation_steps",
			Help:    "Number of steps recorded per simulation",
			Buckets: []float64{1, 2, 3, 5, 8, 13},
		}),
		compileConfidence: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "rule_compile_confidence",
			Help:    "Overall confidence of compiled natural-language rules",
			Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.85, 1},
		}),
		lowConfidenceRules: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "rule_compile_low_confidence_total",
			Help: "Compiled rules that require human review",
		}),
		cursorResets: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_cursor_resets_total",
			Help: "Administrative round-robin cursor resets",
		}, []string{"team"}),
		notificationsQueued: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_queued_total",
			Help: "Notifications accepted by the notification queue",
		}, []string{"channel"}),
		logger: logger,
	}

	return collector
}

func (m *MetricsCollector) RecordAssignment(strategy string, success bool, duration time.Duration) {
	outcome := "assigned"
	if !success {
		outcome = "no_eligible_approver"
	}
	m.assignments.WithLabelValues(strategy, outcome).Inc()
	m.assignmentDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordSimulation(status string, steps int, duration time.Duration) {
	m.simulations.WithLabelValues(status).Inc()
	m.simulationSteps.Observe(float64(steps))
	m.simulationDuration.Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordCompile(confidence float64, needsReview bool) {
	m.compileConfidence.Observe(confidence)
	if needsReview {
		m.lowConfidenceRules.Inc()
	}
}

func (m *MetricsCollector) RecordCursorReset(team string) {
	m.cursorResets.WithLabelValues(team).Inc()
}

func (m *MetricsCollector) RecordNotification(channel string) {
	m.notificationsQueued.WithLabelValues(channel).Inc()
}

func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *MetricsCollector) StartMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.GetHandler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		m.logger.Info("Starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("Metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	m.logger.Info("Metrics collector shutdown complete")
	return nil
}
