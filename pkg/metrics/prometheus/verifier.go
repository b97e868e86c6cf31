package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittocheck/pkg/metrics"
)

// verifierMetrics is the Prometheus implementation of metrics.VerifierMetrics.
type verifierMetrics struct {
	verificationsTotal   *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
	objectsChecked       *prometheus.CounterVec
	invariantsChecked    *prometheus.CounterVec
	violationsTotal      *prometheus.CounterVec
	corruptionsTotal     *prometheus.CounterVec
	repairsTotal         *prometheus.CounterVec
	recoveryTriggers     prometheus.Counter
}

// NewVerifierMetrics creates a Prometheus-backed VerifierMetrics.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewVerifierMetrics() metrics.VerifierMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopVerifierMetrics()
	}

	reg := metrics.GetRegistry()

	return &verifierMetrics{
		verificationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_verifications_total",
				Help: "Total number of verification calls by operation and outcome",
			},
			[]string{"operation", "valid"},
		),
		verificationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittocheck_verification_duration_milliseconds",
				Help: "Duration of verification calls in milliseconds",
				Buckets: []float64{
					1,      // 1ms
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					100000, // 100s
				},
			},
			[]string{"operation"},
		),
		objectsChecked: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_objects_checked_total",
				Help: "Total number of filesystem objects checked",
			},
			[]string{"operation"},
		),
		invariantsChecked: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_invariants_checked_total",
				Help: "Total number of invariant evaluations",
			},
			[]string{"operation"},
		),
		violationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_violations_total",
				Help: "Total number of recorded violations",
			},
			[]string{"operation"},
		),
		corruptionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_corruptions_detected_total",
				Help: "Total number of positive corruption detections by object kind",
			},
			[]string{"kind"},
		),
		repairsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittocheck_repairs_total",
				Help: "Total number of repair attempts by outcome",
			},
			[]string{"status"},
		),
		recoveryTriggers: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittocheck_recovery_triggers_total",
				Help: "Total number of recovery callbacks invoked",
			},
		),
	}
}

func (m *verifierMetrics) ObserveVerification(operation string, duration time.Duration, valid bool, objects, invariants, violations int) {
	m.verificationsTotal.WithLabelValues(operation, strconv.FormatBool(valid)).Inc()
	m.verificationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000) // Convert to milliseconds
	m.objectsChecked.WithLabelValues(operation).Add(float64(objects))
	m.invariantsChecked.WithLabelValues(operation).Add(float64(invariants))
	m.violationsTotal.WithLabelValues(operation).Add(float64(violations))
}

func (m *verifierMetrics) RecordCorruption(kind string) {
	m.corruptionsTotal.WithLabelValues(kind).Inc()
}

func (m *verifierMetrics) RecordRepair(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.repairsTotal.WithLabelValues(status).Inc()
}

func (m *verifierMetrics) RecordRecoveryTrigger() {
	m.recoveryTriggers.Inc()
}
