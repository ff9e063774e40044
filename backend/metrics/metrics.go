package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// AnalysesTotal counts content assessments by kind (dirtiness|cleanliness)
	// and the strategy that produced them.
	AnalysesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "vision",
		Name:      "analyses_total",
		Help:      "Total number of content assessments, labeled by kind and producing strategy.",
	}, []string{"kind", "strategy"})

	// FallbacksTotal counts heuristic fallbacks by reason
	// (not_configured|timeout|error).
	FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "vision",
		Name:      "fallbacks_total",
		Help:      "Total number of assessments served by the heuristic fallback, labeled by kind and reason.",
	}, []string{"kind", "reason"})

	RemoteDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vukamap",
		Subsystem: "vision",
		Name:      "remote_duration_seconds",
		Help:      "Latency of remote vision calls, labeled by kind and result.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
	}, []string{"kind", "result"})

	// ReportsTotal counts accepted reports by GPS evidence
	// (validated|mismatch|missing).
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "pipeline",
		Name:      "reports_total",
		Help:      "Total number of accepted pollution reports, labeled by GPS evidence.",
	}, []string{"gps"})

	// VerificationsTotal counts cleanup verdicts (verified|unverified).
	VerificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "pipeline",
		Name:      "verifications_total",
		Help:      "Total number of cleanup verification verdicts.",
	}, []string{"result"})

	ResolutionConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "pipeline",
		Name:      "resolution_conflicts_total",
		Help:      "Total number of cleanup attempts rejected because the report was already resolved.",
	})

	CreditsAwardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vukamap",
		Subsystem: "pipeline",
		Name:      "credits_awarded_total",
		Help:      "Total eco-credits credited to claimants.",
	})
)

// Register registers the collectors with the default registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			AnalysesTotal,
			FallbacksTotal,
			RemoteDurationSeconds,
			ReportsTotal,
			VerificationsTotal,
			ResolutionConflictsTotal,
			CreditsAwardedTotal,
		)
	})
}
