package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the engine's operational metrics via Prometheus.
// A nil Recorder is valid and records nothing.
type Recorder struct {
	cyclesTotal       prometheus.Counter
	blendedVolatility *prometheus.GaugeVec
	regimeTransitions *prometheus.CounterVec
	assessmentsTotal  *prometheus.CounterVec
	sizingsTotal      *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
}

// New creates a Prometheus metrics recorder registered on reg
func New(namespace string, reg prometheus.Registerer) *Recorder {
	if namespace == "" {
		namespace = "volguard"
	}
	factory := promauto.With(reg)

	return &Recorder{
		cyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of completed slow-path recompute cycles",
		}),
		blendedVolatility: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blended_volatility",
			Help:      "Latest published blended volatility estimate per instrument",
		}, []string{"symbol"}),
		regimeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regime_transitions_total",
			Help:      "Total number of regime transitions",
		}, []string{"symbol", "to_regime"}),
		assessmentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Total number of trade risk assessments by resulting level",
		}, []string{"risk_level"}),
		sizingsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sizings_total",
			Help:      "Total number of sizing recommendations by outcome",
		}, []string{"outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of slow-path recompute cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// RecordCycle records a completed slow-path cycle and its duration
func (r *Recorder) RecordCycle(seconds float64) {
	if r == nil {
		return
	}
	r.cyclesTotal.Inc()
	r.cycleDuration.Observe(seconds)
}

// RecordEstimate records the latest blended volatility for an instrument
func (r *Recorder) RecordEstimate(symbol string, blended float64) {
	if r == nil {
		return
	}
	r.blendedVolatility.WithLabelValues(symbol).Set(blended)
}

// RecordTransition records a regime transition
func (r *Recorder) RecordTransition(symbol, toRegime string) {
	if r == nil {
		return
	}
	r.regimeTransitions.WithLabelValues(symbol, toRegime).Inc()
}

// RecordAssessment records a trade assessment by risk level
func (r *Recorder) RecordAssessment(level string) {
	if r == nil {
		return
	}
	r.assessmentsTotal.WithLabelValues(level).Inc()
}

// RecordSizing records a sizing recommendation outcome
func (r *Recorder) RecordSizing(rejected bool) {
	if r == nil {
		return
	}
	outcome := "accepted"
	if rejected {
		outcome = "rejected"
	}
	r.sizingsTotal.WithLabelValues(outcome).Inc()
}
