package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the core's counters, registered against the injected
// registry once at startup.
type Metrics struct {
	ScoreSubmissions   *prometheus.CounterVec
	AnomaliesFlagged   *prometheus.CounterVec
	RecheckTransitions *prometheus.CounterVec
	PaymentsCaptured   prometheus.Counter
	AmountCaptured     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScoreSubmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "festival",
			Name:      "score_submissions_total",
			Help:      "Score submissions, labelled by whether they were flagged.",
		}, []string{"flagged"}),
		AnomaliesFlagged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "festival",
			Name:      "anomalies_flagged_total",
			Help:      "Flagged submissions by severity and detection method.",
		}, []string{"severity", "method"}),
		RecheckTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "festival",
			Name:      "recheck_transitions_total",
			Help:      "Recheck state machine transitions by kind and outcome.",
		}, []string{"transition", "outcome"}),
		PaymentsCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "festival",
			Name:      "payments_captured_total",
			Help:      "Payments captured against recheck requests.",
		}),
		AmountCaptured: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "festival",
			Name:      "amount_captured_total",
			Help:      "Total captured amount in the smallest currency unit.",
		}),
	}
}
