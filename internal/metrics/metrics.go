package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the detector's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PairsSeen         prometheus.Counter
	PairsIgnored      *prometheus.CounterVec
	Candidates        *prometheus.CounterVec
	AnalysisRequests  *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	BreakerTrips      *prometheus.CounterVec
	SubscriptionState prometheus.Gauge
	Reconnects        prometheus.Counter
	FocusUpdates      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PairsSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pair_detector_pairs_seen_total",
			Help: "Total number of PairCreated events received",
		}),
		PairsIgnored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_detector_pairs_ignored_total",
			Help: "Events dropped before a candidate was recorded, by reason",
		}, []string{"reason"}),
		Candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_detector_candidates_total",
			Help: "Candidates recorded in the detected list, by decision",
		}, []string{"decision"}),
		AnalysisRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_detector_analysis_requests_total",
			Help: "Remote analysis calls, by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pair_detector_analysis_duration_seconds",
			Help:    "Latency of remote analysis calls including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_detector_breaker_state_changes_total",
			Help: "Circuit breaker transitions, by target state",
		}, []string{"state"}),
		SubscriptionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pair_detector_subscription_state",
			Help: "Subscription lifecycle state (0=idle, 1=subscribed, 2=teardown)",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pair_detector_reconnects_total",
			Help: "Times the pair subscription was re-established",
		}),
		FocusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pair_detector_focus_updates_total",
			Help: "Focus record field writes, by field and status",
		}, []string{"field", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.PairsSeen,
			m.PairsIgnored,
			m.Candidates,
			m.AnalysisRequests,
			m.AnalysisDuration,
			m.BreakerTrips,
			m.SubscriptionState,
			m.Reconnects,
			m.FocusUpdates,
		)
	}
	return m
}

func (m *Metrics) PairSeen() {
	if m == nil {
		return
	}
	m.PairsSeen.Inc()
}

func (m *Metrics) PairIgnored(reason string) {
	if m == nil {
		return
	}
	m.PairsIgnored.WithLabelValues(reason).Inc()
}

func (m *Metrics) CandidateRecorded(decision string) {
	if m == nil {
		return
	}
	m.Candidates.WithLabelValues(decision).Inc()
}

func (m *Metrics) AnalysisCall(endpoint, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.AnalysisRequests.WithLabelValues(endpoint, outcome).Inc()
	m.AnalysisDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func (m *Metrics) BreakerStateChanged(to string) {
	if m == nil {
		return
	}
	m.BreakerTrips.WithLabelValues(to).Inc()
}

func (m *Metrics) SetSubscriptionState(v int) {
	if m == nil {
		return
	}
	m.SubscriptionState.Set(float64(v))
}

func (m *Metrics) Reconnected() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

func (m *Metrics) FocusUpdated(field, status string) {
	if m == nil {
		return
	}
	m.FocusUpdates.WithLabelValues(field, status).Inc()
}
