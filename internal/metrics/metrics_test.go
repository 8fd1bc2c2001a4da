package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.PairSeen()
	m.PairSeen()
	m.PairIgnored("no_quote")
	m.CandidateRecorded("REJECT")
	m.AnalysisCall("analysecode", "ok", 20*time.Millisecond)
	m.SetSubscriptionState(1)
	m.Reconnected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PairsSeen))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PairsIgnored.WithLabelValues("no_quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Candidates.WithLabelValues("REJECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysisRequests.WithLabelValues("analysecode", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubscriptionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconnects))

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PairSeen()
		m.PairIgnored("x")
		m.CandidateRecorded("x")
		m.AnalysisCall("x", "x", time.Second)
		m.BreakerStateChanged("open")
		m.SetSubscriptionState(0)
		m.Reconnected()
		m.FocusUpdated("x", "x")
	})
}
