package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncTransition("SUBMITTED", "USER")
	m.IncTransition("SUBMITTED", "USER")
	m.IncDuplicate("constraint")
	m.IncWebhook("replayed")
	m.ObserveWebhook(time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("SUBMITTED", "USER")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DuplicateRejected.WithLabelValues("constraint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookOutcomes.WithLabelValues("replayed")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTransition("VERIFIED", "ADMIN")
		m.IncDocumentStored()
		m.IncDuplicate("check")
		m.IncUploadURLIssued()
		m.IncWebhook("accepted")
		m.ObserveReviewQueue(3)
		m.ObserveWebhook(time.Now())
	})
}
