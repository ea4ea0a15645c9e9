package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the KYC workflow. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions       *prometheus.CounterVec
	DocumentsStored   prometheus.Counter
	DuplicateRejected *prometheus.CounterVec
	UploadURLsIssued  prometheus.Counter
	WebhookOutcomes   *prometheus.CounterVec
	ReviewQueueSize   prometheus.Histogram
	WebhookDuration   prometheus.Histogram
}

// New registers all KYC metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigmarket_kyc_transitions_total",
			Help: "Session status transitions by target status and actor type",
		}, []string{"to_status", "actor_type"}),
		DocumentsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "gigmarket_kyc_documents_stored_total",
			Help: "Identity documents registered",
		}),
		DuplicateRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigmarket_kyc_duplicate_documents_total",
			Help: "Duplicate document registrations by the layer that caught them (check, constraint)",
		}, []string{"layer"}),
		UploadURLsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "gigmarket_kyc_upload_urls_issued_total",
			Help: "Presigned upload credentials issued",
		}),
		WebhookOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gigmarket_kyc_webhooks_total",
			Help: "Provider webhook deliveries by outcome",
		}, []string{"outcome"}),
		ReviewQueueSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gigmarket_kyc_review_queue_items",
			Help:    "Items returned per review queue listing",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		WebhookDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gigmarket_kyc_webhook_duration_seconds",
			Help:    "Duration of provider webhook processing",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncTransition(toStatus, actorType string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(toStatus, actorType).Inc()
}

func (m *Metrics) IncDocumentStored() {
	if m == nil {
		return
	}
	m.DocumentsStored.Inc()
}

// IncDuplicate records a duplicate caught by the existence check ("check")
// or by the unique index ("constraint").
func (m *Metrics) IncDuplicate(layer string) {
	if m == nil {
		return
	}
	m.DuplicateRejected.WithLabelValues(layer).Inc()
}

func (m *Metrics) IncUploadURLIssued() {
	if m == nil {
		return
	}
	m.UploadURLsIssued.Inc()
}

func (m *Metrics) IncWebhook(outcome string) {
	if m == nil {
		return
	}
	m.WebhookOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReviewQueue(items int) {
	if m == nil {
		return
	}
	m.ReviewQueueSize.Observe(float64(items))
}

// ObserveWebhook records the duration since start.
func (m *Metrics) ObserveWebhook(start time.Time) {
	if m == nil {
		return
	}
	m.WebhookDuration.Observe(time.Since(start).Seconds())
}
