package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/pkg/db"
)

const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeFailed    = "failed"
	WebhookOutcomeRetryable = "retryable"
	WebhookOutcomeRejected  = "rejected"
)

const (
	WebhookReasonReferencedEntityNotFound = "referenced_entity_not_found"
	WebhookReasonForeignKeyViolation      = "foreign_key_violation"
	WebhookReasonConnection               = "connection"
	WebhookReasonDeadlineExceeded         = "deadline_exceeded"
	WebhookReasonUnknown                  = "unknown"
)

// WebhookMetrics captures ingestion health for the identity sync pipeline.
type WebhookMetrics struct {
	events       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	failures     *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

var (
	webhookMetricsOnce sync.Once
	webhookMetrics     *WebhookMetrics
)

// Webhook returns the singleton webhook metrics registry.
func Webhook() *WebhookMetrics {
	return WebhookWithConfig(Config{})
}

// WebhookWithConfig returns the singleton webhook metrics registry using config labels.
func WebhookWithConfig(cfg Config) *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookMetrics = newWebhookMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return webhookMetrics
}

// ResetWebhookMetricsForTest resets the webhook metrics singleton for tests.
func ResetWebhookMetricsForTest() {
	webhookMetricsOnce = sync.Once{}
	webhookMetrics = nil
}

// NewWebhookMetricsForRegistry builds an unshared instance, for tests.
func NewWebhookMetricsForRegistry(registerer prometheus.Registerer) *WebhookMetrics {
	return newWebhookMetrics(registerer, Config{ServiceName: "fieldrunner", Environment: "test"})
}

func newWebhookMetrics(registerer prometheus.Registerer, cfg Config) *WebhookMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "fieldrunner"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldrunner_webhook_events_total",
		Help:        "Webhook deliveries by event type and outcome.",
		ConstLabels: constLabels,
	}, []string{"event_type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "fieldrunner_webhook_processing_seconds",
		Help:        "Time spent applying a verified webhook to the directory.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"event_type"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldrunner_webhook_failures_total",
		Help:        "Webhook processing failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason", "retryable"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "fieldrunner_webhook_cache_lookups_total",
		Help:        "Processed-event cache lookups by result.",
		ConstLabels: constLabels,
	}, []string{"result"})

	registerer.MustRegister(events, duration, failures, cacheLookups)

	return &WebhookMetrics{
		events:       events,
		duration:     duration,
		failures:     failures,
		cacheLookups: cacheLookups,
	}
}

// IncEvent counts a delivery by outcome.
func (m *WebhookMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeEventType(eventType), outcome).Inc()
}

// ObserveProcessing records handler latency.
func (m *WebhookMetrics) ObserveProcessing(eventType string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeEventType(eventType)).Observe(d.Seconds())
}

// IncFailure counts a processing failure with its classified reason.
func (m *WebhookMetrics) IncFailure(err error, retryable bool) {
	if m == nil || m.failures == nil || err == nil {
		return
	}
	flag := "false"
	if retryable {
		flag = "true"
	}
	m.failures.WithLabelValues(ClassifyWebhookFailureReason(err), flag).Inc()
}

// IncCacheLookup counts processed-event cache hits, misses and errors.
func (m *WebhookMetrics) IncCacheLookup(result string) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ClassifyWebhookFailureReason maps a processing error to a metric label.
func ClassifyWebhookFailureReason(err error) string {
	switch {
	case err == nil:
		return WebhookReasonUnknown
	case errors.Is(err, directorydomain.ErrReferencedEntityNotFound):
		return WebhookReasonReferencedEntityNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return WebhookReasonDeadlineExceeded
	}
	switch db.Classify(err) {
	case db.KindForeignKeyViolation:
		return WebhookReasonForeignKeyViolation
	case db.KindConnection:
		return WebhookReasonConnection
	default:
		return WebhookReasonUnknown
	}
}

// Unknown types would otherwise let a sender inflate label cardinality.
func normalizeEventType(eventType string) string {
	eventType = strings.TrimSpace(eventType)
	switch {
	case strings.HasPrefix(eventType, "user."),
		strings.HasPrefix(eventType, "organization."),
		strings.HasPrefix(eventType, "organizationMembership."),
		strings.HasPrefix(eventType, "organizationInvitation."),
		strings.HasPrefix(eventType, "organizationDomain."),
		strings.HasPrefix(eventType, "role."),
		strings.HasPrefix(eventType, "permission."):
		if len(eventType) <= 64 {
			return eventType
		}
	}
	return "other"
}
