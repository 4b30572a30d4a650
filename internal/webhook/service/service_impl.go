package service

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	obscontext "github.com/smallbiznis/fieldrunner/internal/observability/context"
	"github.com/smallbiznis/fieldrunner/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Repo           domain.EventRepository
	Directory      directorydomain.Service
	Verifier       domain.Verifier
	Policy         *config.WebhookPolicyHolder
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Cache          domain.ProcessedCache      `optional:"true"`
	Locker         domain.EventLocker         `optional:"true"`
	Metrics        *obsmetrics.Metrics        `optional:"true"`
	WebhookMetrics *obsmetrics.WebhookMetrics `optional:"true"`
}

type Service struct {
	repo           domain.EventRepository
	directory      directorydomain.Service
	verifier       domain.Verifier
	policy         *config.WebhookPolicyHolder
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	cache          domain.ProcessedCache
	locker         domain.EventLocker
	inflight       *inflightSet
	metrics        *obsmetrics.Metrics
	webhookMetrics *obsmetrics.WebhookMetrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		repo:           p.Repo,
		directory:      p.Directory,
		verifier:       p.Verifier,
		policy:         p.Policy,
		log:            p.Log.Named("webhook.service"),
		genID:          p.GenID,
		clock:          clk,
		cache:          p.Cache,
		locker:         p.Locker,
		inflight:       newInflightSet(),
		metrics:        p.Metrics,
		webhookMetrics: p.WebhookMetrics,
	}
}

// Ingest authenticates a delivery, records it in the event log and applies
// it once. A *domain.RetryableError asks the provider to redeliver; a failed
// Outcome acknowledges a delivery that redelivery cannot fix.
func (s *Service) Ingest(ctx context.Context, payload []byte, headers domain.SignatureHeaders) (*domain.Outcome, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		s.reject(ctx, domain.ErrMissingBody)
		return nil, domain.ErrMissingBody
	}
	if missing := headers.Missing(); len(missing) > 0 {
		s.reject(ctx, domain.ErrMissingHeaders)
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingHeaders, strings.Join(missing, ", "))
	}

	envelope, err := s.verifier.Verify(payload, headers)
	if err != nil {
		s.reject(ctx, err)
		return nil, domain.ErrInvalidSignature
	}

	eventID := headers.ID
	eventType := string(envelope.Type)
	ctx = obscontext.WithEventID(ctx, eventID)
	log := logger.WithEvent(logger.WithContext(ctx, s.log), eventID, eventType)

	if s.cachedAsProcessed(ctx, log, eventID) {
		log.Debug("webhook event already processed, cache hit")
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeDuplicate)
		return &domain.Outcome{Status: domain.StatusDuplicate, EventID: eventID}, nil
	}

	release, err := s.acquire(ctx, log, eventID)
	if err != nil {
		log.Info("webhook event is being processed elsewhere")
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeRetryable)
		return nil, &domain.RetryableError{EventID: eventID, Err: err}
	}
	defer release()

	// Once the lock is held the event runs to completion or failure even if
	// the caller goes away, so the log row always ends in a recorded state.
	ctx = context.WithoutCancel(ctx)

	result, err := s.LogEvent(ctx, eventID, envelope.Type, payload)
	if err != nil {
		log.Error("failed to log webhook event", zap.Error(err))
		s.webhookMetrics.IncFailure(err, true)
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeRetryable)
		return nil, &domain.RetryableError{EventID: eventID, Err: fmt.Errorf("log event: %w", err)}
	}
	if !result.IsNew {
		log.Info("duplicate webhook event skipped")
		s.rememberProcessed(ctx, log, eventID)
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeDuplicate)
		return &domain.Outcome{Status: domain.StatusDuplicate, EventID: eventID}, nil
	}

	start := time.Now()
	procErr := s.ProcessEvent(ctx, envelope)
	s.webhookMetrics.ObserveProcessing(eventType, time.Since(start))

	if procErr == nil {
		if err := s.MarkProcessed(ctx, result.EventID); err != nil {
			// The upserts already landed and are idempotent, so a
			// redelivery converges to the same rows.
			log.Error("failed to mark webhook event processed", zap.Error(err))
			s.webhookMetrics.IncFailure(err, true)
			s.record(ctx, eventType, obsmetrics.WebhookOutcomeRetryable)
			return nil, &domain.RetryableError{EventID: eventID, Err: fmt.Errorf("mark processed: %w", err)}
		}
		s.rememberProcessed(ctx, log, eventID)
		log.Info("webhook event processed")
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeProcessed)
		return &domain.Outcome{Status: domain.StatusProcessed, EventID: eventID}, nil
	}

	message := procErr.Error()
	if err := s.MarkFailed(ctx, result.EventID, message); err != nil {
		log.Error("failed to record webhook failure", zap.Error(err), zap.String("processing_error", message))
	}

	retryable := s.IsRetryable(procErr)
	s.webhookMetrics.IncFailure(procErr, retryable)
	if retryable {
		log.Warn("webhook processing failed, provider will retry", zap.Error(procErr))
		s.record(ctx, eventType, obsmetrics.WebhookOutcomeRetryable)
		return nil, &domain.RetryableError{EventID: eventID, Err: procErr}
	}

	log.Error("webhook processing failed permanently", zap.Error(procErr))
	s.record(ctx, eventType, obsmetrics.WebhookOutcomeFailed)
	return &domain.Outcome{Status: domain.StatusFailed, EventID: eventID, Error: message}, nil
}

// LogEvent records a delivery. A first sighting, or a redelivery of an event
// that never finished, is new; a redelivery of a processed event is not.
func (s *Service) LogEvent(ctx context.Context, providerEventID string, eventType domain.EventType, payload []byte) (domain.LogResult, error) {
	event := &domain.Event{
		ID:              s.genID.Generate(),
		ProviderEventID: providerEventID,
		EventType:       string(eventType),
		Payload:         datatypes.JSON(payload),
		CreatedAt:       s.clock.Now(),
	}

	inserted, err := s.repo.InsertEvent(ctx, event)
	if err != nil {
		return domain.LogResult{}, err
	}
	if inserted {
		return domain.LogResult{EventID: event.ID, IsNew: true}, nil
	}

	existing, err := s.repo.FindByProviderEventID(ctx, providerEventID)
	if err != nil {
		return domain.LogResult{}, err
	}
	if existing.Processed() {
		return domain.LogResult{EventID: existing.ID, IsNew: false}, nil
	}

	if err := s.repo.ClearError(ctx, existing.ID); err != nil {
		return domain.LogResult{}, err
	}
	s.log.Info("reprocessing unfinished webhook event",
		zap.String("event_id", providerEventID),
		zap.String("event_type", string(eventType)),
	)
	return domain.LogResult{EventID: existing.ID, IsNew: true}, nil
}

func (s *Service) MarkProcessed(ctx context.Context, id snowflake.ID) error {
	return s.repo.MarkProcessed(ctx, id, s.clock.Now())
}

func (s *Service) MarkFailed(ctx context.Context, id snowflake.ID, message string) error {
	return s.repo.MarkFailed(ctx, id, message)
}

func (s *Service) ListEvents(ctx context.Context, filter domain.ListFilter) ([]domain.Event, error) {
	switch filter.Status {
	case "", domain.FilterStatusFailed, domain.FilterStatusProcessed, domain.FilterStatusPending:
	default:
		return nil, domain.ErrInvalidFilter
	}
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}

func (s *Service) cachedAsProcessed(ctx context.Context, log *zap.Logger, eventID string) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.IsProcessed(ctx, eventID)
	if err != nil {
		log.Warn("processed event cache lookup failed", zap.Error(err))
		s.webhookMetrics.IncCacheLookup("error")
		return false
	}
	if ok {
		s.webhookMetrics.IncCacheLookup("hit")
	} else {
		s.webhookMetrics.IncCacheLookup("miss")
	}
	return ok
}

func (s *Service) rememberProcessed(ctx context.Context, log *zap.Logger, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.MarkProcessed(ctx, eventID); err != nil {
		log.Warn("processed event cache write failed", zap.Error(err))
	}
}

func (s *Service) reject(ctx context.Context, err error) {
	s.log.Warn("webhook delivery rejected", zap.Error(err))
	s.record(ctx, "", obsmetrics.WebhookOutcomeRejected)
}

func (s *Service) record(ctx context.Context, eventType, outcome string) {
	s.webhookMetrics.IncEvent(eventType, outcome)
	s.metrics.RecordWebhookDelivery(ctx, eventType, outcome)
}

// acquire serializes deliveries of one event. The in-process lock always
// applies; the distributed lock, when configured, extends it across
// replicas. Distributed lock errors fall back to the in-process lock alone.
func (s *Service) acquire(ctx context.Context, log *zap.Logger, providerEventID string) (func(), error) {
	if !s.inflight.tryLock(providerEventID) {
		return nil, domain.ErrEventInFlight
	}
	unlockLocal := func() { s.inflight.unlock(providerEventID) }
	if s.locker == nil {
		return unlockLocal, nil
	}

	token, ok, err := s.locker.TryLock(ctx, providerEventID)
	if err != nil {
		log.Warn("webhook event lock unavailable", zap.Error(err))
		return unlockLocal, nil
	}
	if !ok {
		unlockLocal()
		return nil, domain.ErrEventInFlight
	}

	return func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), providerEventID, token); err != nil {
			log.Warn("failed to release webhook event lock", zap.Error(err))
		}
		unlockLocal()
	}, nil
}
