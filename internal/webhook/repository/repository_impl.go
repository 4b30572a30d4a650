package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.EventRepository {
	return &repository{db: db}
}

func (r *repository) InsertEvent(ctx context.Context, event *domain.Event) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, provider_event_id, event_type, payload, processed_at, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_event_id) DO NOTHING`,
		event.ID,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ProcessedAt,
		event.Error,
		event.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByProviderEventID(ctx context.Context, providerEventID string) (*domain.Event, error) {
	var event domain.Event
	err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		Take(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) ClearError(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET error = NULL WHERE id = ?`,
		id,
	).Error
}

func (r *repository) MarkProcessed(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed_at = ?, error = NULL
		 WHERE id = ? AND processed_at IS NULL`,
		at,
		id,
	).Error
}

func (r *repository) MarkFailed(ctx context.Context, id snowflake.ID, message string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE webhook_events SET error = ? WHERE id = ?`,
		message,
		id,
	).Error
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Event, error) {
	query := r.db.WithContext(ctx).Model(&domain.Event{})

	switch filter.Status {
	case domain.FilterStatusFailed:
		query = query.Where("processed_at IS NULL AND error IS NOT NULL")
	case domain.FilterStatusProcessed:
		query = query.Where("processed_at IS NOT NULL")
	case domain.FilterStatusPending:
		query = query.Where("processed_at IS NULL AND error IS NULL")
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var events []domain.Event
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
