package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventRepository interface {
	// InsertEvent reports false when an event with the same provider id
	// already exists.
	InsertEvent(ctx context.Context, event *Event) (bool, error)
	FindByProviderEventID(ctx context.Context, providerEventID string) (*Event, error)
	ClearError(ctx context.Context, id snowflake.ID) error
	MarkProcessed(ctx context.Context, id snowflake.ID, at time.Time) error
	MarkFailed(ctx context.Context, id snowflake.ID, message string) error
	List(ctx context.Context, filter ListFilter) ([]Event, error)
}

type Verifier interface {
	Verify(payload []byte, headers SignatureHeaders) (*Envelope, error)
}

// ProcessedCache remembers provider event ids that reached the processed
// state. Implementations may forget entries at any time.
type ProcessedCache interface {
	IsProcessed(ctx context.Context, providerEventID string) (bool, error)
	MarkProcessed(ctx context.Context, providerEventID string) error
}

// EventLocker serializes processing of a single provider event across
// replicas. TryLock reports false when another holder owns the lock.
type EventLocker interface {
	TryLock(ctx context.Context, providerEventID string) (token string, ok bool, err error)
	Release(ctx context.Context, providerEventID, token string) error
}

type Service interface {
	Ingest(ctx context.Context, payload []byte, headers SignatureHeaders) (*Outcome, error)
	LogEvent(ctx context.Context, providerEventID string, eventType EventType, payload []byte) (LogResult, error)
	ProcessEvent(ctx context.Context, envelope *Envelope) error
	MarkProcessed(ctx context.Context, id snowflake.ID) error
	MarkFailed(ctx context.Context, id snowflake.ID, message string) error
	ListEvents(ctx context.Context, filter ListFilter) ([]Event, error)
}
