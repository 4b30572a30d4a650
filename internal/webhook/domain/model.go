// Package domain defines the webhook event log and the provider payloads
// delivered to the ingestion endpoint.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event is one row of the delivery log, keyed by the provider's message id.
// ProcessedAt is set once on the first successful processing and never
// cleared. Error holds the last failure and is cleared on reprocessing.
type Event struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	ProviderEventID string         `json:"provider_event_id" gorm:"column:provider_event_id;type:text;not null;uniqueIndex:ux_webhook_events_provider_event_id"`
	EventType       string         `json:"event_type" gorm:"column:event_type;type:text;not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"column:payload;type:jsonb;not null"`
	ProcessedAt     *time.Time     `json:"processed_at" gorm:"column:processed_at"`
	Error           *string        `json:"error" gorm:"column:error;type:text"`
	CreatedAt       time.Time      `json:"created_at" gorm:"column:created_at;not null;autoCreateTime:false"`
}

func (Event) TableName() string { return "webhook_events" }

// Processed reports whether the event reached its terminal state.
func (e Event) Processed() bool { return e.ProcessedAt != nil }

// Envelope is the verified delivery body.
type Envelope struct {
	Type      EventType       `json:"type"`
	Object    string          `json:"object"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// SignatureHeaders are the three headers the provider signs every delivery with.
type SignatureHeaders struct {
	ID        string
	Timestamp string
	Signature string
}

const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Missing lists the names of the headers that are empty.
func (h SignatureHeaders) Missing() []string {
	var missing []string
	if h.ID == "" {
		missing = append(missing, HeaderID)
	}
	if h.Timestamp == "" {
		missing = append(missing, HeaderTimestamp)
	}
	if h.Signature == "" {
		missing = append(missing, HeaderSignature)
	}
	return missing
}

// LogResult is the outcome of recording a delivery.
type LogResult struct {
	EventID snowflake.ID
	IsNew   bool
}

type Status string

const (
	StatusProcessed Status = "processed"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Outcome is the acknowledgement returned to the provider.
type Outcome struct {
	Status  Status `json:"status"`
	EventID string `json:"eventId"`
	Error   string `json:"error,omitempty"`
}

// ListFilter narrows the operator listing of the delivery log.
type ListFilter struct {
	Status    string
	EventType string
	Limit     int
}

const (
	FilterStatusFailed    = "failed"
	FilterStatusProcessed = "processed"
	FilterStatusPending   = "pending"
)
