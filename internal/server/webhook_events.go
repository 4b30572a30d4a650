package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/fieldrunner/internal/webhook/domain"
)

// webhookEventView leaves out the payload, which carries private metadata.
type webhookEventView struct {
	ID              string     `json:"id"`
	ProviderEventID string     `json:"provider_event_id"`
	EventType       string     `json:"event_type"`
	ProcessedAt     *time.Time `json:"processed_at"`
	Error           *string    `json:"error"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (s *Server) ListWebhookEvents(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil || limit < 0 {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}

	events, err := s.webhookSvc.ListEvents(c.Request.Context(), webhookdomain.ListFilter{
		Status:    strings.ToLower(strings.TrimSpace(c.Query("status"))),
		EventType: strings.TrimSpace(c.Query("event_type")),
		Limit:     limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items := make([]webhookEventView, 0, len(events))
	for _, event := range events {
		items = append(items, webhookEventView{
			ID:              event.ID.String(),
			ProviderEventID: event.ProviderEventID,
			EventType:       event.EventType,
			ProcessedAt:     event.ProcessedAt,
			Error:           event.Error,
			CreatedAt:       event.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
