package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldrunner/internal/webhook/signature"
)

const maxWebhookBodyBytes = 1 << 20

// ReceiveWebhook verifies and applies one provider delivery. The body is read
// raw since the signature covers the exact bytes sent.
func (s *Server) ReceiveWebhook(c *gin.Context) {
	headers := signature.HeadersFrom(c.Request.Header)
	if headers.ID != "" {
		c.Set("event_id", headers.ID)
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, newValidationError("body", "unreadable", "request body could not be read"))
		return
	}

	outcome, err := s.webhookSvc.Ingest(c.Request.Context(), payload, headers)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}
