// Package signature authenticates webhook deliveries signed by the provider.
package signature

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/smallbiznis/fieldrunner/internal/config"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	svix "github.com/svix/svix-webhooks/go"
)

var ErrInvalidSecret = errors.New("invalid_webhook_secret")

type Verifier struct {
	wh *svix.Webhook
}

func NewVerifier(cfg config.Config) (domain.Verifier, error) {
	return NewVerifierWithSecret(cfg.Clerk.WebhookSigningSecret)
}

func NewVerifierWithSecret(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, config.ErrMissingWebhookSecret
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return &Verifier{wh: wh}, nil
}

// Verify checks the signature over the raw request bytes and decodes the
// envelope. Every failure is reported as ErrInvalidSignature.
func (v *Verifier) Verify(payload []byte, headers domain.SignatureHeaders) (*domain.Envelope, error) {
	if len(headers.Missing()) > 0 {
		return nil, domain.ErrInvalidSignature
	}

	h := http.Header{}
	h.Set(domain.HeaderID, headers.ID)
	h.Set(domain.HeaderTimestamp, headers.Timestamp)
	h.Set(domain.HeaderSignature, headers.Signature)

	if err := v.wh.Verify(payload, h); err != nil {
		return nil, domain.ErrInvalidSignature
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, domain.ErrInvalidSignature
	}
	if envelope.Type == "" {
		return nil, domain.ErrInvalidSignature
	}
	return &envelope, nil
}

// HeadersFrom extracts the signature headers from an HTTP request.
func HeadersFrom(h http.Header) domain.SignatureHeaders {
	return domain.SignatureHeaders{
		ID:        strings.TrimSpace(h.Get(domain.HeaderID)),
		Timestamp: strings.TrimSpace(h.Get(domain.HeaderTimestamp)),
		Signature: strings.TrimSpace(h.Get(domain.HeaderSignature)),
	}
}
