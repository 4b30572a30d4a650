package domain

import "errors"

var (
	ErrMissingBody      = errors.New("missing_body")
	ErrMissingHeaders   = errors.New("missing_headers")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrEventNotFound    = errors.New("event_not_found")
	ErrInvalidFilter    = errors.New("invalid_filter")
	ErrEventInFlight    = errors.New("event_in_flight")
)

// RetryableError marks a processing failure the provider should redeliver.
type RetryableError struct {
	EventID string
	Err     error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err carries a *RetryableError.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	return errors.As(err, &retryable)
}
