package service

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/fieldrunner/internal/config"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/pkg/db"
)

func (s *Service) IsRetryable(err error) bool {
	return IsRetryable(err, s.policy.Get())
}

// IsRetryable reports whether redelivering the event could succeed without
// a code change. Typed storage errors are checked first; the policy's
// message patterns catch errors that arrive as plain text.
func IsRetryable(err error, policy config.WebhookPolicy) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, directorydomain.ErrReferencedEntityNotFound) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}
	switch db.Classify(err) {
	case db.KindForeignKeyViolation, db.KindConnection:
		return true
	}

	message := strings.ToLower(err.Error())
	for _, pattern := range policy.RetryPatterns {
		if pattern != "" && strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}
