package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound       = errors.New("not_found")
	ErrInvalidClerkID = errors.New("invalid_clerk_id")
	ErrInvalidEntity  = errors.New("invalid_entity")

	// ErrReferencedEntityNotFound matches any *ReferencedEntityNotFoundError.
	ErrReferencedEntityNotFound = errors.New("referenced entity not found")
)

// ReferencedEntityNotFoundError reports a membership whose organization or
// user has not been synced yet. The provider redelivers the event later, by
// which time the referenced rows usually exist.
type ReferencedEntityNotFoundError struct {
	OrganizationClerkID string
	UserClerkID         string
	OrganizationFound   bool
	UserFound           bool
}

func (e *ReferencedEntityNotFoundError) Error() string {
	missing := make([]string, 0, 2)
	if !e.OrganizationFound {
		missing = append(missing, fmt.Sprintf("organization %s", e.OrganizationClerkID))
	}
	if !e.UserFound {
		missing = append(missing, fmt.Sprintf("user %s", e.UserClerkID))
	}
	return fmt.Sprintf("%s: %s (organization=%s user=%s)",
		ErrReferencedEntityNotFound.Error(),
		strings.Join(missing, " and "),
		e.OrganizationClerkID,
		e.UserClerkID,
	)
}

func (e *ReferencedEntityNotFoundError) Is(target error) bool {
	return target == ErrReferencedEntityNotFound
}
