package authorization

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

// Service decides whether a verified session may act on an organization
// scoped resource.
type Service interface {
	Authorize(ctx context.Context, principal authdomain.Principal, object string, action string) error
}
