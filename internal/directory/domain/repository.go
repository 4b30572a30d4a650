package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	// Upserts are keyed on clerk_id and overwrite every mapped column except
	// the keys. deleted_at is never touched.
	UpsertUser(ctx context.Context, user User) error
	UpsertOrganization(ctx context.Context, org Organization) error
	UpsertMembership(ctx context.Context, membership Membership) error

	// SoftDelete stamps deleted_at and reports how many rows matched.
	SoftDelete(ctx context.Context, entity Entity, clerkID string, at time.Time) (int64, error)

	// Lookups ignore deleted_at so historical memberships keep resolving.
	FindOrganizationIDByClerkID(ctx context.Context, clerkID string) (snowflake.ID, bool, error)
	FindUserIDByClerkID(ctx context.Context, clerkID string) (snowflake.ID, bool, error)

	GetUserByClerkID(ctx context.Context, clerkID string) (*User, error)
	GetOrganizationByClerkID(ctx context.Context, clerkID string) (*Organization, error)
	GetMembershipByClerkID(ctx context.Context, clerkID string) (*Membership, error)
	ListActiveMembers(ctx context.Context, organizationID snowflake.ID) ([]Member, error)
}
