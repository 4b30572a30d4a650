package domain

import "context"

// Service is the only writer of directory tables.
type Service interface {
	ApplyUser(ctx context.Context, user User) error
	DeleteUser(ctx context.Context, clerkID string) error
	ApplyOrganization(ctx context.Context, org Organization) error
	DeleteOrganization(ctx context.Context, clerkID string) error
	ApplyMembership(ctx context.Context, membership Membership, refs MembershipRefs) error
	DeleteMembership(ctx context.Context, clerkID string) error

	GetUser(ctx context.Context, clerkID string) (*User, error)
	GetOrganization(ctx context.Context, clerkID string) (*Organization, error)
	ListOrganizationMembers(ctx context.Context, organizationClerkID string) ([]Member, error)
}
