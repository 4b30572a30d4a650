package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	directoryrepo "github.com/smallbiznis/fieldrunner/internal/directory/repository"
	directorysvc "github.com/smallbiznis/fieldrunner/internal/directory/service"
	"github.com/smallbiznis/fieldrunner/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, directorydomain.Models()...)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	svc := NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer})
	return svc, db
}

func seedMembership(t *testing.T, db *gorm.DB, role string) directorydomain.Service {
	t.Helper()
	ctx := context.Background()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dir := directorysvc.NewService(directorysvc.Params{
		Repo:  directoryrepo.NewRepository(db),
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(now),
	})
	require.NoError(t, dir.ApplyOrganization(ctx, directorydomain.Organization{
		ClerkID: "org_1", Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, dir.ApplyUser(ctx, directorydomain.User{
		ClerkID: "user_1", CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, dir.ApplyMembership(ctx, directorydomain.Membership{
		ClerkID: "orgmem_1", Role: role, CreatedAt: now, UpdatedAt: now,
	}, directorydomain.MembershipRefs{OrganizationClerkID: "org_1", UserClerkID: "user_1"}))
	return dir
}

func principal(role string) authdomain.Principal {
	return authdomain.Principal{
		UserID:    "user_1",
		SessionID: "sess_1",
		OrgID:     "org_1",
		OrgSlug:   "acme",
		OrgRole:   role,
	}
}

func TestAuthorizeByTokenRole(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		role   string
		object string
		action string
		err    error
	}{
		{"admin lists members", RoleAdmin, ObjectMembership, ActionList, nil},
		{"admin lists webhook events", RoleAdmin, ObjectWebhookEvent, ActionList, nil},
		{"admin reads organization", RoleAdmin, ObjectOrganization, ActionRead, nil},
		{"member reads organization", RoleMember, ObjectOrganization, ActionRead, nil},
		{"member cannot list members", RoleMember, ObjectMembership, ActionList, ErrForbidden},
		{"member cannot list webhook events", RoleMember, ObjectWebhookEvent, ActionList, ErrForbidden},
		{"unprefixed role is normalized", "admin", ObjectMembership, ActionList, nil},
		{"custom role has no grants", "org:billing", ObjectOrganization, ActionRead, ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Authorize(ctx, principal(tt.role), tt.object, tt.action)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, principal(RoleAdmin), ObjectMembership, ActionList))
	assert.ErrorIs(t, svc.Authorize(ctx, principal(RoleMember), ObjectMembership, ActionList), ErrForbidden)
	require.NoError(t, svc.Authorize(ctx, principal(RoleAdmin), ObjectMembership, ActionList))
}

func TestAuthorizeRolesAreScopedToOrganization(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, principal(RoleAdmin), ObjectMembership, ActionList))

	other := principal(RoleMember)
	other.OrgID = "org_2"
	assert.ErrorIs(t, svc.Authorize(ctx, other, ObjectMembership, ActionList), ErrForbidden)
}

func TestAuthorizeFallsBackToSyncedMembership(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, principal(""), ObjectOrganization, ActionRead), ErrForbidden)

	dir := seedMembership(t, db, RoleAdmin)
	require.NoError(t, svc.Authorize(ctx, principal(""), ObjectMembership, ActionList))

	require.NoError(t, dir.DeleteMembership(ctx, "orgmem_1"))
	assert.ErrorIs(t, svc.Authorize(ctx, principal(""), ObjectOrganization, ActionRead), ErrForbidden)
}

func TestAuthorizeRejectsIncompleteRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	noUser := principal(RoleAdmin)
	noUser.UserID = " "
	assert.ErrorIs(t, svc.Authorize(ctx, noUser, ObjectOrganization, ActionRead), ErrInvalidActor)

	noOrg := principal(RoleAdmin)
	noOrg.OrgID = ""
	assert.ErrorIs(t, svc.Authorize(ctx, noOrg, ObjectOrganization, ActionRead), ErrInvalidOrganization)

	assert.ErrorIs(t, svc.Authorize(ctx, principal(RoleAdmin), "", ActionRead), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, principal(RoleAdmin), ObjectOrganization, ""), ErrInvalidAction)
}

func TestNewEnforcerSeedsOnce(t *testing.T) {
	db := dbtest.Open(t)

	first, err := NewEnforcer(db)
	require.NoError(t, err)
	before, err := first.GetPolicy()
	require.NoError(t, err)

	second, err := NewEnforcer(db)
	require.NoError(t, err)
	after, err := second.GetPolicy()
	require.NoError(t, err)

	assert.Len(t, before, 4)
	assert.ElementsMatch(t, before, after)
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, "role:org:admin", roleName("org:admin"))
	assert.Equal(t, "role:org:admin", roleName(" Admin "))
	assert.Equal(t, "role:org:member", roleName("ORG:MEMBER"))
}
