package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func strPtr(v string) *string { return &v }

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return node
}

func TestUpsertUserConverges(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, domain.Models()...)
	repo := NewRepository(db)
	node := newNode(t)

	created := time.UnixMilli(1700000000000).UTC()
	first := domain.User{
		ID:             node.Generate(),
		ClerkID:        "user_1",
		FirstName:      strPtr("Ada"),
		PublicMetadata: datatypes.JSON(`{"plan":"free"}`),
		CreatedAt:      created,
		UpdatedAt:      created,
	}
	require.NoError(t, repo.UpsertUser(ctx, first))

	second := first
	second.ID = node.Generate()
	second.FirstName = strPtr("Grace")
	second.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, repo.UpsertUser(ctx, second))

	var count int64
	require.NoError(t, db.Model(&domain.User{}).Where("clerk_id = ?", "user_1").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repo.GetUserByClerkID(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "surrogate id is kept on conflict")
	assert.Equal(t, "Grace", *got.FirstName)
	assert.True(t, second.UpdatedAt.Equal(got.UpdatedAt))
	assert.JSONEq(t, `{"plan":"free"}`, string(got.PublicMetadata))
	assert.Nil(t, got.DeletedAt)
}

func TestSoftDeleteLeavesRowInPlace(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, domain.Models()...)
	repo := NewRepository(db)
	node := newNode(t)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpsertUser(ctx, domain.User{
		ID:        node.Generate(),
		ClerkID:   "user_1",
		Email:     strPtr("ada@example.com"),
		CreatedAt: now,
		UpdatedAt: now,
	}))

	rows, err := repo.SoftDelete(ctx, domain.EntityUser, "user_1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	got, err := repo.GetUserByClerkID(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, now.Add(time.Minute).Equal(*got.DeletedAt))
	assert.Equal(t, "ada@example.com", *got.Email)

	rows, err = repo.SoftDelete(ctx, domain.EntityUser, "user_missing", now)
	require.NoError(t, err)
	assert.EqualValues(t, 0, rows)

	_, err = repo.SoftDelete(ctx, domain.Entity("invoice"), "x", now)
	assert.ErrorIs(t, err, domain.ErrInvalidEntity)
}

func TestFindIDsIgnoreDeletedAt(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, domain.Models()...)
	repo := NewRepository(db)
	node := newNode(t)
	now := time.Now().UTC()

	orgID := node.Generate()
	require.NoError(t, repo.UpsertOrganization(ctx, domain.Organization{
		ID: orgID, ClerkID: "org_1", Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now,
	}))
	_, err := repo.SoftDelete(ctx, domain.EntityOrganization, "org_1", now)
	require.NoError(t, err)

	id, found, err := repo.FindOrganizationIDByClerkID(ctx, "org_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, orgID, id)

	_, found, err = repo.FindUserIDByClerkID(ctx, "user_unknown")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListActiveMembers(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, domain.Models()...)
	repo := NewRepository(db)
	node := newNode(t)
	now := time.Now().UTC().Truncate(time.Second)

	orgID := node.Generate()
	require.NoError(t, repo.UpsertOrganization(ctx, domain.Organization{
		ID: orgID, ClerkID: "org_1", Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now,
	}))

	for i, clerkID := range []string{"user_1", "user_2"} {
		userID := node.Generate()
		require.NoError(t, repo.UpsertUser(ctx, domain.User{
			ID: userID, ClerkID: clerkID, CreatedAt: now, UpdatedAt: now,
		}))
		require.NoError(t, repo.UpsertMembership(ctx, domain.Membership{
			ID:             node.Generate(),
			ClerkID:        "orgmem_" + clerkID,
			OrganizationID: orgID,
			UserID:         userID,
			Role:           "org:member",
			CreatedAt:      now.Add(time.Duration(i) * time.Minute),
			UpdatedAt:      now,
		}))
	}
	_, err := repo.SoftDelete(ctx, domain.EntityMembership, "orgmem_user_2", now)
	require.NoError(t, err)

	members, err := repo.ListActiveMembers(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "user_1", members[0].UserClerkID)
	assert.Equal(t, "orgmem_user_1", members[0].ClerkID)
	assert.Equal(t, "org:member", members[0].Role)
}

func TestMembershipPermissionsNullVersusEmpty(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t, domain.Models()...)
	repo := NewRepository(db)
	node := newNode(t)
	now := time.Now().UTC()

	orgID, userID := node.Generate(), node.Generate()
	require.NoError(t, repo.UpsertOrganization(ctx, domain.Organization{ID: orgID, ClerkID: "org_1", Name: "Acme", Slug: "acme", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repo.UpsertUser(ctx, domain.User{ID: userID, ClerkID: "user_1", CreatedAt: now, UpdatedAt: now}))

	base := domain.Membership{OrganizationID: orgID, UserID: userID, Role: "org:member", CreatedAt: now, UpdatedAt: now}

	withNull := base
	withNull.ID, withNull.ClerkID = node.Generate(), "orgmem_null"
	require.NoError(t, repo.UpsertMembership(ctx, withNull))

	withEmpty := base
	withEmpty.ID, withEmpty.ClerkID = node.Generate(), "orgmem_empty"
	withEmpty.Permissions = datatypes.JSON(`[]`)
	require.NoError(t, repo.UpsertMembership(ctx, withEmpty))

	var nullCount int64
	require.NoError(t, db.Model(&domain.Membership{}).Where("permissions IS NULL").Count(&nullCount).Error)
	assert.EqualValues(t, 1, nullCount)

	got, err := repo.GetMembershipByClerkID(ctx, "orgmem_empty")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got.Permissions))
}
