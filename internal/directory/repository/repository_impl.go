package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) UpsertUser(ctx context.Context, user domain.User) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO users (
			id, clerk_id, first_name, last_name, email, image_url, has_image,
			username, password_enabled, two_factor_enabled, banned, locked,
			external_id, public_metadata, private_metadata, unsafe_metadata,
			last_sign_in_at, last_active_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (clerk_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			image_url = excluded.image_url,
			has_image = excluded.has_image,
			username = excluded.username,
			password_enabled = excluded.password_enabled,
			two_factor_enabled = excluded.two_factor_enabled,
			banned = excluded.banned,
			locked = excluded.locked,
			external_id = excluded.external_id,
			public_metadata = excluded.public_metadata,
			private_metadata = excluded.private_metadata,
			unsafe_metadata = excluded.unsafe_metadata,
			last_sign_in_at = excluded.last_sign_in_at,
			last_active_at = excluded.last_active_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		user.ID,
		user.ClerkID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.ImageURL,
		user.HasImage,
		user.Username,
		user.PasswordEnabled,
		user.TwoFactorEnabled,
		user.Banned,
		user.Locked,
		user.ExternalID,
		user.PublicMetadata,
		user.PrivateMetadata,
		user.UnsafeMetadata,
		user.LastSignInAt,
		user.LastActiveAt,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repository) UpsertOrganization(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organizations (
			id, clerk_id, name, slug, image_url, has_image, created_by,
			max_allowed_memberships, members_count, pending_invitations_count,
			admin_delete_enabled, public_metadata, private_metadata,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (clerk_id) DO UPDATE SET
			name = excluded.name,
			slug = excluded.slug,
			image_url = excluded.image_url,
			has_image = excluded.has_image,
			created_by = excluded.created_by,
			max_allowed_memberships = excluded.max_allowed_memberships,
			members_count = excluded.members_count,
			pending_invitations_count = excluded.pending_invitations_count,
			admin_delete_enabled = excluded.admin_delete_enabled,
			public_metadata = excluded.public_metadata,
			private_metadata = excluded.private_metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		org.ID,
		org.ClerkID,
		org.Name,
		org.Slug,
		org.ImageURL,
		org.HasImage,
		org.CreatedBy,
		org.MaxAllowedMemberships,
		org.MembersCount,
		org.PendingInvitationsCount,
		org.AdminDeleteEnabled,
		org.PublicMetadata,
		org.PrivateMetadata,
		org.CreatedAt,
		org.UpdatedAt,
	).Error
}

func (r *repository) UpsertMembership(ctx context.Context, m domain.Membership) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_memberships (
			id, clerk_id, organization_id, user_id, role, role_name, permissions,
			public_metadata, private_metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (clerk_id) DO UPDATE SET
			organization_id = excluded.organization_id,
			user_id = excluded.user_id,
			role = excluded.role,
			role_name = excluded.role_name,
			permissions = excluded.permissions,
			public_metadata = excluded.public_metadata,
			private_metadata = excluded.private_metadata,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		m.ID,
		m.ClerkID,
		m.OrganizationID,
		m.UserID,
		m.Role,
		m.RoleName,
		m.Permissions,
		m.PublicMetadata,
		m.PrivateMetadata,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repository) SoftDelete(ctx context.Context, entity domain.Entity, clerkID string, at time.Time) (int64, error) {
	table := entity.Table()
	if table == "" {
		return 0, domain.ErrInvalidEntity
	}
	res := r.db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE %s SET deleted_at = ? WHERE clerk_id = ?`, table),
		at,
		clerkID,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) FindOrganizationIDByClerkID(ctx context.Context, clerkID string) (snowflake.ID, bool, error) {
	return r.findID(ctx, domain.EntityOrganization.Table(), clerkID)
}

func (r *repository) FindUserIDByClerkID(ctx context.Context, clerkID string) (snowflake.ID, bool, error) {
	return r.findID(ctx, domain.EntityUser.Table(), clerkID)
}

func (r *repository) findID(ctx context.Context, table, clerkID string) (snowflake.ID, bool, error) {
	var row struct {
		ID snowflake.ID `gorm:"column:id"`
	}
	err := r.db.WithContext(ctx).Raw(
		fmt.Sprintf(`SELECT id FROM %s WHERE clerk_id = ? LIMIT 1`, table),
		clerkID,
	).Scan(&row).Error
	if err != nil {
		return 0, false, err
	}
	if row.ID == 0 {
		return 0, false, nil
	}
	return row.ID, true, nil
}

func (r *repository) GetUserByClerkID(ctx context.Context, clerkID string) (*domain.User, error) {
	var item domain.User
	if err := r.takeByClerkID(ctx, clerkID, &item); err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repository) GetOrganizationByClerkID(ctx context.Context, clerkID string) (*domain.Organization, error) {
	var item domain.Organization
	if err := r.takeByClerkID(ctx, clerkID, &item); err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repository) GetMembershipByClerkID(ctx context.Context, clerkID string) (*domain.Membership, error) {
	var item domain.Membership
	if err := r.takeByClerkID(ctx, clerkID, &item); err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repository) takeByClerkID(ctx context.Context, clerkID string, dest any) error {
	err := r.db.WithContext(ctx).Where("clerk_id = ?", clerkID).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

func (r *repository) ListActiveMembers(ctx context.Context, organizationID snowflake.ID) ([]domain.Member, error) {
	var items []domain.Member
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.id AS membership_id, m.clerk_id, u.clerk_id AS user_clerk_id,
			u.email, u.first_name, u.last_name, m.role, m.role_name, m.created_at
		 FROM organization_memberships m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.organization_id = ?
		   AND m.deleted_at IS NULL
		   AND u.deleted_at IS NULL
		 ORDER BY m.created_at ASC, m.id ASC`,
		organizationID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
