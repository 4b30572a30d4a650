// Package domain contains the locally synced copy of the identity provider's
// user and organization directory.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User mirrors a provider user. ClerkID is the immutable join key; ID is
// the local surrogate used by foreign keys.
type User struct {
	ID               snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClerkID          string         `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_users_clerk_id" json:"clerk_id"`
	FirstName        *string        `gorm:"column:first_name;type:text" json:"first_name"`
	LastName         *string        `gorm:"column:last_name;type:text" json:"last_name"`
	Email            *string        `gorm:"column:email;type:text" json:"email"`
	ImageURL         *string        `gorm:"column:image_url;type:text" json:"image_url"`
	HasImage         *bool          `gorm:"column:has_image;default:false" json:"has_image"`
	Username         *string        `gorm:"column:username;type:text" json:"username"`
	PasswordEnabled  *bool          `gorm:"column:password_enabled;default:false" json:"password_enabled"`
	TwoFactorEnabled *bool          `gorm:"column:two_factor_enabled;default:false" json:"two_factor_enabled"`
	Banned           *bool          `gorm:"column:banned;default:false" json:"banned"`
	Locked           *bool          `gorm:"column:locked;default:false" json:"locked"`
	ExternalID       *string        `gorm:"column:external_id;type:text" json:"external_id"`
	PublicMetadata   datatypes.JSON `gorm:"column:public_metadata;type:jsonb" json:"public_metadata"`
	PrivateMetadata  datatypes.JSON `gorm:"column:private_metadata;type:jsonb" json:"-"`
	UnsafeMetadata   datatypes.JSON `gorm:"column:unsafe_metadata;type:jsonb" json:"unsafe_metadata"`
	LastSignInAt     *time.Time     `gorm:"column:last_sign_in_at" json:"last_sign_in_at"`
	LastActiveAt     *time.Time     `gorm:"column:last_active_at" json:"last_active_at"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt        *time.Time     `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

// Organization mirrors a provider organization. CreatedBy is a provider user
// id and deliberately not a foreign key: the creator may never be synced.
type Organization struct {
	ID                      snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClerkID                 string         `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_organizations_clerk_id" json:"clerk_id"`
	Name                    string         `gorm:"column:name;type:text;not null" json:"name"`
	Slug                    string         `gorm:"column:slug;type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	ImageURL                *string        `gorm:"column:image_url;type:text" json:"image_url"`
	HasImage                *bool          `gorm:"column:has_image;default:false" json:"has_image"`
	CreatedBy               *string        `gorm:"column:created_by;type:text" json:"created_by"`
	MaxAllowedMemberships   *int           `gorm:"column:max_allowed_memberships" json:"max_allowed_memberships"`
	MembersCount            int            `gorm:"column:members_count;not null;default:0" json:"members_count"`
	PendingInvitationsCount int            `gorm:"column:pending_invitations_count;not null;default:0" json:"pending_invitations_count"`
	AdminDeleteEnabled      *bool          `gorm:"column:admin_delete_enabled;default:true" json:"admin_delete_enabled"`
	PublicMetadata          datatypes.JSON `gorm:"column:public_metadata;type:jsonb" json:"public_metadata"`
	PrivateMetadata         datatypes.JSON `gorm:"column:private_metadata;type:jsonb" json:"-"`
	CreatedAt               time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt               *time.Time     `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Organization) TableName() string { return "organizations" }

// Membership links a user to an organization through local surrogate ids.
// Permissions is NULL when the provider sent none, which is distinct from an
// empty list.
type Membership struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClerkID         string         `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_organization_memberships_clerk_id" json:"clerk_id"`
	OrganizationID  snowflake.ID   `gorm:"column:organization_id;not null;index" json:"organization_id"`
	UserID          snowflake.ID   `gorm:"column:user_id;not null;index" json:"user_id"`
	Role            string         `gorm:"column:role;type:text;not null" json:"role"`
	RoleName        *string        `gorm:"column:role_name;type:text" json:"role_name"`
	Permissions     datatypes.JSON `gorm:"column:permissions;type:jsonb" json:"permissions"`
	PublicMetadata  datatypes.JSON `gorm:"column:public_metadata;type:jsonb" json:"public_metadata"`
	PrivateMetadata datatypes.JSON `gorm:"column:private_metadata;type:jsonb" json:"-"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt       *time.Time     `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	Organization *Organization `gorm:"foreignKey:OrganizationID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
	User         *User         `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (Membership) TableName() string { return "organization_memberships" }

// MembershipRefs are the provider ids a membership points at, before they
// are resolved to surrogate keys.
type MembershipRefs struct {
	OrganizationClerkID string
	UserClerkID         string
}

// Member is a membership joined with its user, for listing.
type Member struct {
	MembershipID snowflake.ID `json:"membership_id"`
	ClerkID      string       `json:"clerk_id"`
	UserClerkID  string       `json:"user_clerk_id"`
	Email        *string      `json:"email"`
	FirstName    *string      `json:"first_name"`
	LastName     *string      `json:"last_name"`
	Role         string       `json:"role"`
	RoleName     *string      `json:"role_name"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Entity names a directory table that supports soft delete.
type Entity string

const (
	EntityUser         Entity = "user"
	EntityOrganization Entity = "organization"
	EntityMembership   Entity = "membership"
)

func (e Entity) Table() string {
	switch e {
	case EntityUser:
		return User{}.TableName()
	case EntityOrganization:
		return Organization{}.TableName()
	case EntityMembership:
		return Membership{}.TableName()
	default:
		return ""
	}
}
