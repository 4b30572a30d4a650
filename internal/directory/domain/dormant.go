package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// The models below have schema but no write path yet; their webhook events
// are acknowledged without being persisted.

type OrganizationInvitation struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClerkID         string         `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_organization_invitations_clerk_id" json:"clerk_id"`
	OrganizationID  snowflake.ID   `gorm:"column:organization_id;not null;index" json:"organization_id"`
	EmailAddress    string         `gorm:"column:email_address;type:text;not null" json:"email_address"`
	Role            string         `gorm:"column:role;type:text;not null" json:"role"`
	RoleName        *string        `gorm:"column:role_name;type:text" json:"role_name"`
	Status          string         `gorm:"column:status;type:text;not null" json:"status"`
	ExpiresAt       *time.Time     `gorm:"column:expires_at" json:"expires_at"`
	UserID          *snowflake.ID  `gorm:"column:user_id" json:"user_id"`
	PublicMetadata  datatypes.JSON `gorm:"column:public_metadata;type:jsonb" json:"public_metadata"`
	PrivateMetadata datatypes.JSON `gorm:"column:private_metadata;type:jsonb" json:"-"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt       *time.Time     `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (OrganizationInvitation) TableName() string { return "organization_invitations" }

type OrganizationDomain struct {
	ID                      snowflake.ID   `gorm:"primaryKey" json:"id"`
	ClerkID                 string         `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_organization_domains_clerk_id" json:"clerk_id"`
	OrganizationID          snowflake.ID   `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Name                    string         `gorm:"column:name;type:text;not null" json:"name"`
	EnrollmentMode          *string        `gorm:"column:enrollment_mode;type:text" json:"enrollment_mode"`
	AffiliationEmailAddress *string        `gorm:"column:affiliation_email_address;type:text" json:"affiliation_email_address"`
	Verification            datatypes.JSON `gorm:"column:verification;type:jsonb" json:"verification"`
	TotalPendingInvitations int            `gorm:"column:total_pending_invitations;default:0" json:"total_pending_invitations"`
	TotalPendingSuggestions int            `gorm:"column:total_pending_suggestions;default:0" json:"total_pending_suggestions"`
	CreatedAt               time.Time      `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt               time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt               *time.Time     `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (OrganizationDomain) TableName() string { return "organization_domains" }

type Role struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	ClerkID           string       `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_roles_clerk_id" json:"clerk_id"`
	Key               string       `gorm:"column:key;type:text;not null;uniqueIndex:ux_roles_key" json:"key"`
	Name              string       `gorm:"column:name;type:text;not null" json:"name"`
	Description       *string      `gorm:"column:description;type:text" json:"description"`
	IsCreatorEligible bool         `gorm:"column:is_creator_eligible;default:false" json:"is_creator_eligible"`
	CreatedAt         time.Time    `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt         *time.Time   `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Role) TableName() string { return "roles" }

type Permission struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ClerkID     string       `gorm:"column:clerk_id;type:text;not null;uniqueIndex:ux_permissions_clerk_id" json:"clerk_id"`
	Key         string       `gorm:"column:key;type:text;not null;uniqueIndex:ux_permissions_key" json:"key"`
	Name        string       `gorm:"column:name;type:text;not null" json:"name"`
	Description *string      `gorm:"column:description;type:text" json:"description"`
	Type        *string      `gorm:"column:type;type:text" json:"type"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt   *time.Time   `gorm:"column:deleted_at" json:"deleted_at,omitempty"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	RoleID       snowflake.ID `gorm:"column:role_id;primaryKey" json:"role_id"`
	PermissionID snowflake.ID `gorm:"column:permission_id;primaryKey" json:"permission_id"`
}

func (RolePermission) TableName() string { return "role_permissions" }

// Models lists every directory table, in dependency order.
func Models() []any {
	return []any{
		&User{},
		&Organization{},
		&Membership{},
		&OrganizationInvitation{},
		&OrganizationDomain{},
		&Role{},
		&Permission{},
		&RolePermission{},
	}
}
