package domain

import "encoding/json"

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserPayload is the data object of user.* events.
type UserPayload struct {
	ID                    string          `json:"id"`
	FirstName             *string         `json:"first_name"`
	LastName              *string         `json:"last_name"`
	EmailAddresses        []EmailAddress  `json:"email_addresses"`
	PrimaryEmailAddressID *string         `json:"primary_email_address_id"`
	ImageURL              *string         `json:"image_url"`
	HasImage              *bool           `json:"has_image"`
	Username              *string         `json:"username"`
	PasswordEnabled       *bool           `json:"password_enabled"`
	TwoFactorEnabled      *bool           `json:"two_factor_enabled"`
	Banned                *bool           `json:"banned"`
	Locked                *bool           `json:"locked"`
	ExternalID            *string         `json:"external_id"`
	PublicMetadata        json.RawMessage `json:"public_metadata"`
	PrivateMetadata       json.RawMessage `json:"private_metadata"`
	UnsafeMetadata        json.RawMessage `json:"unsafe_metadata"`
	LastSignInAt          *int64          `json:"last_sign_in_at"`
	LastActiveAt          *int64          `json:"last_active_at"`
	CreatedAt             int64           `json:"created_at"`
	UpdatedAt             int64           `json:"updated_at"`
}

// OrganizationPayload is the data object of organization.* events.
type OrganizationPayload struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Slug                    string          `json:"slug"`
	ImageURL                *string         `json:"image_url"`
	HasImage                *bool           `json:"has_image"`
	CreatedBy               *string         `json:"created_by"`
	MaxAllowedMemberships   *int            `json:"max_allowed_memberships"`
	MembersCount            *int            `json:"members_count"`
	PendingInvitationsCount *int            `json:"pending_invitations_count"`
	AdminDeleteEnabled      *bool           `json:"admin_delete_enabled"`
	PublicMetadata          json.RawMessage `json:"public_metadata"`
	PrivateMetadata         json.RawMessage `json:"private_metadata"`
	CreatedAt               int64           `json:"created_at"`
	UpdatedAt               int64           `json:"updated_at"`
}

// MembershipPayload is the data object of organizationMembership.* events.
// The organization and user are nested objects carrying provider ids.
type MembershipPayload struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	RoleName        *string         `json:"role_name"`
	Permissions     json.RawMessage `json:"permissions"`
	PublicMetadata  json.RawMessage `json:"public_metadata"`
	PrivateMetadata json.RawMessage `json:"private_metadata"`
	CreatedAt       int64           `json:"created_at"`
	UpdatedAt       int64           `json:"updated_at"`
	Organization    struct {
		ID string `json:"id"`
	} `json:"organization"`
	PublicUserData struct {
		UserID string `json:"user_id"`
	} `json:"public_user_data"`
}

// DeletedPayload is the data object of *.deleted events.
type DeletedPayload struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}
