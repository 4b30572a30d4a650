// Package mapper converts provider payloads into directory records. The
// functions are pure; surrogate ids are assigned by the directory service.
package mapper

import (
	"bytes"
	"encoding/json"
	"time"

	directorydomain "github.com/smallbiznis/fieldrunner/internal/directory/domain"
	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"gorm.io/datatypes"
)

func MapUser(p domain.UserPayload) directorydomain.User {
	return directorydomain.User{
		ClerkID:          p.ID,
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Email:            primaryEmail(p.EmailAddresses, p.PrimaryEmailAddressID),
		ImageURL:         p.ImageURL,
		HasImage:         p.HasImage,
		Username:         p.Username,
		PasswordEnabled:  p.PasswordEnabled,
		TwoFactorEnabled: p.TwoFactorEnabled,
		Banned:           p.Banned,
		Locked:           p.Locked,
		ExternalID:       p.ExternalID,
		PublicMetadata:   document(p.PublicMetadata),
		PrivateMetadata:  document(p.PrivateMetadata),
		UnsafeMetadata:   document(p.UnsafeMetadata),
		LastSignInAt:     optionalMillis(p.LastSignInAt),
		LastActiveAt:     optionalMillis(p.LastActiveAt),
		CreatedAt:        millis(p.CreatedAt),
		UpdatedAt:        millis(p.UpdatedAt),
	}
}

func MapOrganization(p domain.OrganizationPayload) directorydomain.Organization {
	return directorydomain.Organization{
		ClerkID:                 p.ID,
		Name:                    p.Name,
		Slug:                    p.Slug,
		ImageURL:                p.ImageURL,
		HasImage:                p.HasImage,
		CreatedBy:               p.CreatedBy,
		MaxAllowedMemberships:   p.MaxAllowedMemberships,
		MembersCount:            intOrZero(p.MembersCount),
		PendingInvitationsCount: intOrZero(p.PendingInvitationsCount),
		AdminDeleteEnabled:      p.AdminDeleteEnabled,
		PublicMetadata:          document(p.PublicMetadata),
		PrivateMetadata:         document(p.PrivateMetadata),
		CreatedAt:               millis(p.CreatedAt),
		UpdatedAt:               millis(p.UpdatedAt),
	}
}

// MapMembership returns the storable membership and, separately, the
// provider ids of the organization and user it references. OrganizationID
// and UserID are left zero.
func MapMembership(p domain.MembershipPayload) (directorydomain.Membership, directorydomain.MembershipRefs) {
	membership := directorydomain.Membership{
		ClerkID:         p.ID,
		Role:            p.Role,
		RoleName:        p.RoleName,
		Permissions:     document(p.Permissions),
		PublicMetadata:  document(p.PublicMetadata),
		PrivateMetadata: document(p.PrivateMetadata),
		CreatedAt:       millis(p.CreatedAt),
		UpdatedAt:       millis(p.UpdatedAt),
	}
	refs := directorydomain.MembershipRefs{
		OrganizationClerkID: p.Organization.ID,
		UserClerkID:         p.PublicUserData.UserID,
	}
	return membership, refs
}

func primaryEmail(addresses []domain.EmailAddress, primaryID *string) *string {
	if primaryID == nil {
		return nil
	}
	for _, addr := range addresses {
		if addr.ID == *primaryID {
			email := addr.EmailAddress
			return &email
		}
	}
	return nil
}

var jsonNull = []byte("null")

// document passes a JSON value through verbatim. Absent and explicit null
// both become nil, which is stored as SQL NULL.
func document(raw json.RawMessage) datatypes.JSON {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil
	}
	out := make([]byte, len(trimmed))
	copy(out, trimmed)
	return datatypes.JSON(out)
}

func millis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := millis(*ms)
	return &t
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
