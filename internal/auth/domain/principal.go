// Package domain describes the caller identity established from a provider
// session token.
package domain

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized         = errors.New("unauthorized")
	ErrOrganizationRequired = errors.New("organization_required")
)

// Principal is a verified session. Organization fields are empty when the
// user has no active organization.
type Principal struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	OrgID     string `json:"orgId,omitempty"`
	OrgSlug   string `json:"orgSlug,omitempty"`
	OrgRole   string `json:"orgRole,omitempty"`
}

func (p Principal) HasOrganization() bool {
	return p.OrgID != ""
}

// Organization is the active organization of a principal.
type Organization struct {
	OrgID   string `json:"orgId"`
	OrgSlug string `json:"orgSlug"`
	OrgRole string `json:"orgRole"`
}

// Organization returns ErrOrganizationRequired when no organization is active.
func (p Principal) Organization() (Organization, error) {
	if !p.HasOrganization() {
		return Organization{}, ErrOrganizationRequired
	}
	return Organization{OrgID: p.OrgID, OrgSlug: p.OrgSlug, OrgRole: p.OrgRole}, nil
}

type SessionVerifier interface {
	VerifySessionToken(ctx context.Context, token string) (*Principal, error)
}
