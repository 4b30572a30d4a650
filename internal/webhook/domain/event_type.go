package domain

import "strings"

// EventType is the provider's event tag, for example "user.created".
type EventType string

const (
	EventUserCreated = EventType("user.created")
	EventUserUpdated = EventType("user.updated")
	EventUserDeleted = EventType("user.deleted")

	EventOrganizationCreated = EventType("organization.created")
	EventOrganizationUpdated = EventType("organization.updated")
	EventOrganizationDeleted = EventType("organization.deleted")

	EventMembershipCreated = EventType("organizationMembership.created")
	EventMembershipUpdated = EventType("organizationMembership.updated")
	EventMembershipDeleted = EventType("organizationMembership.deleted")

	EventInvitationCreated  = EventType("organizationInvitation.created")
	EventInvitationAccepted = EventType("organizationInvitation.accepted")
	EventInvitationRevoked  = EventType("organizationInvitation.revoked")

	EventDomainCreated = EventType("organizationDomain.created")
	EventDomainUpdated = EventType("organizationDomain.updated")
	EventDomainDeleted = EventType("organizationDomain.deleted")

	EventRoleCreated = EventType("role.created")
	EventRoleUpdated = EventType("role.updated")
	EventRoleDeleted = EventType("role.deleted")

	EventPermissionCreated = EventType("permission.created")
	EventPermissionUpdated = EventType("permission.updated")
	EventPermissionDeleted = EventType("permission.deleted")
)

// EntityKind groups event types by the entity they describe.
type EntityKind int

const (
	KindUnknown EntityKind = iota
	KindUser
	KindOrganization
	KindMembership
	KindInvitation
	KindDomain
	KindRole
	KindPermission
)

var kindNames = map[EntityKind]string{
	KindUnknown:      "unknown",
	KindUser:         "user",
	KindOrganization: "organization",
	KindMembership:   "membership",
	KindInvitation:   "invitation",
	KindDomain:       "domain",
	KindRole:         "role",
	KindPermission:   "permission",
}

func (k EntityKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var kindsByPrefix = map[string]EntityKind{
	"user":                   KindUser,
	"organization":           KindOrganization,
	"organizationMembership": KindMembership,
	"organizationInvitation": KindInvitation,
	"organizationDomain":     KindDomain,
	"role":                   KindRole,
	"permission":             KindPermission,
}

// Kind maps the tag's prefix to an entity kind. Tags without a known prefix,
// or without an action, are KindUnknown.
func (t EventType) Kind() EntityKind {
	prefix, action, ok := strings.Cut(string(t), ".")
	if !ok || action == "" {
		return KindUnknown
	}
	if kind, found := kindsByPrefix[prefix]; found {
		return kind
	}
	return KindUnknown
}

// Action returns the part of the tag after the entity prefix.
func (t EventType) Action() string {
	_, action, _ := strings.Cut(string(t), ".")
	return action
}

func (t EventType) IsDelete() bool {
	return t.Action() == "deleted"
}
