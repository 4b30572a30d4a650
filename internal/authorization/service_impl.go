package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	authdomain "github.com/smallbiznis/fieldrunner/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectMembership   = "membership"
	ObjectWebhookEvent = "webhook_event"
)

const (
	ActionRead = "read"
	ActionList = "list"
)

const (
	RoleAdmin  = "org:admin"
	RoleMember = "org:member"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize checks the principal's role in its active organization. The role
// claim of the session wins; the synced membership row is the fallback for
// tokens issued without one.
func (s *ServiceImpl) Authorize(ctx context.Context, principal authdomain.Principal, object string, action string) error {
	userID := strings.TrimSpace(principal.UserID)
	if userID == "" {
		return ErrInvalidActor
	}
	orgID := strings.TrimSpace(principal.OrgID)
	if orgID == "" {
		return ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	role := strings.TrimSpace(principal.OrgRole)
	if role == "" {
		var err error
		role, err = s.roleForUser(ctx, orgID, userID)
		if err != nil {
			s.denied(userID, orgID, object, action, err)
			return err
		}
	}

	subject := fmt.Sprintf("user:%s", userID)
	domain := fmt.Sprintf("org:%s", orgID)
	if err := s.ensureGrouping(subject, roleName(role), domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(userID, orgID, object, action, ErrForbidden)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) denied(userID, orgID, object, action string, err error) {
	s.log.Info("authorization denied",
		zap.String("user_id", userID),
		zap.String("org_id", orgID),
		zap.String("object", object),
		zap.String("action", action),
		zap.Error(err),
	)
}

func (s *ServiceImpl) roleForUser(ctx context.Context, orgClerkID string, userClerkID string) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT m.role
		 FROM organization_memberships m
		 JOIN organizations o ON o.id = m.organization_id
		 JOIN users u ON u.id = m.user_id
		 WHERE o.clerk_id = ? AND u.clerk_id = ? AND m.deleted_at IS NULL
		 LIMIT 1`,
		orgClerkID,
		userClerkID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

// roleName maps a provider role key such as "org:admin" or "admin" onto the
// casbin role it is granted through.
func roleName(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if !strings.HasPrefix(role, "org:") {
		role = "org:" + role
	}
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Members see their organization.
		{roleName(RoleMember), ObjectOrganization, ActionRead},

		// Admins also see who belongs to it and how syncing is going.
		{roleName(RoleAdmin), ObjectOrganization, ActionRead},
		{roleName(RoleAdmin), ObjectMembership, ActionList},
		{roleName(RoleAdmin), ObjectWebhookEvent, ActionList},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
