package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/directory/domain"
	obsmetrics "github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Repo    domain.Repository
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	repo    domain.Repository
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		repo:    p.Repo,
		log:     p.Log.Named("directory.service"),
		genID:   p.GenID,
		clock:   clk,
		metrics: p.Metrics,
	}
}

func (s *Service) ApplyUser(ctx context.Context, user domain.User) error {
	if strings.TrimSpace(user.ClerkID) == "" {
		return domain.ErrInvalidClerkID
	}
	if user.ID == 0 {
		user.ID = s.genID.Generate()
	}
	if err := s.repo.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("upsert user %s: %w", user.ClerkID, err)
	}
	s.metrics.RecordDirectoryWrite(ctx, string(domain.EntityUser), "upsert")
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, clerkID string) error {
	return s.softDelete(ctx, domain.EntityUser, clerkID)
}

func (s *Service) ApplyOrganization(ctx context.Context, org domain.Organization) error {
	if strings.TrimSpace(org.ClerkID) == "" {
		return domain.ErrInvalidClerkID
	}
	if org.ID == 0 {
		org.ID = s.genID.Generate()
	}
	if err := s.repo.UpsertOrganization(ctx, org); err != nil {
		return fmt.Errorf("upsert organization %s: %w", org.ClerkID, err)
	}
	s.metrics.RecordDirectoryWrite(ctx, string(domain.EntityOrganization), "upsert")
	return nil
}

func (s *Service) DeleteOrganization(ctx context.Context, clerkID string) error {
	return s.softDelete(ctx, domain.EntityOrganization, clerkID)
}

// ApplyMembership resolves the provider ids in refs to local surrogate keys
// before writing. The lookups and the write are separate statements; a
// concurrent soft delete of a parent leaves the foreign keys valid because
// parent rows are never removed.
func (s *Service) ApplyMembership(ctx context.Context, membership domain.Membership, refs domain.MembershipRefs) error {
	if strings.TrimSpace(membership.ClerkID) == "" {
		return domain.ErrInvalidClerkID
	}

	orgID, orgFound, err := s.repo.FindOrganizationIDByClerkID(ctx, refs.OrganizationClerkID)
	if err != nil {
		return fmt.Errorf("resolve organization %s: %w", refs.OrganizationClerkID, err)
	}
	userID, userFound, err := s.repo.FindUserIDByClerkID(ctx, refs.UserClerkID)
	if err != nil {
		return fmt.Errorf("resolve user %s: %w", refs.UserClerkID, err)
	}
	if !orgFound || !userFound {
		return &domain.ReferencedEntityNotFoundError{
			OrganizationClerkID: refs.OrganizationClerkID,
			UserClerkID:         refs.UserClerkID,
			OrganizationFound:   orgFound,
			UserFound:           userFound,
		}
	}

	membership.OrganizationID = orgID
	membership.UserID = userID
	if membership.ID == 0 {
		membership.ID = s.genID.Generate()
	}
	if err := s.repo.UpsertMembership(ctx, membership); err != nil {
		return fmt.Errorf("upsert membership %s: %w", membership.ClerkID, err)
	}
	s.metrics.RecordDirectoryWrite(ctx, string(domain.EntityMembership), "upsert")
	return nil
}

func (s *Service) DeleteMembership(ctx context.Context, clerkID string) error {
	return s.softDelete(ctx, domain.EntityMembership, clerkID)
}

func (s *Service) softDelete(ctx context.Context, entity domain.Entity, clerkID string) error {
	if strings.TrimSpace(clerkID) == "" {
		return domain.ErrInvalidClerkID
	}
	rows, err := s.repo.SoftDelete(ctx, entity, clerkID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("soft delete %s %s: %w", entity, clerkID, err)
	}
	if rows == 0 {
		s.log.Debug("soft delete matched no rows",
			zap.String("entity", string(entity)),
			zap.String("clerk_id", clerkID),
		)
		return nil
	}
	s.metrics.RecordDirectoryWrite(ctx, string(entity), "soft_delete")
	return nil
}

func (s *Service) GetUser(ctx context.Context, clerkID string) (*domain.User, error) {
	if strings.TrimSpace(clerkID) == "" {
		return nil, domain.ErrInvalidClerkID
	}
	user, err := s.repo.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (s *Service) GetOrganization(ctx context.Context, clerkID string) (*domain.Organization, error) {
	if strings.TrimSpace(clerkID) == "" {
		return nil, domain.ErrInvalidClerkID
	}
	org, err := s.repo.GetOrganizationByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

func (s *Service) ListOrganizationMembers(ctx context.Context, organizationClerkID string) ([]domain.Member, error) {
	org, err := s.GetOrganization(ctx, organizationClerkID)
	if err != nil {
		return nil, err
	}
	if org.DeletedAt != nil {
		return nil, domain.ErrNotFound
	}
	members, err := s.repo.ListActiveMembers(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.Member{}
	}
	return members, nil
}
