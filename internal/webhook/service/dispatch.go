package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smallbiznis/fieldrunner/internal/webhook/domain"
	"github.com/smallbiznis/fieldrunner/internal/webhook/mapper"
	"go.uber.org/zap"
)

const (
	actionCreated = "created"
	actionUpdated = "updated"
	actionDeleted = "deleted"
)

// ProcessEvent routes a verified event to its handler. Event kinds without
// a write path and unknown types are acknowledged without error.
func (s *Service) ProcessEvent(ctx context.Context, envelope *domain.Envelope) error {
	if envelope == nil {
		return domain.ErrInvalidPayload
	}

	switch kind := envelope.Type.Kind(); kind {
	case domain.KindUser:
		return s.handleUser(ctx, envelope)
	case domain.KindOrganization:
		return s.handleOrganization(ctx, envelope)
	case domain.KindMembership:
		return s.handleMembership(ctx, envelope)
	case domain.KindInvitation, domain.KindDomain, domain.KindRole, domain.KindPermission:
		s.log.Info("webhook event acknowledged without persistence",
			zap.String("event_type", string(envelope.Type)),
			zap.Stringer("kind", kind),
		)
		return nil
	default:
		s.unhandled(envelope)
		return nil
	}
}

func (s *Service) handleUser(ctx context.Context, envelope *domain.Envelope) error {
	switch envelope.Type.Action() {
	case actionCreated, actionUpdated:
		var payload domain.UserPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return s.directory.ApplyUser(ctx, mapper.MapUser(payload))
	case actionDeleted:
		var payload domain.DeletedPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return s.directory.DeleteUser(ctx, payload.ID)
	default:
		s.unhandled(envelope)
		return nil
	}
}

func (s *Service) handleOrganization(ctx context.Context, envelope *domain.Envelope) error {
	switch envelope.Type.Action() {
	case actionCreated, actionUpdated:
		var payload domain.OrganizationPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return s.directory.ApplyOrganization(ctx, mapper.MapOrganization(payload))
	case actionDeleted:
		var payload domain.DeletedPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return s.directory.DeleteOrganization(ctx, payload.ID)
	default:
		s.unhandled(envelope)
		return nil
	}
}

func (s *Service) handleMembership(ctx context.Context, envelope *domain.Envelope) error {
	switch envelope.Type.Action() {
	case actionCreated, actionUpdated:
		var payload domain.MembershipPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		membership, refs := mapper.MapMembership(payload)
		return s.directory.ApplyMembership(ctx, membership, refs)
	case actionDeleted:
		var payload domain.DeletedPayload
		if err := decode(envelope, &payload); err != nil {
			return err
		}
		return s.directory.DeleteMembership(ctx, payload.ID)
	default:
		s.unhandled(envelope)
		return nil
	}
}

func (s *Service) unhandled(envelope *domain.Envelope) {
	s.log.Info("unhandled webhook event type", zap.String("event_type", string(envelope.Type)))
}

func decode(envelope *domain.Envelope, dest any) error {
	if len(envelope.Data) == 0 {
		return fmt.Errorf("%w: %s has no data", domain.ErrInvalidPayload, envelope.Type)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrInvalidPayload, envelope.Type, err)
	}
	return nil
}
