// internal/invites/implementation.go
package invites

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pointnexus/internal/ledger"
	"pointnexus/internal/members"
)

// service implements the Service interface.
type service struct {
	store   Store
	members members.Service
	ledger  ledger.Service
	tokens  *members.TokenIssuer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService creates a new invite lifecycle manager.
func NewService(store Store, memberSvc members.Service, ledgerSvc ledger.Service, tokens *members.TokenIssuer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:   store,
		members: memberSvc,
		ledger:  ledgerSvc,
		tokens:  tokens,
		logger:  logger,
		tracer:  otel.Tracer("pointnexus/invites"),
	}
}

func (s *service) CreateInvite(ctx context.Context, in CreateInput) (*InviteCode, error) {
	code := in.Code
	if code == "" {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		code = hex.EncodeToString(buf)
	}
	invite := &InviteCode{
		Code:           code,
		InvitedBy:      in.InvitedBy,
		MembershipType: in.MembershipType,
		Reusable:       in.Reusable,
		TargetName:     in.TargetName,
		TargetCountry:  in.TargetCountry,
		TargetCity:     in.TargetCity,
		TargetLat:      in.TargetLat,
		TargetLng:      in.TargetLng,
	}
	if err := s.store.Create(ctx, invite); err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *service) Validate(ctx context.Context, code string) (*Validation, error) {
	invite, err := s.store.GetByCode(ctx, code)
	if errors.Is(err, ErrInvalidInvite) {
		return &Validation{Valid: false}, nil
	}
	if err != nil {
		return nil, err
	}

	valid := false
	if invite.Reusable {
		total, err := s.store.SumReusableUse(ctx, invite.InvitedBy)
		if err != nil {
			return nil, err
		}
		valid = total < CapFor(total)
	} else {
		valid = !invite.Used
	}

	if !valid {
		return &Validation{Valid: false}, nil
	}
	return &Validation{
		Valid:          true,
		MembershipType: invite.MembershipType,
		InvitedBy:      invite.InvitedBy,
		TargetName:     invite.TargetName,
		TargetCountry:  invite.TargetCountry,
		TargetCity:     invite.TargetCity,
		TargetLat:      invite.TargetLat,
		TargetLng:      invite.TargetLng,
	}, nil
}

func (s *service) Redeem(ctx context.Context, code, email string) (*Redemption, error) {
	ctx, span := s.tracer.Start(ctx, "invites.redeem",
		trace.WithAttributes(attribute.String("invite.code", code)))
	defer span.End()

	invite, err := s.store.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if invite.Reusable {
		invite, err = s.store.RedeemReusable(ctx, code)
	} else {
		invite, err = s.store.RedeemSingleUse(ctx, code)
	}
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("invite.reusable", invite.Reusable))

	name := email
	if invite.TargetName != nil && *invite.TargetName != "" {
		name = *invite.TargetName
	}
	inviter := invite.InvitedBy
	member, err := s.members.Provision(ctx, members.ProvisionInput{
		Email:          email,
		Name:           name,
		MembershipType: invite.MembershipType,
		InvitedBy:      &inviter,
		Country:        invite.TargetCountry,
		City:           invite.TargetCity,
		Lat:            invite.TargetLat,
		Lng:            invite.TargetLng,
		FreeTier:       IsFreeTier(invite.MembershipType),
	})
	if err != nil {
		s.release(ctx, invite)
		return nil, fmt.Errorf("provision member: %w", err)
	}

	if IsFreeTier(invite.MembershipType) {
		if err := s.grantFreeTierBonuses(ctx, member.ID, inviter); err != nil {
			s.release(ctx, invite)
			return nil, err
		}
	}

	token, err := s.tokens.Issue(member.ID, "invite-callback")
	if err != nil {
		s.release(ctx, invite)
		return nil, err
	}
	return &Redemption{MemberID: member.ID, CallbackToken: token}, nil
}

// release hands back the consumed use after a failure between the
// consume and the callback token. A retry then re-consumes the same
// use instead of dead-ending on a spent code; provisioning and the
// bonus grants are idempotent, so repeated steps cannot double-pay.
func (s *service) release(ctx context.Context, invite *InviteCode) {
	var err error
	if invite.Reusable {
		err = s.store.ReleaseReusable(ctx, invite.Code)
	} else {
		err = s.store.ReleaseSingleUse(ctx, invite.Code)
	}
	if err != nil {
		s.logger.Error("invite use release failed", "code", invite.Code, "error", err)
	}
}

// grantFreeTierBonuses fires the three idempotent grants attached to a
// free-tier admission. Each is safe to repeat, so a retried redemption
// cannot double-pay.
func (s *service) grantFreeTierBonuses(ctx context.Context, memberID, inviterID uuid.UUID) error {
	// One welcome bonus per member: kind-only dedupe.
	if _, err := s.ledger.GrantOnce(ctx, memberID, ledger.KindWelcomeBonus, ledger.WelcomeBonusPoints, ""); err != nil {
		return err
	}
	// One invite bonus per invitee: the new member's id is the note, so
	// the same inviter earns once per distinct invitee.
	if _, err := s.ledger.GrantOnce(ctx, inviterID, ledger.KindInviteBonus, ledger.InviteBonusPoints, memberID.String()); err != nil {
		return err
	}

	quest, err := s.store.ActiveQuestBySlug(ctx, QuestInviteFriend)
	if errors.Is(err, ErrQuestNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	granted, err := s.ledger.GrantOnce(ctx, inviterID, ledger.KindQuestReward, quest.RewardPoints, memberID.String())
	if err != nil {
		return err
	}
	if granted {
		s.logger.Info("quest auto-completed", "quest", quest.Slug, "inviter", inviterID, "invitee", memberID)
	}
	return nil
}
