// internal/billing/implementation.go
package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pointnexus/internal/ledger"
	"pointnexus/internal/members"
)

// service implements the Service interface.
type service struct {
	verifier *Verifier
	journal  Journal
	members  members.Store
	points   ledger.Service
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a new subscription reconciler instance.
func NewService(verifier *Verifier, journal Journal, memberStore members.Store, points ledger.Service, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		verifier: verifier,
		journal:  journal,
		members:  memberStore,
		points:   points,
		logger:   logger,
		tracer:   otel.Tracer("pointnexus/billing"),
	}
}

func (s *service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := s.verifier.Verify(signatureHeader, payload); err != nil {
		return err
	}

	ev, err := ParseEvent(payload)
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "billing.handle_event",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", ev.Type),
			attribute.String("member.id", ev.Data.MemberID.String()),
		),
	)
	defer span.End()

	seen, err := s.journal.Seen(ctx, ev.ID)
	if err != nil {
		return err
	}
	if seen {
		s.logger.Debug("provider event replayed", "event", ev.ID, "type", ev.Type)
		return nil
	}

	if err := s.process(ctx, ev); err != nil {
		return err
	}

	// Journaled only after every effect landed. If this write fails the
	// provider redelivers and the idempotent effects absorb the rerun.
	if err := s.journal.Record(ctx, ev.ID, ev.Type, time.Now().UTC()); err != nil {
		s.logger.Warn("provider event journal write failed", "event", ev.ID, "error", err)
	}
	return nil
}

func (s *service) process(ctx context.Context, ev *Event) error {
	member, err := s.members.GetByID(ctx, ev.Data.MemberID)
	if errors.Is(err, members.ErrNotFound) {
		// Purged or never provisioned. Acknowledge so the provider
		// stops redelivering a delivery we can never apply.
		s.logger.Warn("provider event for unknown member",
			"event", ev.ID, "member", ev.Data.MemberID)
		return nil
	}
	if err != nil {
		return err
	}

	next, effects := Apply(member.SubscriptionStatus, ev)

	if next != member.SubscriptionStatus {
		moved, err := s.members.SetSubscriptionStatusIf(ctx, member.ID,
			[]members.SubscriptionStatus{member.SubscriptionStatus}, next)
		if err != nil {
			return err
		}
		if !moved {
			// A concurrent delivery won the write. Treat this one as
			// describing a state already reached.
			s.logger.Info("subscription status already moved",
				"event", ev.ID, "member", member.ID, "wanted", next)
			return nil
		}
		s.logger.Info("subscription status changed",
			"member", member.ID, "from", member.SubscriptionStatus, "to", next, "event", ev.Type)
	}

	return s.applyEffects(ctx, member, effects)
}

func (s *service) applyEffects(ctx context.Context, member *members.Member, eff Effects) error {
	if eff.IssueMemberNo {
		no, assigned, err := s.members.AssignMemberNumberIfAbsent(ctx, member.ID)
		if err != nil {
			return err
		}
		if assigned {
			s.logger.Info("member number issued", "member", member.ID, "member_no", no)
		}
	}

	if eff.InviterBonus && member.InvitedBy != nil {
		granted, err := s.points.GrantOnce(ctx, *member.InvitedBy,
			ledger.KindSubscriptionBonus, ledger.SubscriptionBonusPoints, member.ID.String())
		if err != nil {
			return err
		}
		if granted {
			s.logger.Info("subscription bonus granted",
				"inviter", *member.InvitedBy, "subscriber", member.ID)
		}
	}

	if eff.RenewalPeriod != "" {
		granted, err := s.points.GrantOnce(ctx, member.ID,
			ledger.KindRenewalBonus, ledger.RenewalBonusPoints, eff.RenewalPeriod)
		if err != nil {
			return err
		}
		if granted {
			s.logger.Info("renewal bonus granted",
				"member", member.ID, "period", eff.RenewalPeriod)
		}
	}
	return nil
}
