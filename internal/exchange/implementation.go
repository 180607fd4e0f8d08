// internal/exchange/implementation.go
package exchange

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pointnexus/internal/ratelimit"
)

// service implements the Service interface.
type service struct {
	store   Store
	themes  ThemeApplier
	limiter ratelimit.Allower
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewService creates a new exchange engine instance.
func NewService(store Store, themes ThemeApplier, limiter ratelimit.Allower, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:   store,
		themes:  themes,
		limiter: limiter,
		logger:  logger,
		tracer:  otel.Tracer("pointnexus/exchange"),
	}
}

func (s *service) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if err := s.store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]Item, error) {
	return s.store.ListItems(ctx)
}

func (s *service) Redeem(ctx context.Context, memberID, itemID uuid.UUID) (*Order, error) {
	if !s.limiter.Allow(memberID.String()) {
		return nil, ratelimit.ErrRateLimited
	}

	ctx, span := s.tracer.Start(ctx, "exchange.redeem",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("item.id", itemID.String()),
		),
	)
	defer span.End()

	order, err := s.store.Redeem(ctx, memberID, itemID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("exchange order created",
		"order", order.ID, "member", memberID, "points", order.PointsSpent)
	return order, nil
}

func (s *service) Review(ctx context.Context, orderID uuid.UUID, decision Decision, reviewer string) (*ReviewOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "exchange.review",
		trace.WithAttributes(
			attribute.String("order.id", orderID.String()),
			attribute.String("review.decision", string(decision)),
		),
	)
	defer span.End()

	outcome, err := s.store.Review(ctx, orderID, decision, reviewer)
	if err != nil {
		return nil, err
	}

	if decision == DecisionApprove && outcome.Order.CouponCode != nil {
		if theme, ok := ThemeFromCoupon(*outcome.Order.CouponCode); ok {
			if err := s.themes.ApplyCardTheme(ctx, outcome.Order.MemberID, theme); err != nil {
				// The order is already approved; re-applying the theme
				// on a later admin pass settles this.
				s.logger.Error("card theme application failed",
					"order", orderID, "theme", theme, "error", err)
			}
		}
	}
	return outcome, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.store.GetOrder(ctx, id)
}
