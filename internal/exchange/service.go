// internal/exchange/service.go
package exchange

import (
	"context"

	"github.com/google/uuid"
)

// ThemeApplier puts a redeemed cosmetic onto a member's profile.
// Satisfied by the members store.
type ThemeApplier interface {
	ApplyCardTheme(ctx context.Context, id uuid.UUID, theme string) error
}

// Service defines the interface for the exchange transaction engine.
type Service interface {
	CreateItem(ctx context.Context, item *Item) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	// Redeem spends points on an item, creating a pending order. Rate
	// limited per member.
	Redeem(ctx context.Context, memberID, itemID uuid.UUID) (*Order, error)

	// Review finalizes a pending order with an admin decision. Approval
	// materializes the coupon and applies any cosmetic entitlement it
	// encodes; rejection and cancellation refund.
	Review(ctx context.Context, orderID uuid.UUID, decision Decision, reviewer string) (*ReviewOutcome, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
}
