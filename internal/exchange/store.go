// internal/exchange/store.go
package exchange

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrItemNotFound        = errors.New("exchange item not found")
	ErrItemUnavailable     = errors.New("item unavailable")
	ErrInsufficientBalance = errors.New("insufficient point balance")
	ErrOrderNotFound       = errors.New("order not found")
	// ErrAlreadyReviewed is the benign answer to a retried review; the
	// earlier decision's side effects are not re-applied.
	ErrAlreadyReviewed = errors.New("order already reviewed")
)

// Store owns items and orders. Redeem and Review are single
// transactions over every row they touch; no step is observable alone.
type Store interface {
	CreateItem(ctx context.Context, i *Item) error
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]Item, error)

	// Redeem performs the five-step redemption atomically: availability
	// check, balance check, ledger debit, pending order insert, finite
	// stock decrement. Any failing step leaves no residue.
	Redeem(ctx context.Context, memberID, itemID uuid.UUID) (*Order, error)

	// Review finalizes a still-pending order. Rejection/cancellation
	// refunds the spent points and restores finite stock inside the
	// same transaction that flips the status, so a retried review can
	// never double-credit.
	Review(ctx context.Context, orderID uuid.UUID, decision Decision, reviewer string) (*ReviewOutcome, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// PurgeMember removes a member's orders (admin cascade).
	PurgeMember(ctx context.Context, memberID uuid.UUID) error
}
