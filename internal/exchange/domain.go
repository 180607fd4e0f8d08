// internal/exchange/domain.go
package exchange

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Item is a redeemable good. Stock of -1 means unlimited; finite stock
// is decremented on redemption and restored only when a still-pending
// order is reversed.
type Item struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	PointsCost int64     `json:"points_cost" db:"points_cost"`
	Stock      int       `json:"stock" db:"stock"`
	CouponCode string    `json:"coupon_code" db:"coupon_code"`
	Active     bool      `json:"active" db:"active"`
}

// UnlimitedStock marks an item that never runs out.
const UnlimitedStock = -1

// Available reports whether the item can currently be redeemed.
func (i *Item) Available() bool {
	return i.Active && (i.Stock == UnlimitedStock || i.Stock > 0)
}

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderApproved OrderStatus = "approved"
	OrderRejected OrderStatus = "rejected"
	OrderCanceled OrderStatus = "canceled"
)

// Decision is an admin verdict on a pending order.
type Decision string

const (
	DecisionApprove Decision = "approved"
	DecisionReject  Decision = "rejected"
	DecisionCancel  Decision = "canceled"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject || d == DecisionCancel
}

// Order records one redemption. Once it leaves pending it is immutable.
type Order struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	MemberID    uuid.UUID   `json:"member_id" db:"member_id"`
	ItemID      uuid.UUID   `json:"item_id" db:"item_id"`
	PointsSpent int64       `json:"points_spent" db:"points_spent"`
	Status      OrderStatus `json:"status" db:"status"`
	ReviewedBy  *string     `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt  *time.Time  `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CouponCode  *string     `json:"coupon_code,omitempty" db:"coupon_code"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// themePrefix namespaces coupon codes that carry a cosmetic
// entitlement instead of an external voucher.
const themePrefix = "theme:"

// ThemeFromCoupon extracts the card theme a coupon grants, if any.
func ThemeFromCoupon(coupon string) (string, bool) {
	if strings.HasPrefix(coupon, themePrefix) {
		return strings.TrimPrefix(coupon, themePrefix), true
	}
	return "", false
}

// ReviewOutcome reports what a review actually did, so callers can see
// whether the refund path ran.
type ReviewOutcome struct {
	Order        *Order `json:"order"`
	RefundIssued bool   `json:"refund_issued"`
}
