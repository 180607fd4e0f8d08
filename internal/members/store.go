// internal/members/store.go
package members

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("member not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Store persists members and OTP challenges. Status transitions are
// conditional writes so concurrent reconciler deliveries serialize in
// the storage layer.
type Store interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)

	// SetSubscriptionStatusIf moves a member to the given status only
	// if their current status is in from. Returns false when the
	// condition did not hold (already moved, or event out of order).
	SetSubscriptionStatusIf(ctx context.Context, id uuid.UUID, from []SubscriptionStatus, to SubscriptionStatus) (bool, error)

	SetMembershipStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) error

	// AssignMemberNumberIfAbsent issues a member number exactly once:
	// the write is conditioned on member_no being absent. Returns the
	// number on first assignment and assigned=false on every later call.
	AssignMemberNumberIfAbsent(ctx context.Context, id uuid.UUID) (no string, assigned bool, err error)

	ApplyCardTheme(ctx context.Context, id uuid.UUID, theme string) error

	// Delete removes the member row. The cascading purge across other
	// stores is orchestrated by the service.
	Delete(ctx context.Context, id uuid.UUID) error

	SaveOTP(ctx context.Context, c *OTPChallenge) error
	GetOTP(ctx context.Context, email string) (*OTPChallenge, error)
	DeleteOTP(ctx context.Context, email string) error
}
