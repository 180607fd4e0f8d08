// internal/invites/store.go
package invites

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInvite covers unknown codes.
	ErrInvalidInvite = errors.New("invalid or expired invite")
	// ErrAlreadyUsed reports a single-use code that was already redeemed.
	// A lost race surfaces as this, never as a retry.
	ErrAlreadyUsed = errors.New("invite already used")
	// ErrCapReached reports a reusable code whose inviter hit the cap.
	ErrCapReached = errors.New("invite cap reached")
	// ErrQuestNotFound reports a missing or inactive quest.
	ErrQuestNotFound = errors.New("quest not found")
)

// Store persists invite codes. Both redeem operations are atomic
// conditional writes: the cap or used check and the mutation are one
// step, and same-inviter increments are serialized so two codes cannot
// both slip past the 9-to-10 cap boundary.
type Store interface {
	Create(ctx context.Context, c *InviteCode) error
	GetByCode(ctx context.Context, code string) (*InviteCode, error)

	// RedeemSingleUse sets used=true conditioned on used=false.
	RedeemSingleUse(ctx context.Context, code string) (*InviteCode, error)

	// RedeemReusable increments use_count conditioned on the inviter's
	// cumulative reusable use count staying under the cap recomputed at
	// commit time.
	RedeemReusable(ctx context.Context, code string) (*InviteCode, error)

	// ReleaseSingleUse hands back a consumed single-use code after a
	// redemption that failed past the consume step.
	ReleaseSingleUse(ctx context.Context, code string) error

	// ReleaseReusable decrements use_count for the same reason.
	ReleaseReusable(ctx context.Context, code string) error

	// SumReusableUse is the inviter's cumulative reusable use count.
	SumReusableUse(ctx context.Context, inviterID uuid.UUID) (int, error)

	CreateQuest(ctx context.Context, q *Quest) error
	ActiveQuestBySlug(ctx context.Context, slug string) (*Quest, error)
}
