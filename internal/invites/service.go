// internal/invites/service.go
package invites

import (
	"context"

	"github.com/google/uuid"
)

// CreateInput describes an invite to issue.
type CreateInput struct {
	Code           string
	InvitedBy      uuid.UUID
	MembershipType string
	Reusable       bool
	TargetName     *string
	TargetCountry  *string
	TargetCity     *string
	TargetLat      *float64
	TargetLng      *float64
}

// Service defines the interface for the invite lifecycle manager.
type Service interface {
	CreateInvite(ctx context.Context, in CreateInput) (*InviteCode, error)

	// Validate answers whether a code could currently be redeemed,
	// without consuming anything.
	Validate(ctx context.Context, code string) (*Validation, error)

	// Redeem consumes one use of the code and, for free-tier invites,
	// provisions the member and fires the welcome/invite/quest grants.
	// Returns a callback token for the web layer to continue with.
	Redeem(ctx context.Context, code, email string) (*Redemption, error)
}
