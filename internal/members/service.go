// internal/members/service.go
package members

import (
	"context"

	"github.com/google/uuid"
)

// ProvisionInput seeds a member created from an invite redemption.
type ProvisionInput struct {
	Email          string
	Name           string
	MembershipType string
	InvitedBy      *uuid.UUID
	Country        *string
	City           *string
	Lat            *float64
	Lng            *float64
	FreeTier       bool
}

// Purger removes a member's rows from a dependent store. The admin
// purge fans out over every registered purger before deleting the
// member itself.
type Purger interface {
	PurgeMember(ctx context.Context, memberID uuid.UUID) error
}

// Service defines the interface for the member registry.
type Service interface {
	// Provision creates the member for an invite redemption, or returns
	// the existing row when the email is already registered (invite
	// retries must not fail on their own earlier success).
	Provision(ctx context.Context, in ProvisionInput) (*Member, error)

	Get(ctx context.Context, id uuid.UUID) (*Member, error)
	GetByEmail(ctx context.Context, email string) (*Member, error)

	// RequestOTP issues a login code and hands it to the notifier.
	RequestOTP(ctx context.Context, email string) error
	// VerifyOTP checks a code and returns a signed login token.
	VerifyOTP(ctx context.Context, email, code string) (string, error)

	// Purge is the explicit cascading admin delete.
	Purge(ctx context.Context, id uuid.UUID) error
}
