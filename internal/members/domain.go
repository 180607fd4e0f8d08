// internal/members/domain.go
package members

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is driven by the payment-provider reconciler (or
// explicit admin action), never by request handlers directly.
type SubscriptionStatus string

const (
	SubInactive SubscriptionStatus = "inactive"
	SubActive   SubscriptionStatus = "active"
	SubPastDue  SubscriptionStatus = "past_due"
	SubCanceled SubscriptionStatus = "canceled"
	SubFree     SubscriptionStatus = "free"
	SubFreeTier SubscriptionStatus = "free_tier"
)

// MembershipStatus gates access to the community itself.
type MembershipStatus string

const (
	MemberInactive  MembershipStatus = "inactive"
	MemberActive    MembershipStatus = "active"
	MemberSuspended MembershipStatus = "suspended"
)

// Member represents a community member.
type Member struct {
	ID                 uuid.UUID          `json:"id" db:"id"`
	Email              string             `json:"email" db:"email"`
	Name               string             `json:"name" db:"name"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	MembershipStatus   MembershipStatus   `json:"membership_status" db:"membership_status"`
	MembershipType     string             `json:"membership_type" db:"membership_type"`
	MemberNo           *string            `json:"member_no,omitempty" db:"member_no"`
	InvitedBy          *uuid.UUID         `json:"invited_by,omitempty" db:"invited_by"`
	CardTheme          *string            `json:"card_theme,omitempty" db:"card_theme"`
	Country            *string            `json:"country,omitempty" db:"country"`
	City               *string            `json:"city,omitempty" db:"city"`
	Lat                *float64           `json:"lat,omitempty" db:"lat"`
	Lng                *float64           `json:"lng,omitempty" db:"lng"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// OTPChallenge holds the argon2id hash of an emailed login code. One
// active challenge per email; a new request replaces the old one.
type OTPChallenge struct {
	Email     string    `db:"email"`
	CodeHash  string    `db:"code_hash"`
	Salt      string    `db:"salt"`
	ExpiresAt time.Time `db:"expires_at"`
}
