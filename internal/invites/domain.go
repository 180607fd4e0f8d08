// internal/invites/domain.go
package invites

import (
	"time"

	"github.com/google/uuid"
)

// InviteCode admits new members. Single-use codes flip used exactly
// once; reusable codes carry a monotonically increasing use_count
// bounded by the inviter's live cap.
type InviteCode struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Code           string    `json:"code" db:"code"`
	InvitedBy      uuid.UUID `json:"invited_by" db:"invited_by"`
	MembershipType string    `json:"membership_type" db:"membership_type"`
	Reusable       bool      `json:"reusable" db:"reusable"`
	Used           bool      `json:"used" db:"used"`
	UseCount       int       `json:"use_count" db:"use_count"`
	TargetName     *string   `json:"target_name,omitempty" db:"target_name"`
	TargetCountry  *string   `json:"target_country,omitempty" db:"target_country"`
	TargetCity     *string   `json:"target_city,omitempty" db:"target_city"`
	TargetLat      *float64  `json:"target_lat,omitempty" db:"target_lat"`
	TargetLng      *float64  `json:"target_lng,omitempty" db:"target_lng"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Quest is the minimal slice of the quest system this engine consults:
// the "invite a friend" quest auto-completes on free-tier redemption.
type Quest struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Slug         string    `json:"slug" db:"slug"`
	Title        string    `json:"title" db:"title"`
	RewardPoints int64     `json:"reward_points" db:"reward_points"`
	Active       bool      `json:"active" db:"active"`
}

const QuestInviteFriend = "invite-friend"

// CapFor is the step function over an inviter's cumulative reusable
// use count. Crossing 10 lifts the ceiling to 30.
func CapFor(totalUseCount int) int {
	if totalUseCount >= 10 {
		return 30
	}
	return 10
}

// IsFreeTier reports whether a membership type admits without payment.
func IsFreeTier(membershipType string) bool {
	return membershipType == "free" || membershipType == "free_tier"
}

// Validation is the answer to a pre-redemption code check.
type Validation struct {
	Valid          bool      `json:"valid"`
	MembershipType string    `json:"membership_type,omitempty"`
	InvitedBy      uuid.UUID `json:"invited_by,omitempty"`
	TargetName     *string   `json:"target_name,omitempty"`
	TargetCountry  *string   `json:"target_country,omitempty"`
	TargetCity     *string   `json:"target_city,omitempty"`
	TargetLat      *float64  `json:"target_lat,omitempty"`
	TargetLng      *float64  `json:"target_lng,omitempty"`
}

// Redemption is the outcome of a successful redeem.
type Redemption struct {
	MemberID      uuid.UUID `json:"member_id"`
	CallbackToken string    `json:"callback_token"`
}
