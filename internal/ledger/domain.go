// internal/ledger/domain.go
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Entry is an immutable signed-point record attributable to one member
// and one cause. Corrections are new offsetting entries, never updates.
type Entry struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MemberID  uuid.UUID `json:"member_id" db:"member_id"`
	Kind      string    `json:"kind" db:"kind"`
	Points    int64     `json:"points" db:"points"`
	Note      string    `json:"note" db:"note"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Entry kinds written by this engine. Kind is free text in the schema;
// these are the values the grant paths use.
const (
	KindWelcomeBonus      = "Welcome Bonus"
	KindInviteBonus       = "Invite Bonus"
	KindSubscriptionBonus = "Subscription Bonus"
	KindRenewalBonus      = "Renewal Bonus"
	KindLoginBonus        = "Login Bonus"
	KindLoginStreakBonus  = "Login Streak Bonus"
	KindQuestReward       = "Quest Reward"
	KindExchange          = "Point Exchange"
	KindExchangeReversal  = "Point Exchange Reversal"
)

// Points granted by the standard bonuses.
const (
	WelcomeBonusPoints      = 100
	InviteBonusPoints       = 100
	SubscriptionBonusPoints = 100
	RenewalBonusPoints      = 50
	LoginBonusPoints        = 10
	StreakWeeklyPoints      = 50
	StreakMonthlyPoints     = 150
)

// CountsTowardStatus reports whether entries of the given kind count
// toward status points. Exchange debits and their reversals do not.
func CountsTowardStatus(kind string) bool {
	return kind != KindExchange && kind != KindExchangeReversal
}

// Summary is the derived view of a member's ledger.
type Summary struct {
	MemberID     uuid.UUID `json:"member_id"`
	Balance      int64     `json:"balance"`
	StatusPoints int64     `json:"status_points"`
	Rank         Rank      `json:"rank"`
	NextRank     Rank      `json:"next_rank,omitempty"`
	PointsToNext int64     `json:"points_to_next_rank"`
}
