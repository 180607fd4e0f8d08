// internal/streak/service.go
package streak

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAlreadyClaimed is returned when the member already collected
// today's login bonus.
var ErrAlreadyClaimed = errors.New("daily bonus already claimed")

// Milestone cadence, in consecutive days.
const (
	weeklyEvery  = 7
	monthlyEvery = 30
)

// ClaimResult reports what a daily claim produced.
type ClaimResult struct {
	Date          string `json:"date"`
	Streak        int    `json:"streak"`
	PointsGranted int64  `json:"points_granted"`
	WeeklyBonus   bool   `json:"weekly_bonus"`
	MonthlyBonus  bool   `json:"monthly_bonus"`
}

// History reads the claim dates already on the ledger. Satisfied by the
// ledger stores.
type History interface {
	DistinctNotes(ctx context.Context, memberID uuid.UUID, kind string) ([]string, error)
}

// Service defines the interface for the login streak engine.
type Service interface {
	// ClaimDaily grants the daily login bonus and any streak milestone
	// it completes. One claim per member per UTC day; the second claim
	// of a day returns ErrAlreadyClaimed. Rate limited per member.
	ClaimDaily(ctx context.Context, memberID uuid.UUID) (*ClaimResult, error)

	// CurrentStreak derives the member's run of consecutive claim days
	// ending today or yesterday, without claiming.
	CurrentStreak(ctx context.Context, memberID uuid.UUID) (int, error)
}
