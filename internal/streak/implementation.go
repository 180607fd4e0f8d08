// internal/streak/implementation.go
package streak

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pointnexus/internal/ledger"
	"pointnexus/internal/ratelimit"
)

const dayFormat = "2006-01-02"

// service implements the Service interface.
type service struct {
	points  ledger.Service
	history History
	limiter ratelimit.Allower
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates a new streak engine instance.
func NewService(points ledger.Service, history History, limiter ratelimit.Allower, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		points:  points,
		history: history,
		limiter: limiter,
		logger:  logger,
		tracer:  otel.Tracer("pointnexus/streak"),
		now:     time.Now,
	}
}

func (s *service) ClaimDaily(ctx context.Context, memberID uuid.UUID) (*ClaimResult, error) {
	if !s.limiter.Allow(memberID.String()) {
		return nil, ratelimit.ErrRateLimited
	}

	today := s.now().UTC().Format(dayFormat)

	ctx, span := s.tracer.Start(ctx, "streak.claim_daily",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("claim.date", today),
		),
	)
	defer span.End()

	// The day's date is the dedupe note, so double claims lose the
	// insert race no matter how many instances serve them.
	granted, err := s.points.GrantOnce(ctx, memberID, ledger.KindLoginBonus, ledger.LoginBonusPoints, today)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, ErrAlreadyClaimed
	}

	run, err := s.runEndingAt(ctx, memberID, today)
	if err != nil {
		return nil, err
	}

	result := &ClaimResult{
		Date:          today,
		Streak:        run,
		PointsGranted: ledger.LoginBonusPoints,
	}

	if run%weeklyEvery == 0 {
		ok, err := s.points.GrantOnce(ctx, memberID,
			ledger.KindLoginStreakBonus, ledger.StreakWeeklyPoints, "7-day:"+today)
		if err != nil {
			return nil, err
		}
		if ok {
			result.WeeklyBonus = true
			result.PointsGranted += ledger.StreakWeeklyPoints
		}
	}
	if run%monthlyEvery == 0 {
		ok, err := s.points.GrantOnce(ctx, memberID,
			ledger.KindLoginStreakBonus, ledger.StreakMonthlyPoints, "30-day:"+today)
		if err != nil {
			return nil, err
		}
		if ok {
			result.MonthlyBonus = true
			result.PointsGranted += ledger.StreakMonthlyPoints
		}
	}

	s.logger.Info("daily bonus claimed",
		"member", memberID, "date", today, "streak", run, "points", result.PointsGranted)
	return result, nil
}

func (s *service) CurrentStreak(ctx context.Context, memberID uuid.UUID) (int, error) {
	today := s.now().UTC().Format(dayFormat)
	run, err := s.runEndingAt(ctx, memberID, today)
	if err != nil {
		return 0, err
	}
	if run > 0 {
		return run, nil
	}
	// Not claimed yet today; a run through yesterday still counts as
	// live.
	return s.runEndingAt(ctx, memberID, prevDay(today))
}

// runEndingAt counts consecutive claim days walking backwards from the
// given day. Claim notes are ISO dates, so their lexicographic order is
// their chronological order and DistinctNotes returns newest first.
func (s *service) runEndingAt(ctx context.Context, memberID uuid.UUID, day string) (int, error) {
	notes, err := s.history.DistinctNotes(ctx, memberID, ledger.KindLoginBonus)
	if err != nil {
		return 0, err
	}

	run := 0
	expected := day
	for _, note := range notes {
		if note > expected {
			continue
		}
		if note != expected {
			break
		}
		run++
		expected = prevDay(expected)
	}
	return run, nil
}

func prevDay(day string) string {
	t, err := time.Parse(dayFormat, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayFormat)
}
