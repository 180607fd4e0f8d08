// internal/streak/streak_test.go
package streak

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointnexus/internal/ledger"
	"pointnexus/internal/ratelimit"
)

type fixture struct {
	ledgerSvc ledger.Service
	svc       *service
	clock     time.Time
}

func newFixture(t *testing.T, limiter ratelimit.Allower) *fixture {
	t.Helper()
	store := ledger.NewMemoryStore()
	ledgerSvc := ledger.NewService(store)
	if limiter == nil {
		limiter = ratelimit.New(100000, time.Minute)
	}
	f := &fixture{
		ledgerSvc: ledgerSvc,
		svc:       NewService(ledgerSvc, store, limiter, nil).(*service),
		clock:     time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) nextDay() {
	f.clock = f.clock.AddDate(0, 0, 1)
}

func TestClaimGrantsDailyBonus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	result, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
	assert.Equal(t, int64(ledger.LoginBonusPoints), result.PointsGranted)
	assert.False(t, result.WeeklyBonus)

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestSecondClaimSameDayRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	_, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	_, err = f.svc.ClaimDaily(ctx, memberID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), balance)
}

func TestSeventhConsecutiveDayGrantsWeeklyBonus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	for day := 1; day <= 6; day++ {
		result, err := f.svc.ClaimDaily(ctx, memberID)
		require.NoError(t, err)
		assert.Equal(t, day, result.Streak)
		assert.False(t, result.WeeklyBonus)
		f.nextDay()
	}

	result, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Streak)
	assert.True(t, result.WeeklyBonus)
	assert.False(t, result.MonthlyBonus)
	assert.Equal(t, int64(60), result.PointsGranted)

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(7*10+50), balance)
}

func TestMissedDayResetsStreak(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	for day := 0; day < 3; day++ {
		_, err := f.svc.ClaimDaily(ctx, memberID)
		require.NoError(t, err)
		f.nextDay()
	}
	f.nextDay() // skipped day

	result, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Streak)
}

func TestDayTwoHundredTenGrantsBothMilestones(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	for day := 1; day < 210; day++ {
		_, err := f.svc.ClaimDaily(ctx, memberID)
		require.NoError(t, err)
		f.nextDay()
	}

	result, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 210, result.Streak)
	assert.True(t, result.WeeklyBonus)
	assert.True(t, result.MonthlyBonus)
	assert.Equal(t, int64(10+50+150), result.PointsGranted)
}

func TestCurrentStreakCountsRunThroughYesterday(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	memberID := uuid.New()

	_, err := f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)
	f.nextDay()
	_, err = f.svc.ClaimDaily(ctx, memberID)
	require.NoError(t, err)

	// Next morning before claiming the run is still alive.
	f.nextDay()
	run, err := f.svc.CurrentStreak(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 2, run)

	// A full missed day kills it.
	f.nextDay()
	run, err = f.svc.CurrentStreak(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, 0, run)
}

func TestClaimRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, ratelimit.New(3, time.Minute))
	memberID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := f.svc.ClaimDaily(ctx, memberID)
		require.NoError(t, err)
		f.nextDay()
	}
	_, err := f.svc.ClaimDaily(ctx, memberID)
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}
