// internal/exchange/exchange_test.go
package exchange

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointnexus/internal/ledger"
	"pointnexus/internal/members"
	"pointnexus/internal/ratelimit"
)

type fixture struct {
	ledgerStore *ledger.MemoryStore
	ledgerSvc   ledger.Service
	memberStore *members.MemoryStore
	store       *MemoryStore
	svc         Service
	limiter     *ratelimit.SlidingWindow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledgerStore := ledger.NewMemoryStore()
	memberStore := members.NewMemoryStore()
	store := NewMemoryStore(ledgerStore)
	limiter := ratelimit.New(1000, time.Minute)
	return &fixture{
		ledgerStore: ledgerStore,
		ledgerSvc:   ledger.NewService(ledgerStore),
		memberStore: memberStore,
		store:       store,
		svc:         NewService(store, memberStore, limiter, nil),
		limiter:     limiter,
	}
}

func (f *fixture) fund(t *testing.T, memberID uuid.UUID, points int64) {
	t.Helper()
	_, err := f.ledgerSvc.Append(context.Background(), memberID, ledger.KindWelcomeBonus, points, "")
	require.NoError(t, err)
}

func (f *fixture) item(t *testing.T, cost int64, stock int, coupon string) *Item {
	t.Helper()
	item := &Item{Name: "Sticker Pack", PointsCost: cost, Stock: stock, CouponCode: coupon, Active: true}
	created, err := f.svc.CreateItem(context.Background(), item)
	require.NoError(t, err)
	return created
}

func TestRedeemHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 200)
	item := f.item(t, 50, 3, "SAVE10")

	order, err := f.svc.Redeem(ctx, memberID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	assert.Equal(t, int64(50), order.PointsSpent)

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), balance)

	got, err := f.store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Stock)
}

func TestRedeemInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 40)
	item := f.item(t, 50, UnlimitedStock, "")

	_, err := f.svc.Redeem(ctx, memberID, item.ID)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// No residue: balance untouched, no order created.
	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), balance)
}

func TestRedeemZeroStockFailsRegardlessOfBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 100000)
	item := f.item(t, 50, 0, "")

	_, err := f.svc.Redeem(ctx, memberID, item.ID)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestRedeemInactiveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 500)
	item := &Item{Name: "Retired", PointsCost: 10, Stock: 5, Active: false}
	require.NoError(t, f.store.CreateItem(ctx, item))

	_, err := f.svc.Redeem(ctx, memberID, item.ID)
	assert.ErrorIs(t, err, ErrItemUnavailable)
}

func TestConcurrentRedemptionsRespectStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	item := f.item(t, 10, 3, "")

	const n = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < n; i++ {
		memberID := uuid.New()
		f.fund(t, memberID, 100)
		wg.Add(1)
		go func(memberID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, memberID, item.ID)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(memberID)
	}
	wg.Wait()

	assert.Equal(t, 3, successes)
	got, err := f.store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestConcurrentRedemptionsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 100)
	item := f.item(t, 30, UnlimitedStock, "")

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.svc.Redeem(ctx, memberID, item.ID)
		}()
	}
	wg.Wait()

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, balance, int64(0))
	assert.Equal(t, int64(10), balance) // 3 of 10 fit into 100 points
}

func TestApproveMaterializesCouponAndTheme(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	member := &members.Member{Email: "t@example.com", Name: "T",
		SubscriptionStatus: members.SubActive, MembershipStatus: members.MemberActive}
	require.NoError(t, f.memberStore.Create(ctx, member))
	f.fund(t, member.ID, 100)
	item := f.item(t, 50, UnlimitedStock, "theme:midnight")

	order, err := f.svc.Redeem(ctx, member.ID, item.ID)
	require.NoError(t, err)

	outcome, err := f.svc.Review(ctx, order.ID, DecisionApprove, "admin")
	require.NoError(t, err)
	assert.False(t, outcome.RefundIssued)
	require.NotNil(t, outcome.Order.CouponCode)
	assert.Equal(t, "theme:midnight", *outcome.Order.CouponCode)
	assert.Equal(t, OrderApproved, outcome.Order.Status)

	got, err := f.memberStore.GetByID(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CardTheme)
	assert.Equal(t, "midnight", *got.CardTheme)
}

func TestRejectRefundsAndRestoresStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 100)
	item := f.item(t, 60, 1, "")

	order, err := f.svc.Redeem(ctx, memberID, item.ID)
	require.NoError(t, err)
	balance, _ := f.ledgerSvc.Balance(ctx, memberID)
	require.Equal(t, int64(40), balance)

	outcome, err := f.svc.Review(ctx, order.ID, DecisionReject, "admin")
	require.NoError(t, err)
	assert.True(t, outcome.RefundIssued)

	balance, err = f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	got, err := f.store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}

func TestReviewTwiceNeverDoubleRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 100)
	item := f.item(t, 60, 1, "")

	order, err := f.svc.Redeem(ctx, memberID, item.ID)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, order.ID, DecisionReject, "admin")
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, order.ID, DecisionReject, "admin")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	balance, err := f.ledgerSvc.Balance(ctx, memberID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)

	got, err := f.store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
}

func TestApproveTwiceNeverDoubleGrantsCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	memberID := uuid.New()
	f.fund(t, memberID, 100)
	item := f.item(t, 10, UnlimitedStock, "CODE")

	order, err := f.svc.Redeem(ctx, memberID, item.ID)
	require.NoError(t, err)

	_, err = f.svc.Review(ctx, order.ID, DecisionApprove, "admin")
	require.NoError(t, err)
	_, err = f.svc.Review(ctx, order.ID, DecisionApprove, "admin")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestRedeemRateLimited(t *testing.T) {
	ctx := context.Background()
	ledgerStore := ledger.NewMemoryStore()
	store := NewMemoryStore(ledgerStore)
	svc := NewService(store, members.NewMemoryStore(), ratelimit.New(5, time.Minute), nil)
	ledgerSvc := ledger.NewService(ledgerStore)

	memberID := uuid.New()
	_, err := ledgerSvc.Append(ctx, memberID, ledger.KindWelcomeBonus, 10000, "")
	require.NoError(t, err)
	item := &Item{Name: "X", PointsCost: 1, Stock: UnlimitedStock, Active: true}
	require.NoError(t, store.CreateItem(ctx, item))

	for i := 0; i < 5; i++ {
		_, err := svc.Redeem(ctx, memberID, item.ID)
		require.NoError(t, err)
	}
	_, err = svc.Redeem(ctx, memberID, item.ID)
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}
