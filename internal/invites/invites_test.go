// internal/invites/invites_test.go
package invites

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointnexus/internal/clients"
	"pointnexus/internal/ledger"
	"pointnexus/internal/members"
	"pointnexus/internal/ratelimit"
)

type fixture struct {
	store     *MemoryStore
	ledgerSvc ledger.Service
	memberSvc members.Service
	svc       Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	inviteStore := NewMemoryStore()
	ledgerSvc := ledger.NewService(ledger.NewMemoryStore())
	memberSvc := members.NewService(members.Config{
		Store:     members.NewMemoryStore(),
		Notifier:  &clients.NoopNotifier{},
		Tokens:    members.NewTokenIssuer([]byte("test"), time.Hour),
		OTPSend:   ratelimit.New(3, time.Minute),
		OTPVerify: ratelimit.New(5, time.Minute),
	})
	tokens := members.NewTokenIssuer([]byte("test"), time.Hour)
	return &fixture{
		store:     inviteStore,
		ledgerSvc: ledgerSvc,
		memberSvc: memberSvc,
		svc:       NewService(inviteStore, memberSvc, ledgerSvc, tokens, nil),
	}
}

func TestCapFor(t *testing.T) {
	assert.Equal(t, 10, CapFor(0))
	assert.Equal(t, 10, CapFor(9))
	assert.Equal(t, 30, CapFor(10))
	assert.Equal(t, 30, CapFor(29))
	assert.Equal(t, 30, CapFor(30))
}

func TestSingleUseRedeemOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "once", InvitedBy: inviter, MembershipType: "free"})
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "once", "first@example.com")
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "once", "second@example.com")
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestSingleUseConcurrentRedemptions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "race", InvitedBy: inviter, MembershipType: "free"})
	require.NoError(t, err)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, alreadyUsed := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, "race", fmt.Sprintf("r%d@example.com", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case err == ErrAlreadyUsed:
				alreadyUsed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, alreadyUsed)
}

func TestReusableCapEnforcedConcurrently(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "multi", InvitedBy: inviter, MembershipType: "free", Reusable: true})
	require.NoError(t, err)

	const n = 25 // cap starts at 10 and lifts to 30 at the boundary
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Redeem(ctx, "multi", fmt.Sprintf("m%d@example.com", i))
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Every increment past 9 re-reads the aggregate, so once 10 is
	// crossed the cap is 30 and all 25 attempts fit under it.
	assert.Equal(t, 25, successes)
	total, err := f.store.SumReusableUse(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
}

func TestReusableCapBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	// Cumulative use count 9 spread over an earlier code.
	require.NoError(t, f.store.Create(ctx, &InviteCode{
		Code: "old", InvitedBy: inviter, MembershipType: "free", Reusable: true, UseCount: 9,
	}))
	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "new", InvitedBy: inviter, MembershipType: "free", Reusable: true})
	require.NoError(t, err)

	// The 10th redemption succeeds and lifts the cap to 30.
	_, err = f.svc.Redeem(ctx, "new", "ten@example.com")
	require.NoError(t, err)
	total, err := f.store.SumReusableUse(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, 10, total)

	// 20 more fit under the lifted cap...
	for i := 0; i < 20; i++ {
		_, err := f.svc.Redeem(ctx, "new", fmt.Sprintf("b%d@example.com", i))
		require.NoError(t, err)
	}
	// ...and the 31st cumulative redemption fails.
	_, err = f.svc.Redeem(ctx, "new", "overflow@example.com")
	assert.ErrorIs(t, err, ErrCapReached)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	city := "Lisbon"
	_, err := f.svc.CreateInvite(ctx, CreateInput{
		Code: "v1", InvitedBy: inviter, MembershipType: "free", TargetCity: &city,
	})
	require.NoError(t, err)

	v, err := f.svc.Validate(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, "free", v.MembershipType)
	assert.Equal(t, inviter, v.InvitedBy)
	require.NotNil(t, v.TargetCity)
	assert.Equal(t, "Lisbon", *v.TargetCity)

	v, err = f.svc.Validate(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, v.Valid)

	_, err = f.svc.Redeem(ctx, "v1", "v@example.com")
	require.NoError(t, err)
	v, err = f.svc.Validate(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, v.Valid)
}

func TestFreeTierRedemptionGrants(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	require.NoError(t, f.store.CreateQuest(ctx, &Quest{
		Slug: QuestInviteFriend, Title: "Invite a friend", RewardPoints: 30, Active: true,
	}))
	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "bonus", InvitedBy: inviter, MembershipType: "free"})
	require.NoError(t, err)

	redemption, err := f.svc.Redeem(ctx, "bonus", "friend@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, redemption.CallbackToken)

	balance, err := f.ledgerSvc.Balance(ctx, redemption.MemberID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance) // welcome bonus

	inviterBalance, err := f.ledgerSvc.Balance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(130), inviterBalance) // invite bonus + quest reward
}

func TestFreeTierGrantsAreIdempotentAcrossInvitees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "r1", InvitedBy: inviter, MembershipType: "free", Reusable: true})
	require.NoError(t, err)

	first, err := f.svc.Redeem(ctx, "r1", "a@example.com")
	require.NoError(t, err)
	second, err := f.svc.Redeem(ctx, "r1", "b@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, first.MemberID, second.MemberID)

	// Two distinct invitees: two invite bonuses.
	inviterBalance, err := f.ledgerSvc.Balance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(200), inviterBalance)

	// Same invitee again (retried redemption): no third bonus.
	_, err = f.svc.Redeem(ctx, "r1", "a@example.com")
	require.NoError(t, err)
	inviterBalance, err = f.ledgerSvc.Balance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(200), inviterBalance)
}

// flakyMembers fails the first n Provision calls, standing in for a
// registry hit by a transient outage mid-redemption.
type flakyMembers struct {
	members.Service
	mu       sync.Mutex
	failures int
}

func (f *flakyMembers) Provision(ctx context.Context, in members.ProvisionInput) (*members.Member, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("registry unavailable")
	}
	f.mu.Unlock()
	return f.Service.Provision(ctx, in)
}

func TestFailedProvisionReleasesSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	flaky := &flakyMembers{Service: f.memberSvc, failures: 1}
	svc := NewService(f.store, flaky, f.ledgerSvc, members.NewTokenIssuer([]byte("test"), time.Hour), nil)
	inviter := uuid.New()

	_, err := svc.CreateInvite(ctx, CreateInput{Code: "shaky", InvitedBy: inviter, MembershipType: "free"})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "shaky", "retry@example.com")
	require.Error(t, err)

	// The failed attempt must not leave the code spent.
	invite, err := f.store.GetByCode(ctx, "shaky")
	require.NoError(t, err)
	assert.False(t, invite.Used)

	// The retry admits the member and consumes the use exactly once.
	redemption, err := svc.Redeem(ctx, "shaky", "retry@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, redemption.CallbackToken)

	invite, err = f.store.GetByCode(ctx, "shaky")
	require.NoError(t, err)
	assert.True(t, invite.Used)

	balance, err := f.ledgerSvc.Balance(ctx, redemption.MemberID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

func TestFailedProvisionReleasesReusableUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	flaky := &flakyMembers{Service: f.memberSvc, failures: 1}
	svc := NewService(f.store, flaky, f.ledgerSvc, members.NewTokenIssuer([]byte("test"), time.Hour), nil)
	inviter := uuid.New()

	_, err := svc.CreateInvite(ctx, CreateInput{Code: "shaky-multi", InvitedBy: inviter, MembershipType: "free", Reusable: true})
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "shaky-multi", "retry@example.com")
	require.Error(t, err)

	total, err := f.store.SumReusableUse(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	first, err := svc.Redeem(ctx, "shaky-multi", "retry@example.com")
	require.NoError(t, err)
	second, err := svc.Redeem(ctx, "shaky-multi", "retry@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.MemberID, second.MemberID)

	// One admitted member, yet the retried redemption still counts as a
	// fresh use; only the failed attempt's increment was handed back.
	total, err = f.store.SumReusableUse(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	// One invite bonus for one distinct invitee.
	inviterBalance, err := f.ledgerSvc.Balance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(100), inviterBalance)
}

func TestInactiveQuestIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	inviter := uuid.New()

	require.NoError(t, f.store.CreateQuest(ctx, &Quest{
		Slug: QuestInviteFriend, Title: "Invite a friend", RewardPoints: 30, Active: false,
	}))
	_, err := f.svc.CreateInvite(ctx, CreateInput{Code: "q0", InvitedBy: inviter, MembershipType: "free"})
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, "q0", "noq@example.com")
	require.NoError(t, err)

	inviterBalance, err := f.ledgerSvc.Balance(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, int64(100), inviterBalance) // invite bonus only
}
