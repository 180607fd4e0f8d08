// internal/members/members_test.go
package members

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointnexus/internal/clients"
	"pointnexus/internal/ratelimit"
)

type captureNotifier struct {
	recipient string
	body      string
	calls     int
}

func (n *captureNotifier) Notify(_ context.Context, recipient, _, body string) error {
	n.recipient = recipient
	n.body = body
	n.calls++
	return nil
}

func newTestService(store Store, notifier clients.Notifier) Service {
	return NewService(Config{
		Store:     store,
		Notifier:  notifier,
		Tokens:    NewTokenIssuer([]byte("test-secret"), time.Hour),
		OTPSend:   ratelimit.New(3, 300*time.Second),
		OTPVerify: ratelimit.New(5, 300*time.Second),
	})
}

func TestProvisionFreeTier(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryStore(), &captureNotifier{})

	inviter := uuid.New()
	m, err := svc.Provision(ctx, ProvisionInput{
		Email:          "new@example.com",
		Name:           "New Member",
		MembershipType: "standard",
		InvitedBy:      &inviter,
		FreeTier:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, SubFree, m.SubscriptionStatus)
	assert.Equal(t, MemberActive, m.MembershipStatus)
	require.NotNil(t, m.InvitedBy)
	assert.Equal(t, inviter, *m.InvitedBy)
}

func TestProvisionIsRetrySafe(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(NewMemoryStore(), &captureNotifier{})

	in := ProvisionInput{Email: "dup@example.com", Name: "Dup", MembershipType: "standard"}
	first, err := svc.Provision(ctx, in)
	require.NoError(t, err)
	second, err := svc.Provision(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestOTPRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	notifier := &captureNotifier{}
	svc := newTestService(store, notifier)

	m, err := svc.Provision(ctx, ProvisionInput{Email: "otp@example.com", Name: "O", MembershipType: "standard", FreeTier: true})
	require.NoError(t, err)

	require.NoError(t, svc.RequestOTP(ctx, "otp@example.com"))
	require.Equal(t, 1, notifier.calls)
	require.Len(t, notifier.body, 6)

	token, err := svc.VerifyOTP(ctx, "otp@example.com", notifier.body)
	require.NoError(t, err)

	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	subject, purpose, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, m.ID, subject)
	assert.Equal(t, "login", purpose)

	// The challenge is consumed on success.
	_, err = svc.VerifyOTP(ctx, "otp@example.com", notifier.body)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyOTPWrongCode(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	svc := newTestService(NewMemoryStore(), notifier)

	_, err := svc.Provision(ctx, ProvisionInput{Email: "w@example.com", Name: "W", MembershipType: "standard"})
	require.NoError(t, err)
	require.NoError(t, svc.RequestOTP(ctx, "w@example.com"))

	_, err = svc.VerifyOTP(ctx, "w@example.com", "000000x")
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestRequestOTPRateLimited(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	svc := newTestService(NewMemoryStore(), notifier)

	_, err := svc.Provision(ctx, ProvisionInput{Email: "rl@example.com", Name: "R", MembershipType: "standard"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RequestOTP(ctx, "rl@example.com"))
	}
	err = svc.RequestOTP(ctx, "rl@example.com")
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}

func TestRequestOTPUnknownEmailIsSilent(t *testing.T) {
	ctx := context.Background()
	notifier := &captureNotifier{}
	svc := newTestService(NewMemoryStore(), notifier)

	require.NoError(t, svc.RequestOTP(ctx, "ghost@example.com"))
	assert.Equal(t, 0, notifier.calls)
}

func TestAssignMemberNumberIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := &Member{Email: "no@example.com", Name: "N", SubscriptionStatus: SubInactive, MembershipStatus: MemberInactive}
	require.NoError(t, store.Create(ctx, m))

	no, assigned, err := store.AssignMemberNumberIfAbsent(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, assigned)
	assert.NotEmpty(t, no)

	_, assigned, err = store.AssignMemberNumberIfAbsent(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, assigned)

	got, err := store.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got.MemberNo)
	assert.Equal(t, no, *got.MemberNo)
}

func TestSetSubscriptionStatusIf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	m := &Member{Email: "s@example.com", Name: "S", SubscriptionStatus: SubInactive, MembershipStatus: MemberInactive}
	require.NoError(t, store.Create(ctx, m))

	moved, err := store.SetSubscriptionStatusIf(ctx, m.ID, []SubscriptionStatus{SubInactive}, SubActive)
	require.NoError(t, err)
	assert.True(t, moved)

	// Replay of the same transition is a no-op.
	moved, err = store.SetSubscriptionStatusIf(ctx, m.ID, []SubscriptionStatus{SubInactive}, SubActive)
	require.NoError(t, err)
	assert.False(t, moved)
}

type recordingPurger struct{ purged []uuid.UUID }

func (p *recordingPurger) PurgeMember(_ context.Context, id uuid.UUID) error {
	p.purged = append(p.purged, id)
	return nil
}

func TestPurgeCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	purger := &recordingPurger{}
	svc := NewService(Config{
		Store:     store,
		Notifier:  &captureNotifier{},
		Tokens:    NewTokenIssuer([]byte("s"), time.Hour),
		OTPSend:   ratelimit.New(3, time.Minute),
		OTPVerify: ratelimit.New(5, time.Minute),
		Purgers:   []Purger{purger},
	})

	m, err := svc.Provision(ctx, ProvisionInput{Email: "p@example.com", Name: "P", MembershipType: "standard"})
	require.NoError(t, err)

	require.NoError(t, svc.Purge(ctx, m.ID))
	assert.Equal(t, []uuid.UUID{m.ID}, purger.purged)
	_, err = svc.Get(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
