// internal/ratelimit/limiter_test.go
package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New(3, time.Minute)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("member-1"))
	}
	assert.False(t, l.Allow("member-1"))
	// A different key has its own window.
	assert.True(t, l.Allow("member-2"))
}

func TestWindowSlides(t *testing.T) {
	l := New(2, time.Minute)
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow("k"))
	current = current.Add(30 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))

	// First hit falls out of the window; one slot frees up.
	current = current.Add(31 * time.Second)
	assert.True(t, l.Allow("k"))
	assert.False(t, l.Allow("k"))
}

func TestDeniedRequestsAreNotCounted(t *testing.T) {
	l := New(1, time.Minute)
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	assert.True(t, l.Allow("k"))
	for i := 0; i < 10; i++ {
		assert.False(t, l.Allow("k"))
	}
	current = current.Add(61 * time.Second)
	assert.True(t, l.Allow("k"))
}

func TestRetryAfter(t *testing.T) {
	l := New(1, time.Minute)
	current := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	assert.Equal(t, time.Duration(0), l.RetryAfter("k"))
	require.True(t, l.Allow("k"))
	current = current.Add(20 * time.Second)
	assert.Equal(t, 40*time.Second, l.RetryAfter("k"))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.OTPSend.MaxRequests)
	assert.Equal(t, 300, cfg.OTPSend.WindowSeconds)
	assert.Equal(t, 5, cfg.Exchange.MaxRequests)
	assert.Equal(t, time.Minute, cfg.Exchange.Window())
	assert.Equal(t, 3, cfg.LoginBonus.MaxRequests)
}
