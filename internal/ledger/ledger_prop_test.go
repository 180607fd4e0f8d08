// internal/ledger/ledger_prop_test.go
package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// Balance must always equal the sum of appended points, and status
// points the sum over non-exchange kinds, for any sequence of entries.
func TestBalanceIsSumOfEntries(t *testing.T) {
	kinds := []string{
		KindWelcomeBonus, KindInviteBonus, KindRenewalBonus,
		KindLoginBonus, KindExchange, KindExchangeReversal,
	}

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := NewMemoryStore()
		memberID := uuid.New()

		var wantBalance, wantStatus int64
		n := rapid.IntRange(0, 40).Draw(t, "entries")
		for i := 0; i < n; i++ {
			kind := rapid.SampledFrom(kinds).Draw(t, "kind")
			points := rapid.Int64Range(-500, 500).Draw(t, "points")
			if err := store.AppendEntry(ctx, &Entry{MemberID: memberID, Kind: kind, Points: points}); err != nil {
				t.Fatalf("append: %v", err)
			}
			wantBalance += points
			if CountsTowardStatus(kind) {
				wantStatus += points
			}
		}

		balance, err := store.Balance(ctx, memberID)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		if balance != wantBalance {
			t.Fatalf("balance = %d, want %d", balance, wantBalance)
		}

		status, err := store.StatusPoints(ctx, memberID)
		if err != nil {
			t.Fatalf("status points: %v", err)
		}
		if status != wantStatus {
			t.Fatalf("status points = %d, want %d", status, wantStatus)
		}
	})
}

// Rank is monotone in status points and consistent with NextRankFor.
func TestRankMonotoneAndConsistent(t *testing.T) {
	order := map[Rank]int{RankD: 0, RankC: 1, RankB: 2, RankA: 3}

	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, 2000).Draw(t, "a")
		b := rapid.Int64Range(0, 2000).Draw(t, "b")
		if a > b {
			a, b = b, a
		}
		if order[RankFor(a)] > order[RankFor(b)] {
			t.Fatalf("rank not monotone: %d->%s, %d->%s", a, RankFor(a), b, RankFor(b))
		}

		next, toNext := NextRankFor(a)
		if next != "" {
			if RankFor(a+toNext) != next {
				t.Fatalf("adding %d to %d should reach %s", toNext, a, next)
			}
			if toNext > 0 && RankFor(a+toNext-1) == next {
				t.Fatalf("reached %s one point early from %d", next, a)
			}
		}
	})
}
