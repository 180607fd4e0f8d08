// internal/ledger/memory.go
package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a mutex-guarded in-memory Store used by tests and
// local development. The dedupe check and insert happen under a single
// lock hold, matching the atomicity the Postgres index provides.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	dedupe  map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dedupe: make(map[string]struct{})}
}

func dedupeKey(memberID uuid.UUID, kind, note string) string {
	return memberID.String() + "\x00" + kind + "\x00" + note
}

func (s *MemoryStore) append(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, *e)
}

func (s *MemoryStore) AppendEntry(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(e)
	return nil
}

func (s *MemoryStore) InsertUnique(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dedupeKey(e.MemberID, e.Kind, e.Note)
	if _, exists := s.dedupe[key]; exists {
		return ErrDuplicateGrant
	}
	s.dedupe[key] = struct{}{}
	s.append(e)
	return nil
}

func (s *MemoryStore) EntriesByMember(_ context.Context, memberID uuid.UUID) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Entry{}
	for _, e := range s.entries {
		if e.MemberID == memberID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) Balance(_ context.Context, memberID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(memberID), nil
}

func (s *MemoryStore) balanceLocked(memberID uuid.UUID) int64 {
	var sum int64
	for _, e := range s.entries {
		if e.MemberID == memberID {
			sum += e.Points
		}
	}
	return sum
}

func (s *MemoryStore) StatusPoints(_ context.Context, memberID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum int64
	for _, e := range s.entries {
		if e.MemberID == memberID && CountsTowardStatus(e.Kind) {
			sum += e.Points
		}
	}
	return sum, nil
}

func (s *MemoryStore) DistinctNotes(_ context.Context, memberID uuid.UUID, kind string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	notes := []string{}
	for _, e := range s.entries {
		if e.MemberID != memberID || e.Kind != kind {
			continue
		}
		if _, ok := seen[e.Note]; ok {
			continue
		}
		seen[e.Note] = struct{}{}
		notes = append(notes, e.Note)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(notes)))
	return notes, nil
}

func (s *MemoryStore) PurgeMember(_ context.Context, memberID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.MemberID != memberID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	for key := range s.dedupe {
		if len(key) > 36 && key[:36] == memberID.String() {
			delete(s.dedupe, key)
		}
	}
	return nil
}
