// internal/invites/memory.go
package invites

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store used by tests. The single mutex
// serializes every redeem, which is the same guarantee the Postgres
// driver gets from its conditional updates and the per-inviter lock.
type MemoryStore struct {
	mu     sync.Mutex
	byCode map[string]*InviteCode
	quests map[string]*Quest
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCode: make(map[string]*InviteCode),
		quests: make(map[string]*Quest),
	}
}

func (s *MemoryStore) Create(_ context.Context, c *InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	clone := *c
	s.byCode[c.Code] = &clone
	return nil
}

func (s *MemoryStore) GetByCode(_ context.Context, code string) (*InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok {
		return nil, ErrInvalidInvite
	}
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) RedeemSingleUse(_ context.Context, code string) (*InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok {
		return nil, ErrInvalidInvite
	}
	if c.Reusable {
		return nil, ErrInvalidInvite
	}
	if c.Used {
		return nil, ErrAlreadyUsed
	}
	c.Used = true
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) RedeemReusable(_ context.Context, code string) (*InviteCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok {
		return nil, ErrInvalidInvite
	}
	if !c.Reusable {
		return nil, ErrInvalidInvite
	}
	total := s.sumReusableLocked(c.InvitedBy)
	if total >= CapFor(total) {
		return nil, ErrCapReached
	}
	c.UseCount++
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) ReleaseSingleUse(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok || c.Reusable {
		return nil
	}
	c.Used = false
	return nil
}

func (s *MemoryStore) ReleaseReusable(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCode[code]
	if !ok || !c.Reusable || c.UseCount == 0 {
		return nil
	}
	c.UseCount--
	return nil
}

func (s *MemoryStore) sumReusableLocked(inviterID uuid.UUID) int {
	total := 0
	for _, c := range s.byCode {
		if c.Reusable && c.InvitedBy == inviterID {
			total += c.UseCount
		}
	}
	return total
}

func (s *MemoryStore) SumReusableUse(_ context.Context, inviterID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumReusableLocked(inviterID), nil
}

func (s *MemoryStore) CreateQuest(_ context.Context, q *Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	clone := *q
	s.quests[q.Slug] = &clone
	return nil
}

func (s *MemoryStore) ActiveQuestBySlug(_ context.Context, slug string) (*Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quests[slug]
	if !ok || !q.Active {
		return nil, ErrQuestNotFound
	}
	clone := *q
	return &clone, nil
}
