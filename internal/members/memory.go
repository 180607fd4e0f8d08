// internal/members/memory.go
package members

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is the in-memory Store used by tests. All conditional
// writes happen under one lock hold.
type MemoryStore struct {
	mu      sync.Mutex
	members map[uuid.UUID]*Member
	byEmail map[string]uuid.UUID
	otps    map[string]*OTPChallenge
	nextNo  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[uuid.UUID]*Member),
		byEmail: make(map[string]uuid.UUID),
		otps:    make(map[string]*OTPChallenge),
	}
}

func (s *MemoryStore) Create(_ context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[m.Email]; taken {
		return ErrEmailTaken
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	clone := *m
	s.members[m.ID] = &clone
	s.byEmail[m.Email] = m.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *m
	return &clone, nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s.members[id]
	return &clone, nil
}

func (s *MemoryStore) SetSubscriptionStatusIf(_ context.Context, id uuid.UUID, from []SubscriptionStatus, to SubscriptionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, f := range from {
		if m.SubscriptionStatus == f {
			m.SubscriptionStatus = to
			m.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) SetMembershipStatus(_ context.Context, id uuid.UUID, status MembershipStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return ErrNotFound
	}
	m.MembershipStatus = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) AssignMemberNumberIfAbsent(_ context.Context, id uuid.UUID) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return "", false, ErrNotFound
	}
	if m.MemberNo != nil {
		return "", false, nil
	}
	s.nextNo++
	no := fmt.Sprintf("PN-%06d", s.nextNo)
	m.MemberNo = &no
	m.UpdatedAt = time.Now().UTC()
	return no, true, nil
}

func (s *MemoryStore) ApplyCardTheme(_ context.Context, id uuid.UUID, theme string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return ErrNotFound
	}
	m.CardTheme = &theme
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, m.Email)
	delete(s.members, id)
	return nil
}

func (s *MemoryStore) SaveOTP(_ context.Context, c *OTPChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *c
	s.otps[c.Email] = &clone
	return nil
}

func (s *MemoryStore) GetOTP(_ context.Context, email string) (*OTPChallenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.otps[email]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *MemoryStore) DeleteOTP(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, email)
	return nil
}
