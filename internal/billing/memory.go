// internal/billing/memory.go
package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryJournal is an in-memory Journal for tests and local runs.
type MemoryJournal struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{seen: make(map[string]string)}
}

func (j *MemoryJournal) Seen(_ context.Context, eventID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, ok := j.seen[eventID]
	return ok, nil
}

func (j *MemoryJournal) Record(_ context.Context, eventID, eventType string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.seen[eventID] = eventType
	return nil
}
