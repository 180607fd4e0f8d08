// internal/ledger/service.go
package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Service defines the interface for the ledger service.
type Service interface {
	// GrantOnce attempts an idempotent grant keyed by (member, kind,
	// note). granted=false means the grant already exists; that is a
	// success for at-least-once callers, not an error.
	GrantOnce(ctx context.Context, memberID uuid.UUID, kind string, points int64, note string) (granted bool, err error)

	// Append records a non-deduplicated entry.
	Append(ctx context.Context, memberID uuid.UUID, kind string, points int64, note string) (*Entry, error)

	Entries(ctx context.Context, memberID uuid.UUID) ([]Entry, error)
	Balance(ctx context.Context, memberID uuid.UUID) (int64, error)
	StatusPoints(ctx context.Context, memberID uuid.UUID) (int64, error)

	// Summary derives balance, status points and rank in one call.
	Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error)
}
