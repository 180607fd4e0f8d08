// internal/ledger/store.go
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrDuplicateGrant is returned by InsertUnique when an entry with
	// the same (member, kind, note) dedupe key already exists.
	ErrDuplicateGrant = errors.New("duplicate grant: dedupe key already exists")
)

// Store is the append-only persistence for ledger entries. Balances are
// recomputed on read; there is no cached counter to invalidate.
type Store interface {
	// AppendEntry inserts an entry with no uniqueness requirement.
	AppendEntry(ctx context.Context, e *Entry) error

	// InsertUnique inserts an entry guarded by the (member, kind, note)
	// uniqueness invariant. The check and the insert are one atomic
	// statement; a losing race returns ErrDuplicateGrant with no side
	// effect.
	InsertUnique(ctx context.Context, e *Entry) error

	EntriesByMember(ctx context.Context, memberID uuid.UUID) ([]Entry, error)

	// Balance is the sum of points over all entries.
	Balance(ctx context.Context, memberID uuid.UUID) (int64, error)

	// StatusPoints is the sum excluding exchange debits and reversals.
	StatusPoints(ctx context.Context, memberID uuid.UUID) (int64, error)

	// DistinctNotes returns the distinct notes recorded for a kind,
	// ordered descending. Used by the streak walk.
	DistinctNotes(ctx context.Context, memberID uuid.UUID, kind string) ([]string, error)

	// PurgeMember removes all entries for a member. Only the admin
	// cascading purge calls this.
	PurgeMember(ctx context.Context, memberID uuid.UUID) error
}
