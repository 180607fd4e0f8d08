// internal/billing/store.go
package billing

import (
	"context"
	"time"
)

// Journal records processed provider events. The record is written
// after the event's effects are durably applied, so it is a replay
// short-circuit, not the idempotency guarantee; every effect stays
// idempotent on its own.
type Journal interface {
	// Seen reports whether the event id was already fully processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Record marks the event processed. Recording an id twice is a
	// silent no-op.
	Record(ctx context.Context, eventID, eventType string, receivedAt time.Time) error
}
