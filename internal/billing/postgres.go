// internal/billing/postgres.go
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PostgresJournal stores processed provider events keyed by event id.
type PostgresJournal struct {
	db *sqlx.DB
}

func NewPostgresJournal(db *sqlx.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Seen(ctx context.Context, eventID string) (bool, error) {
	var seen bool
	query := `SELECT EXISTS (SELECT 1 FROM provider_events WHERE event_id = $1)`
	if err := j.db.GetContext(ctx, &seen, query, eventID); err != nil {
		return false, fmt.Errorf("check provider event: %w", err)
	}
	return seen, nil
}

func (j *PostgresJournal) Record(ctx context.Context, eventID, eventType string, receivedAt time.Time) error {
	query := `
		INSERT INTO provider_events (event_id, event_type, received_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := j.db.ExecContext(ctx, query, eventID, eventType, receivedAt); err != nil {
		return fmt.Errorf("record provider event: %w", err)
	}
	return nil
}
