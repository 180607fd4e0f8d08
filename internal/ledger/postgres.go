// internal/ledger/postgres.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresStore persists ledger entries in the ledger_entries table.
// The dedupe invariant is a partial unique index on
// (member_id, kind, note) covering grant kinds, so InsertUnique is a
// plain insert whose losing race surfaces as a unique violation.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *PostgresStore) AppendEntry(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO ledger_entries (id, member_id, kind, points, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, e.ID, e.MemberID, e.Kind, e.Points, e.Note, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertUnique(ctx context.Context, e *Entry) error {
	err := s.AppendEntry(ctx, e)
	if isUniqueViolation(err) {
		return ErrDuplicateGrant
	}
	return err
}

func (s *PostgresStore) EntriesByMember(ctx context.Context, memberID uuid.UUID) ([]Entry, error) {
	query := `
		SELECT id, member_id, kind, points, note, created_at
		FROM ledger_entries
		WHERE member_id = $1
		ORDER BY created_at ASC
	`
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, memberID); err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Balance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var balance int64
	query := `SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE member_id = $1`
	if err := s.db.GetContext(ctx, &balance, query, memberID); err != nil {
		return 0, fmt.Errorf("sum balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) StatusPoints(ctx context.Context, memberID uuid.UUID) (int64, error) {
	var points int64
	query := `
		SELECT COALESCE(SUM(points), 0)
		FROM ledger_entries
		WHERE member_id = $1 AND kind NOT IN ($2, $3)
	`
	if err := s.db.GetContext(ctx, &points, query, memberID, KindExchange, KindExchangeReversal); err != nil {
		return 0, fmt.Errorf("sum status points: %w", err)
	}
	return points, nil
}

func (s *PostgresStore) DistinctNotes(ctx context.Context, memberID uuid.UUID, kind string) ([]string, error) {
	query := `
		SELECT DISTINCT note
		FROM ledger_entries
		WHERE member_id = $1 AND kind = $2
		ORDER BY note DESC
	`
	notes := []string{}
	if err := s.db.SelectContext(ctx, &notes, query, memberID, kind); err != nil {
		return nil, fmt.Errorf("list distinct notes: %w", err)
	}
	return notes, nil
}

func (s *PostgresStore) PurgeMember(ctx context.Context, memberID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE member_id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("purge ledger entries: %w", err)
	}
	return nil
}
