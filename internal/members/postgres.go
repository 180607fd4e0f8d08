// internal/members/postgres.go
package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, m *Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	query := `
		INSERT INTO members (id, email, name, subscription_status, membership_status, membership_type,
			invited_by, country, city, lat, lng, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.Email, m.Name, m.SubscriptionStatus, m.MembershipStatus, m.MembershipType,
		m.InvitedBy, m.Country, m.City, m.Lat, m.Lng, m.CreatedAt, m.UpdatedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

const memberColumns = `id, email, name, subscription_status, membership_status, membership_type,
	member_no, invited_by, card_theme, country, city, lat, lng, created_at, updated_at`

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	m := &Member{}
	err := s.db.GetContext(ctx, m, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Member, error) {
	m := &Member{}
	err := s.db.GetContext(ctx, m, `SELECT `+memberColumns+` FROM members WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) SetSubscriptionStatusIf(ctx context.Context, id uuid.UUID, from []SubscriptionStatus, to SubscriptionStatus) (bool, error) {
	fromStrs := make([]string, len(from))
	for i, f := range from {
		fromStrs[i] = string(f)
	}
	query := `
		UPDATE members
		SET subscription_status = $1, updated_at = NOW()
		WHERE id = $2 AND subscription_status = ANY($3)
	`
	res, err := s.db.ExecContext(ctx, query, to, id, pq.Array(fromStrs))
	if err != nil {
		return false, fmt.Errorf("set subscription status: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *PostgresStore) SetMembershipStatus(ctx context.Context, id uuid.UUID, status MembershipStatus) error {
	query := `UPDATE members SET membership_status = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("set membership status: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AssignMemberNumberIfAbsent(ctx context.Context, id uuid.UUID) (string, bool, error) {
	// Single conditional statement: the sequence only advances when the
	// member still has no number, and two concurrent assignments cannot
	// both match member_no IS NULL.
	query := `
		UPDATE members
		SET member_no = 'PN-' || LPAD(nextval('member_no_seq')::text, 6, '0'), updated_at = NOW()
		WHERE id = $1 AND member_no IS NULL
		RETURNING member_no
	`
	var no string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&no)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("assign member number: %w", err)
	}
	return no, true, nil
}

func (s *PostgresStore) ApplyCardTheme(ctx context.Context, id uuid.UUID, theme string) error {
	query := `UPDATE members SET card_theme = $1, updated_at = NOW() WHERE id = $2`
	res, err := s.db.ExecContext(ctx, query, theme, id)
	if err != nil {
		return fmt.Errorf("apply card theme: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveOTP(ctx context.Context, c *OTPChallenge) error {
	query := `
		INSERT INTO otp_challenges (email, code_hash, salt, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, salt = EXCLUDED.salt, expires_at = EXCLUDED.expires_at
	`
	_, err := s.db.ExecContext(ctx, query, c.Email, c.CodeHash, c.Salt, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("save otp challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOTP(ctx context.Context, email string) (*OTPChallenge, error) {
	c := &OTPChallenge{}
	query := `SELECT email, code_hash, salt, expires_at FROM otp_challenges WHERE email = $1`
	err := s.db.GetContext(ctx, c, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get otp challenge: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteOTP(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("delete otp challenge: %w", err)
	}
	return nil
}
