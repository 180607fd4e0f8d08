// internal/invites/postgres.go
package invites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const inviteColumns = `id, code, invited_by, membership_type, reusable, used, use_count,
	target_name, target_country, target_city, target_lat, target_lng, created_at`

func (s *PostgresStore) Create(ctx context.Context, c *InviteCode) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO invite_codes (id, code, invited_by, membership_type, reusable, used, use_count,
			target_name, target_country, target_city, target_lat, target_lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Code, c.InvitedBy, c.MembershipType,
		c.Reusable, c.Used, c.UseCount,
		c.TargetName, c.TargetCountry, c.TargetCity, c.TargetLat, c.TargetLng, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*InviteCode, error) {
	c := &InviteCode{}
	err := s.db.GetContext(ctx, c, `SELECT `+inviteColumns+` FROM invite_codes WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidInvite
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) RedeemSingleUse(ctx context.Context, code string) (*InviteCode, error) {
	// One conditional statement; the losing side of a race gets zero
	// rows and reports "already used".
	query := `
		UPDATE invite_codes
		SET used = TRUE
		WHERE code = $1 AND reusable = FALSE AND used = FALSE
		RETURNING ` + inviteColumns
	c := &InviteCode{}
	err := s.db.GetContext(ctx, c, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.GetByCode(ctx, code)
		if getErr != nil {
			return nil, getErr
		}
		if existing.Reusable {
			return nil, ErrInvalidInvite
		}
		return nil, ErrAlreadyUsed
	}
	if err != nil {
		return nil, fmt.Errorf("redeem single-use invite: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) RedeemReusable(ctx context.Context, code string) (*InviteCode, error) {
	target, err := s.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !target.Reusable {
		return nil, ErrInvalidInvite
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin redeem tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize all increments for this inviter. The cap depends on the
	// sum over every reusable code they own, so two different codes
	// racing near the 9-to-10 boundary must not both commit on a stale
	// aggregate.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, target.InvitedBy.String()); err != nil {
		return nil, fmt.Errorf("lock inviter: %w", err)
	}

	// Increment iff the recomputed cumulative count is still under the
	// cap the same aggregate implies.
	query := `
		UPDATE invite_codes
		SET use_count = use_count + 1
		WHERE code = $1 AND reusable = TRUE AND (
			SELECT total < CASE WHEN total >= 10 THEN 30 ELSE 10 END
			FROM (
				SELECT COALESCE(SUM(use_count), 0) AS total
				FROM invite_codes
				WHERE invited_by = $2 AND reusable = TRUE
			) agg
		)
		RETURNING ` + inviteColumns
	c := &InviteCode{}
	err = tx.GetContext(ctx, c, query, code, target.InvitedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCapReached
	}
	if err != nil {
		return nil, fmt.Errorf("redeem reusable invite: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem tx: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ReleaseSingleUse(ctx context.Context, code string) error {
	query := `UPDATE invite_codes SET used = FALSE WHERE code = $1 AND reusable = FALSE AND used = TRUE`
	if _, err := s.db.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("release single-use invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReleaseReusable(ctx context.Context, code string) error {
	query := `UPDATE invite_codes SET use_count = use_count - 1 WHERE code = $1 AND reusable = TRUE AND use_count > 0`
	if _, err := s.db.ExecContext(ctx, query, code); err != nil {
		return fmt.Errorf("release reusable invite: %w", err)
	}
	return nil
}

func (s *PostgresStore) SumReusableUse(ctx context.Context, inviterID uuid.UUID) (int, error) {
	var total int
	query := `SELECT COALESCE(SUM(use_count), 0) FROM invite_codes WHERE invited_by = $1 AND reusable = TRUE`
	if err := s.db.GetContext(ctx, &total, query, inviterID); err != nil {
		return 0, fmt.Errorf("sum reusable use: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) CreateQuest(ctx context.Context, q *Quest) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	query := `INSERT INTO quests (id, slug, title, reward_points, active) VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.ExecContext(ctx, query, q.ID, q.Slug, q.Title, q.RewardPoints, q.Active)
	if err != nil {
		return fmt.Errorf("create quest: %w", err)
	}
	return nil
}

func (s *PostgresStore) ActiveQuestBySlug(ctx context.Context, slug string) (*Quest, error) {
	q := &Quest{}
	query := `SELECT id, slug, title, reward_points, active FROM quests WHERE slug = $1 AND active = TRUE`
	err := s.db.GetContext(ctx, q, query, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quest: %w", err)
	}
	return q, nil
}
