// internal/platform/schema/schema.go
package schema

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// statements are idempotent and run in order on startup.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS members (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		subscription_status TEXT NOT NULL,
		membership_status TEXT NOT NULL,
		membership_type TEXT NOT NULL DEFAULT '',
		member_no TEXT UNIQUE,
		invited_by UUID,
		card_theme TEXT,
		country TEXT,
		city TEXT,
		lat DOUBLE PRECISION,
		lng DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE SEQUENCE IF NOT EXISTS member_no_seq`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id UUID PRIMARY KEY,
		member_id UUID NOT NULL,
		kind TEXT NOT NULL,
		points BIGINT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_member
		ON ledger_entries (member_id, created_at)`,

	// Grant idempotency lives here: one row per (member, kind, note)
	// for every grant kind. Exchange debits and reversals repeat their
	// (kind, note) legitimately and are excluded.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_ledger_grant
		ON ledger_entries (member_id, kind, note)
		WHERE kind NOT IN ('Point Exchange', 'Point Exchange Reversal')`,

	`CREATE TABLE IF NOT EXISTS invite_codes (
		id UUID PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		invited_by UUID NOT NULL,
		membership_type TEXT NOT NULL,
		reusable BOOLEAN NOT NULL DEFAULT FALSE,
		used BOOLEAN NOT NULL DEFAULT FALSE,
		use_count INTEGER NOT NULL DEFAULT 0,
		target_name TEXT,
		target_country TEXT,
		target_city TEXT,
		target_lat DOUBLE PRECISION,
		target_lng DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_invite_codes_inviter
		ON invite_codes (invited_by) WHERE reusable = TRUE`,

	`CREATE TABLE IF NOT EXISTS quests (
		id UUID PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		reward_points BIGINT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS exchange_items (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		points_cost BIGINT NOT NULL,
		stock INTEGER NOT NULL,
		coupon_code TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,

	`CREATE TABLE IF NOT EXISTS exchange_orders (
		id UUID PRIMARY KEY,
		member_id UUID NOT NULL,
		item_id UUID NOT NULL REFERENCES exchange_items (id),
		points_spent BIGINT NOT NULL,
		status TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TIMESTAMPTZ,
		coupon_code TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_exchange_orders_member
		ON exchange_orders (member_id)`,

	`CREATE TABLE IF NOT EXISTS otp_challenges (
		email TEXT PRIMARY KEY,
		code_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS provider_events (
		event_id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		received_at TIMESTAMPTZ NOT NULL
	)`,
}

// Apply creates every table and index the engine needs.
func Apply(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
