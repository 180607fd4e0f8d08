// internal/exchange/postgres.go
package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pointnexus/internal/ledger"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const itemColumns = `id, name, points_cost, stock, coupon_code, active`
const orderColumns = `id, member_id, item_id, points_spent, status, reviewed_by, reviewed_at, coupon_code, created_at`

func (s *PostgresStore) CreateItem(ctx context.Context, i *Item) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	query := `
		INSERT INTO exchange_items (id, name, points_cost, stock, coupon_code, active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, i.ID, i.Name, i.PointsCost, i.Stock, i.CouponCode, i.Active)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	i := &Item{}
	err := s.db.GetContext(ctx, i, `SELECT `+itemColumns+` FROM exchange_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return i, nil
}

func (s *PostgresStore) ListItems(ctx context.Context) ([]Item, error) {
	items := []Item{}
	err := s.db.SelectContext(ctx, &items, `SELECT `+itemColumns+` FROM exchange_items WHERE active = TRUE ORDER BY points_cost`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Redeem(ctx context.Context, memberID, itemID uuid.UUID) (*Order, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin redeem tx: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the item orders concurrent redemptions of the same
	// item; the stock decrement below still re-checks its own guard.
	item := &Item{}
	err = tx.GetContext(ctx, item, `SELECT `+itemColumns+` FROM exchange_items WHERE id = $1 FOR UPDATE`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}
	if !item.Available() {
		return nil, ErrItemUnavailable
	}

	var balance int64
	err = tx.GetContext(ctx, &balance, `SELECT COALESCE(SUM(points), 0) FROM ledger_entries WHERE member_id = $1`, memberID)
	if err != nil {
		return nil, fmt.Errorf("sum balance: %w", err)
	}
	if balance < item.PointsCost {
		return nil, ErrInsufficientBalance
	}

	order := &Order{
		ID:          uuid.New(),
		MemberID:    memberID,
		ItemID:      itemID,
		PointsSpent: item.PointsCost,
		Status:      OrderPending,
		CreatedAt:   time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, member_id, kind, points, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), memberID, ledger.KindExchange, -item.PointsCost, order.ID.String(), order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert debit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exchange_orders (id, member_id, item_id, points_spent, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, order.ID, order.MemberID, order.ItemID, order.PointsSpent, order.Status, order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	if item.Stock != UnlimitedStock {
		res, err := tx.ExecContext(ctx, `
			UPDATE exchange_items SET stock = stock - 1 WHERE id = $1 AND stock > 0
		`, itemID)
		if err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return nil, ErrItemUnavailable
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem tx: %w", err)
	}
	return order, nil
}

func (s *PostgresStore) Review(ctx context.Context, orderID uuid.UUID, decision Decision, reviewer string) (*ReviewOutcome, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback()

	// The status flip is conditioned on pending; zero rows means the
	// order was already reviewed (or never existed) and no side effect
	// may run again.
	order := &Order{}
	err = tx.GetContext(ctx, order, `
		UPDATE exchange_orders
		SET status = $2, reviewed_by = $3, reviewed_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING `+orderColumns, orderID, decision, reviewer, OrderPending)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM exchange_orders WHERE id = $1)`, orderID); err != nil {
			return nil, fmt.Errorf("check order: %w", err)
		}
		if !exists {
			return nil, ErrOrderNotFound
		}
		return nil, ErrAlreadyReviewed
	}
	if err != nil {
		return nil, fmt.Errorf("review order: %w", err)
	}

	outcome := &ReviewOutcome{Order: order}

	switch decision {
	case DecisionApprove:
		var coupon string
		if err := tx.GetContext(ctx, &coupon, `SELECT coupon_code FROM exchange_items WHERE id = $1`, order.ItemID); err != nil {
			return nil, fmt.Errorf("load coupon: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE exchange_orders SET coupon_code = $1 WHERE id = $2`, coupon, orderID); err != nil {
			return nil, fmt.Errorf("materialize coupon: %w", err)
		}
		order.CouponCode = &coupon

	case DecisionReject, DecisionCancel:
		// The refund rides on the order having been pending at review
		// time, which the conditional update above already proved.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (id, member_id, kind, points, note, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), order.MemberID, ledger.KindExchangeReversal, order.PointsSpent, order.ID.String(), time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("insert refund: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE exchange_items SET stock = stock + 1 WHERE id = $1 AND stock >= 0
		`, order.ItemID)
		if err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
		outcome.RefundIssued = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review tx: %w", err)
	}
	return outcome, nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	o := &Order{}
	err := s.db.GetContext(ctx, o, `SELECT `+orderColumns+` FROM exchange_orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) PurgeMember(ctx context.Context, memberID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM exchange_orders WHERE member_id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("purge orders: %w", err)
	}
	return nil
}
