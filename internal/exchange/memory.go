// internal/exchange/memory.go
package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pointnexus/internal/ledger"
)

// MemoryStore is the in-memory Store used by tests. Its mutex makes
// each redeem and review atomic; grants appended concurrently through
// the ledger store only ever raise balances, so the balance check
// cannot be invalidated between read and debit.
type MemoryStore struct {
	mu     sync.Mutex
	ledger *ledger.MemoryStore
	items  map[uuid.UUID]*Item
	orders map[uuid.UUID]*Order
}

func NewMemoryStore(ledgerStore *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		ledger: ledgerStore,
		items:  make(map[uuid.UUID]*Item),
		orders: make(map[uuid.UUID]*Order),
	}
}

func (s *MemoryStore) CreateItem(_ context.Context, i *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	clone := *i
	s.items[i.ID] = &clone
	return nil
}

func (s *MemoryStore) GetItem(_ context.Context, id uuid.UUID) (*Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	clone := *i
	return &clone, nil
}

func (s *MemoryStore) ListItems(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Item{}
	for _, i := range s.items {
		if i.Active {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (s *MemoryStore) Redeem(ctx context.Context, memberID, itemID uuid.UUID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if !item.Available() {
		return nil, ErrItemUnavailable
	}

	balance, err := s.ledger.Balance(ctx, memberID)
	if err != nil {
		return nil, err
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
	if err := s.ledger.AppendEntry(ctx, &ledger.Entry{
		MemberID: memberID,
		Kind:     ledger.KindExchange,
		Points:   -item.PointsCost,
		Note:     order.ID.String(),
	}); err != nil {
		return nil, err
	}
	s.orders[order.ID] = order
	if item.Stock != UnlimitedStock {
		item.Stock--
	}

	clone := *order
	return &clone, nil
}

func (s *MemoryStore) Review(ctx context.Context, orderID uuid.UUID, decision Decision, reviewer string) (*ReviewOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	if order.Status != OrderPending {
		return nil, ErrAlreadyReviewed
	}

	now := time.Now().UTC()
	order.Status = OrderStatus(decision)
	order.ReviewedBy = &reviewer
	order.ReviewedAt = &now

	outcome := &ReviewOutcome{}

	switch decision {
	case DecisionApprove:
		if item, ok := s.items[order.ItemID]; ok {
			coupon := item.CouponCode
			order.CouponCode = &coupon
		}
	case DecisionReject, DecisionCancel:
		if err := s.ledger.AppendEntry(ctx, &ledger.Entry{
			MemberID: order.MemberID,
			Kind:     ledger.KindExchangeReversal,
			Points:   order.PointsSpent,
			Note:     order.ID.String(),
		}); err != nil {
			return nil, err
		}
		if item, ok := s.items[order.ItemID]; ok && item.Stock != UnlimitedStock {
			item.Stock++
		}
		outcome.RefundIssued = true
	}

	clone := *order
	outcome.Order = &clone
	return outcome, nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	clone := *o
	return &clone, nil
}

func (s *MemoryStore) PurgeMember(_ context.Context, memberID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.orders {
		if o.MemberID == memberID {
			delete(s.orders, id)
		}
	}
	return nil
}
