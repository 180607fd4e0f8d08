// internal/ledger/implementation.go
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// service implements the Service interface.
type service struct {
	store  Store
	tracer trace.Tracer
}

// NewService creates a new ledger service instance.
func NewService(store Store) Service {
	return &service{
		store:  store,
		tracer: otel.Tracer("pointnexus/ledger"),
	}
}

func (s *service) GrantOnce(ctx context.Context, memberID uuid.UUID, kind string, points int64, note string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.grant_once",
		trace.WithAttributes(
			attribute.String("member.id", memberID.String()),
			attribute.String("entry.kind", kind),
			attribute.Int64("entry.points", points),
		),
	)
	defer span.End()

	err := s.store.InsertUnique(ctx, &Entry{
		MemberID: memberID,
		Kind:     kind,
		Points:   points,
		Note:     note,
	})
	if errors.Is(err, ErrDuplicateGrant) {
		span.SetAttributes(attribute.Bool("grant.deduplicated", true))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("grant %q: %w", kind, err)
	}
	return true, nil
}

func (s *service) Append(ctx context.Context, memberID uuid.UUID, kind string, points int64, note string) (*Entry, error) {
	entry := &Entry{
		MemberID: memberID,
		Kind:     kind,
		Points:   points,
		Note:     note,
	}
	if err := s.store.AppendEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("append %q: %w", kind, err)
	}
	return entry, nil
}

func (s *service) Entries(ctx context.Context, memberID uuid.UUID) ([]Entry, error) {
	return s.store.EntriesByMember(ctx, memberID)
}

func (s *service) Balance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.store.Balance(ctx, memberID)
}

func (s *service) StatusPoints(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.store.StatusPoints(ctx, memberID)
}

func (s *service) Summary(ctx context.Context, memberID uuid.UUID) (*Summary, error) {
	balance, err := s.store.Balance(ctx, memberID)
	if err != nil {
		return nil, err
	}
	status, err := s.store.StatusPoints(ctx, memberID)
	if err != nil {
		return nil, err
	}
	next, toNext := NextRankFor(status)
	return &Summary{
		MemberID:     memberID,
		Balance:      balance,
		StatusPoints: status,
		Rank:         RankFor(status),
		NextRank:     next,
		PointsToNext: toNext,
	}, nil
}
