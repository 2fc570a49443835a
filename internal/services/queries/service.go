package queries

import (
	"context"

	"github.com/BearBump/LogiTrack/internal/models"
)

type OrderStore interface {
	List(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	AggregateCounts(ctx context.Context) (models.OrderStats, error)
}

// Service is the administrative read side: listing and counts, privileged callers only.
type Service struct {
	store OrderStore
}

func New(store OrderStore) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, actor models.Actor, f models.OrderFilter) ([]*models.Order, error) {
	if !actor.Privileged {
		return nil, models.ErrForbidden
	}
	return s.store.List(ctx, f)
}

func (s *Service) Statistics(ctx context.Context, actor models.Actor) (models.OrderStats, error) {
	if !actor.Privileged {
		return models.OrderStats{}, models.ErrForbidden
	}
	return s.store.AggregateCounts(ctx)
}
