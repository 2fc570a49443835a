package pgorders

import (
	"context"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetOrderTimeline reads the order and its ledger (newest first) from one snapshot,
// so the order status always equals the status of the first entry.
func (s *Storage) GetOrderTimeline(ctx context.Context, code string) (*models.Order, []*models.TrackingEvent, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := getOrder(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE tracking_code = $1`, code)
	if err != nil {
		return nil, nil, err
	}
	evs, err := listEvents(ctx, tx, o.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}
	return o, evs, nil
}
