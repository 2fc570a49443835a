package pgorders

import (
	"context"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Tx is the view of the store available inside InTx. Everything done through it
// commits or rolls back together.
type Tx interface {
	GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, upd StatusUpdate) (*models.Order, error)
	AppendTrackingEvent(ctx context.Context, ev models.TrackingEvent) (*models.TrackingEvent, error)
}

type StatusUpdate struct {
	OrderID  int64
	Status   models.Status
	Location string

	// DeliveredAt is written to actual_delivery_date when set.
	DeliveredAt *time.Time
}

func (s *Storage) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type txStore struct {
	q querier
}

// GetOrderForUpdate locks the order row until the transaction ends, so two
// transitions of the same order run one after the other.
func (t *txStore) GetOrderForUpdate(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, t.q, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *txStore) UpdateOrderStatus(ctx context.Context, upd StatusUpdate) (*models.Order, error) {
	row := t.q.QueryRow(ctx, `
UPDATE orders
SET
  status = $2,
  current_location = $3,
  actual_delivery_date = COALESCE($4, actual_delivery_date),
  updated_at = clock_timestamp()
WHERE id = $1
RETURNING `+orderColumns,
		upd.OrderID, string(upd.Status), upd.Location, upd.DeliveredAt)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	return o, nil
}

func (t *txStore) AppendTrackingEvent(ctx context.Context, ev models.TrackingEvent) (*models.TrackingEvent, error) {
	return insertEvent(ctx, t.q, ev)
}
