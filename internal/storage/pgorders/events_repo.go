package pgorders

import (
	"context"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/pkg/errors"
)

// AppendTrackingEvent inserts one ledger entry outside of any status change.
func (s *Storage) AppendTrackingEvent(ctx context.Context, ev models.TrackingEvent) (*models.TrackingEvent, error) {
	return insertEvent(ctx, s.db, ev)
}

// ListTrackingEvents returns the ledger of an order, newest entry first.
func (s *Storage) ListTrackingEvents(ctx context.Context, orderID int64) ([]*models.TrackingEvent, error) {
	return listEvents(ctx, s.db, orderID)
}

func listEvents(ctx context.Context, q querier, orderID int64) ([]*models.TrackingEvent, error) {
	rows, err := q.Query(ctx, `
SELECT id, order_id, status, location, notes, acting_user_id, created_at
FROM tracking_events
WHERE order_id = $1
ORDER BY id DESC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select events")
	}
	defer rows.Close()

	out := make([]*models.TrackingEvent, 0)
	for rows.Next() {
		var e models.TrackingEvent
		var status string
		if err := rows.Scan(&e.ID, &e.OrderID, &status, &e.Location, &e.Notes, &e.ActingUserID, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		e.Status = models.Status(status)
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertEvent(ctx context.Context, q querier, ev models.TrackingEvent) (*models.TrackingEvent, error) {
	err := q.QueryRow(ctx, `
INSERT INTO tracking_events (order_id, status, location, notes, acting_user_id, created_at)
VALUES ($1,$2,$3,$4,$5, clock_timestamp())
RETURNING id, created_at
`, ev.OrderID, string(ev.Status), ev.Location, ev.Notes, ev.ActingUserID).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert tracking event")
	}
	return &ev, nil
}
