package transitions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/metrics"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/BearBump/LogiTrack/internal/services/events"
	"github.com/BearBump/LogiTrack/internal/services/ledger"
	"github.com/BearBump/LogiTrack/internal/storage/pgorders"
	"github.com/pkg/errors"
)

// Store runs fn inside one transaction; a non-nil return rolls everything back.
type Store interface {
	InTx(ctx context.Context, fn func(tx pgorders.Tx) error) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, code string)
}

type Request struct {
	OrderID   int64
	NewStatus models.Status
	Location  string
	Notes     string
	Actor     models.Actor
}

func (r Request) validate() error {
	v := &models.ValidationError{}
	if r.OrderID <= 0 {
		v.Add("order_id", "is required")
	}
	switch {
	case r.NewStatus == "":
		v.Add("status", "is required")
	case !r.NewStatus.Valid():
		v.Add("status", "unknown status")
	}
	if strings.TrimSpace(r.Location) == "" {
		v.Add("location", "is required")
	}
	return v.OrNil()
}

type Service struct {
	store Store

	inv Invalidator
	pub *events.Publisher
	log *slog.Logger
	now func() time.Time
}

func New(store Store) *Service {
	return &Service{store: store, log: slog.Default(), now: time.Now}
}

func (s *Service) WithInvalidator(inv Invalidator) *Service {
	s.inv = inv
	return s
}

func (s *Service) WithPublisher(pub *events.Publisher) *Service {
	s.pub = pub
	return s
}

func (s *Service) WithLogger(log *slog.Logger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Transition moves an order to a new status and appends the matching ledger entry
// in one transaction. Terminal orders (delivered, cancelled) accept nothing; any
// other order may move to any known status, including back to an earlier one.
func (s *Service) Transition(ctx context.Context, req Request) (*models.Order, error) {
	if !req.Actor.Privileged {
		return nil, models.ErrForbidden
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	req.Location = strings.TrimSpace(req.Location)
	req.Notes = strings.TrimSpace(req.Notes)

	var (
		from    models.Status
		updated *models.Order
		entry   *models.TrackingEvent
	)
	err := s.store.InTx(ctx, func(tx pgorders.Tx) error {
		cur, err := tx.GetOrderForUpdate(ctx, req.OrderID)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return errors.Wrapf(models.ErrInvalidTransition, "order is %s", cur.Status)
		}
		from = cur.Status

		upd := pgorders.StatusUpdate{
			OrderID:  cur.ID,
			Status:   req.NewStatus,
			Location: req.Location,
		}
		if req.NewStatus == models.StatusDelivered {
			at := s.now().UTC()
			upd.DeliveredAt = &at
		}
		if updated, err = tx.UpdateOrderStatus(ctx, upd); err != nil {
			return err
		}

		entry, err = ledger.AppendTo(ctx, tx, models.TrackingEvent{
			OrderID:      cur.ID,
			Status:       req.NewStatus,
			Location:     req.Location,
			Notes:        req.Notes,
			ActingUserID: req.Actor.UserID,
		})
		return err
	})
	if err != nil {
		metrics.RecordOrderOperation("transition", false)
		err = models.StorageError("transition order", err)
		if errors.Is(err, models.ErrPersistence) {
			s.log.Error("transition failed", "order_id", req.OrderID, "to_status", req.NewStatus, "error", err.Error())
		}
		return nil, err
	}
	metrics.RecordOrderOperation("transition", true)
	s.log.Info("order status changed",
		"order_id", updated.ID, "tracking_code", updated.TrackingCode, "from", from, "to", updated.Status)

	if s.inv != nil {
		s.inv.Invalidate(ctx, updated.TrackingCode)
	}
	s.pub.StatusChanged(ctx, updated, from, entry)
	return updated, nil
}
