package ledger

import (
	"context"
	"strings"

	"github.com/BearBump/LogiTrack/internal/models"
)

// Writer is anything that can store a ledger entry: the store itself or an open transaction.
type Writer interface {
	AppendTrackingEvent(ctx context.Context, ev models.TrackingEvent) (*models.TrackingEvent, error)
}

type Repository interface {
	Writer
	ListTrackingEvents(ctx context.Context, orderID int64) ([]*models.TrackingEvent, error)
	GetOrderTimeline(ctx context.Context, code string) (*models.Order, []*models.TrackingEvent, error)
}

// Ledger is the append-only history of an order. Entries are never edited;
// they go away only together with their order.
type Ledger struct {
	repo Repository
}

func New(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) Append(ctx context.Context, ev models.TrackingEvent) (*models.TrackingEvent, error) {
	out, err := AppendTo(ctx, l.repo, ev)
	if err != nil && !isValidation(err) {
		return nil, models.NewPersistenceError("append tracking event", err)
	}
	return out, err
}

// ListForOrder returns the entries newest first; element 0 is always the current state.
func (l *Ledger) ListForOrder(ctx context.Context, orderID int64) ([]*models.TrackingEvent, error) {
	evs, err := l.repo.ListTrackingEvents(ctx, orderID)
	if err != nil {
		return nil, models.NewPersistenceError("list tracking events", err)
	}
	return evs, nil
}

// Timeline returns the order behind code with its entries, both read from one snapshot:
// the order status always equals the status of element 0.
func (l *Ledger) Timeline(ctx context.Context, code string) (*models.Order, []*models.TrackingEvent, error) {
	o, evs, err := l.repo.GetOrderTimeline(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, nil, models.StorageError("load order timeline", err)
	}
	return o, evs, nil
}

// AppendTo checks the entry and writes it through w. Storage errors are returned as is,
// so a caller running a transaction can roll it back.
func AppendTo(ctx context.Context, w Writer, ev models.TrackingEvent) (*models.TrackingEvent, error) {
	if err := Validate(ev); err != nil {
		return nil, err
	}
	return w.AppendTrackingEvent(ctx, ev)
}

func Validate(ev models.TrackingEvent) error {
	v := &models.ValidationError{}
	if ev.OrderID <= 0 {
		v.Add("order_id", "is required")
	}
	switch {
	case ev.Status == "":
		v.Add("status", "is required")
	case !ev.Status.Valid():
		v.Add("status", "unknown status")
	}
	if strings.TrimSpace(ev.Location) == "" {
		v.Add("location", "is required")
	}
	return v.OrNil()
}

func isValidation(err error) bool {
	_, ok := err.(*models.ValidationError)
	return ok
}
