package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/LogiTrack/internal/broker/messages"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/google/uuid"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Publisher announces committed status changes. Failures are logged and swallowed:
// the change is already stored and the ledger is the source of truth.
type Publisher struct {
	p     Producer
	topic string
	log   *slog.Logger
	newID func() string
}

func NewPublisher(p Producer, topic string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{p: p, topic: topic, log: log, newID: uuid.NewString}
}

// StatusChanged publishes one message for ev. from is empty for a newly created order.
// A nil Publisher is a no-op.
func (p *Publisher) StatusChanged(ctx context.Context, o *models.Order, from models.Status, ev *models.TrackingEvent) {
	if p == nil || p.p == nil || o == nil || ev == nil {
		return
	}
	msg := messages.OrderStatusChanged{
		EventID:      p.newID(),
		OrderID:      o.ID,
		TrackingCode: o.TrackingCode,
		FromStatus:   string(from),
		ToStatus:     string(ev.Status),
		Location:     ev.Location,
		Notes:        ev.Notes,
		ActingUserID: ev.ActingUserID,
		OccurredAt:   ev.CreatedAt.UTC(),
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal status change", "order_id", o.ID, "error", err.Error())
		return
	}
	if err := p.p.Publish(ctx, p.topic, []byte(o.TrackingCode), b); err != nil {
		p.log.Warn("publish status change failed",
			"order_id", o.ID, "tracking_code", o.TrackingCode, "to_status", msg.ToStatus, "error", err.Error())
	}
}
