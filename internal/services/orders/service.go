package orders

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/metrics"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/BearBump/LogiTrack/internal/services/events"
	"github.com/pkg/errors"
)

// FirstEventNote is written on the implicit ledger entry of every new order.
const FirstEventNote = "Order received, awaiting processing"

type Repository interface {
	CreateOrder(ctx context.Context, o models.Order, first models.TrackingEvent) (*models.Order, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByTrackingCode(ctx context.Context, code string) (*models.Order, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error)
	DeleteOrder(ctx context.Context, id int64) (string, error)
	CountOrdersByStatus(ctx context.Context) (models.OrderStats, error)
}

// CodeAssigner hands a fresh tracking code to insert and retries on collisions.
type CodeAssigner interface {
	Assign(ctx context.Context, insert func(code string) error) (string, error)
}

// Invalidator drops whatever is cached for a tracking code.
type Invalidator interface {
	Invalidate(ctx context.Context, code string)
}

type Service struct {
	repo Repository
	gen  CodeAssigner

	inv Invalidator
	pub *events.Publisher
	log *slog.Logger
	now func() time.Time
}

func New(repo Repository, gen CodeAssigner) *Service {
	return &Service{
		repo: repo,
		gen:  gen,
		log:  slog.Default(),
		now:  time.Now,
	}
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

// Create validates the input, assigns a tracking code and stores the order with
// its first "pending" ledger entry located at the sender address.
func (s *Service) Create(ctx context.Context, actor models.Actor, in models.OrderInput) (*models.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	o := models.Order{
		Sender:                trimParty(in.Sender),
		Recipient:             trimParty(in.Recipient),
		Weight:                in.Weight,
		Dimensions:            strings.TrimSpace(in.Dimensions),
		ServiceClass:          in.ServiceClass,
		SpecialInstructions:   strings.TrimSpace(in.SpecialInstructions),
		Status:                models.StatusPending,
		EstimatedDeliveryDate: in.ServiceClass.EstimatedDelivery(s.now()),
		UserID:                actor.UserID,
	}
	o.CurrentLocation = o.Sender.Address
	first := models.TrackingEvent{
		Status:   models.StatusPending,
		Location: o.CurrentLocation,
		Notes:    FirstEventNote,
	}

	var created *models.Order
	_, err := s.gen.Assign(ctx, func(code string) error {
		o.TrackingCode = code
		var err error
		created, err = s.repo.CreateOrder(ctx, o, first)
		return err
	})
	if err != nil {
		metrics.RecordOrderOperation("create", false)
		err = models.StorageError("create order", err)
		s.log.Error("create order failed", "error", err.Error())
		return nil, err
	}
	metrics.RecordOrderOperation("create", true)
	s.log.Info("order created", "order_id", created.ID, "tracking_code", created.TrackingCode)

	first.OrderID = created.ID
	first.CreatedAt = created.CreatedAt
	s.pub.StatusChanged(ctx, created, "", &first)
	return created, nil
}

func (s *Service) GetByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	o, err := s.repo.GetOrderByTrackingCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	return o, s.storageErr("get order by tracking code", err)
}

func (s *Service) GetByID(ctx context.Context, actor models.Actor, id int64) (*models.Order, error) {
	if !actor.Privileged {
		return nil, models.ErrForbidden
	}
	o, err := s.repo.GetOrderByID(ctx, id)
	return o, s.storageErr("get order", err)
}

// List returns orders newest first. Status is an exact match; Search is a
// case-insensitive substring of the tracking code, sender name or recipient name.
func (s *Service) List(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	if f.Status != nil && !f.Status.Valid() {
		v := &models.ValidationError{}
		v.Add("status", "unknown status")
		return nil, v
	}
	out, err := s.repo.ListOrders(ctx, f)
	if err != nil {
		return nil, s.storageErr("list orders", err)
	}
	return out, nil
}

// Delete removes the order and its ledger.
func (s *Service) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if !actor.Privileged {
		return models.ErrForbidden
	}
	code, err := s.repo.DeleteOrder(ctx, id)
	if err != nil {
		metrics.RecordOrderOperation("delete", false)
		return s.storageErr("delete order", err)
	}
	metrics.RecordOrderOperation("delete", true)
	s.log.Info("order deleted", "order_id", id, "tracking_code", code)
	if s.inv != nil {
		s.inv.Invalidate(ctx, code)
	}
	return nil
}

func (s *Service) AggregateCounts(ctx context.Context) (models.OrderStats, error) {
	st, err := s.repo.CountOrdersByStatus(ctx)
	if err != nil {
		return models.OrderStats{}, s.storageErr("count orders", err)
	}
	return st, nil
}

func (s *Service) storageErr(op string, err error) error {
	err = models.StorageError(op, err)
	if errors.Is(err, models.ErrPersistence) {
		s.log.Error(op+" failed", "error", err.Error())
	}
	return err
}

func trimParty(p models.Party) models.Party {
	return models.Party{
		Name:    strings.TrimSpace(p.Name),
		Address: strings.TrimSpace(p.Address),
		Phone:   strings.TrimSpace(p.Phone),
		Email:   strings.TrimSpace(p.Email),
	}
}
