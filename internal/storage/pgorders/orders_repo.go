package pgorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	uniqueViolation        = "23505"
	trackingCodeConstraint = "uq_orders_tracking_code"
)

const orderColumns = `
  id, tracking_code,
  sender_name, sender_address, sender_phone, sender_email,
  recipient_name, recipient_address, recipient_phone, recipient_email,
  package_weight::text, package_dimensions, service_class, special_instructions,
  status, current_location, estimated_delivery_date, actual_delivery_date,
  user_id, created_at, updated_at`

// CreateOrder stores the order together with its first ledger entry.
// A clash on the tracking code is reported as models.ErrDuplicateTrackingCode.
func (s *Storage) CreateOrder(ctx context.Context, o models.Order, first models.TrackingEvent) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
INSERT INTO orders (
  tracking_code,
  sender_name, sender_address, sender_phone, sender_email,
  recipient_name, recipient_address, recipient_phone, recipient_email,
  package_weight, package_dimensions, service_class, special_instructions,
  status, current_location, estimated_delivery_date, user_id,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10::numeric,$11,$12,$13,$14,$15,$16,$17, clock_timestamp(), clock_timestamp())
RETURNING `+orderColumns,
		o.TrackingCode,
		o.Sender.Name, o.Sender.Address, o.Sender.Phone, o.Sender.Email,
		o.Recipient.Name, o.Recipient.Address, o.Recipient.Phone, o.Recipient.Email,
		o.Weight.String(), o.Dimensions, string(o.ServiceClass), o.SpecialInstructions,
		string(o.Status), o.CurrentLocation, o.EstimatedDeliveryDate, o.UserID,
	)
	created, err := scanOrder(row)
	if err != nil {
		if isTrackingCodeClash(err) {
			return nil, models.ErrDuplicateTrackingCode
		}
		return nil, errors.Wrap(err, "insert order")
	}

	first.OrderID = created.ID
	if _, err := insertEvent(ctx, tx, first); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return created, nil
}

func (s *Storage) TrackingCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE tracking_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check tracking code")
	}
	return exists, nil
}

func (s *Storage) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return getOrder(ctx, s.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *Storage) GetOrderByTrackingCode(ctx context.Context, code string) (*models.Order, error) {
	return getOrder(ctx, s.db, `SELECT `+orderColumns+` FROM orders WHERE tracking_code = $1`, code)
}

func (s *Storage) ListOrders(ctx context.Context, f models.OrderFilter) ([]*models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != nil {
		args = append(args, string(*f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(tracking_code ILIKE $%[1]d OR sender_name ILIKE $%[1]d OR recipient_name ILIKE $%[1]d)", n))
	}

	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select orders")
	}
	defer rows.Close()

	out := make([]*models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// DeleteOrder removes the order and, through the foreign key, its ledger.
// It returns the tracking code of the removed order.
func (s *Storage) DeleteOrder(ctx context.Context, id int64) (string, error) {
	var code string
	err := s.db.QueryRow(ctx, `DELETE FROM orders WHERE id = $1 RETURNING tracking_code`, id).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "delete order")
	}
	return code, nil
}

func (s *Storage) CountOrdersByStatus(ctx context.Context) (models.OrderStats, error) {
	var st models.OrderStats
	err := s.db.QueryRow(ctx, `
SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE status = 'pending'),
  COUNT(*) FILTER (WHERE status = 'in_transit'),
  COUNT(*) FILTER (WHERE status = 'out_for_delivery'),
  COUNT(*) FILTER (WHERE status = 'delivered'),
  COUNT(*) FILTER (WHERE status = 'cancelled')
FROM orders
`).Scan(&st.Total, &st.Pending, &st.InTransit, &st.OutForDelivery, &st.Delivered, &st.Cancelled)
	if err != nil {
		return models.OrderStats{}, errors.Wrap(err, "count orders")
	}
	return st, nil
}

func getOrder(ctx context.Context, q querier, sql string, arg any) (*models.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, sql, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o            models.Order
		weight       string
		serviceClass string
		status       string
		delivered    *time.Time
	)
	if err := row.Scan(
		&o.ID, &o.TrackingCode,
		&o.Sender.Name, &o.Sender.Address, &o.Sender.Phone, &o.Sender.Email,
		&o.Recipient.Name, &o.Recipient.Address, &o.Recipient.Phone, &o.Recipient.Email,
		&weight, &o.Dimensions, &serviceClass, &o.SpecialInstructions,
		&status, &o.CurrentLocation, &o.EstimatedDeliveryDate, &delivered,
		&o.UserID, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}

	w, err := decimal.NewFromString(weight)
	if err != nil {
		return nil, errors.Wrap(err, "parse package weight")
	}
	o.Weight = w
	o.ServiceClass = models.ServiceClass(serviceClass)
	o.Status = models.Status(status)
	o.ActualDeliveryDate = delivered
	return &o, nil
}

func isTrackingCodeClash(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == trackingCodeConstraint
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
