package orders_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/LogiTrack/internal/api/authz"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/BearBump/LogiTrack/internal/services/tracking"
	"github.com/BearBump/LogiTrack/internal/services/transitions"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Create(ctx context.Context, actor models.Actor, in models.OrderInput) (*models.Order, error)
	GetByID(ctx context.Context, actor models.Actor, id int64) (*models.Order, error)
	Delete(ctx context.Context, actor models.Actor, id int64) error
}

type Tracker interface {
	Track(ctx context.Context, code string) (*tracking.Snapshot, error)
}

type Transitioner interface {
	Transition(ctx context.Context, req transitions.Request) (*models.Order, error)
}

type Queries interface {
	List(ctx context.Context, actor models.Actor, f models.OrderFilter) ([]*models.Order, error)
	Statistics(ctx context.Context, actor models.Actor) (models.OrderStats, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type OrdersAPI struct {
	orders  OrderService
	tracker Tracker
	tr      Transitioner
	queries Queries

	rl           RateLimiter
	limitPerHour int64

	log *slog.Logger
}

func New(orders OrderService, tracker Tracker, tr Transitioner, queries Queries) *OrdersAPI {
	return &OrdersAPI{orders: orders, tracker: tracker, tr: tr, queries: queries, log: slog.Default()}
}

// WithRateLimit caps the public endpoints (create, track) at perHour requests per client IP.
func (a *OrdersAPI) WithRateLimit(rl RateLimiter, perHour int64) *OrdersAPI {
	a.rl = rl
	a.limitPerHour = perHour
	return a
}

func (a *OrdersAPI) WithLogger(log *slog.Logger) *OrdersAPI {
	if log != nil {
		a.log = log
	}
	return a
}

// Routes returns the /api/v1 router. auth may be nil, in which case every caller is anonymous.
func (a *OrdersAPI) Routes(auth *authz.Authenticator) chi.Router {
	r := chi.NewRouter()
	if auth != nil {
		r.Use(auth.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
			writeJSON(w, http.StatusUnauthorized, envelope{Error: "invalid or expired token"})
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(a.rateLimit)
		r.Post("/orders", a.createOrder)
		r.Get("/track/{trackingCode}", a.track)
	})

	r.Get("/orders", a.listOrders)
	r.Get("/orders/statistics", a.statistics)
	r.Get("/orders/{id}", a.getOrder)
	r.Post("/orders/{id}/status", a.updateStatus)
	r.Delete("/orders/{id}", a.deleteOrder)
	return r
}

func (a *OrdersAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	o, err := a.orders.Create(r.Context(), authz.ActorFrom(r.Context()), req.toInput())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: createOrderResponse{
		ID:                    o.ID,
		TrackingCode:          o.TrackingCode,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate.Format(dateLayout),
		Status:                o.Status,
	}})
}

func (a *OrdersAPI) track(w http.ResponseWriter, r *http.Request) {
	snap, err := a.tracker.Track(r.Context(), chi.URLParam(r, "trackingCode"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toTrackResponse(snap)})
}

func (a *OrdersAPI) listOrders(w http.ResponseWriter, r *http.Request) {
	var f models.OrderFilter
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		st := models.Status(strings.ToLower(s))
		f.Status = &st
	}
	f.Search = r.URL.Query().Get("search")

	out, err := a.queries.List(r.Context(), authz.ActorFrom(r.Context()), f)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: out})
}

func (a *OrdersAPI) statistics(w http.ResponseWriter, r *http.Request) {
	st, err := a.queries.Statistics(r.Context(), authz.ActorFrom(r.Context()))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: st})
}

func (a *OrdersAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	o, err := a.orders.GetByID(r.Context(), authz.ActorFrom(r.Context()), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: o})
}

func (a *OrdersAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	o, err := a.tr.Transition(r.Context(), transitions.Request{
		OrderID:   id,
		NewStatus: models.Status(strings.ToLower(strings.TrimSpace(req.Status))),
		Location:  req.Location,
		Notes:     req.Notes,
		Actor:     authz.ActorFrom(r.Context()),
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: o})
}

func (a *OrdersAPI) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := a.orders.Delete(r.Context(), authz.ActorFrom(r.Context()), id); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (a *OrdersAPI) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rl == nil || a.limitPerHour <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := "rl:ip:" + clientIP(r)
		allowed, n, err := a.rl.Allow(r.Context(), key, a.limitPerHour, time.Hour)
		if err != nil {
			// лимитер недоступен: пропускаем запрос
			a.log.Warn("rate limiter unavailable", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			w.Header().Set("Retry-After", "3600")
			writeJSON(w, http.StatusTooManyRequests, envelope{
				Error: fmt.Sprintf("rate limit exceeded: %d requests per hour", a.limitPerHour),
			})
			a.log.Warn("rate limit exceeded", "key", key, "count", n)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *OrdersAPI) writeError(w http.ResponseWriter, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, envelope{Error: "validation failed", Details: ve.Fields})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Error: "order not found"})
	case errors.Is(err, models.ErrForbidden):
		writeJSON(w, http.StatusForbidden, envelope{Error: "privileged access required"})
	case errors.Is(err, models.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, envelope{Error: "order is in a terminal state"})
	default:
		a.log.Error("request failed", "error", err.Error())
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal server error"})
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		v := &models.ValidationError{}
		v.Add("body", "invalid JSON: "+err.Error())
		return v
	}
	return nil
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		v := &models.ValidationError{}
		v.Add("id", "must be a positive integer")
		return 0, v
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
