package scans

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/LogiTrack/internal/broker/messages"
	"github.com/BearBump/LogiTrack/internal/metrics"
	"github.com/BearBump/LogiTrack/internal/models"
	"github.com/BearBump/LogiTrack/internal/services/transitions"
	"github.com/pkg/errors"
)

type Consumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type OrderLookup interface {
	GetByTrackingCode(ctx context.Context, code string) (*models.Order, error)
}

type Transitioner interface {
	Transition(ctx context.Context, req transitions.Request) (*models.Order, error)
}

// Ingester applies scanner reports as system transitions. Reports that can never
// succeed (unknown order, terminal order, malformed data) are logged and skipped;
// storage failures stop consumption so the message is redelivered.
type Ingester struct {
	consumer Consumer
	orders   OrderLookup
	tr       Transitioner
	log      *slog.Logger

	retryDelay time.Duration

	startedAtUnixNano int64
	lastScanUnixNano  atomic.Int64
	totalReceived     atomic.Int64
	totalApplied      atomic.Int64
	totalSkipped      atomic.Int64
	totalErrors       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(consumer Consumer, orders OrderLookup, tr Transitioner) *Ingester {
	return &Ingester{
		consumer:          consumer,
		orders:            orders,
		tr:                tr,
		log:               slog.Default(),
		retryDelay:        2 * time.Second,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (i *Ingester) WithRetryDelay(d time.Duration) *Ingester {
	if d > 0 {
		i.retryDelay = d
	}
	return i
}

func (i *Ingester) WithLogger(log *slog.Logger) *Ingester {
	if log != nil {
		i.log = log
	}
	return i
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastScanAt    *time.Time `json:"lastScanAt,omitempty"`
	TotalReceived int64      `json:"totalReceived"`
	TotalApplied  int64      `json:"totalApplied"`
	TotalSkipped  int64      `json:"totalSkipped"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (i *Ingester) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, i.startedAtUnixNano).UTC(),
		TotalReceived: i.totalReceived.Load(),
		TotalApplied:  i.totalApplied.Load(),
		TotalSkipped:  i.totalSkipped.Load(),
		TotalErrors:   i.totalErrors.Load(),
	}
	if n := i.lastScanUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastScanAt = &t
	}
	i.lastErrorMu.Lock()
	st.LastError = i.lastError
	i.lastErrorMu.Unlock()
	return st
}

// Run consumes until ctx is cancelled. A failed batch is retried after retryDelay.
func (i *Ingester) Run(ctx context.Context) error {
	for {
		err := i.consumer.Consume(ctx, func(key, value []byte) error {
			return i.Handle(ctx, key, value)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			i.recordError(err)
			i.log.Error("scan consumer stopped, retrying", "error", err.Error(), "retry_in", i.retryDelay.String())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.retryDelay):
		}
	}
}

// Handle applies one report. A nil return means the message can be committed.
func (i *Ingester) Handle(ctx context.Context, key, value []byte) error {
	i.totalReceived.Add(1)
	i.lastScanUnixNano.Store(time.Now().UTC().UnixNano())

	var msg messages.ScanReported
	if err := json.Unmarshal(value, &msg); err != nil {
		i.skip("malformed", string(key), err)
		return nil
	}
	code := strings.ToUpper(strings.TrimSpace(msg.TrackingCode))
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(string(key)))
	}

	o, err := i.orders.GetByTrackingCode(ctx, code)
	if err != nil {
		return i.outcome(code, err)
	}

	notes := strings.TrimSpace(msg.Notes)
	if notes == "" {
		notes = "Scanned at " + strings.TrimSpace(msg.Location)
	}
	_, err = i.tr.Transition(ctx, transitions.Request{
		OrderID:   o.ID,
		NewStatus: models.Status(strings.ToLower(strings.TrimSpace(msg.Status))),
		Location:  msg.Location,
		Notes:     notes,
		Actor:     models.SystemActor(),
	})
	if err != nil {
		return i.outcome(code, err)
	}
	i.totalApplied.Add(1)
	metrics.RecordScan("applied")
	return nil
}

func (i *Ingester) outcome(code string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		i.skip("not_found", code, err)
		return nil
	case errors.Is(err, models.ErrInvalidTransition):
		i.skip("invalid_transition", code, err)
		return nil
	case errors.Is(err, models.ErrValidation):
		i.skip("invalid", code, err)
		return nil
	}
	metrics.RecordScan("error")
	return errors.Wrapf(err, "apply scan %s", code)
}

func (i *Ingester) skip(reason, code string, err error) {
	i.totalSkipped.Add(1)
	metrics.RecordScan(reason)
	i.log.Warn("scan skipped", "reason", reason, "tracking_code", code, "error", err.Error())
}

func (i *Ingester) recordError(err error) {
	i.totalErrors.Add(1)
	i.lastErrorMu.Lock()
	i.lastError = err.Error()
	i.lastErrorMu.Unlock()
}
