package main

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BearBump/LogiTrack/config"
	"github.com/BearBump/LogiTrack/internal/broker/kafka"
	"github.com/BearBump/LogiTrack/internal/cache"
	"github.com/BearBump/LogiTrack/internal/cache/rediscache"
	"github.com/BearBump/LogiTrack/internal/services/events"
	"github.com/BearBump/LogiTrack/internal/services/ledger"
	"github.com/BearBump/LogiTrack/internal/services/orders"
	"github.com/BearBump/LogiTrack/internal/services/scans"
	"github.com/BearBump/LogiTrack/internal/services/tracking"
	"github.com/BearBump/LogiTrack/internal/services/transitions"
	"github.com/BearBump/LogiTrack/internal/storage/pgorders"
	"github.com/BearBump/LogiTrack/internal/trackingcode"
)

// workerStore is everything the worker needs from the database.
type workerStore interface {
	orders.Repository
	ledger.Repository
	transitions.Store
	trackingcode.Checker
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (st workerStore, closeFn func(), err error)
	newConsumer func(cfg *config.Config) (c scans.Consumer, closeFn func())
	newProducer func(cfg *config.Config) (p events.Producer, closeFn func())
	newCache    func(cfg *config.Config) (c cache.BytesCache, closeFn func())
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStore, func(), error) {
			st, err := pgorders.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config) (scans.Consumer, func()) {
			c := kafka.NewConsumer(cfg.Kafka.Brokers(), cfg.Kafka.ScansTopicName, cfg.LogiTrack.KafkaConsumerGroup)
			return c, func() { _ = c.Close() }
		},
		newProducer: func(cfg *config.Config) (events.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
		newCache: func(cfg *config.Config) (cache.BytesCache, func()) {
			rc := rediscache.New(cfg.Redis.Addr())
			return rc, func() { _ = rc.Close() }
		},
	}
}

type trackWorker struct {
	ingester *scans.Ingester

	closers   []func()
	closeOnce sync.Once
}

func (w *trackWorker) Close() {
	w.closeOnce.Do(func() {
		for i := len(w.closers) - 1; i >= 0; i-- {
			w.closers[i]()
		}
	})
}

// buildTrackWorker wires the scan ingester on top of the same services the API uses,
// so a scan goes through exactly the same transition path as a manual update.
func buildTrackWorker(cfg *config.Config, f workerFactories, log *slog.Logger) (*trackWorker, error) {
	if log == nil {
		log = slog.Default()
	}
	w := &trackWorker{}

	st, closeSt, err := f.newStorage(cfg)
	if err != nil {
		return nil, err
	}
	if closeSt != nil {
		w.closers = append(w.closers, closeSt)
	}

	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		w.closers = append(w.closers, closeProducer)
	}
	c, closeCache := f.newCache(cfg)
	if closeCache != nil {
		w.closers = append(w.closers, closeCache)
	}
	consumer, closeConsumer := f.newConsumer(cfg)
	if closeConsumer != nil {
		w.closers = append(w.closers, closeConsumer)
	}

	pub := events.NewPublisher(producer, cfg.Kafka.StatusChangedTopicName, log)
	orderSvc := orders.New(st, trackingcode.New(st, nil)).
		WithPublisher(pub).
		WithLogger(log)
	tracker := tracking.New(ledger.New(st), c, cfg.LogiTrack.TrackCacheTTL(), log)
	orderSvc.WithInvalidator(tracker)
	transitionSvc := transitions.New(st).
		WithInvalidator(tracker).
		WithPublisher(pub).
		WithLogger(log)

	w.ingester = scans.New(consumer, orderSvc, transitionSvc).WithLogger(log)
	return w, nil
}

// RunTrackWorker consumes scanner reports until ctx is cancelled.
func RunTrackWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	w, err := buildTrackWorker(cfg, f, slog.Default())
	if err != nil {
		return err
	}
	defer w.Close()
	return w.ingester.Run(ctx)
}
