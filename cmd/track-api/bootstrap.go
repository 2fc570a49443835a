package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/LogiTrack/config"
	"github.com/BearBump/LogiTrack/internal/api/authz"
	ordersapi "github.com/BearBump/LogiTrack/internal/api/orders_api"
	"github.com/BearBump/LogiTrack/internal/broker/kafka"
	"github.com/BearBump/LogiTrack/internal/cache/rediscache"
	"github.com/BearBump/LogiTrack/internal/services/events"
	"github.com/BearBump/LogiTrack/internal/services/ledger"
	"github.com/BearBump/LogiTrack/internal/services/orders"
	"github.com/BearBump/LogiTrack/internal/services/queries"
	"github.com/BearBump/LogiTrack/internal/services/tracking"
	"github.com/BearBump/LogiTrack/internal/services/transitions"
	"github.com/BearBump/LogiTrack/internal/storage/pgorders"
	"github.com/BearBump/LogiTrack/internal/trackingcode"
	"github.com/joho/godotenv"
)

type trackAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   trackAPIOpts

	api  *ordersapi.OrdersAPI
	auth *authz.Authenticator
	db   *pgorders.Storage

	closers []func() error
}

func mustBootstrapTrackAPI() *trackAPIApp {
	// .env необязателен, нужен только для локального запуска
	_ = godotenv.Load()

	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	if cfg.LogiTrack.JWTSecret == "" {
		panic("logitrack.jwt_secret is required")
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogiTrack.SlogLevel()}))
	slog.SetDefault(log)

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	pub := events.NewPublisher(producer, cfg.Kafka.StatusChangedTopicName, log)

	orderSvc := orders.New(st, trackingcode.New(st, nil)).
		WithPublisher(pub).
		WithLogger(log)
	tracker := tracking.New(ledger.New(st), rc, cfg.LogiTrack.TrackCacheTTL(), log)
	orderSvc.WithInvalidator(tracker)
	transitionSvc := transitions.New(st).
		WithInvalidator(tracker).
		WithPublisher(pub).
		WithLogger(log)

	api := ordersapi.New(orderSvc, tracker, transitionSvc, queries.New(orderSvc)).
		WithRateLimit(rl, int64(cfg.LogiTrack.RateLimitPerHour)).
		WithLogger(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trackAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trackAPIOpts{
			grpcAddr:    cfg.LogiTrack.GRPCAddr,
			httpAddr:    cfg.LogiTrack.HTTPAddr,
			swaggerPath: swaggerPath,
		},
		api:  api,
		auth: authz.New(cfg.LogiTrack.JWTSecret),
		db:   st,
		closers: []func() error{
			producer.Close,
			rc.Close,
			rl.Close,
			func() error { st.Close(); return nil },
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgorders.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgorders.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		slog.Warn("postgres not ready", "error", err.Error())
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		_ = c()
	}
}

func (a *trackAPIApp) Run() error {
	return runTrackAPI(a.ctx, a.opts, a.api, a.auth, a.db)
}
