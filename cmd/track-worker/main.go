package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/LogiTrack/config"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogiTrack.SlogLevel()}))
	slog.SetDefault(log)

	w, err := buildTrackWorker(cfg, defaultWorkerFactories(), log)
	if err != nil {
		panic(err)
	}
	defer w.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.LogiTrack.WorkerHTTPAddr,
			swaggerPath: os.Getenv("workerSwaggerPath"),
			ingester:    w.ingester,
			cfg:         cfg,
		})
		if err != nil && ctx.Err() == nil {
			log.Error("worker http server stopped", "error", err.Error())
		}
	}()

	log.Info("track-worker started", "topic", cfg.Kafka.ScansTopicName, "group", cfg.LogiTrack.KafkaConsumerGroup)
	if err := w.ingester.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("track-worker stopped", "error", err.Error())
		w.Close()
		os.Exit(1)
	}
}
