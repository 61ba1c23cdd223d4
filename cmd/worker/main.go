package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/kinfolk/internal/app"
	"github.com/suPer8Hu/kinfolk/internal/config"
	"github.com/suPer8Hu/kinfolk/internal/logger"
	"github.com/suPer8Hu/kinfolk/internal/store/rabbitmq"
	"github.com/suPer8Hu/kinfolk/internal/worker"
)

func main() {
	log := logger.New("kinfolk-worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init app")
	}
	defer a.Close()

	consumer, err := rabbitmq.NewConsumer(ctx, rabbitmq.ConsumerConfig{
		URL:        cfg.RabbitURL,
		Queue:      cfg.RabbitQueue,
		Prefetch:   cfg.WorkerConcurrency,
		MaxRetries: cfg.JobMaxRetries,
		RetryDelay: cfg.JobRetryDelay,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbit connect")
	}
	defer consumer.Close()

	msgs, err := consumer.Deliveries()
	if err != nil {
		log.Fatal().Err(err).Msg("consume")
	}

	runner := worker.NewRunner(a.ChatRepo, a.Orchestrator(nil), log)
	pool := worker.NewPool(runner, consumer, cfg.WorkerConcurrency, log)

	log.Info().
		Str("queue", cfg.RabbitQueue).
		Int("concurrency", cfg.WorkerConcurrency).
		Int("max_retries", cfg.JobMaxRetries).
		Msg("worker started")
	pool.Run(ctx, msgs)
}
