package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"krishimitra/api/internal/cache"
	"krishimitra/api/internal/config"
	"krishimitra/api/internal/database"
	"krishimitra/api/internal/log"
	"krishimitra/api/internal/queue"
	"krishimitra/api/internal/repository"
	"krishimitra/api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level).With().Str("component", "worker").Logger()

	if cfg.Database.Driver != config.DriverPostgres {
		logger.Fatal().Str("driver", cfg.Database.Driver).Msg("worker requires the postgres driver")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer dbPool.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, dbPool); err != nil {
			logger.Fatal().Err(err).Msg("database migration failed")
		}
	}

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewProcessor(repository.NewAuthEventRepository(dbPool), cfg.Worker.Retention, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Events.Stream,
		cfg.Worker.Group,
		cfg.Worker.Consumer,
		cfg.Worker.ClaimInterval,
		logger,
		processor,
	).WithDeadLetter(cfg.Worker.DeadLetterStream, cfg.Worker.MaxDeliveries)

	done := make(chan error, 1)
	go func() {
		done <- consumer.Start(ctx)
	}()

	logger.Info().
		Str("stream", cfg.Events.Stream).
		Str("group", cfg.Worker.Group).
		Str("consumer", cfg.Worker.Consumer).
		Str("dead_letter", cfg.Worker.DeadLetterStream).
		Msg("worker started")

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			logger.Warn().Msg("consumer did not stop in time")
		}
	}
}
