package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/cache"
	"krishimitra/api/internal/config"
	"krishimitra/api/internal/database"
	"krishimitra/api/internal/events"
	"krishimitra/api/internal/handlers"
	"krishimitra/api/internal/jobs"
	"krishimitra/api/internal/log"
	"krishimitra/api/internal/ratelimit"
	"krishimitra/api/internal/repository"
	"krishimitra/api/internal/revocation"
	"krishimitra/api/internal/security"
	"krishimitra/api/internal/server"
	"krishimitra/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)

	ctx := context.Background()

	var (
		dbPool      *pgxpool.Pool
		users       service.UserStore
		redisClient *redis.Client
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dbPool, err = database.NewPostgresPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect postgres")
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, dbPool); err != nil {
				logger.Fatal().Err(err).Msg("database migration failed")
			}
		}
		users = repository.NewUserRepository(dbPool)
	default:
		logger.Warn().Msg("using in-memory user store; data is lost on restart")
		users = repository.NewMemoryUserRepository()
	}

	if cfg.RedisRequired() {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
	}

	hasher, err := security.NewPasswordHasher(cfg.Security.PasswordAlgorithm, cfg.Security.BcryptCost)
	if err != nil {
		logger.Fatal().Err(err).Msg("password hasher")
	}
	tokens, err := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.JWTTTL, cfg.Security.JWTIssuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("token issuer")
	}

	var (
		counter    ratelimit.Counter
		memCounter *ratelimit.MemoryCounter
		opts       []service.Option
		publisher  *events.StreamPublisher
	)
	if cfg.RateLimit.Backend == config.BackendRedis {
		counter = ratelimit.NewRedisCounter(redisClient)
	} else {
		memCounter = ratelimit.NewMemoryCounter()
		counter = memCounter
	}
	limiter, err := ratelimit.NewLimiter(counter, map[ratelimit.Class]ratelimit.Policy{
		ratelimit.ClassAuth:    {Limit: cfg.RateLimit.AuthLimit, Window: cfg.RateLimit.AuthWindow, FailClosed: cfg.RateLimit.AuthFailClosed},
		ratelimit.ClassGeneral: {Limit: cfg.RateLimit.GeneralLimit, Window: cfg.RateLimit.GeneralWindow},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("rate limiter")
	}

	if cfg.Events.Enabled {
		publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream, cfg.Events.MaxLen)
		opts = append(opts, service.WithEvents(publisher))
	}
	if cfg.Security.RevokeOnLogout {
		opts = append(opts, service.WithDenylist(revocation.NewRedisDenylist(redisClient)))
	}

	authService := service.NewAuthService(users, hasher, tokens, logger, opts...)

	handlerSet := handlers.NewHandlerSet(logger, cfg, authService, limiter, healthChecks(dbPool, redisClient)...)
	httpServer, err := server.NewHTTPServer(cfg, logger, handlerSet)
	if err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}

	scheduler := newScheduler(publisher, memCounter, cfg, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func healthChecks(db *pgxpool.Pool, redisClient *redis.Client) []handlers.HealthCheck {
	dbCheck := handlers.HealthCheck{Name: "database"}
	if db != nil {
		dbCheck.Probe = db.Ping
	}
	cacheCheck := handlers.HealthCheck{Name: "cache"}
	if redisClient != nil {
		cacheCheck.Probe = cache.Ping(redisClient)
	}
	return []handlers.HealthCheck{dbCheck, cacheCheck}
}

// newScheduler avoids handing typed nil pointers to the scheduler's
// interface parameters.
func newScheduler(publisher *events.StreamPublisher, counter *ratelimit.MemoryCounter, cfg *config.AppConfig, logger zerolog.Logger) *jobs.Scheduler {
	var (
		queue  jobs.Enqueuer
		pruner jobs.Pruner
	)
	if publisher != nil {
		queue = publisher
	}
	if counter != nil {
		pruner = counter
	}
	maxWindow := max(cfg.RateLimit.AuthWindow, cfg.RateLimit.GeneralWindow)
	return jobs.NewScheduler(queue, pruner, maxWindow, logger)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn().Msg("scheduler jobs still running at shutdown")
	}

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
