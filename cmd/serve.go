package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"stories-service/api"
	"stories-service/auth"
	"stories-service/cache"
	"stories-service/config"
	"stories-service/events"
	"stories-service/handler"
	"stories-service/metrics"
	"stories-service/middleware"
	"stories-service/ranking"
	"stories-service/ratelimit"
	"stories-service/store"
	"stories-service/telemetry"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cli.Command{
	Name:   "serve",
	Usage:  "Run the HTTP API",
	Flags:  config.ServeFlags(),
	Action: serve,
}

func serve(ctx context.Context, c *cli.Command) error {
	cfg := config.FromCommand(c)
	logger := slog.Default().With("service", config.ServiceName)

	if cfg.JWTSecret == "" {
		return errors.New("jwt secret is required (JWT_SECRET)")
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.Init(config.ServiceName, version, cfg.Environment)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: config.ServiceName,
		Version:     version,
		Environment: cfg.Environment,
		SampleRatio: cfg.OTELSampleRatio,
	})
	if err != nil {
		return err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	client, err := store.Connect(connectCtx, cfg.MongoURI)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("Connected to MongoDB", "database", cfg.MongoDB)

	db := client.Database(cfg.MongoDB)
	if err := store.EnsureIndexes(ctx, db, logger); err != nil {
		logger.Warn("Failed to ensure indexes", "error", err)
	}

	posts := store.NewPostStore(db)
	users := store.NewUserStore(db)

	responses, err := cache.New(cache.Options{
		MaxEntries:    cfg.CacheMaxEntries,
		SweepInterval: cfg.CacheSweepInterval,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	responses.Start(ctx)

	// A nil *events.Bus must not end up inside the interface.
	var peers middleware.Broadcaster
	bus := connectBus(cfg, responses, logger)
	if bus != nil {
		peers = bus
	}

	checks := map[string]handler.Check{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}
	limiter, rdb := newLimiter(ctx, cfg, logger)
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	engine := ranking.NewEngine(posts, logger)
	router := api.NewRouter(api.Deps{
		Config:  cfg,
		Logger:  logger,
		Posts:   handler.NewPostHandler(posts, users, engine, cfg.QueryTimeout, logger),
		Users:   handler.NewUserHandler(posts, users, cfg.QueryTimeout, logger),
		Health:  handler.NewHealthHandler(config.ServiceName, checks),
		Cache:   responses,
		Peers:   peers,
		Limiter: limiter,
		Tokens:  auth.NewVerifier(cfg.JWTSecret),
		Lookup:  users,
	})

	srv := api.NewServer(":"+cfg.Port, router, logger)
	errs, err := srv.Start()
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Port, err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errs:
		logger.Error("HTTP server failed", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	responses.Close()
	if bus != nil {
		bus.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("Failed to disconnect from MongoDB", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Failed to flush traces", "error", err)
	}

	logger.Info("Stories service stopped")
	return serveErr
}

// connectBus joins the invalidation subject. Without NATS each replica only
// drops its own entries.
func connectBus(cfg *config.Config, target events.Invalidator, logger *slog.Logger) *events.Bus {
	if cfg.NATSUrl == "" {
		return nil
	}

	bus, err := events.Connect(cfg.NATSUrl, cfg.InstanceID, logger)
	if err != nil {
		logger.Warn("Running without peer invalidation", "error", err)
		return nil
	}
	if err := bus.Listen(target); err != nil {
		logger.Warn("Running without peer invalidation", "error", err)
		bus.Close()
		return nil
	}
	logger.Info("Listening for peer invalidations", "subject", events.InvalidationSubject, "instance", bus.Instance())
	return bus
}

// newLimiter prefers a Redis counter shared by all replicas and falls back to
// a per-process one. A zero limit disables rate limiting.
func newLimiter(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ratelimit.Limiter, *redis.Client) {
	if cfg.RateLimit <= 0 {
		return nil, nil
	}
	local := ratelimit.NewLocalLimiter(int64(cfg.RateLimit), cfg.RateWindow)
	if cfg.RedisURL == "" {
		return local, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("Invalid Redis URL, using in-process rate limiter", "error", err)
		return local, nil
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, using in-process rate limiter", "error", err)
		_ = rdb.Close()
		return local, nil
	}

	logger.Info("Connected to Redis")
	return ratelimit.NewRedisLimiter(rdb, int64(cfg.RateLimit), cfg.RateWindow), rdb
}
