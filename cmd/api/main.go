package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/internal/api"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/events"
	"slotbook/internal/export"
	"slotbook/internal/logging"
	"slotbook/internal/metrics"
	"slotbook/internal/repository"
	"slotbook/internal/service"
	"slotbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, baseLogger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := logging.Component(baseLogger, "api-main")

	db, err := database.NewDB(cfg.Database.Path, logging.Component(baseLogger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	cache := initSlotCache(cfg, redisClient, baseLogger)

	eventBus := events.NewEventBus()
	forwarderDone := startForwarder(ctx, cfg, redisClient, eventBus, baseLogger)

	bookings := service.NewBookingService(db, cache, eventBus, cfg.Booking, logging.Component(baseLogger, "bookings"))
	catalog := service.NewCatalogService(db, cache, cfg.Booking, logging.Component(baseLogger, "catalog"))
	exporter := export.NewExporter(db, logging.Component(baseLogger, "export"))

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logging.Component(baseLogger, "backup"))
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	grpcServer, err := api.NewGRPCServer(cfg.API, bookings, baseLogger)
	if err != nil {
		logger.Error().Err(err).Msg("create grpc server")
		return err
	}

	httpServer, err := api.NewHTTPServer(cfg.API, api.HTTPDeps{
		Bookings: bookings,
		Catalog:  catalog,
		Exporter: exporter,
		Ready: func(ctx context.Context) error {
			return db.PingContext(ctx)
		},
	}, baseLogger)
	if err != nil {
		logger.Error().Err(err).Msg("create http server")
		return err
	}

	err = startServers(ctx, grpcServer, httpServer, cfg, logger)

	// Дожидаемся, пока форвардер отдаст накопленные события
	if forwarderDone != nil {
		select {
		case <-forwarderDone:
		case <-time.After(10 * time.Second):
			logger.Warn().Msg("event forwarder did not drain in time")
		}
	}
	return err
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis address is empty, using in-memory slot cache")
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		// Клиент оставляем: failover-кэш сам вернется к Redis, когда тот поднимется
		logger.Warn().Err(err).Msg("redis is not reachable yet, starting on in-memory fallback")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initSlotCache(cfg *config.Config, redisClient *redis.Client, baseLogger *zerolog.Logger) domain.SlotCache {
	ttl := time.Duration(cfg.Booking.SlotCacheTTL) * time.Second
	fallback := repository.NewMemorySlotCache(ttl)
	if redisClient == nil {
		return fallback
	}
	primary := repository.NewRedisSlotCache(redisClient, ttl)
	return repository.NewFailoverSlotCache(primary, fallback, logging.Component(baseLogger, "slot-cache"))
}

// startForwarder relays booking events to Redis. The returned channel closes
// when the forwarder has drained after shutdown; nil when forwarding is off.
func startForwarder(ctx context.Context, cfg *config.Config, redisClient *redis.Client, bus *events.EventBus, baseLogger *zerolog.Logger) <-chan struct{} {
	logger := logging.Component(baseLogger, "events")
	if !cfg.Events.Enabled {
		return nil
	}
	if redisClient == nil {
		logger.Warn().Msg("events are enabled but redis is not configured, forwarding is off")
		return nil
	}

	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Events.MaxRetries,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
	}
	forwarder := worker.NewEventForwarder(worker.NewRedisSink(redisClient), cfg.Events.QueueKey, cfg.Events.DeadLetterKey, retry, logger)
	forwarder.Attach(bus)

	done := make(chan struct{})
	go func() {
		defer close(done)
		forwarder.Start(ctx)
	}()
	return done
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	go func() {
		if !cfg.API.GRPC.Enabled {
			return
		}
		if err := grpcServer.Serve(); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().
		Str("grpc_addr", grpcServer.Addr()).
		Bool("grpc_enabled", cfg.API.GRPC.Enabled).
		Int("http_port", cfg.API.HTTP.Port).
		Bool("http_enabled", cfg.API.HTTP.Enabled).
		Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	grpcServer.Shutdown(shutdownCtx)
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
