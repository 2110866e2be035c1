package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/ussd-relay/internal/api"
	"github.com/ayo6706/ussd-relay/internal/api/middleware"
	"github.com/ayo6706/ussd-relay/internal/config"
	"github.com/ayo6706/ussd-relay/internal/db"
	"github.com/ayo6706/ussd-relay/internal/idempotency"
	"github.com/ayo6706/ussd-relay/internal/notify"
	"github.com/ayo6706/ussd-relay/internal/observability"
	"github.com/ayo6706/ussd-relay/internal/repository"
	"github.com/ayo6706/ussd-relay/internal/service"
	"github.com/ayo6706/ussd-relay/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the relay API and its background workers, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	repo := repository.NewRepository(pool)
	if cfg.OperatorPrefixFile != "" {
		prefixes, err := service.LoadOperatorPrefixFile(cfg.OperatorPrefixFile)
		if err != nil {
			return fmt.Errorf("load operator prefixes: %w", err)
		}
		if err := repo.UpsertOperatorPrefixes(ctx, prefixes); err != nil {
			return fmt.Errorf("seed operator prefixes: %w", err)
		}
		logger.Info("operator prefixes loaded", zap.String("file", cfg.OperatorPrefixFile), zap.Int("count", len(prefixes)))
	}

	// Redis backs the idempotency cache and notification delivery. Without it the
	// relay keeps serving with Postgres-only idempotency and log notifications.
	var cache redis.Cmdable
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("redis unavailable, continuing without it", zap.Error(err))
	} else {
		defer redisClient.Close()
		cache = redisClient
		notifier = notify.Fallback{
			Primary:   notify.NewRedisNotifier(redisClient, cfg.NotificationChannel),
			Secondary: notifier,
		}
	}

	ledger := repository.NewTransferStore(repository.NewStore(pool))

	operators := service.NewOperatorResolver(repo, cfg.OperatorRefreshInterval)
	if err := operators.Refresh(ctx); err != nil {
		return fmt.Errorf("load operator prefixes: %w", err)
	}
	stopOperators := operators.Run(ctx)

	transfers := service.NewTransferService(ledger, repo, operators, notifier, service.TransferConfig{
		MaxAmount: cfg.MaxTransferAmount,
		Cooldown: service.CooldownPolicy{
			Spacing:         cfg.CooldownSpacing,
			DuplicateWindow: cfg.DuplicateRecipientWindow,
		},
	})
	dispatcher := service.NewJobDispatcher(transfers)
	reaper := service.NewStaleJobReaper(transfers, cfg.StaleProcessingTimeout)
	queue := service.NewQueueService(ledger)
	balanceJobs := service.NewBalanceJobCoordinator(cfg.BalanceJobTTL, notifier)
	balances := service.NewBalanceService(balanceJobs, repo, operators)

	auth, err := middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}
	idemStore := idempotency.NewStore(cache, repository.New(pool), cfg.IdempotencyTTL)

	promotion := worker.NewPromotionWorker(transfers).WithPollInterval(cfg.PromotionInterval)
	stopPromotion := promotion.Run(ctx)
	maintenance := worker.NewMaintenanceWorker(reaper, queue, idemStore).WithInterval(cfg.ReaperInterval)
	stopMaintenance := maintenance.Run(ctx)
	logger.Info("workers started",
		zap.Duration("promotion_interval", cfg.PromotionInterval),
		zap.Duration("reaper_interval", cfg.ReaperInterval),
		zap.Duration("stale_processing_timeout", cfg.StaleProcessingTimeout))

	router := api.NewRouter(api.Deps{
		Logger:             logger,
		Auth:               auth,
		DeviceAPIKey:       cfg.DeviceAPIKey,
		Idempotency:        idemStore,
		DB:                 pool,
		Redis:              cache,
		Users:              repo,
		Transfers:          transfers,
		Balances:           balances,
		Dispatcher:         dispatcher,
		Executor:           balances,
		Queue:              queue,
		PublicRateLimitRPS: cfg.PublicRateLimitRPS,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
		DeviceRateLimitRPS: cfg.DeviceRateLimitRPS,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping workers")
	stopPromotion()
	stopMaintenance()
	stopOperators()
	balanceJobs.Stop()

	logger.Info("shutdown complete")
	return nil
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("REDIS_URL is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
