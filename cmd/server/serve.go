package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/adminboard/backend-api/internal/api"
	"github.com/adminboard/backend-api/internal/auth"
	"github.com/adminboard/backend-api/internal/config"
	"github.com/adminboard/backend-api/internal/database"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/middleware"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/adminboard/backend-api/internal/services/distributedlock"
	"github.com/adminboard/backend-api/internal/telegram"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the login bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func initSentry(cfg config.SentryConfig, environment string) error {
	if cfg.DSN == "" {
		return nil
	}
	release := cfg.Release
	if release == "" {
		release = serviceName + "@" + version
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
	})
}

// openDatabase connects and migrates the configured SQL store.
func openDatabase(ctx context.Context, cfg *config.Config, logger *logging.StandardLogger) (database.Database, error) {
	db, err := database.NewDatabaseConnectionWithContext(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment).WithService(serviceName)
	defer func() { _ = logger.Sync() }()

	if err := initSentry(cfg.Sentry, cfg.Environment); err != nil {
		logger.WithError(err).Warn("Failed to initialize Sentry")
	}
	defer sentry.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.WithError(err).Error("Failed to close database connection")
		}
	}()

	// rdb stays a nil interface when Redis is off so that consumers fall
	// back to their in-process implementations.
	var rdb redis.UniversalClient
	var redisHealth *database.RedisClient
	if cfg.Redis.Enabled {
		client, err := database.NewRedisConnection(ctx, cfg.Redis, logger)
		if err != nil {
			if cfg.Telegram.SessionStore == config.SessionStoreRedis {
				return err
			}
			logger.WithError(err).Warn("Redis unavailable, continuing with in-process state")
		} else {
			defer client.Close()
			rdb = client.Client
			redisHealth = client
		}
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	var store telegram.SessionStore = telegram.NewMemoryStore()
	if cfg.Telegram.SessionStore == config.SessionStoreRedis {
		store = telegram.NewRedisStore(rdb, cfg.Telegram.SessionTTL)
	}
	broker := telegram.NewBroker(store, telegram.BrokerConfig{
		BotUsername:   cfg.Telegram.BotUsername,
		SessionTTL:    cfg.Telegram.SessionTTL,
		SweepInterval: cfg.Telegram.SweepInterval,
	}, logger)

	var locker telegram.Locker = distributedlock.NewKeyedMutex()
	if rdb != nil {
		locker = distributedlock.NewLocker(rdb, "adminboard:lock:", distributedlock.DefaultLockOptions(), logger)
	}

	users := database.NewUserRepository(db)
	authService := services.NewAuthService(services.AuthServiceDeps{
		Users:      users,
		Tokens:     tokens,
		Verifier:   telegram.NewVerifier(cfg.Telegram.BotToken, cfg.Telegram.MaxAuthAge, cfg.Telegram.MiniAppMaxAuthAge),
		Broker:     broker,
		Reconciler: telegram.NewReconciler(users, locker, models.Role(cfg.Auth.TelegramDefaultRole), logger),
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			Scope:    "auth",
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		}, rdb, logger)
	}

	var wg sync.WaitGroup
	defer func() {
		stop()
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		broker.Run(ctx)
	}()

	mode := cfg.Telegram.Mode
	if cfg.Telegram.BotToken == "" && mode != config.TelegramModeDisabled {
		logger.Warn("Telegram bot token not set, bot transport disabled")
		mode = config.TelegramModeDisabled
	}

	var dispatcher *telegram.Dispatcher
	if mode != config.TelegramModeDisabled {
		bot, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.APIBaseURL, cfg.Telegram.PollTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect telegram bot: %w", err)
		}
		defer func() { _ = bot.Close() }()
		if configured := strings.TrimPrefix(cfg.Telegram.BotUsername, "@"); !strings.EqualFold(configured, bot.Username()) {
			logger.Warn("Configured bot username does not match the bot token",
				zap.String("configured", configured),
				zap.String("actual", bot.Username()),
			)
		}
		dispatcher = telegram.NewDispatcher(broker, bot, logger)

		switch mode {
		case config.TelegramModeWebhook:
			if err := bot.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
				return fmt.Errorf("failed to register telegram webhook: %w", err)
			}
			logger.Info("Telegram webhook registered")
		case config.TelegramModePolling:
			if err := bot.DeleteWebhook(ctx); err != nil {
				logger.WithError(err).Warn("Failed to clear telegram webhook before polling")
			}
			poller := telegram.NewPoller(bot, dispatcher, cfg.Telegram.PollTimeout, logger)
			wg.Add(1)
			go func() {
				defer wg.Done()
				poller.Run(ctx)
			}()
			logger.Info("Telegram long polling started")
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	deps := api.Dependencies{
		Auth:           authService,
		Users:          services.NewUserService(users),
		Catalog:        services.NewCatalogService(database.NewCategoryRepository(db), database.NewProductRepository(db)),
		Tokens:         tokens,
		DB:             db,
		RateLimiter:    limiter,
		TelegramMode:   mode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}
	if redisHealth != nil {
		deps.Redis = redisHealth
	}
	if mode == config.TelegramModeWebhook {
		deps.Dispatcher = dispatcher
		deps.WebhookSecret = cfg.Telegram.WebhookSecret
	}
	api.SetupRoutes(router, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.LogStartup(serviceName, version, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.LogShutdown(serviceName, "signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited gracefully")
	return nil
}
