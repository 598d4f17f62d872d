package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/agamariel/crowdfund/internal/auth"
	"github.com/agamariel/crowdfund/internal/config"
	"github.com/agamariel/crowdfund/internal/handlers"
	"github.com/agamariel/crowdfund/internal/migrations"
	"github.com/agamariel/crowdfund/internal/notify"
	"github.com/agamariel/crowdfund/internal/provider"
	"github.com/agamariel/crowdfund/internal/ratelimit"
	"github.com/agamariel/crowdfund/internal/services"
	"github.com/agamariel/crowdfund/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App структура для управления приложением и его зависимостями.
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	dbPool *pgxpool.Pool
	redis  *redis.Client
	echo   *echo.Echo

	dispatcher *notify.Dispatcher
	mailWorker *notify.MailWorker
	sweeper    *services.Sweeper
	limiter    ratelimit.Limiter

	webhookHandler  *handlers.WebhookHandler
	cashoutHandler  *handlers.CashoutHandler
	donationHandler *handlers.DonationHandler
}

// NewApp создаёт и инициализирует новое приложение.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		cfg:    cfg,
		logger: logger,
	}

	if err := app.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initRedis(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := app.initDependencies(); err != nil {
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	app.initServer()

	return app, nil
}

// initDatabase выполняет миграции и открывает пул соединений.
func (app *App) initDatabase(ctx context.Context) error {
	if app.cfg.DatabaseURI == "" {
		return errors.New("DATABASE_URI is required")
	}

	sqlDB, err := sql.Open("pgx", app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to open database connection: %w", err)
	}
	defer sqlDB.Close()

	if err := migrations.Run(sqlDB, app.logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	dbPool, err := pgxpool.New(ctx, app.cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return fmt.Errorf("unable to ping database: %w", err)
	}

	app.dbPool = dbPool
	app.logger.Info("connected to database")
	return nil
}

// initRedis подключает redis, если он настроен. Без него письма только логируются,
// а лимит запросов считается в памяти процесса.
func (app *App) initRedis(ctx context.Context) error {
	if app.cfg.RedisAddress == "" {
		app.logger.Warn("REDIS_ADDRESS is not configured: emails are logged, rate limits are per instance")
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddress})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("ping redis %s: %w", app.cfg.RedisAddress, err)
	}
	app.redis = rdb
	return nil
}

// initDependencies собирает storage, сервисы и handlers.
func (app *App) initDependencies() error {
	policy, err := services.ParseAmountPolicy(app.cfg.AmountPolicy)
	if err != nil {
		return err
	}
	if app.cfg.ProviderAddress == "" {
		return errors.New("PROVIDER_ADDRESS is required")
	}

	// Storage layer
	ledger := storage.NewPostgresLedger(app.dbPool)
	notifications := storage.NewPostgresNotificationStorage(app.dbPool)
	audit := storage.NewPostgresAuditStorage(app.dbPool)

	// Notification side channel
	var mailer notify.Mailer
	if app.redis != nil {
		mailer = notify.NewRedisMailer(app.redis, app.logger)
		app.mailWorker = notify.NewMailWorker(app.redis, notify.SMTPConfig{
			Host:     app.cfg.SMTPHost,
			Port:     strconv.Itoa(app.cfg.SMTPPort),
			User:     app.cfg.SMTPUser,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.EmailFrom,
		}, app.logger)
		perMinute := max(1, int(app.cfg.RateLimitRPS*60))
		app.limiter = ratelimit.NewRedisLimiter(app.redis, perMinute, time.Minute)
	} else {
		mailer = notify.NewLogMailer(app.logger)
		app.limiter = ratelimit.NewMemoryLimiter(app.cfg.RateLimitRPS, app.cfg.RateLimitBurst, 10*time.Minute)
	}
	app.dispatcher = notify.NewDispatcher(app.cfg.NotifyWorkers, app.cfg.NotifyQueueSize, 30*time.Second, app.logger)
	sink := notify.NewSink(app.dispatcher, mailer, notifications, audit, ledger, app.logger)

	// Service layer
	client := provider.NewHTTPClient(app.cfg.ProviderAddress, app.cfg.ProviderAPIKey, app.cfg.MainAccountRef, app.cfg.ProviderTimeout)
	reconciler := services.NewReconciler(ledger, client, sink, policy, app.logger.Named("reconciler"))
	cashouts := services.NewCashoutService(ledger, client, sink, app.cfg.PlatformFeeRate, app.cfg.ProviderTimeout, app.logger.Named("cashout"))
	donations := services.NewDonationService(ledger, client, app.logger.Named("donations"))
	if app.cfg.SweepInterval > 0 {
		app.sweeper = services.NewSweeper(ledger, notifications, app.cfg.SweepInterval, app.cfg.NotificationRetention, app.logger.Named("sweeper"))
	}

	// Handler layer
	app.webhookHandler = handlers.NewWebhookHandler(reconciler, app.cfg.WebhookSecret, app.logger.Named("webhooks"))
	app.cashoutHandler = handlers.NewCashoutHandler(cashouts, app.logger)
	app.donationHandler = handlers.NewDonationHandler(donations, app.logger)

	return nil
}

// initServer инициализирует HTTP-сервер и настраивает маршруты.
func (app *App) initServer() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			app.logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(handlers.MetricsMiddleware())

	limited := ratelimit.Middleware(app.limiter, app.logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/api/health", app.health)

	// Вебхуки провайдера: аутентификация по подписи
	e.POST("/api/webhooks/payments", app.webhookHandler.Donation)
	e.POST("/api/webhooks/payouts", app.webhookHandler.Payout)

	// Пожертвовать можно без входа
	e.POST("/api/campaigns/:id/donations", app.donationHandler.Create, auth.OptionalJWTMiddleware(app.cfg.JWTSecret), limited)

	// Защищённые маршруты (требуют аутентификации)
	jwt := auth.JWTMiddleware(app.cfg.JWTSecret)
	e.POST("/api/user/cashout", app.cashoutHandler.Cashout, jwt, limited)
	e.GET("/api/campaigns/:id/withdrawals", app.cashoutHandler.ListWithdrawals, jwt)

	app.echo = e
}

func (app *App) health(c echo.Context) error {
	if err := app.dbPool.Ping(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.NoContent(http.StatusOK)
}

// Start запускает фоновые воркеры и HTTP-сервер.
func (app *App) Start(ctx context.Context) error {
	if app.mailWorker != nil {
		app.mailWorker.Start(ctx)
	}
	if app.sweeper != nil {
		app.sweeper.Start(ctx)
	} else {
		app.logger.Info("sweeper disabled")
	}
	if ml, ok := app.limiter.(*ratelimit.MemoryLimiter); ok {
		ml.StartCleanup(ctx, time.Minute)
	}

	app.logger.Info("starting server", zap.String("address", app.cfg.RunAddress))
	if err := app.echo.Start(app.cfg.RunAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Shutdown останавливает приём запросов, дожидается фоновых задач и закрывает соединения.
func (app *App) Shutdown(ctx context.Context) error {
	app.logger.Info("shutting down server")

	if err := app.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	if err := app.dispatcher.Close(ctx); err != nil {
		app.logger.Warn("notification tasks dropped on shutdown", zap.Error(err))
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.dbPool != nil {
		app.dbPool.Close()
	}

	app.logger.Info("server gracefully stopped")
	return nil
}
