package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/dropship/backend/internal/application/catalog"
	orderapp "github.com/dropship/backend/internal/application/order"
	"github.com/dropship/backend/internal/domain/payment"
	"github.com/dropship/backend/internal/infrastructure/cache"
	"github.com/dropship/backend/internal/infrastructure/config"
	"github.com/dropship/backend/internal/infrastructure/event"
	"github.com/dropship/backend/internal/infrastructure/logger"
	"github.com/dropship/backend/internal/infrastructure/migration"
	paymentinfra "github.com/dropship/backend/internal/infrastructure/payment"
	"github.com/dropship/backend/internal/infrastructure/persistence"
	"github.com/dropship/backend/internal/infrastructure/scheduler"
	supplierinfra "github.com/dropship/backend/internal/infrastructure/supplier"
	"github.com/dropship/backend/internal/infrastructure/telemetry"
	"github.com/dropship/backend/internal/interfaces/http/handler"
	"github.com/dropship/backend/internal/interfaces/http/middleware"
	"github.com/dropship/backend/internal/interfaces/http/router"
	"github.com/dropship/backend/migrations"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	if cfg.Telemetry.LogsEnabled {
		// rebuild with the OTLP bridge teed next to the local encoder
		if log, err = logger.New(logCfg, providers.ZapCore(logger.ParseLevel(cfg.Log.Level))); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting dropship backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.String("payment_provider", cfg.Payment.Provider),
	)

	if cfg.Database.Driver == "postgres" && cfg.Database.MigrateOnStart {
		if err := runMigrations(&cfg.Database, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.InstrumentGorm(db.DB, cfg.Database.Driver, log); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	stores, err := cache.NewStores(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.IsProduction()),
	)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() { _ = stores.Close() }()

	metrics, err := telemetry.NewPipelineMetrics(providers.Meter("dropship/pipeline"))
	if err != nil {
		log.Warn("Pipeline metrics disabled", zap.Error(err))
		metrics = nil
	}

	// Event bus; order events are forwarded to RabbitMQ when enabled
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.RabbitMQ.Enabled {
		forwarder, err := event.DialAMQPForwarder(cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer func() { _ = forwarder.Close() }()
		eventBus.Subscribe(forwarder)
		log.Info("Forwarding order events to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}
	eventBus.Subscribe(orderapp.NewFulfillmentAlertHandler(log).WithNotifier(orderapp.NewLoggingAlertNotifier(log)))
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Repositories and outbound clients
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	supplierClient := supplierinfra.NewHTTPClient(cfg.Supplier, log)

	// the simulator only charges outside production with the offline provider;
	// with stripe, direct charges are refused and only checkout is offered
	var (
		charger   payment.Charger
		gateway   payment.Gateway
		verifiers = map[string]payment.WebhookVerifier{}
	)
	if cfg.SimulatedPayments() {
		offline := paymentinfra.NewOfflineGateway(cfg.Payment.BoletoBaseURL, log)
		charger, gateway = offline, offline
		if cfg.Payment.OfflineWebhookSecret != "" {
			verifiers["offline"] = paymentinfra.NewHMACWebhookVerifier(cfg.Payment.OfflineWebhookSecret)
		}
	}
	if cfg.Payment.Provider == "stripe" {
		stripeGateway, err := paymentinfra.NewStripeGateway(cfg.Stripe, log)
		if err != nil {
			log.Fatal("Failed to initialize Stripe", zap.Error(err))
		}
		gateway = stripeGateway
		verifiers["stripe"] = paymentinfra.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)
	}

	// Catalog services
	var placeholders *catalogapp.PlaceholderCatalog
	if cfg.Features.DegradedCatalog {
		placeholders, err = catalogapp.LoadPlaceholderManifest(cfg.Features.PlaceholderManifest)
		if err != nil {
			log.Warn("Degraded catalog disabled", zap.Error(err))
			placeholders = nil
		} else {
			log.Info("Degraded catalog enabled", zap.Int("placeholders", placeholders.Len()))
		}
	}
	stockService := catalogapp.NewStockReconciliationService(productRepo, supplierClient, cfg.Supplier.StockBatchSize, metrics, log)
	syncService := catalogapp.NewCatalogSyncService(productRepo, supplierClient,
		catalogapp.NewPacer(cfg.Supplier.PacingInterval), cfg.Supplier.DefaultPageSize, metrics, log)
	queryService := catalogapp.NewCatalogQueryService(productRepo, stockService, placeholders, log)

	// Order services
	fulfillmentService := orderapp.NewFulfillmentService(orderRepo, supplierClient, eventBus, cfg.Fulfillment.Timeout, metrics, log)
	paymentService := orderapp.NewPaymentService(orderRepo, productRepo, charger, gateway, stores.Locker, eventBus,
		orderapp.PaymentSettings{
			SuccessURL: cfg.Payment.SuccessURL,
			CancelURL:  cfg.Payment.CancelURL,
			LockTTL:    cfg.Payment.OrderLockTTL,
		}, metrics, log)
	checkoutService := orderapp.NewCheckoutService(orderRepo, productRepo, paymentService, fulfillmentService, eventBus,
		cfg.Payment.Currency, cfg.Fulfillment.DispatchOnCreate, log)
	webhookService := orderapp.NewPaymentWebhookService(orderRepo, verifiers, stores.Idempotency,
		cfg.Payment.WebhookIdempotentTTL, fulfillmentService, eventBus, metrics, log)

	// Periodic stock reconciliation
	var stockJob *scheduler.PeriodicJob
	if cfg.Scheduler.StockSyncEnabled {
		stockJob, err = scheduler.NewPeriodicJob(scheduler.JobConfig{
			Name:     "stock-reconciliation",
			Interval: cfg.Scheduler.StockSyncInterval,
			Timeout:  cfg.Scheduler.JobTimeout,
		}, func(ctx context.Context) error {
			result, err := stockService.ReconcileAll(ctx)
			if err != nil {
				return err
			}
			log.Info("Stock reconciled",
				zap.Int("updated", result.UpdatedCount),
				zap.Int("missing", result.MissingCount),
				zap.Int("failed", result.FailedCount))
			return nil
		}, log)
		if err != nil {
			log.Fatal("Failed to create stock job", zap.Error(err))
		}
		if err := stockJob.Start(ctx); err != nil {
			log.Fatal("Failed to start stock job", zap.Error(err))
		}
	}

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	checks := map[string]handler.Pinger{"database": db}
	if stores.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return stores.Redis.Ping(ctx).Err()
		})
	}

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		Meter:          providers.Meter("dropship/http"),
		CORS:           corsCfg,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimiter:    middleware.NewRateLimiter(cfg.HTTP.RateLimitPerMinute, cfg.HTTP.RateLimitBurst),
	}, router.Handlers{
		Health:  handler.NewHealthHandler(version, checks),
		Catalog: handler.NewCatalogHandler(queryService, stockService, syncService),
		Order:   handler.NewOrderHandler(checkoutService),
		Webhook: handler.NewWebhookHandler(webhookService),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if stockJob != nil {
		if err := stockJob.Stop(shutdownCtx); err != nil {
			log.Warn("Stock job did not stop in time", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop in time", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// runMigrations applies the embedded schema on a dedicated connection; the
// migrator closes the connection it is given
func runMigrations(cfg *config.DatabaseConfig, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
