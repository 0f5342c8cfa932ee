package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"assetflow/internal/analytics"
	"assetflow/internal/caching"
	"assetflow/internal/config"
	"assetflow/internal/handlers"
	"assetflow/internal/jobs/background"
	"assetflow/internal/middleware"
	"assetflow/internal/observ"
	"assetflow/internal/repositories"
	"assetflow/internal/services"
	"assetflow/internal/tenancy"
	"assetflow/pkg/database"
)

const version = "1.0.0"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("assetflow exited with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Shared database: tenant registry, warehouses, global index, metrics
	sharedPool, err := database.NewPool(ctx, cfg.SharedDatabaseURL)
	if err != nil {
		return err
	}
	defer sharedPool.Close()

	migrated, err := database.Migrate(cfg.SharedDatabaseURL, database.SchemaShared)
	if err != nil {
		return err
	}
	logger.Info("shared schema ready", zap.Bool("migrated", migrated))

	// Admin connection used only to CREATE DATABASE for new tenants
	adminPool, err := database.NewPool(ctx, cfg.TenantDatabaseURL)
	if err != nil {
		return err
	}
	defer adminPool.Close()

	registerer := prometheus.DefaultRegisterer

	registry := tenancy.NewRegistry(tenancy.PoolDialer(cfg.TenantDatabaseURL), tenancy.RegistryOptions{
		MaxAttempts: cfg.Registry.MaxAttempts,
		RetryDelay:  cfg.Registry.RetryDelay,
		IdleTimeout: cfg.Registry.IdleTimeout,
		Registerer:  registerer,
	}, logger.Named("registry"))
	accessor := tenancy.NewAccessor(registry)

	cacheSvc := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger.Named("cache"))
	defer func() {
		if err := cacheSvc.Close(); err != nil {
			logger.Warn("failed to close redis client", zap.Error(err))
		}
	}()

	shared := repositories.NewSharedDB(sharedPool)
	validate := services.NewValidator()

	provisioner := tenancy.NewProvisioner(adminPool, cfg.TenantDatabaseURL, database.Migrate, logger.Named("provisioner"))
	tenantSvc := services.NewTenantService(shared.Tenants(), cacheSvc, provisioner, validate, logger.Named("tenants"))
	warehouseSvc := services.NewWarehouseService(shared, validate, logger.Named("warehouses"))

	notifier := services.NewSlackNotifier(cfg.Notification.SlackWebhookURL, cacheSvc, cfg.Notification.DedupWindow, logger.Named("notifier"))
	defer notifier.Wait()

	projector := analytics.NewProjector(shared, logger.Named("projector"))
	dispatcher := analytics.NewDispatcher(projector, cacheSvc, analytics.DispatcherOptions{
		Workers:     cfg.Projection.Workers,
		QueueSize:   cfg.Projection.QueueSize,
		MaxAttempts: cfg.Projection.MaxAttempts,
		Registerer:  registerer,
	}, logger.Named("projection"))
	dispatcher.Start(context.WithoutCancel(ctx))

	deps := services.RelocationDeps{
		Tenants:    tenantSvc,
		Tx:         accessor,
		Warehouses: warehouseSvc,
		History:    services.NewHistoryRecorder(),
		Notifier:   notifier,
		Projection: dispatcher,
		Validate:   validate,
		Logger:     logger.Named("relocation"),
		Registerer: registerer,
	}
	relocationSvc := services.NewRelocationService(deps)
	productSvc := services.NewProductService(deps)
	shipmentSvc := services.NewShipmentService(deps)
	analyticsSvc := analytics.NewAnalyticsService(shared, cacheSvc, logger.Named("analytics"))

	scheduler, err := background.NewJobScheduler(registry, dispatcher, background.JobSchedulerOptions{
		SweepInterval: cfg.Registry.SweepInterval,
		RetryInterval: cfg.Projection.RetryInterval,
	}, logger.Named("scheduler"))
	if err != nil {
		return err
	}
	scheduler.Start()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(echoMiddleware.CORS())
	e.Use(middleware.NewAuditMiddleware(logger.Named("http")).RequestAudit())

	versions := middleware.NewVersionMiddleware()
	e.Use(versions.APIVersionResolver())

	router := &handlers.Router{
		Relocations: handlers.NewRelocationHandlers(relocationSvc),
		Shipments:   handlers.NewShipmentHandlers(shipmentSvc),
		Products:    handlers.NewProductHandlers(productSvc),
		Warehouses:  handlers.NewWarehouseHandlers(warehouseSvc),
		Metrics:     handlers.NewMetricsHandlers(analyticsSvc),
		Tenants:     handlers.NewTenantHandlers(tenantSvc),
		Health:      handlers.NewHealthHandlers(sharedPool, cacheSvc, registry, cacheSvc, version),
		Jobs:        handlers.NewJobHandlers(scheduler),
		Prometheus:  promhttp.Handler(),
	}
	router.Register(e, versions)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("assetflow server starting", zap.String("version", version), zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
		}
	}

	return shutdown(e, scheduler, dispatcher, registry, logger)
}

// shutdown stops intake first, then background work, then drops every tenant
// connection. The shared pool and redis close through run's defers.
func shutdown(e *echo.Echo, scheduler *background.JobScheduler, dispatcher *analytics.Dispatcher, registry *tenancy.Registry, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var firstErr error
	record := func(step string, err error) {
		if err == nil {
			return
		}
		logger.Error("shutdown step failed", zap.String("step", step), zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	record("http", e.Shutdown(ctx))
	record("scheduler", scheduler.Stop())
	record("projection", dispatcher.Stop(ctx))
	record("registry", registry.Close(ctx))

	logger.Info("assetflow stopped")
	return firstErr
}
