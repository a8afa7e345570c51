package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/batch"
	"compliance_portal_backend/internal/billing"
	"compliance_portal_backend/internal/contractor"
	"compliance_portal_backend/internal/events"
	apphttp "compliance_portal_backend/internal/http"
	"compliance_portal_backend/internal/http/router"
	"compliance_portal_backend/internal/notification"
	"compliance_portal_backend/internal/report"
	"compliance_portal_backend/internal/report/storage"
	"compliance_portal_backend/internal/scheduler"
	"compliance_portal_backend/migrations"
	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/db"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	auditor := audit.NewService(audit.NewRepository(pool), log)

	store, err := storage.NewMinIOStore(cfg)
	if err != nil {
		log.Error("failed to initialize report storage", "error", err)
		panic("failed to initialize report storage: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure reports bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucket(ctx)
	}); err != nil {
		log.Error("failed to ensure reports bucket", "error", err)
		panic("failed to ensure reports bucket: " + err.Error())
	}
	log.Info("report storage initialized", "bucket", cfg.GetMinioBucketReports())

	drainScheduler, closeScheduler := initDrainScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	notification.NewModule(cfg, eventBus, log)

	contractorModule := contractor.NewModule(pool, eventBus, auditor, val, log)
	reportModule := report.NewModule(pool, store, drainScheduler, auditor, eventBus, val, cfg, log)
	batchModule := batch.NewModule(pool, reportModule.Gateway(), auditor, eventBus, val, log)
	billingModule, err := billing.NewModule(pool, contractorModule.Service(), auditor, eventBus, val, cfg, cfg.PlanCatalogPath, log)
	if err != nil {
		log.Error("failed to initialize billing module", "error", err)
		panic("failed to initialize billing module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: db.NewPoolAdapter(pool),
		Modules: []apphttp.Module{
			contractorModule,
			billingModule,
			batchModule,
			reportModule,
			audit.NewModule(auditor),
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initDrainScheduler(cfg config.SchedulerConfig, log *logger.Logger) (report.DrainScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; emission drain kicks disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize drain scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
