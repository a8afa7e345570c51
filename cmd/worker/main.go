package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/notification"
	"compliance_portal_backend/internal/report/renderer"
	reportrepo "compliance_portal_backend/internal/report/repository"
	"compliance_portal_backend/internal/report/scoring"
	reportservice "compliance_portal_backend/internal/report/service"
	"compliance_portal_backend/internal/scheduler"
	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/db"
	"compliance_portal_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting emission worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	// Operator alerts for exhausted queue entries ride the worker's bus.
	notification.NewModule(cfg, eventBus, log)

	repo := reportrepo.New(pool)
	scorer := scoring.NewClient(cfg.ScoringServiceURL)
	rend := renderer.New(cfg.RendererURL, cfg.PublicBaseURL)
	emitter := reportservice.NewEmitter(repo, pool, scorer, rend, eventBus, log, cfg.GetEmissionBatchSize())

	worker, err := scheduler.NewWorker(cfg, emitter, log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	go worker.RunPeriodicDrain(ctx, cfg.GetEmissionDrainInterval())

	worker.Run(ctx)
	log.Info("emission worker stopped")
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
