package scheduler

import (
	"context"
	"fmt"
	"time"

	"compliance_portal_backend/platform/config"
	"compliance_portal_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Drainer runs one emission queue pass. Satisfied by the report emitter.
type Drainer interface {
	Drain(ctx context.Context) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	drainer Drainer
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, drainer Drainer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		drainer: drainer,
		log:     log,
	}

	mux.HandleFunc(TaskEmissionDrain, w.handleEmissionDrain)

	return w, nil
}

func (w *Worker) handleEmissionDrain(ctx context.Context, task *asynq.Task) error {
	if _, err := ParseEmissionDrainPayload(task); err != nil {
		return err
	}
	return w.drainer.Drain(ctx)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// RunPeriodicDrain drains on a fixed interval so queue entries admitted
// while no drain kick fired (emergency emissions, missed tasks) are still
// picked up.
func (w *Worker) RunPeriodicDrain(ctx context.Context, interval time.Duration) {
	if w == nil || w.drainer == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := w.drainer.Drain(ctx); err != nil {
			w.log.Warn("periodic emission drain failed", "error", err)
		}
	}
}
