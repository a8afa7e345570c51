package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/report/renderer"
	"compliance_portal_backend/internal/report/repository"
	"compliance_portal_backend/internal/report/scoring"
	"compliance_portal_backend/platform/logger"
)

// emitConcurrency bounds parallel emissions per drain pass. Scoring and
// rendering are the slow parts and both are external calls.
const emitConcurrency = 4

// Scorer produces the scored findings for a batch.
// Satisfied by scoring.Client.
type Scorer interface {
	Score(ctx context.Context, batchID uuid.UUID) (scoring.Result, error)
}

// Renderer turns scored findings into the sealed PDF artifact.
// Satisfied by renderer.Client.
type Renderer interface {
	Render(ctx context.Context, batchID uuid.UUID, result scoring.Result) (renderer.Artifact, error)
}

// Emitter drains the emission queue: it claims retryable entries, generates
// the report artifact through the scoring and rendering collaborators and
// seals the result. Safe to run from multiple workers concurrently.
type Emitter struct {
	repo      *repository.Repository
	pool      *pgxpool.Pool
	scorer    Scorer
	renderer  Renderer
	bus       events.Bus
	log       *logger.Logger
	batchSize int
}

func NewEmitter(repo *repository.Repository, pool *pgxpool.Pool, scorer Scorer, rend Renderer, bus events.Bus, log *logger.Logger, batchSize int) *Emitter {
	return &Emitter{repo: repo, pool: pool, scorer: scorer, renderer: rend, bus: bus, log: log, batchSize: batchSize}
}

// Drain runs one emission pass. Per-entry failures are recorded on the
// queue entry and never abort the pass.
func (e *Emitter) Drain(ctx context.Context) error {
	entries, err := e.repo.ClaimRetryable(ctx, e.batchSize)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(emitConcurrency)
	for _, entry := range entries {
		g.Go(func() error {
			if err := e.emit(ctx, entry); err != nil {
				e.recordFailure(ctx, entry, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (e *Emitter) emit(ctx context.Context, entry repository.QueueEntry) error {
	e.log.QueueEvent("emission claimed", entry.BatchID.String(), entry.Attempts)

	result, err := e.scorer.Score(ctx, entry.BatchID)
	if err != nil {
		return err
	}
	artifact, err := e.renderer.Render(ctx, entry.BatchID, result)
	if err != nil {
		return err
	}

	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rpt, err := e.repo.GetForUpdate(ctx, tx, entry.BatchID)
	if err != nil {
		return err
	}

	hash := artifact.Hash
	switch {
	case rpt.ContentHash == nil:
		if err := e.repo.SetContent(ctx, tx, repository.SetContentParams{
			BatchID:     entry.BatchID,
			Content:     artifact.PDF,
			ContentHash: artifact.Hash,
		}); err != nil {
			return err
		}
	default:
		// A previous attempt already sealed the content; its hash wins
		// and the fresh render is discarded.
		hash = *rpt.ContentHash
	}

	if rpt.Status != "issued" {
		if err := e.repo.MarkIssued(ctx, tx, entry.BatchID); err != nil {
			return err
		}
	}
	if err := e.repo.DeleteEntry(ctx, tx, entry.ID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	e.log.QueueEvent("report issued", entry.BatchID.String(), entry.Attempts)
	e.bus.Publish(ctx, events.ReportIssued{
		BaseEvent:   events.NewBaseEvent(),
		BatchID:     entry.BatchID,
		ContentHash: hash,
		Emergency:   rpt.Emergency,
	})
	return nil
}

func (e *Emitter) recordFailure(ctx context.Context, entry repository.QueueEntry, cause error) {
	exhausted, err := e.repo.MarkFailure(ctx, entry.ID, cause.Error())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		e.log.Error("failed to record emission failure", "batch_id", entry.BatchID.String(), "error", err)
		return
	}

	e.log.Error("emission attempt failed",
		"batch_id", entry.BatchID.String(),
		"attempts", entry.Attempts,
		"max_attempts", entry.MaxAttempts,
		"exhausted", exhausted,
		"error", cause)

	if exhausted {
		e.bus.Publish(ctx, events.EmissionExhausted{
			BaseEvent: events.NewBaseEvent(),
			BatchID:   entry.BatchID,
			Attempts:  entry.Attempts,
			LastError: cause.Error(),
		})
	}
}
