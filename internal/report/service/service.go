package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/report/repository"
	"compliance_portal_backend/internal/report/transport"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/logger"
)

// MinEmergencyReasonLen is the shortest accepted justification for forcing
// emission of a batch that has not concluded.
const MinEmergencyReasonLen = 10

// ObjectStore uploads issued report artifacts to durable storage.
// Satisfied by storage.MinIOStore.
type ObjectStore interface {
	Upload(ctx context.Context, batchID uuid.UUID, contentHash string, pdf []byte) (string, error)
}

type Service struct {
	repo        *repository.Repository
	pool        *pgxpool.Pool
	store       ObjectStore
	auditor     audit.Recorder
	bus         events.Bus
	log         *logger.Logger
	maxAttempts int
}

func New(repo *repository.Repository, pool *pgxpool.Pool, store ObjectStore, auditor audit.Recorder, bus events.Bus, log *logger.Logger, maxAttempts int) *Service {
	return &Service{repo: repo, pool: pool, store: store, auditor: auditor, bus: bus, log: log, maxAttempts: maxAttempts}
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, batchID uuid.UUID) (transport.ReportResponse, error) {
	r, err := s.repo.GetScopedByBatchID(ctx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ReportResponse{}, apperr.NotFound("report not found")
		}
		return transport.ReportResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load report", err)
	}
	return toReportResponse(r), nil
}

// EmergencyEmission forces a batch's report into the emission queue before
// the batch concludes. Restricted to administrators and always audited with
// the written justification.
func (s *Service) EmergencyEmission(ctx context.Context, scope tenant.Scope, actor audit.Actor, batchID uuid.UUID, req transport.EmergencyEmissionRequest) error {
	if actor.Role != httpkit.RoleAdmin {
		return apperr.Forbidden("only administrators may force report emission")
	}
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < MinEmergencyReasonLen {
		return apperr.Validation("emergency emission requires a reason of at least 10 characters")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	r, err := s.repo.GetScopedForUpdate(ctx, tx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("report not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load report", err)
	}
	if r.Status == "issued" {
		return apperr.Conflict("report has already been issued")
	}

	if err := s.repo.FlagEmergency(ctx, tx, batchID, reason); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to flag emergency emission", err)
	}
	if err := s.repo.Enqueue(ctx, tx, batchID, s.maxAttempts); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to admit batch for emission", err)
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "report.emergency_emission",
		Entity:   "report",
		EntityID: batchID,
		Scope:    &scope,
		Data: map[string]any{
			"reason": reason,
		},
	}); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to commit emergency emission", err)
	}

	s.log.Warn("emergency emission admitted", "batch_id", batchID.String(), "actor", actor.Role)
	return nil
}

// Deliver uploads the issued report artifact to object storage and records
// its key. Delivery happens at most once; a repeat request conflicts.
func (s *Service) Deliver(ctx context.Context, scope tenant.Scope, actor audit.Actor, batchID uuid.UUID) (transport.DeliveryResponse, error) {
	r, err := s.repo.GetScopedByBatchID(ctx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.DeliveryResponse{}, apperr.NotFound("report not found")
		}
		return transport.DeliveryResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load report", err)
	}
	if r.Status != "issued" {
		return transport.DeliveryResponse{}, apperr.InvalidTransition("report has not been issued")
	}
	if r.StorageKey != nil {
		return transport.DeliveryResponse{}, apperr.Conflict("report was already delivered")
	}
	if r.ContentHash == nil || len(r.Content) == 0 {
		return transport.DeliveryResponse{}, apperr.Internal("issued report has no sealed content")
	}

	key, err := s.store.Upload(ctx, batchID, *r.ContentHash, r.Content)
	if err != nil {
		return transport.DeliveryResponse{}, apperr.Wrap(apperr.KindInternal, "failed to upload report artifact", err)
	}

	if err := s.repo.MarkDelivered(ctx, batchID, key); err != nil {
		if errors.Is(err, repository.ErrImmutable) {
			return transport.DeliveryResponse{}, apperr.Conflict("report was already delivered")
		}
		return transport.DeliveryResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record delivery", err)
	}

	if err := s.auditor.Record(ctx, audit.Record{
		Actor:    actor,
		Action:   "report.delivered",
		Entity:   "report",
		EntityID: batchID,
		Scope:    &scope,
		Data: map[string]any{
			"storage_key": key,
		},
	}); err != nil {
		s.log.Error("failed to audit report delivery", "batch_id", batchID.String(), "error", err)
	}

	s.bus.Publish(ctx, events.ReportDelivered{
		BaseEvent:  events.NewBaseEvent(),
		BatchID:    batchID,
		StorageKey: key,
	})
	return transport.DeliveryResponse{BatchID: batchID, StorageKey: key}, nil
}

// ListExhausted exposes queue entries that burned every emission attempt.
func (s *Service) ListExhausted(ctx context.Context, limit int) (transport.ExhaustedListResponse, error) {
	entries, err := s.repo.ListExhausted(ctx, limit)
	if err != nil {
		return transport.ExhaustedListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list exhausted entries", err)
	}
	resp := transport.ExhaustedListResponse{Items: make([]transport.ExhaustedEntryResponse, 0, len(entries))}
	for _, e := range entries {
		resp.Items = append(resp.Items, transport.ExhaustedEntryResponse{
			ID:          e.ID,
			BatchID:     e.BatchID,
			Attempts:    e.Attempts,
			MaxAttempts: e.MaxAttempts,
			LastError:   e.LastError,
			ExhaustedAt: e.ExhaustedAt,
		})
	}
	return resp, nil
}

func toReportResponse(r repository.Report) transport.ReportResponse {
	return transport.ReportResponse{
		BatchID:         r.BatchID,
		Status:          r.Status,
		ContentHash:     r.ContentHash,
		StorageKey:      r.StorageKey,
		Emergency:       r.Emergency,
		EmergencyReason: r.EmergencyReason,
		IssuedAt:        r.IssuedAt,
		DeliveredAt:     r.DeliveredAt,
		CreatedAt:       r.CreatedAt,
	}
}
