package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/batch/domain"
	"compliance_portal_backend/internal/batch/repository"
	"compliance_portal_backend/internal/batch/transport"
	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/logger"
)

// ReportGateway is the slice of the report context the batch lifecycle
// drives: the placeholder reservation at activation and emission admission
// at conclusion. Both run inside the batch transaction. Satisfied by the
// report gateway.
type ReportGateway interface {
	Reserve(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error
	Admit(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error
}

type Service struct {
	repo    *repository.Repository
	pool    *pgxpool.Pool
	reports ReportGateway
	auditor audit.Recorder
	bus     events.Bus
	log     *logger.Logger
}

func New(repo *repository.Repository, pool *pgxpool.Pool, reports ReportGateway, auditor audit.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, pool: pool, reports: reports, auditor: auditor, bus: bus, log: log}
}

// Activate releases a new evaluation batch: sequence assignment under the
// org advisory lock, batch insert, bulk evaluation enrollment and the
// report placeholder, all in one transaction. A scope with zero eligible
// employees persists nothing.
func (s *Service) Activate(ctx context.Context, scope tenant.Scope, actor audit.Actor, req transport.ActivateBatchRequest) (transport.BatchResponse, error) {
	if err := scope.Validate(); err != nil {
		return transport.BatchResponse{}, err
	}
	if req.PaymentExempt && actor.Role != httpkit.RoleAdmin {
		return transport.BatchResponse{}, apperr.Forbidden("only administrators may exempt a batch from payment")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	active, err := s.repo.HasActiveContractor(ctx, tx, scope)
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check contractor", err)
	}
	if !active {
		return transport.BatchResponse{}, apperr.Forbidden("organization has no active contractor")
	}

	seq, err := s.repo.NextSequenceNumber(ctx, tx, scope)
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to assign sequence number", err)
	}

	eligible, err := s.repo.EligibleEmployees(ctx, tx, scope, seq)
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list eligible employees", err)
	}
	if len(eligible) == 0 {
		return transport.BatchResponse{}, apperr.Validation("no employees are eligible for a new batch")
	}

	paymentStatus := "awaiting_payment"
	if req.PaymentExempt {
		paymentStatus = "exempt"
	}

	b, err := s.repo.CreateBatch(ctx, tx, repository.CreateBatchParams{
		Code:           batchCode(scope, seq),
		Scope:          scope,
		SequenceNumber: seq,
		PaymentStatus:  paymentStatus,
		ReleasedBy:     actor.ID,
	})
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create batch", err)
	}

	employeeIDs := make([]uuid.UUID, 0, len(eligible))
	for _, e := range eligible {
		employeeIDs = append(employeeIDs, e.ID)
	}
	inserted, err := s.repo.BulkInsertEvaluations(ctx, tx, b.ID, employeeIDs)
	if err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to enroll employees", err)
	}

	if err := s.reports.Reserve(ctx, tx, b.ID); err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to reserve report", err)
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "batch.activated",
		Entity:   "evaluation_batch",
		EntityID: b.ID,
		Scope:    &scope,
		Data: map[string]any{
			"sequence_number": seq,
			"evaluations":     inserted,
			"payment_status":  paymentStatus,
		},
	}); err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to commit activation", err)
	}

	s.log.StateTransition("batch", b.ID.String(), "", string(domain.BatchActive), string(actor.Role))
	s.bus.Publish(ctx, events.BatchActivated{
		BaseEvent:      events.NewBaseEvent(),
		BatchID:        b.ID,
		SequenceNumber: seq,
		Evaluations:    int(inserted),
		ActorID:        actor.ID,
	})

	resp := toBatchResponse(b)
	resp.Evaluations = int(inserted)
	return resp, nil
}

// Inactivate removes one evaluation from a batch. A second consecutive
// inactivation of the same employee is blocked unless forced with a long
// written justification; every inactivation is audited either way.
func (s *Service) Inactivate(ctx context.Context, scope tenant.Scope, actor audit.Actor, batchID, evaluationID uuid.UUID, req transport.InactivateEvaluationRequest) (transport.EvaluationResponse, error) {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < domain.MinInactivationReasonLen {
		return transport.EvaluationResponse{}, apperr.Validation("inactivation requires a reason of at least 10 characters")
	}
	if req.Force {
		if actor.Role == httpkit.RoleIssuer {
			return transport.EvaluationResponse{}, apperr.Forbidden("issuers may not force inactivation")
		}
		if len(reason) < domain.MinForcedReasonLen {
			return transport.EvaluationResponse{}, apperr.Validation("forced inactivation requires a reason of at least 50 characters")
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EvaluationResponse{}, apperr.NotFound("batch not found")
		}
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load batch", err)
	}
	if b.IssuedAt != nil {
		return transport.EvaluationResponse{}, apperr.Conflict("batch report has been issued; the batch is immutable")
	}

	ev, err := s.repo.GetEvaluationForUpdate(ctx, tx, b.ID, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EvaluationResponse{}, apperr.NotFound("evaluation not found in this batch")
		}
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load evaluation", err)
	}
	switch ev.Status {
	case "inactivated":
		return transport.EvaluationResponse{}, apperr.Conflict("evaluation is already inactivated")
	case "concluded":
		return transport.EvaluationResponse{}, apperr.InvalidTransition("a concluded evaluation cannot be inactivated")
	}

	history, err := s.repo.InactivationHistory(ctx, tx, ev.EmployeeID)
	if err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load inactivation history", err)
	}
	guard := domain.CheckConsecutiveInactivations(history, b.SequenceNumber)
	if !guard.Allowed && !req.Force {
		return transport.EvaluationResponse{}, apperr.Blocked("employee was inactivated in the previous batch", map[string]any{
			"allowed":           false,
			"forceable":         true,
			"consecutive_count": guard.ConsecutiveCount,
			"reason":            "consecutive inactivations require a forced override",
		})
	}

	if err := s.repo.MarkEvaluationInactivated(ctx, tx, ev.ID, reason); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to inactivate evaluation", err)
	}

	newStatus, tally, err := s.recomputeAggregate(ctx, tx, b)
	if err != nil {
		return transport.EvaluationResponse{}, err
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "batch.evaluation_inactivated",
		Entity:   "evaluation",
		EntityID: ev.ID,
		Scope:    &scope,
		Data: map[string]any{
			"batch_id":          b.ID,
			"employee_id":       ev.EmployeeID,
			"reason":            reason,
			"forced":            req.Force,
			"consecutive_count": guard.ConsecutiveCount,
			"batch_status":      string(newStatus),
		},
	}); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to commit inactivation", err)
	}

	s.bus.Publish(ctx, events.EvaluationInactivated{
		BaseEvent:    events.NewBaseEvent(),
		EvaluationID: ev.ID,
		BatchID:      b.ID,
		EmployeeID:   ev.EmployeeID,
		Forced:       req.Force,
		ActorID:      actor.ID,
	})
	s.publishBatchTransition(ctx, b, newStatus, tally)

	now := time.Now()
	ev.Status = "inactivated"
	ev.InactivationReason = &reason
	ev.InactivatedAt = &now
	return toEvaluationResponse(ev), nil
}

// Conclude marks one evaluation as finished, stamps the employee's
// evaluation index to the batch sequence and recomputes the aggregate.
func (s *Service) Conclude(ctx context.Context, scope tenant.Scope, actor audit.Actor, batchID, evaluationID uuid.UUID) (transport.EvaluationResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EvaluationResponse{}, apperr.NotFound("batch not found")
		}
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load batch", err)
	}
	if b.Status != domain.BatchActive {
		return transport.EvaluationResponse{}, apperr.InvalidTransition(fmt.Sprintf("batch is %s, evaluations can only conclude while active", b.Status))
	}

	ev, err := s.repo.GetEvaluationForUpdate(ctx, tx, b.ID, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EvaluationResponse{}, apperr.NotFound("evaluation not found in this batch")
		}
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load evaluation", err)
	}
	switch ev.Status {
	case "concluded":
		return transport.EvaluationResponse{}, apperr.Conflict("evaluation is already concluded")
	case "inactivated":
		return transport.EvaluationResponse{}, apperr.InvalidTransition("an inactivated evaluation cannot conclude")
	}

	if err := s.repo.MarkEvaluationConcluded(ctx, tx, ev.ID); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to conclude evaluation", err)
	}
	if err := s.repo.StampEmployeeEvaluation(ctx, tx, ev.EmployeeID, b.SequenceNumber); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to stamp employee", err)
	}

	newStatus, tally, err := s.recomputeAggregate(ctx, tx, b)
	if err != nil {
		return transport.EvaluationResponse{}, err
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "batch.evaluation_concluded",
		Entity:   "evaluation",
		EntityID: ev.ID,
		Scope:    &scope,
		Data: map[string]any{
			"batch_id":     b.ID,
			"employee_id":  ev.EmployeeID,
			"batch_status": string(newStatus),
		},
	}); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return transport.EvaluationResponse{}, apperr.Wrap(apperr.KindInternal, "failed to commit conclusion", err)
	}

	s.publishBatchTransition(ctx, b, newStatus, tally)

	now := time.Now()
	ev.Status = "concluded"
	ev.ConcludedAt = &now
	return toEvaluationResponse(ev), nil
}

// Reset clears an evaluation's responses so the employee can answer again.
// The reset ledger's unique key allows this at most once per evaluation per
// batch; a second request fails with a conflict.
func (s *Service) Reset(ctx context.Context, scope tenant.Scope, actor audit.Actor, batchID, evaluationID uuid.UUID, req transport.ResetEvaluationRequest) error {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) < domain.MinInactivationReasonLen {
		return apperr.Validation("reset requires a reason of at least 10 characters")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	b, err := s.repo.GetByIDForUpdate(ctx, tx, scope, batchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("batch not found")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load batch", err)
	}
	if b.IssuedAt != nil {
		return apperr.Conflict("batch report has been issued; the batch is immutable")
	}

	ev, err := s.repo.GetEvaluationForUpdate(ctx, tx, b.ID, evaluationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("evaluation not found in this batch")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to load evaluation", err)
	}
	if ev.Status == "inactivated" {
		return apperr.InvalidTransition("an inactivated evaluation cannot be reset")
	}

	already, err := s.repo.HasReset(ctx, tx, ev.ID, b.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to check reset ledger", err)
	}
	if already {
		return apperr.Conflict("evaluation was already reset once in this batch")
	}

	cleared, err := s.repo.ClearResponses(ctx, tx, ev.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to clear responses", err)
	}

	if err := s.repo.InsertReset(ctx, tx, repository.InsertResetParams{
		EvaluationID:     ev.ID,
		BatchID:          b.ID,
		RequestedBy:      actor.ID,
		Reason:           reason,
		ResponsesCleared: cleared,
	}); err != nil {
		if errors.Is(err, repository.ErrAlreadyReset) {
			return apperr.Conflict("evaluation was already reset once in this batch")
		}
		return apperr.Wrap(apperr.KindInternal, "failed to record reset", err)
	}

	newStatus, tally, err := s.recomputeAggregate(ctx, tx, b)
	if err != nil {
		return err
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "batch.evaluation_reset",
		Entity:   "evaluation",
		EntityID: ev.ID,
		Scope:    &scope,
		Data: map[string]any{
			"batch_id":          b.ID,
			"reason":            reason,
			"responses_cleared": cleared,
		},
	}); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to commit reset", err)
	}

	s.bus.Publish(ctx, events.EvaluationReset{
		BaseEvent:        events.NewBaseEvent(),
		EvaluationID:     ev.ID,
		BatchID:          b.ID,
		ResponsesCleared: cleared,
		ActorID:          actor.ID,
	})
	s.publishBatchTransition(ctx, b, newStatus, tally)
	return nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (transport.BatchResponse, error) {
	b, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.BatchResponse{}, apperr.NotFound("batch not found")
		}
		return transport.BatchResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load batch", err)
	}
	return toBatchResponse(b), nil
}

func (s *Service) List(ctx context.Context, scope tenant.Scope, limit, offset int) (transport.BatchListResponse, error) {
	items, err := s.repo.List(ctx, scope, limit, offset)
	if err != nil {
		return transport.BatchListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list batches", err)
	}
	resp := transport.BatchListResponse{Items: make([]transport.BatchResponse, 0, len(items))}
	for _, b := range items {
		resp.Items = append(resp.Items, toBatchResponse(b))
	}
	return resp, nil
}

func (s *Service) ListEvaluations(ctx context.Context, scope tenant.Scope, batchID uuid.UUID) (transport.EvaluationListResponse, error) {
	if _, err := s.repo.GetByID(ctx, scope, batchID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.EvaluationListResponse{}, apperr.NotFound("batch not found")
		}
		return transport.EvaluationListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load batch", err)
	}
	items, err := s.repo.ListEvaluations(ctx, batchID)
	if err != nil {
		return transport.EvaluationListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list evaluations", err)
	}
	resp := transport.EvaluationListResponse{Items: make([]transport.EvaluationResponse, 0, len(items))}
	for _, e := range items {
		resp.Items = append(resp.Items, toEvaluationResponse(e))
	}
	return resp, nil
}

// recomputeAggregate re-derives the batch status from the tally inside the
// mutating transaction and admits the batch to the emission queue when it
// turns concluded.
func (s *Service) recomputeAggregate(ctx context.Context, tx pgx.Tx, b repository.Batch) (domain.BatchStatus, domain.Tally, error) {
	tally, err := s.repo.Tally(ctx, tx, b.ID)
	if err != nil {
		return "", domain.Tally{}, apperr.Wrap(apperr.KindInternal, "failed to tally evaluations", err)
	}
	newStatus := domain.AggregateStatus(tally)
	if newStatus == b.Status {
		return newStatus, tally, nil
	}
	if err := s.repo.UpdateBatchStatus(ctx, tx, b.ID, newStatus); err != nil {
		return "", domain.Tally{}, apperr.Wrap(apperr.KindInternal, "failed to update batch status", err)
	}
	if newStatus == domain.BatchConcluded {
		if err := s.reports.Admit(ctx, tx, b.ID); err != nil {
			return "", domain.Tally{}, apperr.Wrap(apperr.KindInternal, "failed to admit batch for emission", err)
		}
	}
	return newStatus, tally, nil
}

func (s *Service) publishBatchTransition(ctx context.Context, b repository.Batch, newStatus domain.BatchStatus, tally domain.Tally) {
	if newStatus == b.Status {
		return
	}
	s.log.StateTransition("batch", b.ID.String(), string(b.Status), string(newStatus), "system")
	if newStatus == domain.BatchConcluded {
		var releasedBy uuid.UUID
		if b.ReleasedBy != nil {
			releasedBy = *b.ReleasedBy
		}
		s.bus.Publish(ctx, events.BatchConcluded{
			BaseEvent:   events.NewBaseEvent(),
			BatchID:     b.ID,
			Code:        b.Code,
			ReleasedBy:  releasedBy,
			Evaluations: tally.Released,
		})
	}
}

// batchCode builds the human-facing batch identifier, prefixed by silo.
func batchCode(scope tenant.Scope, seq int) string {
	prefix := "CL"
	if scope.EntityID != nil {
		prefix = "EN"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, scope.OwnerID().String()[:8], seq)
}

func toBatchResponse(b repository.Batch) transport.BatchResponse {
	return transport.BatchResponse{
		ID:             b.ID,
		Code:           b.Code,
		ClinicID:       b.Scope.ClinicID,
		EntityID:       b.Scope.EntityID,
		SequenceNumber: b.SequenceNumber,
		Status:         string(b.Status),
		PaymentStatus:  b.PaymentStatus,
		PaymentMethod:  b.PaymentMethod,
		PaidAt:         b.PaidAt,
		CreatedAt:      b.CreatedAt,
		ConcludedAt:    b.ConcludedAt,
		IssuedAt:       b.IssuedAt,
	}
}

func toEvaluationResponse(e repository.Evaluation) transport.EvaluationResponse {
	return transport.EvaluationResponse{
		ID:                 e.ID,
		BatchID:            e.BatchID,
		EmployeeID:         e.EmployeeID,
		Status:             e.Status,
		InactivationReason: e.InactivationReason,
		InactivatedAt:      e.InactivatedAt,
		ConcludedAt:        e.ConcludedAt,
	}
}
