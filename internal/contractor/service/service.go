package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/contractor/domain"
	"compliance_portal_backend/internal/contractor/repository"
	"compliance_portal_backend/internal/contractor/transport"
	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/logger"
	"compliance_portal_backend/platform/phone"
)

// minExemptionReasonLen applies to forced activation of a contractor whose
// preconditions are not all met.
const minExemptionReasonLen = 10

type Service struct {
	repo    *repository.Repository
	pool    *pgxpool.Pool
	auditor audit.Recorder
	bus     events.Bus
	log     *logger.Logger
}

func New(repo *repository.Repository, pool *pgxpool.Pool, auditor audit.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, pool: pool, auditor: auditor, bus: bus, log: log}
}

func (s *Service) Signup(ctx context.Context, scope tenant.Scope, req transport.SignupRequest) (transport.ContractorResponse, error) {
	if err := scope.Validate(); err != nil {
		return transport.ContractorResponse{}, err
	}

	if _, err := s.repo.GetByTaxID(ctx, scope, req.TaxID); err == nil {
		return transport.ContractorResponse{}, apperr.Conflict("a contractor with this tax id already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check tax id", err)
	}

	c, err := s.repo.Create(ctx, repository.CreateParams{
		Scope:     scope,
		LegalName: strings.TrimSpace(req.LegalName),
		TradeName: req.TradeName,
		TaxID:     req.TaxID,
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     phone.NormalizeE164(req.Phone),
	})
	if err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to create contractor", err)
	}

	s.log.StateTransition("contractor", c.ID.String(), "", string(c.Status), "system")
	return toResponse(c), nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, id uuid.UUID) (transport.ContractorResponse, error) {
	c, err := s.repo.GetByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractorResponse{}, apperr.NotFound("contractor not found")
		}
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contractor", err)
	}
	return toResponse(c), nil
}

func (s *Service) List(ctx context.Context, scope tenant.Scope, filter repository.ListFilter) (transport.ListResponse, error) {
	items, err := s.repo.List(ctx, scope, filter)
	if err != nil {
		return transport.ListResponse{}, apperr.Wrap(apperr.KindInternal, "failed to list contractors", err)
	}
	resp := transport.ListResponse{Items: make([]transport.ContractorResponse, 0, len(items))}
	for _, c := range items {
		resp.Items = append(resp.Items, toResponse(c))
	}
	return resp, nil
}

// Transition moves a contractor along one edge of the onboarding workflow.
// The row is locked for the duration so concurrent transitions on the same
// contractor serialize instead of racing past the guard.
func (s *Service) Transition(ctx context.Context, scope tenant.Scope, actor audit.Actor, id uuid.UUID, req transport.TransitionRequest) (transport.ContractorResponse, error) {
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		return transport.ContractorResponse{}, apperr.Validation("unknown status").WithDetails(map[string]string{"status": req.Status})
	}

	tctx := domain.TransitionContext{
		ContractID: req.ContractID,
		PaymentID:  req.PaymentID,
		Reason:     req.Reason,
	}
	if actor.ID != uuid.Nil {
		actorID := actor.ID
		tctx.ActorID = &actorID
	}

	c, err := s.transition(ctx, scope, actor, id, next, tctx)
	if err != nil {
		return transport.ContractorResponse{}, err
	}
	return toResponse(c), nil
}

// ConfirmPaymentTx is the edge driven by the payment reconciler. It runs
// inside the reconciler's transaction so the payment, the batch stamp and
// the contractor transition commit or roll back as one unit. It advances
// awaiting_payment through payment_confirmed and then takes the automatic
// approval edge. A contractor already at or past payment_confirmed is left
// untouched, keeping settlement redeliveries idempotent.
//
// The returned announce function logs and publishes the applied transitions
// and must be called only after the caller's transaction commits.
func (s *Service) ConfirmPaymentTx(ctx context.Context, tx pgx.Tx, scope tenant.Scope, id, paymentID uuid.UUID) (func(context.Context), error) {
	current, err := s.repo.GetByIDForUpdate(ctx, tx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("contractor not found")
		}
		return nil, apperr.Wrap(apperr.KindInternal, "failed to load contractor", err)
	}
	switch current.Status {
	case domain.StatusPaymentConfirmed, domain.StatusApproved:
		return func(context.Context) {}, nil
	}

	tctx := domain.TransitionContext{PaymentID: &paymentID}
	c, confirmAnnounce, err := s.transitionTx(ctx, tx, scope, audit.SystemActor, id, domain.StatusPaymentConfirmed, tctx)
	if err != nil {
		return nil, err
	}
	_, approveAnnounce, err := s.transitionTx(ctx, tx, scope, audit.SystemActor, c.ID, domain.StatusApproved, domain.TransitionContext{})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		confirmAnnounce(ctx)
		approveAnnounce(ctx)
	}, nil
}

func (s *Service) transition(ctx context.Context, scope tenant.Scope, actor audit.Actor, id uuid.UUID, next domain.Status, tctx domain.TransitionContext) (repository.Contractor, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	updated, announce, err := s.transitionTx(ctx, tx, scope, actor, id, next, tctx)
	if err != nil {
		return repository.Contractor{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return repository.Contractor{}, apperr.Wrap(apperr.KindInternal, "failed to commit transition", err)
	}

	announce(ctx)
	return updated, nil
}

// transitionTx applies one state-machine edge inside the caller's
// transaction: row lock, guard check, update and the audit record. Logging
// and event publication are deferred to the returned announce function so
// they happen only for committed transitions.
func (s *Service) transitionTx(ctx context.Context, tx pgx.Tx, scope tenant.Scope, actor audit.Actor, id uuid.UUID, next domain.Status, tctx domain.TransitionContext) (repository.Contractor, func(context.Context), error) {
	current, err := s.repo.GetByIDForUpdate(ctx, tx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Contractor{}, nil, apperr.NotFound("contractor not found")
		}
		return repository.Contractor{}, nil, apperr.Wrap(apperr.KindInternal, "failed to load contractor", err)
	}

	if err := domain.CanTransition(current.Status, next, tctx); err != nil {
		return repository.Contractor{}, nil, apperr.InvalidTransition(err.Error())
	}

	params := repository.TransitionParams{
		ID:         current.ID,
		Status:     next,
		ContractID: tctx.ContractID,
		PaymentID:  tctx.PaymentID,
	}
	if reason := strings.TrimSpace(tctx.Reason); reason != "" {
		params.StatusReason = &reason
	}

	updated, err := s.repo.ApplyTransition(ctx, tx, params)
	if err != nil {
		return repository.Contractor{}, nil, apperr.Wrap(apperr.KindInternal, "failed to apply transition", err)
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "contractor.status_changed",
		Entity:   "contractor",
		EntityID: updated.ID,
		Scope:    &scope,
		Data: map[string]any{
			"from":   string(current.Status),
			"to":     string(next),
			"reason": tctx.Reason,
		},
	}); err != nil {
		return repository.Contractor{}, nil, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	from := current.Status
	announce := func(ctx context.Context) {
		s.log.StateTransition("contractor", updated.ID.String(), string(from), string(next), string(actor.Role))
		s.bus.Publish(ctx, events.ContractorStatusChanged{
			BaseEvent:    events.NewBaseEvent(),
			ContractorID: updated.ID,
			From:         string(from),
			To:           string(next),
			ActorID:      tctx.ActorID,
			Reason:       tctx.Reason,
		})
	}
	return updated, announce, nil
}

func (s *Service) Reject(ctx context.Context, scope tenant.Scope, actor audit.Actor, id uuid.UUID, req transport.RejectRequest) (transport.ContractorResponse, error) {
	actorID := actor.ID
	c, err := s.transition(ctx, scope, actor, id, domain.StatusRejected, domain.TransitionContext{
		ActorID: &actorID,
		Reason:  req.Reason,
	})
	if err != nil {
		return transport.ContractorResponse{}, err
	}
	return toResponse(c), nil
}

func (s *Service) AcceptContract(ctx context.Context, scope tenant.Scope, actor audit.Actor, id uuid.UUID) (transport.ContractorResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetByIDForUpdate(ctx, tx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractorResponse{}, apperr.NotFound("contractor not found")
		}
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contractor", err)
	}
	if c.ContractID == nil {
		return transport.ContractorResponse{}, apperr.InvalidTransition("contractor has no generated contract to accept")
	}
	if err := s.repo.MarkContractAccepted(ctx, tx, c.ID); err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to accept contract", err)
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   "contractor.contract_accepted",
		Entity:   "contractor",
		EntityID: c.ID,
		Scope:    &scope,
	}); err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to commit", err)
	}

	c.ContractAccepted = true
	return toResponse(c), nil
}

// Activate turns an approved contractor live. Admins may force activation
// past unmet preconditions with a written exemption reason; the exemption is
// always audited together with the check it skipped.
func (s *Service) Activate(ctx context.Context, scope tenant.Scope, actor audit.Actor, id uuid.UUID, req transport.ActivateRequest) (transport.ContractorResponse, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetByIDForUpdate(ctx, tx, scope, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.ContractorResponse{}, apperr.NotFound("contractor not found")
		}
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load contractor", err)
	}
	if c.Active {
		return transport.ContractorResponse{}, apperr.Conflict("contractor is already active")
	}

	var exemption string
	if err := domain.CanActivate(c.Domain()); err != nil {
		if !req.Force {
			return transport.ContractorResponse{}, apperr.Blocked("contractor does not meet activation requirements", map[string]any{
				"reason":    err.Error(),
				"forceable": true,
			})
		}
		if actor.Role != httpkit.RoleAdmin {
			return transport.ContractorResponse{}, apperr.Forbidden("only administrators may force activation")
		}
		if len(strings.TrimSpace(req.Reason)) < minExemptionReasonLen {
			return transport.ContractorResponse{}, apperr.Validation("forced activation requires a reason").WithDetails(map[string]string{
				"reason": "at least 10 characters",
			})
		}
		exemption = err.Error()
	}

	updated, err := s.repo.Activate(ctx, tx, c.ID)
	if err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to activate contractor", err)
	}

	action := "contractor.activated"
	data := map[string]any{}
	if exemption != "" {
		action = "contractor.activated_with_exemption"
		data["exemption_reason"] = req.Reason
		data["unmet_precondition"] = exemption
	}
	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    actor,
		Action:   action,
		Entity:   "contractor",
		EntityID: updated.ID,
		Scope:    &scope,
		Data:     data,
	}); err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return transport.ContractorResponse{}, apperr.Wrap(apperr.KindInternal, "failed to commit activation", err)
	}

	actorID := actor.ID
	s.bus.Publish(ctx, events.ContractorActivated{
		BaseEvent:    events.NewBaseEvent(),
		ContractorID: updated.ID,
		Exemption:    exemption != "",
		ActorID:      &actorID,
	})
	return toResponse(updated), nil
}

func toResponse(c repository.Contractor) transport.ContractorResponse {
	return transport.ContractorResponse{
		ID:               c.ID,
		ClinicID:         c.Scope.ClinicID,
		EntityID:         c.Scope.EntityID,
		LegalName:        c.LegalName,
		TradeName:        c.TradeName,
		TaxID:            c.TaxID,
		Email:            c.Email,
		Phone:            c.Phone,
		Status:           string(c.Status),
		StatusReason:     c.StatusReason,
		ContractID:       c.ContractID,
		ContractAccepted: c.ContractAccepted,
		PaymentConfirmed: c.PaymentConfirmed,
		Active:           c.Active,
		ActivatedAt:      c.ActivatedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
