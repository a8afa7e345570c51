package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/audit"
	"compliance_portal_backend/internal/billing/repository"
	"compliance_portal_backend/internal/billing/transport"
	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/apperr"
	"compliance_portal_backend/platform/logger"
)

// ContractorConfirmer drives the contractor payment confirmation edge
// inside the reconcile transaction, so the payment, the batch stamp and the
// state-machine transition commit or roll back as one unit. The returned
// announce function publishes the applied transitions and runs only after
// the transaction commits. Satisfied by the contractor service.
type ContractorConfirmer interface {
	ConfirmPaymentTx(ctx context.Context, tx pgx.Tx, scope tenant.Scope, id, paymentID uuid.UUID) (func(context.Context), error)
}

// Settlement events mark money as received; status events only move the
// payment record. Anything else is recorded and ignored.
var (
	settlementEvents = map[string]bool{
		"PAYMENT_CONFIRMED": true,
		"PAYMENT_RECEIVED":  true,
	}
	statusEvents = map[string]string{
		"PAYMENT_OVERDUE":              "overdue",
		"PAYMENT_REFUNDED":             "refunded",
		"PAYMENT_CHARGEBACK_REQUESTED": "chargeback",
		"PAYMENT_DELETED":              "cancelled",
	}
)

// Reconciler processes gateway webhook deliveries exactly once and applies
// their effects to payments, batches and the contractor state machine.
type Reconciler struct {
	repo      *repository.Repository
	pool      *pgxpool.Pool
	confirmer ContractorConfirmer
	auditor   audit.Recorder
	bus       events.Bus
	log       *logger.Logger
}

func NewReconciler(repo *repository.Repository, pool *pgxpool.Pool, confirmer ContractorConfirmer, auditor audit.Recorder, bus events.Bus, log *logger.Logger) *Reconciler {
	return &Reconciler{repo: repo, pool: pool, confirmer: confirmer, auditor: auditor, bus: bus, log: log}
}

type reconcileResult struct {
	outcome         string
	payment         *repository.Payment
	batchID         *uuid.UUID
	contractSettled bool
	scope           *tenant.Scope
	confirmAnnounce func(context.Context)
}

// ProcessEvent handles one webhook delivery. Redeliveries are detected via
// the event ledger and return the recorded outcome with zero side effects.
// A failure anywhere in the unit rolls back the ledger claim too, so the
// gateway's redelivery retries the whole event.
func (s *Reconciler) ProcessEvent(ctx context.Context, evt transport.GatewayEvent) (string, error) {
	if evt.Payment.ID == "" || evt.Event == "" {
		return "", apperr.BadRequest("webhook event is missing payment id or event type")
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to serialize webhook payload", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var providerEventID *string
	if evt.ID != "" {
		providerEventID = &evt.ID
	}
	eventID, claimed, err := s.repo.InsertEvent(ctx, tx, providerEventID, evt.Payment.ID, evt.Event, payload)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to record webhook event", err)
	}
	if !claimed {
		tx.Rollback(ctx)
		outcome, err := s.repo.GetEventOutcome(ctx, evt.Payment.ID, evt.Event)
		if err != nil {
			return "", apperr.Wrap(apperr.KindInternal, "failed to read recorded outcome", err)
		}
		s.log.ReconcileDecision(evt.Event, evt.Payment.ID, "duplicate:"+outcome)
		return outcome, nil
	}

	res, err := s.reconcile(ctx, tx, evt)
	if err != nil {
		return "", err
	}

	if err := s.repo.MarkEventOutcome(ctx, tx, eventID, res.outcome); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to mark event outcome", err)
	}

	if err := s.auditor.RecordTx(ctx, tx, audit.Record{
		Actor:    audit.SystemActor,
		Action:   "billing.webhook_processed",
		Entity:   "webhook_event",
		EntityID: eventID,
		Scope:    res.scope,
		Data: map[string]any{
			"event_type":         evt.Event,
			"gateway_payment_id": evt.Payment.ID,
			"outcome":            res.outcome,
		},
	}); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to record audit entry", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to commit reconciliation", err)
	}

	s.log.ReconcileDecision(evt.Event, evt.Payment.ID, res.outcome)
	s.publishAnnouncements(ctx, evt, res)
	return res.outcome, nil
}

// reconcile runs the resolution steps inside the claim transaction and
// returns the outcome to record. It never returns an error for an event
// that merely failed to match; those are held as unreconciled.
func (s *Reconciler) reconcile(ctx context.Context, tx pgx.Tx, evt transport.GatewayEvent) (reconcileResult, error) {
	if status, ok := statusEvents[evt.Event]; ok {
		return s.applyStatusOnly(ctx, tx, evt, status)
	}
	if !settlementEvents[evt.Event] {
		return reconcileResult{outcome: repository.OutcomeIgnored}, nil
	}

	ref, refErr := ParseExternalReference(evt.Payment.ExternalReference)
	if refErr != nil {
		s.log.Warn("unparsable external reference, falling back to gateway id",
			"reference", evt.Payment.ExternalReference, "error", refErr)
	}

	var res reconcileResult
	res.outcome = repository.OutcomeApplied

	if ref.PaymentID != nil {
		p, err := s.repo.GetPaymentForUpdate(ctx, tx, *ref.PaymentID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to load referenced payment", err)
		}
		if err == nil {
			res.payment = &p
		}
	}
	if res.payment == nil {
		p, err := s.repo.GetPaymentByGatewayIDForUpdate(ctx, tx, evt.Payment.ID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to load payment by gateway id", err)
		}
		if err == nil {
			res.payment = &p
		}
	}

	if ref.BatchID != nil {
		b, err := s.repo.FindBatchByID(ctx, tx, *ref.BatchID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to load referenced batch", err)
		}
		if err == nil {
			res.batchID = &b.ID
			res.scope = &b.Scope
		}
	}
	if res.batchID == nil && res.payment != nil {
		scope, err := s.repo.GetContractorScope(ctx, tx, res.payment.ContractorID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to load contractor scope", err)
		}
		if err == nil {
			res.scope = &scope
			b, err := s.repo.FindAwaitingPaymentBatch(ctx, tx, scope)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to find awaiting batch", err)
			}
			if err == nil {
				res.batchID = &b.ID
			}
		}
	}

	if res.payment == nil && res.batchID == nil {
		res.outcome = repository.OutcomeUnreconciled
		return res, nil
	}

	paidAt := parseGatewayDate(evt.Payment.ConfirmedDate, evt.Payment.PaymentDate)
	method := normalizeMethod(evt.Payment.BillingType)

	if res.payment != nil {
		p, err := s.repo.MarkPaymentPaid(ctx, tx, repository.MarkPaidParams{
			ID:     res.payment.ID,
			Method: method,
			PaidAt: paidAt,
		})
		if err != nil {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to mark payment paid", err)
		}
		res.payment = &p

		if p.ContractID != nil {
			settled, err := s.contractSettled(ctx, tx, *p.ContractID)
			if err != nil {
				return reconcileResult{}, err
			}
			res.contractSettled = settled
		}
	}

	if res.batchID != nil {
		if err := s.repo.MarkBatchPaid(ctx, tx, *res.batchID, method, paidAt); err != nil {
			return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to mark batch paid", err)
		}
	}

	if res.contractSettled && res.scope != nil {
		announce, err := s.confirmer.ConfirmPaymentTx(ctx, tx, *res.scope, res.payment.ContractorID, res.payment.ID)
		if err != nil {
			return reconcileResult{}, err
		}
		res.confirmAnnounce = announce
	}

	return res, nil
}

func (s *Reconciler) applyStatusOnly(ctx context.Context, tx pgx.Tx, evt transport.GatewayEvent, status string) (reconcileResult, error) {
	p, err := s.repo.GetPaymentByGatewayIDForUpdate(ctx, tx, evt.Payment.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return reconcileResult{outcome: repository.OutcomeIgnored}, nil
		}
		return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to load payment", err)
	}
	if err := s.repo.UpdatePaymentStatus(ctx, tx, p.ID, status); err != nil {
		return reconcileResult{}, apperr.Wrap(apperr.KindInternal, "failed to update payment status", err)
	}
	return reconcileResult{outcome: repository.OutcomeApplied, payment: &p}, nil
}

func (s *Reconciler) contractSettled(ctx context.Context, tx pgx.Tx, contractID uuid.UUID) (bool, error) {
	contract, err := s.repo.GetContract(ctx, tx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Wrap(apperr.KindInternal, "failed to load contract", err)
	}
	paid, err := s.repo.SumPaidForContract(ctx, tx, contractID)
	if err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to sum contract payments", err)
	}
	return paid >= contract.TotalValueCents, nil
}

// publishAnnouncements runs the post-commit effects: domain events for the
// outcome and the contractor transition announcements the confirmer
// deferred until commit.
func (s *Reconciler) publishAnnouncements(ctx context.Context, evt transport.GatewayEvent, res reconcileResult) {
	switch res.outcome {
	case repository.OutcomeUnreconciled:
		s.bus.Publish(ctx, events.WebhookUnreconciled{
			BaseEvent:         events.NewBaseEvent(),
			GatewayPaymentID:  evt.Payment.ID,
			EventType:         evt.Event,
			ExternalReference: evt.Payment.ExternalReference,
		})
	case repository.OutcomeApplied:
		if res.payment == nil {
			return
		}
		s.bus.Publish(ctx, events.PaymentReconciled{
			BaseEvent:        events.NewBaseEvent(),
			PaymentID:        res.payment.ID,
			ContractorID:     res.payment.ContractorID,
			BatchID:          res.batchID,
			GatewayPaymentID: evt.Payment.ID,
			EventType:        evt.Event,
			ContractSettled:  res.contractSettled,
		})
		if res.confirmAnnounce != nil {
			res.confirmAnnounce(ctx)
		}
	}
}

func parseGatewayDate(candidates ...string) time.Time {
	layouts := []string{"2006-01-02", time.RFC3339}
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

func normalizeMethod(billingType string) string {
	switch billingType {
	case "PIX":
		return "pix"
	case "BOLETO":
		return "boleto"
	case "CREDIT_CARD":
		return "credit_card"
	default:
		return "other"
	}
}
