package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/tenant"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyProcessed = errors.New("webhook event already processed")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -----------------------------------------------------------------------------
// Webhook event ledger
// -----------------------------------------------------------------------------

// Outcome values recorded on the webhook event ledger.
const (
	OutcomeReceived     = "received"
	OutcomeApplied      = "applied"
	OutcomeIgnored      = "ignored"
	OutcomeUnreconciled = "unreconciled"
)

type WebhookEvent struct {
	ID               uuid.UUID
	ProviderEventID  *string
	GatewayPaymentID string
	EventType        string
	Outcome          string
	ProcessedAt      time.Time
}

const insertEventQuery = `
	INSERT INTO webhook_events (provider_event_id, gateway_payment_id, event_type, payload, outcome)
	VALUES ($1, $2, $3, $4, 'received')
	ON CONFLICT (gateway_payment_id, event_type) DO NOTHING
	RETURNING id`

// InsertEvent records a webhook delivery in the idempotency ledger. The
// unique key (gateway_payment_id, event_type) means a redelivery inserts
// nothing; the boolean reports whether this call claimed the event.
func (r *Repository) InsertEvent(ctx context.Context, tx pgx.Tx, providerEventID *string, gatewayPaymentID, eventType string, payload []byte) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := tx.QueryRow(ctx, insertEventQuery, providerEventID, gatewayPaymentID, eventType, payload).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// GetEventOutcome returns the recorded outcome of an already processed event.
func (r *Repository) GetEventOutcome(ctx context.Context, gatewayPaymentID, eventType string) (string, error) {
	var outcome string
	err := r.pool.QueryRow(ctx, `
		SELECT outcome FROM webhook_events
		WHERE gateway_payment_id = $1 AND event_type = $2
	`, gatewayPaymentID, eventType).Scan(&outcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return outcome, nil
}

func (r *Repository) MarkEventOutcome(ctx context.Context, tx pgx.Tx, id uuid.UUID, outcome string) error {
	_, err := tx.Exec(ctx, `
		UPDATE webhook_events SET outcome = $2, processed_at = now() WHERE id = $1
	`, id, outcome)
	return err
}

// ListUnreconciled returns held events awaiting manual resolution.
func (r *Repository) ListUnreconciled(ctx context.Context, limit int) ([]WebhookEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_event_id, gateway_payment_id, event_type, outcome, processed_at
		FROM webhook_events
		WHERE outcome = 'unreconciled'
		ORDER BY processed_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]WebhookEvent, 0)
	for rows.Next() {
		var e WebhookEvent
		if err := rows.Scan(&e.ID, &e.ProviderEventID, &e.GatewayPaymentID, &e.EventType, &e.Outcome, &e.ProcessedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// -----------------------------------------------------------------------------
// Payments
// -----------------------------------------------------------------------------

type Payment struct {
	ID               uuid.UUID
	ContractorID     uuid.UUID
	ContractID       *uuid.UUID
	GatewayPaymentID string
	AmountCents      int64
	Method           *string
	Status           string
	PaidAt           *time.Time
	CreatedAt        time.Time
}

const paymentColumns = `
	id, contractor_id, contract_id, gateway_payment_id, amount_cents, method, status, paid_at, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.ContractorID, &p.ContractID, &p.GatewayPaymentID,
		&p.AmountCents, &p.Method, &p.Status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrNotFound
		}
		return Payment{}, err
	}
	return p, nil
}

// GetPaymentByGatewayIDForUpdate locks the payment row for the reconciling
// transaction.
func (r *Repository) GetPaymentByGatewayIDForUpdate(ctx context.Context, tx pgx.Tx, gatewayPaymentID string) (Payment, error) {
	row := tx.QueryRow(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE gateway_payment_id = $1
		FOR UPDATE
	`, gatewayPaymentID)
	return scanPayment(row)
}

func (r *Repository) GetPaymentForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Payment, error) {
	row := tx.QueryRow(ctx, `
		SELECT`+paymentColumns+`
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanPayment(row)
}

type MarkPaidParams struct {
	ID     uuid.UUID
	Method string
	PaidAt time.Time
}

func (r *Repository) MarkPaymentPaid(ctx context.Context, tx pgx.Tx, params MarkPaidParams) (Payment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE payments
		SET status = 'paid', method = $2, paid_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING`+paymentColumns,
		params.ID, params.Method, params.PaidAt,
	)
	return scanPayment(row)
}

func (r *Repository) UpdatePaymentStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE payments SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// SumPaidForContract totals settled payments against a contract.
func (r *Repository) SumPaidForContract(ctx context.Context, tx pgx.Tx, contractID uuid.UUID) (int64, error) {
	var total int64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE contract_id = $1 AND status = 'paid'
	`, contractID).Scan(&total)
	return total, err
}

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

type Contract struct {
	ID              uuid.UUID
	ContractorID    uuid.UUID
	Plan            string
	Headcount       int
	TotalValueCents int64
	Status          string
	AcceptedAt      *time.Time
	CreatedAt       time.Time
}

func (r *Repository) GetContract(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Contract, error) {
	var c Contract
	err := tx.QueryRow(ctx, `
		SELECT id, contractor_id, plan, headcount, total_value_cents, status, accepted_at, created_at
		FROM contracts
		WHERE id = $1
	`, id).Scan(&c.ID, &c.ContractorID, &c.Plan, &c.Headcount, &c.TotalValueCents, &c.Status, &c.AcceptedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, err
	}
	return c, nil
}

// GetContractorScope reads the tenant silo a contractor belongs to.
func (r *Repository) GetContractorScope(ctx context.Context, tx pgx.Tx, contractorID uuid.UUID) (tenant.Scope, error) {
	var scope tenant.Scope
	err := tx.QueryRow(ctx, `
		SELECT clinic_id, entity_id FROM contractors WHERE id = $1
	`, contractorID).Scan(&scope.ClinicID, &scope.EntityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.Scope{}, ErrNotFound
		}
		return tenant.Scope{}, err
	}
	return scope, nil
}

// -----------------------------------------------------------------------------
// Batch payment stamping
// -----------------------------------------------------------------------------

type BatchPaymentView struct {
	ID            uuid.UUID
	Scope         tenant.Scope
	PaymentStatus string
}

// FindBatchByID loads the batch the external reference named, locked for
// update so the payment stamp serializes with batch lifecycle changes.
func (r *Repository) FindBatchByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (BatchPaymentView, error) {
	var b BatchPaymentView
	err := tx.QueryRow(ctx, `
		SELECT id, clinic_id, entity_id, payment_status
		FROM evaluation_batches
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&b.ID, &b.Scope.ClinicID, &b.Scope.EntityID, &b.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BatchPaymentView{}, ErrNotFound
		}
		return BatchPaymentView{}, err
	}
	return b, nil
}

const findAwaitingPaymentBatchQuery = `
	SELECT id, clinic_id, entity_id, payment_status
	FROM evaluation_batches
	WHERE payment_status = 'awaiting_payment'
	  AND ($1::uuid IS NULL OR clinic_id = $1)
	  AND ($2::uuid IS NULL OR entity_id = $2)
	ORDER BY created_at DESC
	LIMIT 1
	FOR UPDATE`

// FindAwaitingPaymentBatch resolves the owner's most recent batch still
// awaiting payment. The owner columns are NULL-branched so the same query
// serves both silos.
func (r *Repository) FindAwaitingPaymentBatch(ctx context.Context, tx pgx.Tx, scope tenant.Scope) (BatchPaymentView, error) {
	var b BatchPaymentView
	err := tx.QueryRow(ctx, findAwaitingPaymentBatchQuery,
		scope.ClinicID, scope.EntityID).Scan(&b.ID, &b.Scope.ClinicID, &b.Scope.EntityID, &b.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BatchPaymentView{}, ErrNotFound
		}
		return BatchPaymentView{}, err
	}
	return b, nil
}

func (r *Repository) MarkBatchPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID, method string, paidAt time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE evaluation_batches
		SET payment_status = 'paid', payment_method = $2, paid_at = $3, updated_at = now()
		WHERE id = $1
	`, id, method, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
