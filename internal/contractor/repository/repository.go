package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/contractor/domain"
	"compliance_portal_backend/internal/tenant"
)

var ErrNotFound = errors.New("contractor not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Contractor struct {
	ID               uuid.UUID
	Scope            tenant.Scope
	LegalName        string
	TradeName        *string
	TaxID            string
	Email            string
	Phone            string
	Status           domain.Status
	StatusReason     *string
	ContractID       *uuid.UUID
	ContractAccepted bool
	PaymentID        *uuid.UUID
	PaymentConfirmed bool
	Active           bool
	ActivatedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c Contractor) Domain() domain.Contractor {
	return domain.Contractor{
		ID:               c.ID,
		Status:           c.Status,
		PaymentConfirmed: c.PaymentConfirmed,
		ContractAccepted: c.ContractAccepted,
		Active:           c.Active,
	}
}

const contractorColumns = `
	id, clinic_id, entity_id, legal_name, trade_name, tax_id, email, phone,
	status, status_reason, contract_id, contract_accepted, payment_id,
	payment_confirmed, active, activated_at, created_at, updated_at`

func scanContractor(row pgx.Row) (Contractor, error) {
	var c Contractor
	var status string
	err := row.Scan(
		&c.ID, &c.Scope.ClinicID, &c.Scope.EntityID, &c.LegalName, &c.TradeName,
		&c.TaxID, &c.Email, &c.Phone, &status, &c.StatusReason, &c.ContractID,
		&c.ContractAccepted, &c.PaymentID, &c.PaymentConfirmed, &c.Active,
		&c.ActivatedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contractor{}, ErrNotFound
		}
		return Contractor{}, err
	}
	c.Status = domain.Status(status)
	return c, nil
}

type CreateParams struct {
	Scope     tenant.Scope
	LegalName string
	TradeName *string
	TaxID     string
	Email     string
	Phone     string
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Contractor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO contractors (clinic_id, entity_id, legal_name, trade_name, tax_id, email, phone, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING`+contractorColumns,
		params.Scope.ClinicID, params.Scope.EntityID, params.LegalName, params.TradeName,
		params.TaxID, params.Email, params.Phone, string(domain.StatusInitialSignup),
	)
	return scanContractor(row)
}

func (r *Repository) GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Contractor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+contractorColumns+`
		FROM contractors
		WHERE id = $1
		  AND ($2::uuid IS NULL OR clinic_id = $2)
		  AND ($3::uuid IS NULL OR entity_id = $3)
	`, id, scope.ClinicID, scope.EntityID)
	return scanContractor(row)
}

// GetByIDForUpdate locks the contractor row inside tx for the length of the
// transaction. Status transitions go through this to serialize concurrent
// updates on the same contractor.
func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, scope tenant.Scope, id uuid.UUID) (Contractor, error) {
	row := tx.QueryRow(ctx, `
		SELECT`+contractorColumns+`
		FROM contractors
		WHERE id = $1
		  AND ($2::uuid IS NULL OR clinic_id = $2)
		  AND ($3::uuid IS NULL OR entity_id = $3)
		FOR UPDATE
	`, id, scope.ClinicID, scope.EntityID)
	return scanContractor(row)
}

func (r *Repository) GetByTaxID(ctx context.Context, scope tenant.Scope, taxID string) (Contractor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+contractorColumns+`
		FROM contractors
		WHERE tax_id = $1
		  AND ($2::uuid IS NULL OR clinic_id = $2)
		  AND ($3::uuid IS NULL OR entity_id = $3)
	`, taxID, scope.ClinicID, scope.EntityID)
	return scanContractor(row)
}

type ListFilter struct {
	Status *domain.Status
	Active *bool
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, scope tenant.Scope, filter ListFilter) ([]Contractor, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+contractorColumns+`
		FROM contractors
		WHERE ($1::uuid IS NULL OR clinic_id = $1)
		  AND ($2::uuid IS NULL OR entity_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		  AND ($4::boolean IS NULL OR active = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`, scope.ClinicID, scope.EntityID, status, filter.Active, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Contractor, 0)
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type TransitionParams struct {
	ID           uuid.UUID
	Status       domain.Status
	StatusReason *string
	ContractID   *uuid.UUID
	PaymentID    *uuid.UUID
}

// ApplyTransition stamps the new status and any evidence ids carried by the
// edge. Contract and payment ids are only ever set, never cleared, so the
// COALESCE keeps prior evidence when an edge does not supply it.
func (r *Repository) ApplyTransition(ctx context.Context, tx pgx.Tx, params TransitionParams) (Contractor, error) {
	row := tx.QueryRow(ctx, `
		UPDATE contractors
		SET status = $2,
		    status_reason = $3,
		    contract_id = COALESCE($4, contract_id),
		    payment_id = COALESCE($5, payment_id),
		    payment_confirmed = payment_confirmed OR $2 IN ('payment_confirmed', 'approved'),
		    updated_at = now()
		WHERE id = $1
		RETURNING`+contractorColumns,
		params.ID, string(params.Status), params.StatusReason, params.ContractID, params.PaymentID,
	)
	return scanContractor(row)
}

func (r *Repository) MarkContractAccepted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE contractors SET contract_accepted = true, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Activate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (Contractor, error) {
	row := tx.QueryRow(ctx, `
		UPDATE contractors
		SET active = true, activated_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING`+contractorColumns,
		id,
	)
	return scanContractor(row)
}
