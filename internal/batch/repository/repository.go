package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"compliance_portal_backend/internal/batch/domain"
	"compliance_portal_backend/internal/tenant"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyReset = errors.New("evaluation already reset in this batch")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -----------------------------------------------------------------------------
// Batches
// -----------------------------------------------------------------------------

type Batch struct {
	ID             uuid.UUID
	Code           string
	Scope          tenant.Scope
	SequenceNumber int
	Status         domain.BatchStatus
	PaymentStatus  string
	PaymentMethod  *string
	PaidAt         *time.Time
	ReleasedBy     *uuid.UUID
	CreatedAt      time.Time
	ConcludedAt    *time.Time
	IssuedAt       *time.Time
}

const batchColumns = `
	id, code, clinic_id, entity_id, sequence_number, status, payment_status,
	payment_method, paid_at, released_by, created_at, concluded_at, issued_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var status string
	err := row.Scan(&b.ID, &b.Code, &b.Scope.ClinicID, &b.Scope.EntityID,
		&b.SequenceNumber, &status, &b.PaymentStatus, &b.PaymentMethod,
		&b.PaidAt, &b.ReleasedBy, &b.CreatedAt, &b.ConcludedAt, &b.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	b.Status = domain.BatchStatus(status)
	return b, nil
}

// NextSequenceNumber assigns the next batch sequence for an org scope. The
// advisory lock is transaction scoped and keyed on the silo, so two
// concurrent activations for the same owner serialize here and never mint
// the same number.
func (r *Repository) NextSequenceNumber(ctx context.Context, tx pgx.Tx, scope tenant.Scope) (int, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, scope.LockKey()); err != nil {
		return 0, err
	}
	var next int
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) + 1
		FROM evaluation_batches
		WHERE ($1::uuid IS NULL OR clinic_id = $1)
		  AND ($2::uuid IS NULL OR entity_id = $2)
	`, scope.ClinicID, scope.EntityID).Scan(&next)
	return next, err
}

type CreateBatchParams struct {
	Code           string
	Scope          tenant.Scope
	SequenceNumber int
	PaymentStatus  string
	ReleasedBy     uuid.UUID
}

func (r *Repository) CreateBatch(ctx context.Context, tx pgx.Tx, params CreateBatchParams) (Batch, error) {
	row := tx.QueryRow(ctx, `
		INSERT INTO evaluation_batches (code, clinic_id, entity_id, sequence_number, status, payment_status, released_by)
		VALUES ($1, $2, $3, $4, 'active', $5, $6)
		RETURNING`+batchColumns,
		params.Code, params.Scope.ClinicID, params.Scope.EntityID,
		params.SequenceNumber, params.PaymentStatus, params.ReleasedBy,
	)
	return scanBatch(row)
}

const getBatchQuery = `
	SELECT` + batchColumns + `
	FROM evaluation_batches
	WHERE id = $1
	  AND ($2::uuid IS NULL OR clinic_id = $2)
	  AND ($3::uuid IS NULL OR entity_id = $3)`

func (r *Repository) GetByID(ctx context.Context, scope tenant.Scope, id uuid.UUID) (Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx, getBatchQuery, id, scope.ClinicID, scope.EntityID))
}

func (r *Repository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, scope tenant.Scope, id uuid.UUID) (Batch, error) {
	return scanBatch(tx.QueryRow(ctx, getBatchQuery+`
	FOR UPDATE`, id, scope.ClinicID, scope.EntityID))
}

func (r *Repository) List(ctx context.Context, scope tenant.Scope, limit, offset int) ([]Batch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT`+batchColumns+`
		FROM evaluation_batches
		WHERE ($1::uuid IS NULL OR clinic_id = $1)
		  AND ($2::uuid IS NULL OR entity_id = $2)
		ORDER BY sequence_number DESC
		LIMIT $3 OFFSET $4
	`, scope.ClinicID, scope.EntityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Batch, 0)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *Repository) UpdateBatchStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.BatchStatus) error {
	_, err := tx.Exec(ctx, `
		UPDATE evaluation_batches
		SET status = $2,
		    concluded_at = CASE WHEN $2 = 'concluded' THEN now() ELSE concluded_at END,
		    updated_at = now()
		WHERE id = $1
	`, id, string(status))
	return err
}

// HasActiveContractor reports whether the org scope has an activated
// contractor, the precondition for releasing batches.
func (r *Repository) HasActiveContractor(ctx context.Context, tx pgx.Tx, scope tenant.Scope) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM contractors
			WHERE active = true
			  AND ($1::uuid IS NULL OR clinic_id = $1)
			  AND ($2::uuid IS NULL OR entity_id = $2)
		)
	`, scope.ClinicID, scope.EntityID).Scan(&exists)
	return exists, err
}

// -----------------------------------------------------------------------------
// Employees
// -----------------------------------------------------------------------------

type Employee struct {
	ID              uuid.UUID
	Scope           tenant.Scope
	Name            string
	Active          bool
	EvaluationIndex *int
	LastBatchDate   *time.Time
}

const eligibleEmployeesQuery = `
	SELECT id, clinic_id, entity_id, name, active, evaluation_index, last_batch_date
	FROM employees
	WHERE active = true
	  AND ($1::uuid IS NULL OR clinic_id = $1)
	  AND ($2::uuid IS NULL OR entity_id = $2)
	  AND (evaluation_index IS NULL OR $3 - evaluation_index >= 1)
	ORDER BY name ASC`

// EligibleEmployees mirrors domain.Eligible in SQL for the given sequence.
func (r *Repository) EligibleEmployees(ctx context.Context, tx pgx.Tx, scope tenant.Scope, sequenceNumber int) ([]Employee, error) {
	rows, err := tx.Query(ctx, eligibleEmployeesQuery, scope.ClinicID, scope.EntityID, sequenceNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Employee, 0)
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Scope.ClinicID, &e.Scope.EntityID, &e.Name, &e.Active, &e.EvaluationIndex, &e.LastBatchDate); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// StampEmployeeEvaluation records that the employee concluded an evaluation
// in the batch with the given sequence.
func (r *Repository) StampEmployeeEvaluation(ctx context.Context, tx pgx.Tx, employeeID uuid.UUID, sequenceNumber int) error {
	_, err := tx.Exec(ctx, `
		UPDATE employees
		SET evaluation_index = $2, last_batch_date = now(), updated_at = now()
		WHERE id = $1
	`, employeeID, sequenceNumber)
	return err
}

// -----------------------------------------------------------------------------
// Evaluations
// -----------------------------------------------------------------------------

type Evaluation struct {
	ID                 uuid.UUID
	BatchID            uuid.UUID
	EmployeeID         uuid.UUID
	Status             string
	InactivationReason *string
	InactivatedAt      *time.Time
	ConcludedAt        *time.Time
	CreatedAt          time.Time
}

const evaluationColumns = `
	id, batch_id, employee_id, status, inactivation_reason, inactivated_at, concluded_at, created_at`

func scanEvaluation(row pgx.Row) (Evaluation, error) {
	var e Evaluation
	err := row.Scan(&e.ID, &e.BatchID, &e.EmployeeID, &e.Status,
		&e.InactivationReason, &e.InactivatedAt, &e.ConcludedAt, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Evaluation{}, ErrNotFound
		}
		return Evaluation{}, err
	}
	return e, nil
}

// BulkInsertEvaluations enrolls every employee in the batch via COPY.
func (r *Repository) BulkInsertEvaluations(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, employeeIDs []uuid.UUID) (int64, error) {
	rows := make([][]any, 0, len(employeeIDs))
	for _, employeeID := range employeeIDs {
		rows = append(rows, []any{uuid.New(), batchID, employeeID, "started"})
	}
	return tx.CopyFrom(ctx,
		pgx.Identifier{"evaluations"},
		[]string{"id", "batch_id", "employee_id", "status"},
		pgx.CopyFromRows(rows),
	)
}

func (r *Repository) GetEvaluationForUpdate(ctx context.Context, tx pgx.Tx, batchID, evaluationID uuid.UUID) (Evaluation, error) {
	return scanEvaluation(tx.QueryRow(ctx, `
		SELECT`+evaluationColumns+`
		FROM evaluations
		WHERE id = $1 AND batch_id = $2
		FOR UPDATE
	`, evaluationID, batchID))
}

func (r *Repository) ListEvaluations(ctx context.Context, batchID uuid.UUID) ([]Evaluation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+evaluationColumns+`
		FROM evaluations
		WHERE batch_id = $1
		ORDER BY created_at ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Evaluation, 0)
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *Repository) MarkEvaluationInactivated(ctx context.Context, tx pgx.Tx, id uuid.UUID, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE evaluations
		SET status = 'inactivated', inactivation_reason = $2, inactivated_at = now(), updated_at = now()
		WHERE id = $1
	`, id, reason)
	return err
}

func (r *Repository) MarkEvaluationConcluded(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `
		UPDATE evaluations
		SET status = 'concluded', concluded_at = now(), updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// Tally counts the batch's evaluations by status inside the mutating
// transaction so the aggregate recompute sees its own write.
func (r *Repository) Tally(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) (domain.Tally, error) {
	var t domain.Tally
	err := tx.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'concluded'),
		       COUNT(*) FILTER (WHERE status = 'inactivated')
		FROM evaluations
		WHERE batch_id = $1
	`, batchID).Scan(&t.Released, &t.Concluded, &t.Inactivated)
	return t, err
}

// InactivationHistory returns the sequence numbers of prior batches in
// which the employee was inactivated, for the consecutive-run guard.
func (r *Repository) InactivationHistory(ctx context.Context, tx pgx.Tx, employeeID uuid.UUID) ([]domain.InactivationRecord, error) {
	rows, err := tx.Query(ctx, `
		SELECT b.sequence_number
		FROM evaluations e
		JOIN evaluation_batches b ON b.id = e.batch_id
		WHERE e.employee_id = $1 AND e.status = 'inactivated'
		ORDER BY b.sequence_number ASC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InactivationRecord, 0)
	for rows.Next() {
		var rec domain.InactivationRecord
		if err := rows.Scan(&rec.SequenceNumber); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

// -----------------------------------------------------------------------------
// Resets
// -----------------------------------------------------------------------------

type InsertResetParams struct {
	EvaluationID     uuid.UUID
	BatchID          uuid.UUID
	RequestedBy      uuid.UUID
	Reason           string
	ResponsesCleared int
}

const insertResetQuery = `
	INSERT INTO evaluation_resets (evaluation_id, batch_id, requested_by, reason, responses_cleared)
	VALUES ($1, $2, $3, $4, $5)`

const hasResetQuery = `
	SELECT EXISTS (SELECT 1 FROM evaluation_resets WHERE evaluation_id = $1 AND batch_id = $2)`

// InsertReset records a response reset. The unique index on
// (evaluation_id, batch_id) makes the second reset fail here regardless of
// what the caller checked first.
func (r *Repository) InsertReset(ctx context.Context, tx pgx.Tx, params InsertResetParams) error {
	_, err := tx.Exec(ctx, insertResetQuery,
		params.EvaluationID, params.BatchID, params.RequestedBy, params.Reason, params.ResponsesCleared)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyReset
		}
		return err
	}
	return nil
}

func (r *Repository) HasReset(ctx context.Context, tx pgx.Tx, evaluationID, batchID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, hasResetQuery, evaluationID, batchID).Scan(&exists)
	return exists, err
}

// ClearResponses deletes the evaluation's recorded responses and moves the
// evaluation back to started.
func (r *Repository) ClearResponses(ctx context.Context, tx pgx.Tx, evaluationID uuid.UUID) (int, error) {
	tag, err := tx.Exec(ctx, `
		DELETE FROM evaluation_responses WHERE evaluation_id = $1
	`, evaluationID)
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE evaluations
		SET status = 'started', concluded_at = NULL, updated_at = now()
		WHERE id = $1
	`, evaluationID)
	return int(tag.RowsAffected()), err
}
