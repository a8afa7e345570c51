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
	ErrNotFound  = errors.New("not found")
	ErrImmutable = errors.New("report content is already sealed")
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// -----------------------------------------------------------------------------
// Reports
// -----------------------------------------------------------------------------

type Report struct {
	BatchID         uuid.UUID
	Status          string
	Content         []byte
	ContentHash     *string
	StorageKey      *string
	Emergency       bool
	EmergencyReason *string
	IssuedAt        *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const reportColumns = `
	batch_id, status, content, content_hash, storage_key, emergency,
	emergency_reason, issued_at, delivered_at, created_at, updated_at`

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	err := row.Scan(&r.BatchID, &r.Status, &r.Content, &r.ContentHash,
		&r.StorageKey, &r.Emergency, &r.EmergencyReason, &r.IssuedAt,
		&r.DeliveredAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrNotFound
		}
		return Report{}, err
	}
	return r, nil
}

const reserveQuery = `
	INSERT INTO reports (batch_id, status)
	VALUES ($1, 'draft')
	ON CONFLICT (batch_id) DO NOTHING`

// Reserve creates the report placeholder for a batch. The batch_id primary
// key makes a duplicate reservation a no-op, so batch activation can call
// this unconditionally.
func (r *Repository) Reserve(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error {
	_, err := tx.Exec(ctx, reserveQuery, batchID)
	return err
}

func (r *Repository) GetByBatchID(ctx context.Context, batchID uuid.UUID) (Report, error) {
	return scanReport(r.pool.QueryRow(ctx, `
		SELECT`+reportColumns+`
		FROM reports
		WHERE batch_id = $1
	`, batchID))
}

// GetScopedByBatchID verifies the batch belongs to the caller's silo before
// returning its report.
func (r *Repository) GetScopedByBatchID(ctx context.Context, scope tenant.Scope, batchID uuid.UUID) (Report, error) {
	return scanReport(r.pool.QueryRow(ctx, `
		SELECT`+reportColumnsPrefixed+`
		FROM reports r
		JOIN evaluation_batches b ON b.id = r.batch_id
		WHERE r.batch_id = $1
		  AND ($2::uuid IS NULL OR b.clinic_id = $2)
		  AND ($3::uuid IS NULL OR b.entity_id = $3)
	`, batchID, scope.ClinicID, scope.EntityID))
}

const reportColumnsPrefixed = `
	r.batch_id, r.status, r.content, r.content_hash, r.storage_key, r.emergency,
	r.emergency_reason, r.issued_at, r.delivered_at, r.created_at, r.updated_at`

// GetForUpdate locks the report row for the duration of the caller's
// transaction.
func (r *Repository) GetForUpdate(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) (Report, error) {
	return scanReport(tx.QueryRow(ctx, `
		SELECT`+reportColumns+`
		FROM reports
		WHERE batch_id = $1
		FOR UPDATE
	`, batchID))
}

// GetScopedForUpdate is the transactional variant of GetScopedByBatchID,
// locking the report row.
func (r *Repository) GetScopedForUpdate(ctx context.Context, tx pgx.Tx, scope tenant.Scope, batchID uuid.UUID) (Report, error) {
	return scanReport(tx.QueryRow(ctx, `
		SELECT`+reportColumnsPrefixed+`
		FROM reports r
		JOIN evaluation_batches b ON b.id = r.batch_id
		WHERE r.batch_id = $1
		  AND ($2::uuid IS NULL OR b.clinic_id = $2)
		  AND ($3::uuid IS NULL OR b.entity_id = $3)
		FOR UPDATE OF r
	`, batchID, scope.ClinicID, scope.EntityID))
}

// FlagEmergency marks a report for out-of-band emission. The flag is set
// at request time so the emitter stamps it onto the issued report.
func (r *Repository) FlagEmergency(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, reason string) error {
	_, err := tx.Exec(ctx, `
		UPDATE reports
		SET emergency = TRUE, emergency_reason = $2, updated_at = now()
		WHERE batch_id = $1
	`, batchID, reason)
	return err
}

type SetContentParams struct {
	BatchID     uuid.UUID
	Content     []byte
	ContentHash string
}

const setContentQuery = `
	UPDATE reports
	SET content = $2, content_hash = $3, status = 'approved', updated_at = now()
	WHERE batch_id = $1 AND content_hash IS NULL`

// SetContent seals the generated report body and its hash. The guard on
// content_hash IS NULL makes the report immutable once sealed: a second
// generation attempt affects zero rows and reports ErrImmutable.
func (r *Repository) SetContent(ctx context.Context, tx pgx.Tx, params SetContentParams) error {
	tag, err := tx.Exec(ctx, setContentQuery, params.BatchID, params.Content, params.ContentHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImmutable
	}
	return nil
}

// MarkIssued stamps issuance on both the report and its batch.
func (r *Repository) MarkIssued(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `
		UPDATE reports
		SET status = 'issued', issued_at = now(), updated_at = now()
		WHERE batch_id = $1 AND status = 'approved'
	`, batchID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx, `
		UPDATE evaluation_batches SET issued_at = now(), updated_at = now() WHERE id = $1
	`, batchID)
	return err
}

// MarkDelivered records the storage key. Delivery is permitted exactly once
// and only for an issued report.
func (r *Repository) MarkDelivered(ctx context.Context, batchID uuid.UUID, storageKey string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reports
		SET storage_key = $2, delivered_at = now(), updated_at = now()
		WHERE batch_id = $1 AND status = 'issued' AND storage_key IS NULL
	`, batchID, storageKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrImmutable
	}
	return nil
}

// -----------------------------------------------------------------------------
// Emission queue
// -----------------------------------------------------------------------------

type QueueEntry struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	Attempts    int
	MaxAttempts int
	LastError   *string
	ExhaustedAt *time.Time
	CreatedAt   time.Time
}

const enqueueQuery = `
	INSERT INTO emission_queue (batch_id, max_attempts)
	VALUES ($1, $2)
	ON CONFLICT (batch_id) DO NOTHING`

// Enqueue admits a batch to the emission queue. The unique key on batch_id
// makes re-admission a no-op.
func (r *Repository) Enqueue(ctx context.Context, tx pgx.Tx, batchID uuid.UUID, maxAttempts int) error {
	_, err := tx.Exec(ctx, enqueueQuery, batchID, maxAttempts)
	return err
}

const claimRetryableQuery = `
	WITH cte AS (
		SELECT id
		FROM emission_queue
		WHERE attempts < max_attempts
		  AND exhausted_at IS NULL
		  AND (claimed_at IS NULL OR claimed_at < now() - interval '5 minutes')
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE emission_queue q
	SET attempts = q.attempts + 1, claimed_at = now(), updated_at = now()
	FROM cte
	WHERE q.id = cte.id
	RETURNING q.id, q.batch_id, q.attempts, q.max_attempts, q.last_error, q.exhausted_at, q.created_at`

// ClaimRetryable claims up to limit queue entries for one drain pass.
// SKIP LOCKED lets concurrent workers drain disjoint sets, and the claimed_at
// lease keeps a claimed entry out of the claimable predicate until the
// claimer releases it, so a concurrent drain cannot pick up an entry that is
// still being emitted. A crashed worker's lease lapses and the entry becomes
// claimable again with one attempt consumed.
func (r *Repository) ClaimRetryable(ctx context.Context, limit int) ([]QueueEntry, error) {
	if limit < 1 {
		limit = 10
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, claimRetryableQuery, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Attempts, &e.MaxAttempts, &e.LastError, &e.ExhaustedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

const markFailureQuery = `
	UPDATE emission_queue
	SET last_error = $2,
	    claimed_at = NULL,
	    exhausted_at = CASE WHEN attempts >= max_attempts THEN now() ELSE exhausted_at END,
	    updated_at = now()
	WHERE id = $1
	RETURNING exhausted_at IS NOT NULL`

// MarkFailure records a failed attempt and releases the claim lease. When
// the claimed attempt was the last one the entry is exhausted and never
// claimed again; the boolean reports that edge so the caller can alert an
// operator.
func (r *Repository) MarkFailure(ctx context.Context, id uuid.UUID, lastError string) (bool, error) {
	var exhausted bool
	err := r.pool.QueryRow(ctx, markFailureQuery, id, lastError).Scan(&exhausted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return exhausted, nil
}

// DeleteEntry removes a queue entry after successful emission.
func (r *Repository) DeleteEntry(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	_, err := tx.Exec(ctx, `DELETE FROM emission_queue WHERE id = $1`, id)
	return err
}

// ListExhausted returns entries that burned every attempt, for operator
// review.
func (r *Repository) ListExhausted(ctx context.Context, limit int) ([]QueueEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, batch_id, attempts, max_attempts, last_error, exhausted_at, created_at
		FROM emission_queue
		WHERE exhausted_at IS NOT NULL
		ORDER BY exhausted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]QueueEntry, 0)
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Attempts, &e.MaxAttempts, &e.LastError, &e.ExhaustedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
