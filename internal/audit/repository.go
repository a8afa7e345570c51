// Package audit provides the append-only audit log. Every state transition,
// override and reconciliation decision in the system writes one record here.
// Records are immutable: the repository exposes no update or delete path.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"compliance_portal_backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is a single immutable audit record.
type Entry struct {
	ID        uuid.UUID
	ActorID   *uuid.UUID
	ActorRole string
	Action    string
	Entity    string
	EntityID  *uuid.UUID
	ClinicID  *uuid.UUID
	EntityOwnerID *uuid.UUID
	Payload   json.RawMessage
	CreatedAt time.Time
}

// Repository provides append and read access to the audit log.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const insertQuery = `
	INSERT INTO audit_log (actor_id, actor_role, action, entity, entity_id, clinic_id, entity_owner_id, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at`

// Insert appends one record using the pool.
func (r *Repository) Insert(ctx context.Context, e *Entry) error {
	return r.pool.QueryRow(ctx, insertQuery,
		e.ActorID, e.ActorRole, e.Action, e.Entity, e.EntityID,
		e.ClinicID, e.EntityOwnerID, payloadOrEmpty(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

// InsertTx appends one record inside an existing transaction so the audit
// write commits or aborts together with the operation it describes.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, e *Entry) error {
	return tx.QueryRow(ctx, insertQuery,
		e.ActorID, e.ActorRole, e.Action, e.Entity, e.EntityID,
		e.ClinicID, e.EntityOwnerID, payloadOrEmpty(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

// ListFilter narrows the audit feed.
type ListFilter struct {
	Scope    *tenant.Scope
	Entity   string
	EntityID *uuid.UUID
	Action   string
	Limit    int
}

// List returns recent audit entries matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	query := `
		SELECT id, actor_id, actor_role, action, entity, entity_id, clinic_id, entity_owner_id, payload, created_at
		FROM audit_log
		WHERE ($1::text = '' OR entity = $1)
		  AND ($2::uuid IS NULL OR entity_id = $2)
		  AND ($3::text = '' OR action = $3)
		  AND ($4::uuid IS NULL OR clinic_id = $4)
		  AND ($5::uuid IS NULL OR entity_owner_id = $5)
		ORDER BY created_at DESC
		LIMIT $6`

	limit := f.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var clinicID, entityOwnerID *uuid.UUID
	if f.Scope != nil {
		clinicID = f.Scope.ClinicID
		entityOwnerID = f.Scope.EntityID
	}

	rows, err := r.pool.Query(ctx, query, f.Entity, f.EntityID, f.Action, clinicID, entityOwnerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.Entity, &e.EntityID,
			&e.ClinicID, &e.EntityOwnerID, &e.Payload, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func payloadOrEmpty(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage(`{}`)
	}
	return p
}
