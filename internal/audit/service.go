package audit

import (
	"context"
	"encoding/json"

	"compliance_portal_backend/internal/tenant"
	"compliance_portal_backend/platform/httpkit"
	"compliance_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Actor identifies who performed an audited action.
type Actor struct {
	ID   uuid.UUID
	Role httpkit.Role
}

// SystemActor marks records produced by the system itself (reconciler,
// emission worker) rather than an operator.
var SystemActor = Actor{Role: httpkit.RoleSystem}

// Record describes one audited action.
type Record struct {
	Actor    Actor
	Action   string
	Entity   string
	EntityID uuid.UUID
	Scope    *tenant.Scope
	Data     any
}

// Recorder is the narrow interface other modules depend on to write audit
// records. Satisfied by *Service.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	RecordTx(ctx context.Context, tx pgx.Tx, rec Record) error
}

// Service writes audit records. Audit failures on the non-transactional
// path are logged and swallowed so they never mask the primary operation;
// the transactional path propagates errors because a compound operation
// without its audit record must not commit.
type Service struct {
	repo *Repository
	log  *logger.Logger
}

// NewService creates the audit service.
func NewService(repo *Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Record appends one audit record outside any transaction.
func (s *Service) Record(ctx context.Context, rec Record) error {
	entry, err := toEntry(rec)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.log.Error("audit record failed", "action", rec.Action, "entity", rec.Entity, "error", err)
		return err
	}
	return nil
}

// RecordTx appends one audit record inside the caller's transaction.
func (s *Service) RecordTx(ctx context.Context, tx pgx.Tx, rec Record) error {
	entry, err := toEntry(rec)
	if err != nil {
		return err
	}
	return s.repo.InsertTx(ctx, tx, entry)
}

// List exposes the audit feed.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Entry, error) {
	return s.repo.List(ctx, f)
}

func toEntry(rec Record) (*Entry, error) {
	payload, err := json.Marshal(rec.Data)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ActorRole: string(rec.Actor.Role),
		Action:    rec.Action,
		Entity:    rec.Entity,
		Payload:   payload,
	}
	if rec.Actor.ID != uuid.Nil {
		id := rec.Actor.ID
		entry.ActorID = &id
	}
	if rec.EntityID != uuid.Nil {
		id := rec.EntityID
		entry.EntityID = &id
	}
	if rec.Scope != nil {
		entry.ClinicID = rec.Scope.ClinicID
		entry.EntityOwnerID = rec.Scope.EntityID
	}
	return entry, nil
}
