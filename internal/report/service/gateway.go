package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"compliance_portal_backend/internal/report/repository"
)

// Gateway is the narrow surface the batch lifecycle drives: placeholder
// reservation at activation and emission admission at conclusion. Both
// run inside the caller's transaction.
type Gateway struct {
	repo        *repository.Repository
	maxAttempts int
}

func NewGateway(repo *repository.Repository, maxAttempts int) *Gateway {
	return &Gateway{repo: repo, maxAttempts: maxAttempts}
}

// Reserve creates the report placeholder for a batch. Idempotent.
func (g *Gateway) Reserve(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error {
	return g.repo.Reserve(ctx, tx, batchID)
}

// Admit enters the batch into the emission queue. Idempotent.
func (g *Gateway) Admit(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) error {
	return g.repo.Enqueue(ctx, tx, batchID, g.maxAttempts)
}
