// Package transport defines the evaluation batch API shapes.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type ActivateBatchRequest struct {
	PaymentExempt bool `json:"payment_exempt"`
}

type InactivateEvaluationRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=2000"`
	Force  bool   `json:"force"`
}

type ResetEvaluationRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=2000"`
}

type BatchResponse struct {
	ID             uuid.UUID  `json:"id"`
	Code           string     `json:"code"`
	ClinicID       *uuid.UUID `json:"clinic_id,omitempty"`
	EntityID       *uuid.UUID `json:"entity_id,omitempty"`
	SequenceNumber int        `json:"sequence_number"`
	Status         string     `json:"status"`
	PaymentStatus  string     `json:"payment_status"`
	PaymentMethod  *string    `json:"payment_method,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ConcludedAt    *time.Time `json:"concluded_at,omitempty"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	Evaluations    int        `json:"evaluations,omitempty"`
}

type EvaluationResponse struct {
	ID                 uuid.UUID  `json:"id"`
	BatchID            uuid.UUID  `json:"batch_id"`
	EmployeeID         uuid.UUID  `json:"employee_id"`
	Status             string     `json:"status"`
	InactivationReason *string    `json:"inactivation_reason,omitempty"`
	InactivatedAt      *time.Time `json:"inactivated_at,omitempty"`
	ConcludedAt        *time.Time `json:"concluded_at,omitempty"`
}

type BatchListResponse struct {
	Items []BatchResponse `json:"items"`
}

type EvaluationListResponse struct {
	Items []EvaluationResponse `json:"items"`
}
