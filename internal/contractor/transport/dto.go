// Package transport defines the request and response shapes of the
// contractor HTTP API.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type SignupRequest struct {
	LegalName string  `json:"legal_name" validate:"required,min=3,max=200"`
	TradeName *string `json:"trade_name" validate:"omitempty,max=200"`
	TaxID     string  `json:"tax_id" validate:"required,min=11,max=18"`
	Email     string  `json:"email" validate:"required,email"`
	Phone     string  `json:"phone" validate:"required,min=8,max=20"`
}

type TransitionRequest struct {
	Status     string     `json:"status" validate:"required"`
	Reason     string     `json:"reason" validate:"omitempty,max=2000"`
	ContractID *uuid.UUID `json:"contract_id"`
	PaymentID  *uuid.UUID `json:"payment_id"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=2000"`
}

type ActivateRequest struct {
	Force  bool   `json:"force"`
	Reason string `json:"reason" validate:"omitempty,max=2000"`
}

type ContractorResponse struct {
	ID               uuid.UUID  `json:"id"`
	ClinicID         *uuid.UUID `json:"clinic_id,omitempty"`
	EntityID         *uuid.UUID `json:"entity_id,omitempty"`
	LegalName        string     `json:"legal_name"`
	TradeName        *string    `json:"trade_name,omitempty"`
	TaxID            string     `json:"tax_id"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Status           string     `json:"status"`
	StatusReason     *string    `json:"status_reason,omitempty"`
	ContractID       *uuid.UUID `json:"contract_id,omitempty"`
	ContractAccepted bool       `json:"contract_accepted"`
	PaymentConfirmed bool       `json:"payment_confirmed"`
	Active           bool       `json:"active"`
	ActivatedAt      *time.Time `json:"activated_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type ListResponse struct {
	Items []ContractorResponse `json:"items"`
}
