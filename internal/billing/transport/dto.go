// Package transport defines the billing API shapes, including the payment
// gateway webhook envelope.
package transport

import (
	"time"

	"github.com/google/uuid"
)

// GatewayEvent is the payment gateway's webhook envelope. Only the fields
// the reconciler acts on are declared; the full payload is stored verbatim.
type GatewayEvent struct {
	ID      string         `json:"id"`
	Event   string         `json:"event"`
	Payment GatewayPayment `json:"payment"`
}

type GatewayPayment struct {
	ID                string  `json:"id"`
	ExternalReference string  `json:"externalReference"`
	Value             float64 `json:"value"`
	Status            string  `json:"status"`
	BillingType       string  `json:"billingType"`
	ConfirmedDate     string  `json:"confirmedDate"`
	PaymentDate       string  `json:"paymentDate"`
	InvoiceURL        string  `json:"invoiceUrl"`
}

type WebhookAck struct {
	Received bool   `json:"received"`
	Outcome  string `json:"outcome,omitempty"`
}

type PaymentResponse struct {
	ID               uuid.UUID  `json:"id"`
	ContractorID     uuid.UUID  `json:"contractor_id"`
	ContractID       *uuid.UUID `json:"contract_id,omitempty"`
	GatewayPaymentID string     `json:"gateway_payment_id"`
	AmountCents      int64      `json:"amount_cents"`
	Method           *string    `json:"method,omitempty"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type UnreconciledEventResponse struct {
	ID               uuid.UUID `json:"id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	EventType        string    `json:"event_type"`
	ProcessedAt      time.Time `json:"processed_at"`
}

type PlanQuoteRequest struct {
	Plan      string `json:"plan" validate:"required"`
	Headcount int    `json:"headcount" validate:"required,min=1"`
}

type PlanQuoteResponse struct {
	Plan         string `json:"plan"`
	Headcount    int    `json:"headcount"`
	PerHeadCents int64  `json:"per_head_cents"`
	TotalCents   int64  `json:"total_cents"`
}
