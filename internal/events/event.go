// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"compliance_portal_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Contractor Domain Events
// =============================================================================

// ContractorStatusChanged is published on every contractor state machine edge.
type ContractorStatusChanged struct {
	BaseEvent
	ContractorID uuid.UUID  `json:"contractorId"`
	From         string     `json:"from"`
	To           string     `json:"to"`
	ActorID      *uuid.UUID `json:"actorId,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func (e ContractorStatusChanged) EventName() string { return "contractor.status.changed" }

// ContractorActivated is published when a contractor gains platform access.
type ContractorActivated struct {
	BaseEvent
	ContractorID uuid.UUID  `json:"contractorId"`
	Exemption    bool       `json:"exemption"`
	ActorID      *uuid.UUID `json:"actorId,omitempty"`
}

func (e ContractorActivated) EventName() string { return "contractor.activated" }

// =============================================================================
// Billing Domain Events
// =============================================================================

// PaymentReconciled is published when a gateway event was matched and applied.
type PaymentReconciled struct {
	BaseEvent
	PaymentID        uuid.UUID  `json:"paymentId"`
	ContractorID     uuid.UUID  `json:"contractorId"`
	BatchID          *uuid.UUID `json:"batchId,omitempty"`
	GatewayPaymentID string     `json:"gatewayPaymentId"`
	EventType        string     `json:"eventType"`
	ContractSettled  bool       `json:"contractSettled"`
}

func (e PaymentReconciled) EventName() string { return "billing.payment.reconciled" }

// WebhookUnreconciled is published when a gateway event could not be matched
// to any local record and was held for manual review.
type WebhookUnreconciled struct {
	BaseEvent
	GatewayPaymentID  string `json:"gatewayPaymentId"`
	EventType         string `json:"eventType"`
	ExternalReference string `json:"externalReference"`
}

func (e WebhookUnreconciled) EventName() string { return "billing.webhook.unreconciled" }

// =============================================================================
// Batch Domain Events
// =============================================================================

// BatchActivated is published when a batch is activated and its evaluations
// are released.
type BatchActivated struct {
	BaseEvent
	BatchID        uuid.UUID `json:"batchId"`
	SequenceNumber int       `json:"sequenceNumber"`
	Evaluations    int       `json:"evaluations"`
	ActorID        uuid.UUID `json:"actorId"`
}

func (e BatchActivated) EventName() string { return "batch.activated" }

// BatchConcluded is published when a batch's aggregate status becomes
// concluded and it is admitted to the emission queue.
type BatchConcluded struct {
	BaseEvent
	BatchID     uuid.UUID `json:"batchId"`
	Code        string    `json:"code"`
	ReleasedBy  uuid.UUID `json:"releasedBy"`
	Evaluations int       `json:"evaluations"`
}

func (e BatchConcluded) EventName() string { return "batch.concluded" }

// EvaluationInactivated is published for every inactivation, forced or not.
type EvaluationInactivated struct {
	BaseEvent
	EvaluationID uuid.UUID `json:"evaluationId"`
	BatchID      uuid.UUID `json:"batchId"`
	EmployeeID   uuid.UUID `json:"employeeId"`
	Forced       bool      `json:"forced"`
	ActorID      uuid.UUID `json:"actorId"`
}

func (e EvaluationInactivated) EventName() string { return "batch.evaluation.inactivated" }

// EvaluationReset is published when an evaluation's responses are cleared.
type EvaluationReset struct {
	BaseEvent
	EvaluationID     uuid.UUID `json:"evaluationId"`
	BatchID          uuid.UUID `json:"batchId"`
	ResponsesCleared int       `json:"responsesCleared"`
	ActorID          uuid.UUID `json:"actorId"`
}

func (e EvaluationReset) EventName() string { return "batch.evaluation.reset" }

// =============================================================================
// Report Domain Events
// =============================================================================

// ReportIssued is published when a report's content is generated, hashed and
// the report transitions to issued.
type ReportIssued struct {
	BaseEvent
	BatchID     uuid.UUID `json:"batchId"`
	ContentHash string    `json:"contentHash"`
	Emergency   bool      `json:"emergency"`
}

func (e ReportIssued) EventName() string { return "report.issued" }

// ReportDelivered is published when a report artifact is uploaded to
// durable storage.
type ReportDelivered struct {
	BaseEvent
	BatchID    uuid.UUID `json:"batchId"`
	StorageKey string    `json:"storageKey"`
}

func (e ReportDelivered) EventName() string { return "report.delivered" }

// EmissionExhausted is published when an emission queue entry reaches its
// attempt limit and requires manual intervention.
type EmissionExhausted struct {
	BaseEvent
	BatchID   uuid.UUID `json:"batchId"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError"`
}

func (e EmissionExhausted) EventName() string { return "report.emission.exhausted" }
