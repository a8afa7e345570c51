// Package transport defines the report API shapes.
package transport

import (
	"time"

	"github.com/google/uuid"
)

type EmergencyEmissionRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=2000"`
}

type ReportResponse struct {
	BatchID         uuid.UUID  `json:"batch_id"`
	Status          string     `json:"status"`
	ContentHash     *string    `json:"content_hash,omitempty"`
	StorageKey      *string    `json:"storage_key,omitempty"`
	Emergency       bool       `json:"emergency"`
	EmergencyReason *string    `json:"emergency_reason,omitempty"`
	IssuedAt        *time.Time `json:"issued_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type DeliveryResponse struct {
	BatchID    uuid.UUID `json:"batch_id"`
	StorageKey string    `json:"storage_key"`
}

type ExhaustedEntryResponse struct {
	ID          uuid.UUID  `json:"id"`
	BatchID     uuid.UUID  `json:"batch_id"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	LastError   *string    `json:"last_error,omitempty"`
	ExhaustedAt *time.Time `json:"exhausted_at,omitempty"`
}

type ExhaustedListResponse struct {
	Items []ExhaustedEntryResponse `json:"items"`
}
