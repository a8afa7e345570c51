package service

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseExternalReference(t *testing.T) {
	batchID := uuid.New()
	paymentID := uuid.New()

	tests := []struct {
		name        string
		raw         string
		wantBatch   *uuid.UUID
		wantPayment *uuid.UUID
		wantErr     bool
	}{
		{"empty", "", nil, nil, false},
		{"batch only", "lote:" + batchID.String(), &batchID, nil, false},
		{"batch and payment", "lote:" + batchID.String() + ";pag:" + paymentID.String(), &batchID, &paymentID, false},
		{"whitespace tolerated", " lote: " + batchID.String() + " ; pag: " + paymentID.String() + " ", &batchID, &paymentID, false},
		{"unknown key", "order:" + batchID.String(), nil, nil, true},
		{"bad uuid", "lote:not-a-uuid", nil, nil, true},
		{"missing separator", "lote", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseExternalReference(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("ParseExternalReference() = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExternalReference() = %v, want nil", err)
			}
			if !uuidPtrEqual(ref.BatchID, tt.wantBatch) {
				t.Errorf("BatchID = %v, want %v", ref.BatchID, tt.wantBatch)
			}
			if !uuidPtrEqual(ref.PaymentID, tt.wantPayment) {
				t.Errorf("PaymentID = %v, want %v", ref.PaymentID, tt.wantPayment)
			}
		})
	}
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
