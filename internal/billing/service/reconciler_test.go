package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"compliance_portal_backend/internal/billing/repository"
	"compliance_portal_backend/internal/billing/transport"
	"compliance_portal_backend/internal/events"
	"compliance_portal_backend/platform/logger"
)

func TestEventClassification(t *testing.T) {
	settlements := []string{"PAYMENT_CONFIRMED", "PAYMENT_RECEIVED"}
	for _, e := range settlements {
		if !settlementEvents[e] {
			t.Errorf("%s should be a settlement event", e)
		}
		if _, ok := statusEvents[e]; ok {
			t.Errorf("%s must not also be a status event", e)
		}
	}

	statuses := map[string]string{
		"PAYMENT_OVERDUE":              "overdue",
		"PAYMENT_REFUNDED":             "refunded",
		"PAYMENT_CHARGEBACK_REQUESTED": "chargeback",
		"PAYMENT_DELETED":              "cancelled",
	}
	for e, want := range statuses {
		if got := statusEvents[e]; got != want {
			t.Errorf("statusEvents[%s] = %q, want %q", e, got, want)
		}
	}

	// Everything else falls through to recorded-and-ignored.
	if settlementEvents["PAYMENT_CREATED"] {
		t.Error("PAYMENT_CREATED must not settle")
	}
	if _, ok := statusEvents["PAYMENT_CREATED"]; ok {
		t.Error("PAYMENT_CREATED must not map to a status")
	}
}

// The contractor transition is applied inside the reconcile transaction;
// its log and event publication are deferred to an announce callback that
// runs with the other post-commit effects.
func TestAppliedSettlementRunsDeferredConfirmation(t *testing.T) {
	log := logger.New("test")
	s := &Reconciler{bus: events.NewInMemoryBus(log), log: log}

	announced := false
	res := reconcileResult{
		outcome:         repository.OutcomeApplied,
		payment:         &repository.Payment{ID: uuid.New(), ContractorID: uuid.New()},
		contractSettled: true,
		confirmAnnounce: func(context.Context) { announced = true },
	}
	evt := transport.GatewayEvent{
		Event:   "PAYMENT_CONFIRMED",
		Payment: transport.GatewayPayment{ID: "pay_123"},
	}

	s.publishAnnouncements(context.Background(), evt, res)
	if !announced {
		t.Fatal("applied settlement must announce the contractor confirmation after commit")
	}

	// An event that matched nothing announces nothing.
	announced = false
	s.publishAnnouncements(context.Background(), evt, reconcileResult{outcome: repository.OutcomeApplied})
	if announced {
		t.Fatal("unmatched settlement must not announce a confirmation")
	}
}

func TestParseGatewayDate(t *testing.T) {
	got := parseGatewayDate("2026-03-15")
	want := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseGatewayDate(2026-03-15) = %v, want %v", got, want)
	}

	// First non-empty candidate wins.
	got = parseGatewayDate("", "2026-03-16")
	want = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parseGatewayDate fallback = %v, want %v", got, want)
	}

	// Unparsable input falls back to the current time.
	before := time.Now()
	got = parseGatewayDate("15/03/2026")
	if got.Before(before.Add(-time.Second)) {
		t.Errorf("parseGatewayDate(garbage) = %v, want approximately now", got)
	}
}

func TestNormalizeMethod(t *testing.T) {
	tests := map[string]string{
		"PIX":         "pix",
		"BOLETO":      "boleto",
		"CREDIT_CARD": "credit_card",
		"UNDEFINED":   "other",
		"":            "other",
	}
	for in, want := range tests {
		if got := normalizeMethod(in); got != want {
			t.Errorf("normalizeMethod(%q) = %q, want %q", in, got, want)
		}
	}
}
