package repository

import (
	"strings"
	"testing"
)

// A redelivered settlement inserts nothing into the ledger; the claiming
// insert is the idempotency key for the whole webhook unit.
func TestInsertEventQueryIsIdempotencyKeyed(t *testing.T) {
	query := strings.ToLower(insertEventQuery)

	if !strings.Contains(query, "on conflict (gateway_payment_id, event_type) do nothing") {
		t.Fatal("webhook ledger insert must no-op on a redelivered event")
	}
	if !strings.Contains(query, "returning id") {
		t.Fatal("the claiming insert must report whether it claimed the event")
	}
}

func TestFindAwaitingPaymentBatchQueryIsOwnerScoped(t *testing.T) {
	query := strings.ToLower(findAwaitingPaymentBatchQuery)

	requiredFragments := []string{
		"payment_status = 'awaiting_payment'",
		"($1::uuid is null or clinic_id = $1)",
		"($2::uuid is null or entity_id = $2)",
		"order by created_at desc",
		"limit 1",
		"for update",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected owner-scoped query fragment %q to be present", fragment)
		}
	}
}
