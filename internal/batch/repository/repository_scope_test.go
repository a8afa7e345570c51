package repository

import (
	"strings"
	"testing"
)

func TestEligibleEmployeesQueryMirrorsEligibilityRule(t *testing.T) {
	query := strings.ToLower(eligibleEmployeesQuery)

	requiredFragments := []string{
		"active = true",
		"($1::uuid is null or clinic_id = $1)",
		"($2::uuid is null or entity_id = $2)",
		"(evaluation_index is null or $3 - evaluation_index >= 1)",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected eligibility query fragment %q to be present", fragment)
		}
	}
}

func TestGetBatchQueryIsOwnerScoped(t *testing.T) {
	query := strings.ToLower(getBatchQuery)

	requiredFragments := []string{
		"($2::uuid is null or clinic_id = $2)",
		"($3::uuid is null or entity_id = $3)",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected owner-scoped query fragment %q to be present", fragment)
		}
	}
}

func TestResetLedgerIsKeyedPerEvaluationAndBatch(t *testing.T) {
	insert := strings.ToLower(insertResetQuery)
	if !strings.Contains(insert, "insert into evaluation_resets (evaluation_id, batch_id") {
		t.Fatal("reset ledger insert must be keyed by evaluation and batch")
	}

	lookup := strings.ToLower(hasResetQuery)
	for _, fragment := range []string{
		"select exists",
		"from evaluation_resets",
		"evaluation_id = $1 and batch_id = $2",
	} {
		if !strings.Contains(lookup, fragment) {
			t.Fatalf("expected reset ledger lookup fragment %q to be present", fragment)
		}
	}
}
