package repository

import (
	"strings"
	"testing"
)

func TestClaimRetryableQueryPredicates(t *testing.T) {
	query := strings.ToLower(claimRetryableQuery)

	requiredFragments := []string{
		"attempts < max_attempts",
		"exhausted_at is null",
		"for update skip locked",
		"set attempts = q.attempts + 1",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected claim query fragment %q to be present", fragment)
		}
	}
}

// A claimed entry must leave the claimable predicate until its lease lapses
// or MarkFailure releases it, so two concurrent drains never emit the same
// batch.
func TestClaimLeaseExcludesClaimedEntries(t *testing.T) {
	claim := strings.ToLower(claimRetryableQuery)

	if !strings.Contains(claim, "claimed_at is null or claimed_at <") {
		t.Fatal("claim predicate must exclude entries under an active lease")
	}
	if !strings.Contains(claim, "claimed_at = now()") {
		t.Fatal("claiming must take the lease in the same update")
	}

	failure := strings.ToLower(markFailureQuery)
	if !strings.Contains(failure, "claimed_at = null") {
		t.Fatal("a failed attempt must release the lease for the next drain")
	}
}

func TestReserveAndEnqueueAreIdempotentInserts(t *testing.T) {
	for name, query := range map[string]string{
		"reserve": reserveQuery,
		"enqueue": enqueueQuery,
	} {
		if !strings.Contains(strings.ToLower(query), "on conflict (batch_id) do nothing") {
			t.Fatalf("%s must be a no-op on a duplicate batch", name)
		}
	}
}

func TestSetContentSealsOnlyUnsealedReports(t *testing.T) {
	query := strings.ToLower(setContentQuery)

	if !strings.Contains(query, "content_hash is null") {
		t.Fatal("sealed content must never be overwritten")
	}
}

func TestMarkFailureExhaustsOnLastAttempt(t *testing.T) {
	query := strings.ToLower(markFailureQuery)

	if !strings.Contains(query, "case when attempts >= max_attempts then now()") {
		t.Fatal("the final failed attempt must stamp exhausted_at")
	}
	if !strings.Contains(query, "returning exhausted_at is not null") {
		t.Fatal("callers need the exhausted edge to alert an operator")
	}
}
