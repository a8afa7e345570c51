package domain

// BatchStatus is an evaluation batch lifecycle state.
type BatchStatus string

const (
	BatchActive    BatchStatus = "active"
	BatchConcluded BatchStatus = "concluded"
	BatchCancelled BatchStatus = "cancelled"
)

// Tally is the evaluation census of one batch.
type Tally struct {
	Released    int
	Concluded   int
	Inactivated int
}

// AggregateStatus recomputes the batch status from its evaluation tally.
// Precedence: a batch whose every evaluation was inactivated is cancelled;
// a batch with at least one conclusion where every released evaluation is
// accounted for (concluded or inactivated) is concluded; anything else
// stays active.
func AggregateStatus(t Tally) BatchStatus {
	if t.Released > 0 && t.Inactivated == t.Released {
		return BatchCancelled
	}
	if t.Released > 0 && t.Concluded > 0 && t.Concluded+t.Inactivated == t.Released {
		return BatchConcluded
	}
	return BatchActive
}
