package domain

// InactivationRecord is one prior inactivation of an employee, identified
// by the sequence number of the batch it happened in.
type InactivationRecord struct {
	SequenceNumber int
}

// GuardResult is the decision of the consecutive-inactivation guard.
type GuardResult struct {
	Allowed          bool
	Forceable        bool
	ConsecutiveCount int
}

// Reason length floors for inactivation requests.
const (
	MinInactivationReasonLen = 10
	MinForcedReasonLen       = 50
)

// CheckConsecutiveInactivations decides whether an employee may be
// inactivated in the batch with proposedSeq. A single inactivation is
// always allowed; a second consecutive one (the run of prior inactivations
// ends exactly at proposedSeq-1) is blocked but forceable.
func CheckConsecutiveInactivations(history []InactivationRecord, proposedSeq int) GuardResult {
	run := consecutiveRunEndingAt(history, proposedSeq-1)
	if run == 0 {
		return GuardResult{Allowed: true}
	}
	return GuardResult{Allowed: false, Forceable: true, ConsecutiveCount: run}
}

// consecutiveRunEndingAt counts how many sequence numbers ending at seq are
// all present in the history. History order does not matter.
func consecutiveRunEndingAt(history []InactivationRecord, seq int) int {
	present := make(map[int]bool, len(history))
	for _, h := range history {
		present[h.SequenceNumber] = true
	}
	run := 0
	for present[seq-run] {
		run++
	}
	return run
}
