// Package domain provides core business rules for the evaluation batch
// bounded context: eligibility, the inactivation guard, and batch
// aggregate status.
package domain

// Eligible reports whether an employee may be enrolled in a batch with the
// given sequence number. Employees never evaluated (nil index) are always
// eligible; otherwise at least one full sequence must have passed since
// the batch stamped on them.
func Eligible(active bool, evaluationIndex *int, sequenceNumber int) bool {
	if !active {
		return false
	}
	if evaluationIndex == nil {
		return true
	}
	return sequenceNumber-*evaluationIndex >= 1
}
