// Package domain provides core business rules for the contractor bounded
// context: the onboarding state machine and the activation precondition.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Status is a contractor lifecycle state.
type Status string

const (
	StatusInitialSignup    Status = "initial_signup"
	StatusAwaitingContract Status = "awaiting_contract"
	StatusContractGenerated Status = "contract_generated"
	StatusAwaitingPayment  Status = "awaiting_payment"
	StatusPaymentConfirmed Status = "payment_confirmed"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusUnderReview      Status = "under_review"
)

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusInitialSignup, StatusAwaitingContract, StatusContractGenerated,
		StatusAwaitingPayment, StatusPaymentConfirmed, StatusApproved,
		StatusRejected, StatusUnderReview:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown contractor status %q", raw)
	}
}

// TransitionContext carries the evidence a transition guard may require.
type TransitionContext struct {
	ActorID    *uuid.UUID
	ContractID *uuid.UUID
	PaymentID  *uuid.UUID
	Reason     string
}

// MinRejectionReasonLen is the minimum length of a rejection reason.
const MinRejectionReasonLen = 10

type edge struct {
	from Status
	to   Status
}

// guard validates the context for one edge. A nil return allows the edge.
type guard func(ctx TransitionContext) error

func noGuard(TransitionContext) error { return nil }

func requireContract(ctx TransitionContext) error {
	if ctx.ContractID == nil {
		return fmt.Errorf("transition requires a contract id")
	}
	return nil
}

func requirePayment(ctx TransitionContext) error {
	if ctx.PaymentID == nil {
		return fmt.Errorf("transition requires a payment id")
	}
	return nil
}

func requireOperator(ctx TransitionContext) error {
	if ctx.ActorID == nil {
		return fmt.Errorf("transition requires an operator id")
	}
	return nil
}

func requireOperatorAndReason(ctx TransitionContext) error {
	if err := requireOperator(ctx); err != nil {
		return err
	}
	if len(strings.TrimSpace(ctx.Reason)) < MinRejectionReasonLen {
		return fmt.Errorf("transition requires a reason of at least %d characters", MinRejectionReasonLen)
	}
	return nil
}

// transitions is the full edge table of the onboarding workflow.
// payment_confirmed -> approved carries no guard on purpose: automatic
// approval is an explicit, auditable edge rather than a side effect.
var transitions = map[edge]guard{
	{StatusInitialSignup, StatusAwaitingContract}:     noGuard,
	{StatusAwaitingContract, StatusContractGenerated}: requireContract,
	{StatusContractGenerated, StatusAwaitingPayment}:  requireContract,
	{StatusAwaitingPayment, StatusPaymentConfirmed}:   requirePayment,
	{StatusPaymentConfirmed, StatusApproved}:          noGuard,

	// Rejection is reachable from every non-terminal state and always
	// demands an operator and a substantive reason.
	{StatusInitialSignup, StatusRejected}:     requireOperatorAndReason,
	{StatusAwaitingContract, StatusRejected}:  requireOperatorAndReason,
	{StatusContractGenerated, StatusRejected}: requireOperatorAndReason,
	{StatusAwaitingPayment, StatusRejected}:   requireOperatorAndReason,
	{StatusPaymentConfirmed, StatusRejected}:  requireOperatorAndReason,
	{StatusUnderReview, StatusRejected}:       requireOperatorAndReason,

	{StatusInitialSignup, StatusUnderReview}:     requireOperator,
	{StatusAwaitingContract, StatusUnderReview}:  requireOperator,
	{StatusContractGenerated, StatusUnderReview}: requireOperator,
	{StatusAwaitingPayment, StatusUnderReview}:   requireOperator,
	{StatusPaymentConfirmed, StatusUnderReview}:  requireOperator,

	// Recovery paths back into the workflow.
	{StatusRejected, StatusAwaitingContract}:    requireOperator,
	{StatusUnderReview, StatusAwaitingContract}: requireOperator,
}

// CanTransition reports whether the edge (current -> next) exists and its
// guard passes for the supplied context. It is a pure function; callers
// apply the transition only when this returns nil.
func CanTransition(current, next Status, ctx TransitionContext) error {
	g, ok := transitions[edge{current, next}]
	if !ok {
		return fmt.Errorf("no transition from %s to %s", current, next)
	}
	if err := g(ctx); err != nil {
		return fmt.Errorf("%s -> %s: %w", current, next, err)
	}
	return nil
}

// Contractor is the slice of contractor state the domain rules need.
type Contractor struct {
	ID               uuid.UUID
	Status           Status
	PaymentConfirmed bool
	ContractAccepted bool
	Active           bool
}

// CanActivate is the cross-cutting activation precondition, independent of
// the status edge table: approved status plus confirmed payment plus an
// accepted contract. A generated report is deliberately NOT a precondition;
// reports are produced on demand after activation.
func CanActivate(c Contractor) error {
	if c.Status != StatusApproved {
		return fmt.Errorf("contractor is %s, activation requires %s", c.Status, StatusApproved)
	}
	if !c.PaymentConfirmed {
		return fmt.Errorf("activation requires a confirmed payment")
	}
	if !c.ContractAccepted {
		return fmt.Errorf("activation requires an accepted contract")
	}
	return nil
}
