package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func TestCanTransitionHappyPath(t *testing.T) {
	contractID := uuid.New()
	paymentID := uuid.New()

	steps := []struct {
		from Status
		to   Status
		ctx  TransitionContext
	}{
		{StatusInitialSignup, StatusAwaitingContract, TransitionContext{}},
		{StatusAwaitingContract, StatusContractGenerated, TransitionContext{ContractID: ptr(contractID)}},
		{StatusContractGenerated, StatusAwaitingPayment, TransitionContext{ContractID: ptr(contractID)}},
		{StatusAwaitingPayment, StatusPaymentConfirmed, TransitionContext{PaymentID: ptr(paymentID)}},
		{StatusPaymentConfirmed, StatusApproved, TransitionContext{}},
	}

	for _, s := range steps {
		if err := CanTransition(s.from, s.to, s.ctx); err != nil {
			t.Errorf("CanTransition(%s, %s) = %v, want nil", s.from, s.to, err)
		}
	}
}

func TestCanTransitionGuards(t *testing.T) {
	operator := ptr(uuid.New())

	tests := []struct {
		name string
		from Status
		to   Status
		ctx  TransitionContext
	}{
		{"contract generation without contract", StatusAwaitingContract, StatusContractGenerated, TransitionContext{}},
		{"payment confirmation without payment", StatusAwaitingPayment, StatusPaymentConfirmed, TransitionContext{}},
		{"rejection without operator", StatusAwaitingPayment, StatusRejected, TransitionContext{Reason: "missing safety certification"}},
		{"rejection without reason", StatusAwaitingPayment, StatusRejected, TransitionContext{ActorID: operator}},
		{"rejection with short reason", StatusAwaitingPayment, StatusRejected, TransitionContext{ActorID: operator, Reason: "too short"}},
		{"review without operator", StatusAwaitingContract, StatusUnderReview, TransitionContext{}},
		{"recovery without operator", StatusRejected, StatusAwaitingContract, TransitionContext{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CanTransition(tt.from, tt.to, tt.ctx); err == nil {
				t.Errorf("CanTransition(%s, %s) = nil, want error", tt.from, tt.to)
			}
		})
	}
}

func TestCanTransitionUnknownEdges(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
	}{
		{StatusInitialSignup, StatusApproved},
		{StatusApproved, StatusAwaitingContract},
		{StatusApproved, StatusRejected},
		{StatusRejected, StatusApproved},
		{StatusAwaitingContract, StatusAwaitingPayment},
	}

	for _, tt := range tests {
		err := CanTransition(tt.from, tt.to, TransitionContext{ActorID: ptr(uuid.New()), Reason: strings.Repeat("x", 20)})
		if err == nil {
			t.Errorf("CanTransition(%s, %s) = nil, want error for missing edge", tt.from, tt.to)
		}
	}
}

func TestRejectionFromEveryNonTerminalState(t *testing.T) {
	ctx := TransitionContext{ActorID: ptr(uuid.New()), Reason: "documentation inconsistent with registry"}
	froms := []Status{
		StatusInitialSignup, StatusAwaitingContract, StatusContractGenerated,
		StatusAwaitingPayment, StatusPaymentConfirmed, StatusUnderReview,
	}
	for _, from := range froms {
		if err := CanTransition(from, StatusRejected, ctx); err != nil {
			t.Errorf("CanTransition(%s, rejected) = %v, want nil", from, err)
		}
	}
}

func TestCanActivate(t *testing.T) {
	base := Contractor{Status: StatusApproved, PaymentConfirmed: true, ContractAccepted: true}

	if err := CanActivate(base); err != nil {
		t.Fatalf("CanActivate(ready contractor) = %v, want nil", err)
	}

	tests := []struct {
		name string
		mut  func(*Contractor)
	}{
		{"not approved", func(c *Contractor) { c.Status = StatusPaymentConfirmed }},
		{"payment not confirmed", func(c *Contractor) { c.PaymentConfirmed = false }},
		{"contract not accepted", func(c *Contractor) { c.ContractAccepted = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mut(&c)
			if err := CanActivate(c); err == nil {
				t.Error("CanActivate = nil, want error")
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("awaiting_payment"); err != nil {
		t.Errorf("ParseStatus(awaiting_payment) = %v, want nil", err)
	}
	if _, err := ParseStatus("finished"); err == nil {
		t.Error("ParseStatus(finished) = nil, want error")
	}
}
