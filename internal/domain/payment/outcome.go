package payment

import (
	"fmt"
	"strings"
)

// Outcome is the result a payment gateway reports for a checkout.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomePending     Outcome = "pending"
	OutcomeFailed      Outcome = "failed"
	OutcomeCancelled   Outcome = "cancelled"
	OutcomeChargedBack Outcome = "chargedback"
)

// IsValid returns true if the outcome is known.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeSuccess, OutcomePending, OutcomeFailed, OutcomeCancelled, OutcomeChargedBack:
		return true
	}
	return false
}

// IsFinal reports whether the outcome decides the payment.
func (o Outcome) IsFinal() bool {
	return o.IsValid() && o != OutcomePending
}

// ParseOutcome converts a string to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.ToLower(strings.TrimSpace(s)))
	if !o.IsValid() {
		return "", fmt.Errorf("invalid gateway outcome: %s", s)
	}
	return o, nil
}
