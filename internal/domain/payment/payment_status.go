package payment

import "fmt"

// PaymentStatus represents the state of a payment record.
type PaymentStatus string

const (
	StatusPending     PaymentStatus = "pending"
	StatusProcessing  PaymentStatus = "processing"
	StatusPaid        PaymentStatus = "paid"
	StatusDepositPaid PaymentStatus = "deposit_paid"
	StatusFailed      PaymentStatus = "failed"
	StatusRefunded    PaymentStatus = "refunded"
)

var validTransitions = map[PaymentStatus][]PaymentStatus{
	StatusPending:     {StatusProcessing, StatusPaid, StatusDepositPaid, StatusFailed},
	StatusProcessing:  {StatusPaid, StatusDepositPaid, StatusFailed},
	StatusPaid:        {StatusRefunded},
	StatusDepositPaid: {StatusRefunded},
	StatusFailed:      {},
	StatusRefunded:    {},
}

// IsValid returns true if the status is a recognized payment status.
func (s PaymentStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo returns true if a transition to target is allowed.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsInFlight is true while the record still awaits a decision.
func (s PaymentStatus) IsInFlight() bool {
	return s == StatusPending || s == StatusProcessing
}

// IsDecided is true once an outcome has been applied.
func (s PaymentStatus) IsDecided() bool {
	return s.IsValid() && !s.IsInFlight()
}

// IsSettled is true when money has been received and not returned.
func (s PaymentStatus) IsSettled() bool {
	return s == StatusPaid || s == StatusDepositPaid
}

func (s PaymentStatus) String() string { return string(s) }

// ParsePaymentStatus converts a string to a PaymentStatus.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	status := PaymentStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status: %s", s)
	}
	return status, nil
}
