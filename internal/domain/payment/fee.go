package payment

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeeSplit is the platform's share of a payment and the remainder owed to the
// service owner. Fee + OwnerPayout always equals the amount.
type FeeSplit struct {
	PlatformFee decimal.Decimal
	OwnerPayout decimal.Decimal
}

// FeeStrategy computes the fee split for a payment.
type FeeStrategy interface {
	Split(amount decimal.Decimal, method Method) (FeeSplit, error)
}

// PercentageFeeStrategy charges a flat percentage per method.
type PercentageFeeStrategy struct {
	platformPercent decimal.Decimal
	cashPercent     decimal.Decimal
}

// NewPercentageFeeStrategy creates a PercentageFeeStrategy. cashPercent applies
// to pay-on-pickup records, platformPercent to everything else.
func NewPercentageFeeStrategy(platformPercent, cashPercent decimal.Decimal) *PercentageFeeStrategy {
	return &PercentageFeeStrategy{platformPercent: platformPercent, cashPercent: cashPercent}
}

// Split rounds the fee to two decimals and derives the payout by subtraction.
func (s *PercentageFeeStrategy) Split(amount decimal.Decimal, method Method) (FeeSplit, error) {
	if amount.IsNegative() {
		return FeeSplit{}, fmt.Errorf("amount cannot be negative")
	}
	if !method.IsValid() {
		return FeeSplit{}, fmt.Errorf("unknown payment method for fee split: %s", method)
	}

	pct := s.platformPercent
	if method == MethodCashOnPickup {
		pct = s.cashPercent
	}

	fee := amount.Mul(pct).Div(hundred).Round(2)
	return FeeSplit{PlatformFee: fee, OwnerPayout: amount.Sub(fee)}, nil
}

// DepositAmount is percent of amountDue rounded to two decimals.
func DepositAmount(amountDue, percent decimal.Decimal) decimal.Decimal {
	return amountDue.Mul(percent).Div(hundred).Round(2)
}

// SettledTotal sums the amounts of records currently holding money.
func SettledTotal(records []*PaymentRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Status().IsSettled() {
			total = total.Add(r.Amount())
		}
	}
	return total
}

// ExpectedAmount returns the amount a payment of the given type must carry.
func ExpectedAmount(t PaymentType, amountDue, depositPercent decimal.Decimal, records []*PaymentRecord) decimal.Decimal {
	switch t {
	case TypeDeposit:
		return DepositAmount(amountDue, depositPercent)
	case TypeBalance:
		return amountDue.Sub(SettledTotal(records))
	default:
		return amountDue
	}
}
