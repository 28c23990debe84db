package payment

import "fmt"

// Method is the channel a payment is collected through.
type Method string

const (
	MethodGateway      Method = "gateway"
	MethodBankTransfer Method = "bank_transfer"
	MethodCashOnPickup Method = "cash_on_pickup"
)

// IsValid returns true if the method is supported.
func (m Method) IsValid() bool {
	switch m {
	case MethodGateway, MethodBankTransfer, MethodCashOnPickup:
		return true
	}
	return false
}

// InitialStatus is the status a freshly created record starts in. Online and
// bank payments wait for an external decision; pay-on-pickup is only a promise.
func (m Method) InitialStatus() PaymentStatus {
	if m == MethodCashOnPickup {
		return StatusPending
	}
	return StatusProcessing
}

func (m Method) String() string { return string(m) }

// ParseMethod converts a string to a Method.
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payment method: %s", s)
	}
	return m, nil
}

// PaymentType distinguishes full settlement from a deposit and its balance.
type PaymentType string

const (
	TypeFull    PaymentType = "full"
	TypeDeposit PaymentType = "deposit"
	TypeBalance PaymentType = "balance"
)

// IsValid returns true if the payment type is supported.
func (t PaymentType) IsValid() bool {
	return t == TypeFull || t == TypeDeposit || t == TypeBalance
}

// SettledStatus is the status a successful payment of this type lands in.
func (t PaymentType) SettledStatus() PaymentStatus {
	if t == TypeDeposit {
		return StatusDepositPaid
	}
	return StatusPaid
}

// ParsePaymentType converts a string to a PaymentType; empty means full.
func ParsePaymentType(s string) (PaymentType, error) {
	if s == "" {
		return TypeFull, nil
	}
	t := PaymentType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid payment type: %s", s)
	}
	return t, nil
}

// MethodFields carries the method-specific data of a payment record.
type MethodFields struct {
	BankReference         string `json:"bankReference,omitempty"`
	ProofURL              string `json:"proofUrl,omitempty"`
	PayerName             string `json:"payerName,omitempty"`
	ExternalTransactionID string `json:"externalTransactionId,omitempty"`
	GatewayStatusCode     string `json:"gatewayStatusCode,omitempty"`
	VerifiedBy            string `json:"verifiedBy,omitempty"`
	CollectedBy           string `json:"collectedBy,omitempty"`
}

// Redirect is a method-neutral description of where to send the customer to
// complete an online payment: a form action and the fields to post to it.
type Redirect struct {
	ActionURL string            `json:"action_url"`
	Method    string            `json:"method"`
	Params    map[string]string `json:"params"`
}
