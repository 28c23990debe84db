package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a small, stable identifier returned to API callers.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeAmountMismatch     ErrorCode = "AMOUNT_MISMATCH"
	CodeMissingProof       ErrorCode = "MISSING_PROOF"
	CodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeReferenceExhausted ErrorCode = "REFERENCE_EXHAUSTED"
	CodeAlreadyDecided     ErrorCode = "ALREADY_DECIDED"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeForbidden          ErrorCode = "FORBIDDEN"
)

// DomainError is the error type shared by every layer of the service.
// Rule names the violated business rule, Snapshot optionally carries the
// entity state that caused the rejection (rendered for admin callers only).
type DomainError struct {
	Code     ErrorCode
	Message  string
	Rule     string
	Snapshot any
	Err      error
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Rule != "" {
		msg += " (" + e.Rule + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Err }

// WithSnapshot returns a copy of the error carrying the given state snapshot.
func (e *DomainError) WithSnapshot(snapshot any) *DomainError {
	cp := *e
	cp.Snapshot = snapshot
	return &cp
}

// NewValidationError reports bad input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Code: CodeValidation, Message: message}
}

// NewAmountMismatchError reports a payment amount that differs from what the booking expects.
func NewAmountMismatchError(expected, got string) *DomainError {
	return &DomainError{
		Code:    CodeAmountMismatch,
		Message: fmt.Sprintf("amount %s does not match expected %s", got, expected),
		Rule:    "amount must equal the amount due for the payment type",
	}
}

// NewMissingProofError reports a bank transfer submitted without its evidence.
func NewMissingProofError(message string) *DomainError {
	return &DomainError{
		Code:    CodeMissingProof,
		Message: message,
		Rule:    "bank transfers require a bank reference and a proof of payment",
	}
}

// NewInvalidTransitionError reports a state machine violation.
func NewInvalidTransitionError(entity, from, to string) *DomainError {
	return &DomainError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		Rule:    from + " -> " + to,
	}
}

// NewConflictError reports a lost optimistic-concurrency race.
func NewConflictError(message string) *DomainError {
	return &DomainError{Code: CodeConflict, Message: message}
}

// NewReferenceExhaustedError reports that every generated reference collided.
func NewReferenceExhaustedError(prefix string, attempts int) *DomainError {
	return &DomainError{
		Code:    CodeReferenceExhausted,
		Message: fmt.Sprintf("could not allocate a unique %s reference after %d attempts", prefix, attempts),
	}
}

// NewAlreadyDecidedError reports a duplicate administrative decision.
func NewAlreadyDecidedError(message string) *DomainError {
	return &DomainError{Code: CodeAlreadyDecided, Message: message}
}

// NewNotFoundError reports an unknown entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Code: CodeUnauthorized, Message: message}
}

func NewForbiddenError(message string) *DomainError {
	return &DomainError{Code: CodeForbidden, Message: message}
}

// CodeOf returns the code of the first DomainError in the chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsValidation reports whether err is a validation failure, including the
// amount and proof sub-codes.
func IsValidation(err error) bool {
	switch CodeOf(err) {
	case CodeValidation, CodeAmountMismatch, CodeMissingProof:
		return true
	}
	return false
}

func IsConflict(err error) bool { return IsCode(err, CodeConflict) }

func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }
