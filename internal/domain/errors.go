package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by workflow and reconciliation operations.
type ErrorKind string

const (
	KindInvalidTransition       ErrorKind = "invalid_transition"
	KindBusinessRuleViolation   ErrorKind = "business_rule_violation"
	KindGatewayError            ErrorKind = "gateway_error"
	KindReconciliationConflict  ErrorKind = "reconciliation_conflict"
	KindInvalidWebhookSignature ErrorKind = "invalid_webhook_signature"
	KindInvalidPhone            ErrorKind = "invalid_phone"
	KindInvalidInput            ErrorKind = "invalid_input"
)

// Error is a typed failure carrying a human-readable reason.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind when the target is a bare kind sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Reason == "" && t.Err == nil
}

// Kind sentinels, for use with errors.Is.
var (
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrBusinessRuleViolation   = &Error{Kind: KindBusinessRuleViolation}
	ErrGateway                 = &Error{Kind: KindGatewayError}
	ErrReconciliationConflict  = &Error{Kind: KindReconciliationConflict}
	ErrInvalidWebhookSignature = &Error{Kind: KindInvalidWebhookSignature}
	ErrInvalidPhone            = &Error{Kind: KindInvalidPhone}
	ErrInvalidInput            = &Error{Kind: KindInvalidInput}
)

// InvalidTransition reports a state or role guard failure.
func InvalidTransition(format string, args ...any) error {
	return &Error{Kind: KindInvalidTransition, Reason: fmt.Sprintf(format, args...)}
}

// BusinessRule reports a violated data precondition.
func BusinessRule(format string, args ...any) error {
	return &Error{Kind: KindBusinessRuleViolation, Reason: fmt.Sprintf(format, args...)}
}

// GatewayFailure wraps a provider or transport error.
func GatewayFailure(reason string, err error) error {
	return &Error{Kind: KindGatewayError, Reason: reason, Err: err}
}

// InvalidInput reports a malformed request value.
func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Reason: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" when err is not a typed domain error.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// ReasonOf returns the human-readable reason of a typed domain error.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

var (
	// Lookup errors
	ErrAdhesionNotFound    = errors.New("adhesion not found")
	ErrLoanNotFound        = errors.New("loan not found")
	ErrLoanTermsNotFound   = errors.New("loan terms not found")
	ErrRetraitNotFound     = errors.New("retrait not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInstallmentNotFound = errors.New("installment not found")

	// Persistence guards
	ErrStaleState          = errors.New("entity state changed concurrently")
	ErrScheduleExists      = errors.New("repayment schedule already generated")
	ErrActiveTransaction   = errors.New("workflow already has an active transaction")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)
