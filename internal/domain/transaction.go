package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the lifecycle status of an external payment.
type TransactionStatus string

const (
	TxCreated   TransactionStatus = "created"
	TxPending   TransactionStatus = "pending"
	TxSuccess   TransactionStatus = "success"
	TxFailed    TransactionStatus = "failed"
	TxExpired   TransactionStatus = "expired"
	TxCancelled TransactionStatus = "cancelled"
)

// IsTerminal reports whether s can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TxSuccess, TxFailed, TxExpired, TxCancelled:
		return true
	default:
		return false
	}
}

// Terminal reasons.
const (
	ReasonPollingTimeout  = "PollingTimeout"
	ReasonGatewayError    = "GatewayError"
	ReasonClientCancelled = "ClientCancelled"
	ReasonNotFound        = "NotFound"
)

// Purpose tells the reconciler which workflow owns a transaction.
type Purpose string

const (
	PurposeAdhesionFee   Purpose = "adhesion_fee"
	PurposeContribution  Purpose = "contribution"
	PurposeDeposit       Purpose = "savings_deposit"
	PurposeWithdrawal    Purpose = "withdrawal"
	PurposeLoanRepayment Purpose = "loan_repayment"
)

var purposeCodes = map[Purpose]string{
	PurposeAdhesionFee:   "ADH",
	PurposeContribution:  "COT",
	PurposeDeposit:       "DEP",
	PurposeWithdrawal:    "RET",
	PurposeLoanRepayment: "REM",
}

// IsValid reports whether p is known.
func (p Purpose) IsValid() bool {
	_, ok := purposeCodes[p]
	return ok
}

// IsPayout reports whether money leaves the platform.
func (p Purpose) IsPayout() bool {
	return p == PurposeWithdrawal
}

// Reference builds the internal reference for a transaction id.
func (p Purpose) Reference(id string) string {
	return "TF" + purposeCodes[p] + strings.ToUpper(id)
}

// DefaultCurrency is the only supported currency (West African CFA franc).
const DefaultCurrency = "XOF"

// ExternalTransaction tracks one payment reference at the provider.
type ExternalTransaction struct {
	ID                  string
	Reference           string
	ProviderRef         string
	WorkflowID          string
	Purpose             Purpose
	Amount              decimal.Decimal
	Currency            string
	Phone               string
	Description         string
	Status              TransactionStatus
	Reason              string
	ProviderPayload     []byte
	PollCount           int
	InitiateAttempts    int
	WebhookReceivedAt   *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
	CallbackCompletedAt *time.Time
}

// Validate checks creation data.
func (t *ExternalTransaction) Validate() error {
	if t.WorkflowID == "" {
		return InvalidInput("workflow id is required")
	}
	if !t.Purpose.IsValid() {
		return InvalidInput("unknown purpose %q", t.Purpose)
	}
	if err := ValidateCurrency(t.Currency); err != nil {
		return err
	}
	return ValidateAmount(t.Amount)
}

// IsTerminal reports whether the transaction reached a final status.
func (t *ExternalTransaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// TerminalUpdate is the payload of the single terminal write.
type TerminalUpdate struct {
	Status      TransactionStatus
	Reason      string
	Payload     []byte
	CompletedAt time.Time
}
