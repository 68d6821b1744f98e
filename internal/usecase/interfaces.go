package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// AdhesionRepository defines data access for adhesions.
type AdhesionRepository interface {
	Create(ctx context.Context, tx Transaction, adhesion *domain.Adhesion) error
	GetByID(ctx context.Context, id string) (*domain.Adhesion, error)
	// Update writes adhesion only if the stored state still equals expected,
	// returning domain.ErrStaleState otherwise.
	Update(ctx context.Context, tx Transaction, adhesion *domain.Adhesion, expected domain.State) error
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*domain.Adhesion, error)
}

// LoanRepository defines data access for loans and their terms.
type LoanRepository interface {
	Create(ctx context.Context, tx Transaction, loan *domain.Loan) error
	GetByID(ctx context.Context, id string) (*domain.Loan, error)
	Update(ctx context.Context, tx Transaction, loan *domain.Loan, expected domain.State) error
	SaveTerms(ctx context.Context, tx Transaction, terms *domain.LoanTerms) error
	GetTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error)
}

// ScheduleRepository defines data access for repayment schedules.
type ScheduleRepository interface {
	// CreateSchedule inserts all installments at once; domain.ErrScheduleExists if any exist.
	CreateSchedule(ctx context.Context, tx Transaction, loanID string, installments []domain.Installment) error
	ListByLoan(ctx context.Context, loanID string) ([]domain.Installment, error)
	// MarkPaid settles a pending installment; domain.ErrStaleState if it is not pending.
	MarkPaid(ctx context.Context, tx Transaction, loanID string, number int, status domain.InstallmentStatus,
		penalty decimal.Decimal, transactionID string, paidAt time.Time) error
}

// RetraitRepository defines data access for withdrawals.
type RetraitRepository interface {
	Create(ctx context.Context, tx Transaction, retrait *domain.Retrait) error
	GetByID(ctx context.Context, id string) (*domain.Retrait, error)
	Update(ctx context.Context, tx Transaction, retrait *domain.Retrait, expected domain.State) error
}

// TransactionRepository defines data access for external payment transactions.
type TransactionRepository interface {
	// Create fails with domain.ErrActiveTransaction when the workflow already has a non-terminal one.
	Create(ctx context.Context, tx Transaction, t *domain.ExternalTransaction) error
	GetByID(ctx context.Context, id string) (*domain.ExternalTransaction, error)
	// GetByReference matches the provider reference first, then the internal reference.
	GetByReference(ctx context.Context, ref string) (*domain.ExternalTransaction, error)
	GetActiveByWorkflow(ctx context.Context, workflowID string) (*domain.ExternalTransaction, error)
	// MarkPending moves created to pending. Returns false when the row is no longer created.
	MarkPending(ctx context.Context, id, providerRef string, payload []byte, at time.Time) (bool, error)
	IncrementInitiateAttempts(ctx context.Context, id string, at time.Time) error
	RecordPoll(ctx context.Context, id string, payload []byte, at time.Time) error
	RecordWebhook(ctx context.Context, id string, payload []byte, at time.Time) error
	// CompleteIfActive is the terminal compare-and-swap. Returns false when the row was already terminal.
	CompleteIfActive(ctx context.Context, id string, update domain.TerminalUpdate) (bool, error)
	MarkCallbackCompleted(ctx context.Context, id string, at time.Time) error
	ListActive(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error)
	ListCallbackPending(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error)
}

// LedgerRecordRepository defines data access for ledger records.
type LedgerRecordRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.LedgerRecord) error
	ListByOwnerPool(ctx context.Context, ownerID string, pool domain.Pool) ([]domain.LedgerRecord, error)
	GetByTransaction(ctx context.Context, transactionID string) (*domain.LedgerRecord, error)
	// ConfirmByTransaction flips confirmed once. Returns false if already confirmed.
	ConfirmByTransaction(ctx context.Context, tx Transaction, transactionID string, at time.Time) (bool, error)
	// LockPool serializes balance-guarded writes on (owner, pool) until tx ends.
	LockPool(ctx context.Context, tx Transaction, ownerID string, pool domain.Pool) error
	// PendingDebits sums unconfirmed debits whose payment is still created or pending.
	PendingDebits(ctx context.Context, tx Transaction, ownerID string, pool domain.Pool) (decimal.Decimal, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claimed key so a failed request can be retried.
	Release(ctx context.Context, key string) error
}

// BalanceCache is an explicit, opt-in cache of computed balances.
type BalanceCache interface {
	Get(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, bool, error)
	Set(ctx context.Context, ownerID string, pool domain.Pool, balance decimal.Decimal) error
	Invalidate(ctx context.Context, ownerID string, pool domain.Pool) error
}

// Lease is a held lock that must be released.
type Lease interface {
	Release(ctx context.Context) error
}

// PollLocker grants exclusive polling of one transaction.
type PollLocker interface {
	// TryAcquire returns ok=false without error when another poller holds key.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// PaymentRequest is what the provider needs to collect or pay out.
type PaymentRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Phone       string
	Reference   string
	Description string
	Purpose     domain.Purpose
}

// ProviderAck is the provider's answer to an initiation.
type ProviderAck struct {
	ProviderRef string
	Accepted    bool
	Status      domain.TransactionStatus
	Payload     []byte
}

// ProviderStatus is a status observation mapped to the canonical vocabulary.
// Status is one of pending, success, failed, expired.
type ProviderStatus struct {
	Status    domain.TransactionStatus
	RawStatus string
	Code      string
	Payload   []byte
}

// WebhookEvent is a parsed, signature-checked provider notification.
type WebhookEvent struct {
	TransactionID string
	Status        ProviderStatus
	Amount        decimal.Decimal
	Currency      string
	Customer      string
	Timestamp     time.Time
	Raw           []byte
}

// PaymentGateway is the provider adapter.
type PaymentGateway interface {
	Initiate(ctx context.Context, req PaymentRequest) (*ProviderAck, error)
	// QueryStatus returns ErrProviderNotFound when the provider does not know ref.
	QueryStatus(ctx context.Context, ref string) (*ProviderStatus, error)
	NormalizePhone(raw string) (string, error)
	// VerifyWebhook checks the signature over the raw body.
	VerifyWebhook(body []byte, signature string) error
	ParseWebhook(body []byte) (*WebhookEvent, error)
}

// TerminalHandler advances a workflow once its transaction is terminal.
// Implementations must tolerate repeated calls for the same transaction.
type TerminalHandler interface {
	OnTransactionTerminal(ctx context.Context, t *domain.ExternalTransaction) error
}

// Payments is the slice of the reconciler used by workflow use cases.
type Payments interface {
	Create(ctx context.Context, tx Transaction, in CreatePaymentInput) (*domain.ExternalTransaction, error)
	Submit(ctx context.Context, transactionID string) (*domain.ExternalTransaction, error)
	Cancel(ctx context.Context, transactionID string) (bool, error)
}
