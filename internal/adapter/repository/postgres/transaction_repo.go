package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// activeWorkflowIndex is the partial unique index allowing one non-terminal
// transaction per workflow.
const activeWorkflowIndex = "external_transactions_active_workflow_idx"

const transactionColumns = `id, reference, provider_ref, workflow_id, purpose, amount, currency, phone, description,
	status, reason, provider_payload, poll_count, initiate_attempts, webhook_received_at,
	created_at, updated_at, completed_at, callback_completed_at`

// TransactionRepository implements usecase.TransactionRepository.
// Every status change is a conditional UPDATE; the row is the source of truth
// for concurrent pollers, webhooks and cancellations.
type TransactionRepository struct {
	pool Pool
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(pool Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create inserts a transaction in status created.
func (r *TransactionRepository) Create(ctx context.Context, tx usecase.Transaction, t *domain.ExternalTransaction) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO external_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		t.ID, t.Reference, nullString(t.ProviderRef), t.WorkflowID, t.Purpose, t.Amount, t.Currency, t.Phone, t.Description,
		t.Status, t.Reason, t.ProviderPayload, t.PollCount, t.InitiateAttempts, optionalTime(t.WebhookReceivedAt),
		t.CreatedAt, t.UpdatedAt, optionalTime(t.CompletedAt), optionalTime(t.CallbackCompletedAt),
	)
	if isUniqueViolation(err, activeWorkflowIndex) {
		return domain.ErrActiveTransaction
	}
	return err
}

// GetByID retrieves a transaction.
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*domain.ExternalTransaction, error) {
	return r.getOne(ctx, `SELECT `+transactionColumns+` FROM external_transactions WHERE id = $1`, id)
}

// GetByReference matches the provider reference first, then the internal one.
func (r *TransactionRepository) GetByReference(ctx context.Context, ref string) (*domain.ExternalTransaction, error) {
	return r.getOne(ctx, `
		SELECT `+transactionColumns+` FROM external_transactions
		WHERE provider_ref = $1 OR reference = $1
		ORDER BY (provider_ref = $1) DESC NULLS LAST
		LIMIT 1`, ref)
}

// GetActiveByWorkflow returns the non-terminal transaction of a workflow.
func (r *TransactionRepository) GetActiveByWorkflow(ctx context.Context, workflowID string) (*domain.ExternalTransaction, error) {
	return r.getOne(ctx, `
		SELECT `+transactionColumns+` FROM external_transactions
		WHERE workflow_id = $1 AND status IN ('created', 'pending')`, workflowID)
}

// MarkPending records the provider acknowledgement.
func (r *TransactionRepository) MarkPending(ctx context.Context, id, providerRef string, payload []byte, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE external_transactions
		SET status = 'pending', provider_ref = $2, provider_payload = $3, updated_at = $4
		WHERE id = $1 AND status = 'created'`, id, nullString(providerRef), payload, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementInitiateAttempts counts one initiation call.
func (r *TransactionRepository) IncrementInitiateAttempts(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE external_transactions SET initiate_attempts = initiate_attempts + 1, updated_at = $2
		WHERE id = $1`, id, at)
}

// RecordPoll counts one status query of an active transaction.
func (r *TransactionRepository) RecordPoll(ctx context.Context, id string, payload []byte, at time.Time) error {
	return r.exec(ctx, `
		UPDATE external_transactions
		SET poll_count = poll_count + 1, provider_payload = COALESCE($2, provider_payload), updated_at = $3
		WHERE id = $1 AND status IN ('created', 'pending')`, id, payload, at)
}

// RecordWebhook notes the arrival of a notification for an active transaction.
func (r *TransactionRepository) RecordWebhook(ctx context.Context, id string, payload []byte, at time.Time) error {
	return r.exec(ctx, `
		UPDATE external_transactions
		SET webhook_received_at = $3, provider_payload = $2, updated_at = $3
		WHERE id = $1 AND status IN ('created', 'pending')`, id, payload, at)
}

// CompleteIfActive is the single terminal write.
func (r *TransactionRepository) CompleteIfActive(ctx context.Context, id string, u domain.TerminalUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE external_transactions
		SET status = $2, reason = $3, provider_payload = COALESCE($4, provider_payload), completed_at = $5, updated_at = $5
		WHERE id = $1 AND status IN ('created', 'pending')`, id, u.Status, u.Reason, u.Payload, u.CompletedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCallbackCompleted records that the owning workflow was advanced.
func (r *TransactionRepository) MarkCallbackCompleted(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `
		UPDATE external_transactions SET callback_completed_at = $2
		WHERE id = $1 AND callback_completed_at IS NULL`, id, at)
}

// ListActive returns non-terminal transactions, oldest first.
func (r *TransactionRepository) ListActive(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+` FROM external_transactions
		WHERE status IN ('created', 'pending')
		ORDER BY created_at, id
		LIMIT $1`, limit)
}

// ListCallbackPending returns terminal transactions whose workflow was not advanced yet.
func (r *TransactionRepository) ListCallbackPending(ctx context.Context, limit int) ([]*domain.ExternalTransaction, error) {
	return r.list(ctx, `
		SELECT `+transactionColumns+` FROM external_transactions
		WHERE status NOT IN ('created', 'pending') AND callback_completed_at IS NULL
		ORDER BY completed_at, id
		LIMIT $1`, limit)
}

func (r *TransactionRepository) exec(ctx context.Context, sql string, args ...any) error {
	_, err := r.pool.Exec(ctx, sql, args...)
	return err
}

func (r *TransactionRepository) getOne(ctx context.Context, sql string, args ...any) (*domain.ExternalTransaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return t, err
}

func (r *TransactionRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.ExternalTransaction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ExternalTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.ExternalTransaction, error) {
	var (
		t           domain.ExternalTransaction
		providerRef *string
	)
	err := row.Scan(
		&t.ID, &t.Reference, &providerRef, &t.WorkflowID, &t.Purpose, &t.Amount, &t.Currency, &t.Phone, &t.Description,
		&t.Status, &t.Reason, &t.ProviderPayload, &t.PollCount, &t.InitiateAttempts, &t.WebhookReceivedAt,
		&t.CreatedAt, &t.UpdatedAt, &t.CompletedAt, &t.CallbackCompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerRef != nil {
		t.ProviderRef = *providerRef
	}
	return &t, nil
}
