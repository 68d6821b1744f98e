package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

const ledgerColumns = `id, owner_id, pool_kind, pool_id, kind, amount, transaction_id, confirmed, created_at, confirmed_at`

// LedgerRecordRepository implements usecase.LedgerRecordRepository.
// Records are append-only; only confirmed and confirmed_at ever change.
type LedgerRecordRepository struct {
	pool Pool
}

// NewLedgerRecordRepository creates a new LedgerRecordRepository.
func NewLedgerRecordRepository(pool Pool) *LedgerRecordRepository {
	return &LedgerRecordRepository{pool: pool}
}

// Create inserts a ledger record.
func (r *LedgerRecordRepository) Create(ctx context.Context, tx usecase.Transaction, rec *domain.LedgerRecord) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO ledger_records (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.ID, rec.OwnerID, rec.Pool.Kind, rec.Pool.ID, rec.Kind, rec.Amount, rec.TransactionID, rec.Confirmed,
		rec.CreatedAt, optionalTime(rec.ConfirmedAt),
	)
	return err
}

// ListByOwnerPool returns every record of an owner in a pool, oldest first.
func (r *LedgerRecordRepository) ListByOwnerPool(ctx context.Context, ownerID string, pool domain.Pool) ([]domain.LedgerRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ledgerColumns+` FROM ledger_records
		WHERE owner_id = $1 AND pool_kind = $2 AND pool_id = $3
		ORDER BY created_at, id`, ownerID, pool.Kind, pool.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LedgerRecord
	for rows.Next() {
		rec, err := scanLedgerRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// GetByTransaction returns the record tied to a payment transaction.
func (r *LedgerRecordRepository) GetByTransaction(ctx context.Context, transactionID string) (*domain.LedgerRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledger_records WHERE transaction_id = $1`, transactionID)
	rec, err := scanLedgerRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	return rec, err
}

// ConfirmByTransaction confirms the record of a transaction once.
func (r *LedgerRecordRepository) ConfirmByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string, at time.Time) (bool, error) {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE ledger_records SET confirmed = TRUE, confirmed_at = $2
		WHERE transaction_id = $1 AND NOT confirmed`, transactionID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// LockPool takes a transaction-scoped advisory lock on (owner, pool).
func (r *LedgerRecordRepository) LockPool(ctx context.Context, tx usecase.Transaction, ownerID string, pool domain.Pool) error {
	if tx == nil {
		return errors.New("lock pool: transaction required")
	}
	_, err := conn(r.pool, tx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
		"ledger:"+ownerID+":"+pool.String())
	return err
}

// PendingDebits sums unconfirmed debits whose payment has not reached a terminal status.
func (r *LedgerRecordRepository) PendingDebits(ctx context.Context, tx usecase.Transaction, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := conn(r.pool, tx).QueryRow(ctx, `
		SELECT COALESCE(SUM(l.amount), 0)
		FROM ledger_records l
		JOIN external_transactions t ON t.id = l.transaction_id
		WHERE l.owner_id = $1 AND l.pool_kind = $2 AND l.pool_id = $3
			AND l.kind = 'debit' AND NOT l.confirmed
			AND t.status IN ('created', 'pending')`, ownerID, pool.Kind, pool.ID).Scan(&sum)
	return sum, err
}

func scanLedgerRecord(row pgx.Row) (*domain.LedgerRecord, error) {
	var rec domain.LedgerRecord
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.Pool.Kind, &rec.Pool.ID, &rec.Kind, &rec.Amount, &rec.TransactionID, &rec.Confirmed,
		&rec.CreatedAt, &rec.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
