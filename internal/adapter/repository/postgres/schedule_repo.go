package postgres

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

// ScheduleRepository implements usecase.ScheduleRepository.
type ScheduleRepository struct {
	pool Pool
}

// NewScheduleRepository creates a new ScheduleRepository.
func NewScheduleRepository(pool Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// CreateSchedule inserts every installment of a loan. Run it inside a transaction.
func (r *ScheduleRepository) CreateSchedule(ctx context.Context, tx usecase.Transaction, loanID string, installments []domain.Installment) error {
	db := conn(r.pool, tx)

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loan_installments WHERE loan_id = $1)`, loanID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return domain.ErrScheduleExists
	}

	for _, inst := range installments {
		_, err := db.Exec(ctx, `
			INSERT INTO loan_installments (loan_id, number, due_date, amount, principal, interest, remaining, status, penalty_paid, transaction_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '')`,
			loanID, inst.Number, inst.DueDate, inst.Amount, inst.Principal, inst.Interest, inst.Remaining,
			domain.InstallmentPending, decimal.Zero,
		)
		if isUniqueViolation(err, "") {
			return domain.ErrScheduleExists
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByLoan returns the schedule ordered by installment number.
func (r *ScheduleRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Installment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT loan_id, number, due_date, amount, principal, interest, remaining, status, paid_at, penalty_paid, transaction_id
		FROM loan_installments
		WHERE loan_id = $1
		ORDER BY number`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Installment
	for rows.Next() {
		var inst domain.Installment
		if err := rows.Scan(
			&inst.LoanID, &inst.Number, &inst.DueDate, &inst.Amount, &inst.Principal, &inst.Interest, &inst.Remaining,
			&inst.Status, &inst.PaidAt, &inst.PenaltyPaid, &inst.TransactionID,
		); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// MarkPaid settles a pending installment.
func (r *ScheduleRepository) MarkPaid(ctx context.Context, tx usecase.Transaction, loanID string, number int,
	status domain.InstallmentStatus, penalty decimal.Decimal, transactionID string, paidAt time.Time) error {
	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE loan_installments
		SET status = $3, penalty_paid = $4, transaction_id = $5, paid_at = $6
		WHERE loan_id = $1 AND number = $2 AND status = 'pending'`,
		loanID, number, status, penalty, transactionID, paidAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}
