package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

const loanColumns = `id, client_id, principal, duration_month, purpose, phone, state, transaction_id,
	disbursed_at, first_due_date, notes, actor_id, actor_role, entered_at, created_at, updated_at`

// LoanRepository implements usecase.LoanRepository.
type LoanRepository struct {
	pool Pool
}

// NewLoanRepository creates a new LoanRepository.
func NewLoanRepository(pool Pool) *LoanRepository {
	return &LoanRepository{pool: pool}
}

// Create inserts a new loan application.
func (r *LoanRepository) Create(ctx context.Context, tx usecase.Transaction, l *domain.Loan) error {
	trail, err := trailToColumns(l.Trail)
	if err != nil {
		return err
	}

	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO loans (`+loanColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		l.ID, l.ClientID, l.Principal, l.DurationMonth, l.Purpose, l.Phone, l.State, l.TransactionID,
		optionalTime(l.DisbursedAt), optionalTime(l.FirstDueDate), l.Notes,
		trail.actorID, trail.actorRole, trail.entered, l.CreatedAt, l.UpdatedAt,
	)
	return err
}

// GetByID retrieves a loan.
func (r *LoanRepository) GetByID(ctx context.Context, id string) (*domain.Loan, error) {
	var (
		l     domain.Loan
		trail trailColumns
	)
	err := r.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id).Scan(
		&l.ID, &l.ClientID, &l.Principal, &l.DurationMonth, &l.Purpose, &l.Phone, &l.State, &l.TransactionID,
		&l.DisbursedAt, &l.FirstDueDate, &l.Notes,
		&trail.actorID, &trail.actorRole, &trail.entered, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	if l.Trail, err = trail.trail(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Update writes the loan if its stored state is still expected.
func (r *LoanRepository) Update(ctx context.Context, tx usecase.Transaction, l *domain.Loan, expected domain.State) error {
	trail, err := trailToColumns(l.Trail)
	if err != nil {
		return err
	}

	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE loans
		SET state = $2, transaction_id = $3, disbursed_at = $4, first_due_date = $5, notes = $6,
		    actor_id = $7, actor_role = $8, entered_at = $9, updated_at = $10
		WHERE id = $1 AND state = $11`,
		l.ID, l.State, l.TransactionID, optionalTime(l.DisbursedAt), optionalTime(l.FirstDueDate), l.Notes,
		trail.actorID, trail.actorRole, trail.entered, l.UpdatedAt, expected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}

// SaveTerms inserts or replaces the terms of a loan.
func (r *LoanRepository) SaveTerms(ctx context.Context, tx usecase.Transaction, t *domain.LoanTerms) error {
	_, err := conn(r.pool, tx).Exec(ctx, `
		INSERT INTO loan_terms (loan_id, annual_rate_pct, due_day, daily_penalty_pct, monthly_installment, defined_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (loan_id) DO UPDATE
		SET annual_rate_pct = EXCLUDED.annual_rate_pct,
		    due_day = EXCLUDED.due_day,
		    daily_penalty_pct = EXCLUDED.daily_penalty_pct,
		    monthly_installment = EXCLUDED.monthly_installment,
		    defined_by = EXCLUDED.defined_by,
		    updated_at = EXCLUDED.updated_at`,
		t.LoanID, t.AnnualRatePct, t.DueDay, t.DailyPenaltyPct, t.MonthlyInstallment, t.DefinedBy, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

// GetTerms retrieves the terms of a loan.
func (r *LoanRepository) GetTerms(ctx context.Context, loanID string) (*domain.LoanTerms, error) {
	var t domain.LoanTerms
	err := r.pool.QueryRow(ctx, `
		SELECT loan_id, annual_rate_pct, due_day, daily_penalty_pct, monthly_installment, defined_by, created_at, updated_at
		FROM loan_terms WHERE loan_id = $1`, loanID).Scan(
		&t.LoanID, &t.AnnualRatePct, &t.DueDay, &t.DailyPenaltyPct, &t.MonthlyInstallment, &t.DefinedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrLoanTermsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
