package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// actionDefineTerms is audited like a transition but does not move the loan.
const actionDefineTerms domain.Action = "define_terms"

// ApplyLoanInput is a client's loan application.
type ApplyLoanInput struct {
	Principal     decimal.Decimal
	DurationMonth int
	Purpose       string
	Phone         string
	Notes         string
}

// DefineTermsInput holds the supervisor's terms.
type DefineTermsInput struct {
	AnnualRatePct   decimal.Decimal
	DueDay          int
	DailyPenaltyPct decimal.Decimal
}

// ScheduleLine is an installment with its penalty as of a given day.
type ScheduleLine struct {
	domain.Installment
	Penalty   decimal.Decimal
	AmountDue decimal.Decimal
}

// RepaymentResult describes a started repayment.
type RepaymentResult struct {
	Loan        *domain.Loan
	Installment domain.Installment
	Penalty     decimal.Decimal
	Transaction *domain.ExternalTransaction
}

// LoanUseCase runs the loan workflow and its repayments.
type LoanUseCase struct {
	workflowBase
	repo     LoanRepository
	schedule ScheduleRepository
	payments Payments
}

// NewLoanUseCase creates a new LoanUseCase.
func NewLoanUseCase(deps WorkflowDeps, repo LoanRepository, schedule ScheduleRepository, payments Payments) *LoanUseCase {
	return &LoanUseCase{
		workflowBase: newWorkflowBase(domain.AggregateTypeLoan, deps),
		repo:         repo,
		schedule:     schedule,
		payments:     payments,
	}
}

// Apply creates a submitted loan application.
func (uc *LoanUseCase) Apply(ctx context.Context, actor domain.Actor, input ApplyLoanInput) (*domain.Loan, error) {
	if actor.Role != domain.RoleClient {
		return nil, uc.refuse(domain.InvalidTransition("loan: only clients apply"))
	}
	if err := domain.ValidateNotes(input.Notes); err != nil {
		return nil, err
	}

	now := uc.now()
	l := &domain.Loan{
		ID:            uc.IDGen.Generate(),
		ClientID:      actor.ID,
		Principal:     input.Principal,
		DurationMonth: input.DurationMonth,
		Purpose:       input.Purpose,
		Phone:         input.Phone,
		State:         domain.LoanMachine.Initial,
		Notes:         input.Notes,
		Trail:         domain.NewTrail(domain.LoanMachine.Initial, actor, now),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		return uc.repo.Create(ctx, tx, l)
	}); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}
	return l, nil
}

// Get returns a loan.
func (uc *LoanUseCase) Get(ctx context.Context, id string) (*domain.Loan, error) {
	return uc.repo.GetByID(ctx, id)
}

// GetTerms returns the terms of a loan.
func (uc *LoanUseCase) GetTerms(ctx context.Context, id string) (*domain.LoanTerms, error) {
	return uc.repo.GetTerms(ctx, id)
}

// Schedule returns the repayment schedule with penalties accrued as of today.
func (uc *LoanUseCase) Schedule(ctx context.Context, id string) ([]ScheduleLine, error) {
	terms, err := uc.repo.GetTerms(ctx, id)
	if err != nil {
		return nil, err
	}
	installments, err := uc.schedule.ListByLoan(ctx, id)
	if err != nil {
		return nil, err
	}

	today := uc.now()
	rate := terms.DailyPenaltyRate()
	lines := make([]ScheduleLine, 0, len(installments))
	for _, inst := range installments {
		lines = append(lines, ScheduleLine{
			Installment: inst,
			Penalty:     domain.ComputePenalty(inst, today, rate),
			AmountDue:   domain.AmountDue(inst, today, rate),
		})
	}
	return lines, nil
}

// Review opens the supervisor review.
func (uc *LoanUseCase) Review(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return uc.advance(ctx, id, domain.ActionReview, actor, "")
}

// DefineTerms sets or replaces the loan terms during review.
func (uc *LoanUseCase) DefineTerms(ctx context.Context, id string, actor domain.Actor, input DefineTermsInput) (*domain.LoanTerms, error) {
	if err := uc.requireRole(actor, domain.RoleSupervisor); err != nil {
		return nil, uc.refuse(err)
	}
	l, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.State != domain.LoanUnderReview {
		return nil, uc.refuse(domain.InvalidTransition("loan: terms can only be defined under review, not %s", l.State))
	}

	now := uc.now()
	terms := &domain.LoanTerms{
		LoanID:          l.ID,
		AnnualRatePct:   input.AnnualRatePct,
		DueDay:          input.DueDay,
		DailyPenaltyPct: input.DailyPenaltyPct,
		DefinedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	installment, err := domain.MonthlyInstallment(l.Principal, terms.MonthlyRate(), l.DurationMonth)
	if err != nil {
		return nil, err
	}
	terms.MonthlyInstallment = installment

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.repo.SaveTerms(ctx, tx, terms); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, l.ID, actionDefineTerms, actor, l.State, l.State, nil, terms, now)
	}); err != nil {
		return nil, fmt.Errorf("save loan terms: %w", err)
	}
	return terms, nil
}

// Transfer hands the reviewed loan to an admin. Terms must exist.
func (uc *LoanUseCase) Transfer(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return uc.advance(ctx, id, domain.ActionTransfer, actor, "", uc.requireTerms)
}

func (uc *LoanUseCase) requireTerms(ctx context.Context, l *domain.Loan) error {
	if _, err := uc.repo.GetTerms(ctx, l.ID); err != nil {
		if errors.Is(err, domain.ErrLoanTermsNotFound) {
			return domain.BusinessRule("loan terms must be defined before transfer")
		}
		return err
	}
	return nil
}

// Approve is the admin's decision to grant the loan.
func (uc *LoanUseCase) Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, error) {
	return uc.advance(ctx, id, domain.ActionApprove, actor, "")
}

// Reject closes the application before disbursement.
func (uc *LoanUseCase) Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Loan, error) {
	return uc.advance(ctx, id, domain.ActionReject, actor, reason)
}

// advance applies action and then runs the data preconditions in guards.
func (uc *LoanUseCase) advance(ctx context.Context, id string, action domain.Action, actor domain.Actor, notes string,
	guards ...func(context.Context, *domain.Loan) error,
) (*domain.Loan, error) {
	if err := domain.ValidateNotes(notes); err != nil {
		return nil, err
	}
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	next, err := current.Apply(action, actor, now)
	if err != nil {
		return nil, uc.refuse(err)
	}
	for _, guard := range guards {
		if err := guard(ctx, current); err != nil {
			return nil, uc.refuse(err)
		}
	}
	if notes != "" {
		next.Notes = notes
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, id, action, actor, current.State, next.State, current, next, now)
	}); err != nil {
		return nil, uc.refuse(err)
	}
	return &next, nil
}

// Disburse records the disbursement and materializes the repayment schedule. The
// first installment falls on the terms' due day strictly after disbursement.
func (uc *LoanUseCase) Disburse(ctx context.Context, id string, actor domain.Actor) (*domain.Loan, []domain.Installment, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	now := uc.now()
	next, err := current.Apply(domain.ActionDisburse, actor, now)
	if err != nil {
		return nil, nil, uc.refuse(err)
	}
	terms, err := uc.repo.GetTerms(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	firstDue := domain.NextDueDate(now, terms.DueDay)
	installments, err := domain.GenerateSchedule(current.Principal, terms.MonthlyRate(), current.DurationMonth, firstDue)
	if err != nil {
		return nil, nil, err
	}
	for i := range installments {
		installments[i].LoanID = current.ID
	}
	next.DisbursedAt = &now
	next.FirstDueDate = &firstDue

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.schedule.CreateSchedule(ctx, tx, current.ID, installments); err != nil {
			if errors.Is(err, domain.ErrScheduleExists) {
				return domain.InvalidTransition("loan: schedule already exists")
			}
			return err
		}
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		if err := uc.recordTransition(ctx, tx, id, domain.ActionDisburse, actor, current.State, next.State, current, next, now); err != nil {
			return err
		}
		return uc.emit(ctx, tx, id, domain.EventTypeLoanDisbursed, map[string]any{
			"loan_id":             id,
			"client_id":           current.ClientID,
			"principal":           current.Principal.String(),
			"installments":        len(installments),
			"monthly_installment": terms.MonthlyInstallment.String(),
			"first_due_date":      firstDue.Format(time.DateOnly),
		})
	}); err != nil {
		return nil, nil, uc.refuse(err)
	}
	return &next, installments, nil
}

// Repay starts payment of the earliest unpaid installment plus its accrued penalty.
func (uc *LoanUseCase) Repay(ctx context.Context, id string, actor domain.Actor, phone string) (*RepaymentResult, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.requireOwner(actor, current.ClientID); err != nil {
		return nil, uc.refuse(err)
	}
	if !current.Repayable() {
		return nil, uc.refuse(domain.InvalidTransition("loan: cannot repay in state %s", current.State))
	}

	terms, err := uc.repo.GetTerms(ctx, id)
	if err != nil {
		return nil, err
	}
	installments, err := uc.schedule.ListByLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	inst, ok := domain.NextPending(installments)
	if !ok {
		return nil, uc.refuse(domain.BusinessRule("loan has no pending installment"))
	}

	now := uc.now()
	rate := terms.DailyPenaltyRate()
	penalty := domain.ComputePenalty(inst, now, rate)
	due := domain.AmountDue(inst, now, rate)
	if phone == "" {
		phone = current.Phone
	}

	next := *current
	next.UpdatedAt = now
	var payment *domain.ExternalTransaction
	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		p, err := uc.payments.Create(ctx, tx, CreatePaymentInput{
			WorkflowID:  current.ID,
			Purpose:     domain.PurposeLoanRepayment,
			Amount:      due,
			Phone:       phone,
			Description: fmt.Sprintf("Loan %s installment %d", current.ID, inst.Number),
		})
		if err != nil {
			return err
		}
		payment = p
		next.TransactionID = p.ID
		return uc.repo.Update(ctx, tx, &next, current.State)
	}); err != nil {
		return nil, uc.refuse(err)
	}

	submitted, err := uc.payments.Submit(ctx, payment.ID)
	if submitted != nil {
		payment = submitted
	}
	return &RepaymentResult{
		Loan:        uc.reload(ctx, &next),
		Installment: inst,
		Penalty:     penalty,
		Transaction: payment,
	}, err
}

// OnTransactionTerminal settles the installment paid by a successful repayment and
// moves the loan to repaying, then settled once nothing is left. A failed repayment
// changes nothing.
func (uc *LoanUseCase) OnTransactionTerminal(ctx context.Context, t *domain.ExternalTransaction) error {
	current, err := uc.repo.GetByID(ctx, t.WorkflowID)
	if err != nil {
		return err
	}
	if t.Status != domain.TxSuccess {
		uc.logger.Info().Str("id", current.ID).Str("transaction_id", t.ID).Str("status", string(t.Status)).Msg("repayment not collected")
		return nil
	}

	installments, err := uc.schedule.ListByLoan(ctx, current.ID)
	if err != nil {
		return err
	}
	for _, inst := range installments {
		if inst.TransactionID == t.ID {
			return nil
		}
	}
	inst, ok := domain.NextPending(installments)
	if !ok {
		uc.logger.Warn().Str("id", current.ID).Str("transaction_id", t.ID).Msg("repayment received with no pending installment")
		return nil
	}

	paidAt := uc.now()
	if t.CompletedAt != nil {
		paidAt = *t.CompletedAt
	}
	penalty := t.Amount.Sub(inst.Amount)
	if penalty.IsNegative() {
		penalty = decimal.Zero
	}
	status := domain.InstallmentPaid
	if penalty.IsPositive() || domain.DaysBetween(inst.DueDate, paidAt) > 0 {
		status = domain.InstallmentPaidLate
	}
	remaining := 0
	for _, other := range installments {
		if !other.IsPaid() && other.Number != inst.Number {
			remaining++
		}
	}

	actor := domain.SystemActor
	return ignoreSettled(uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.schedule.MarkPaid(ctx, tx, current.ID, inst.Number, status, penalty, t.ID, paidAt); err != nil {
			return err
		}

		state := *current
		var actions []domain.Action
		if state.State == domain.LoanDisbursed {
			actions = append(actions, domain.ActionStartRepayment)
		}
		if remaining == 0 {
			actions = append(actions, domain.ActionSettle)
		}
		for _, action := range actions {
			next, err := state.Apply(action, actor, paidAt)
			if err != nil {
				return err
			}
			if err := uc.repo.Update(ctx, tx, &next, state.State); err != nil {
				return err
			}
			if err := uc.recordTransition(ctx, tx, state.ID, action, actor, state.State, next.State, state, next, paidAt); err != nil {
				return err
			}
			state = next
		}

		if state.State != domain.LoanSettled {
			return nil
		}
		return uc.emit(ctx, tx, state.ID, domain.EventTypeLoanSettled, map[string]any{
			"loan_id":   state.ID,
			"client_id": state.ClientID,
			"principal": state.Principal.String(),
		})
	}))
}

func (uc *LoanUseCase) reload(ctx context.Context, fallback *domain.Loan) *domain.Loan {
	fresh, err := uc.repo.GetByID(ctx, fallback.ID)
	if err != nil {
		return fallback
	}
	return fresh
}
