package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

func applyLoan(t *testing.T, h *harness, principal int64, months int) *domain.Loan {
	t.Helper()
	l, err := h.loan.Apply(context.Background(), client, usecase.ApplyLoanInput{
		Principal:     decimal.NewFromInt(principal),
		DurationMonth: months,
		Purpose:       "stock",
		Phone:         "22997000000",
	})
	require.NoError(t, err)
	return l
}

func defaultTerms() usecase.DefineTermsInput {
	return usecase.DefineTermsInput{
		AnnualRatePct:   decimal.NewFromInt(12),
		DueDay:          5,
		DailyPenaltyPct: decimal.NewFromInt(1),
	}
}

// disbursedLoan walks a loan through review, approval and disbursement.
func disbursedLoan(t *testing.T, h *harness, principal int64, months int) (*domain.Loan, []domain.Installment) {
	t.Helper()
	ctx := context.Background()
	l := applyLoan(t, h, principal, months)

	_, err := h.loan.Review(ctx, l.ID, supervisor)
	require.NoError(t, err)
	_, err = h.loan.DefineTerms(ctx, l.ID, supervisor, defaultTerms())
	require.NoError(t, err)
	_, err = h.loan.Transfer(ctx, l.ID, supervisor)
	require.NoError(t, err)
	_, err = h.loan.Approve(ctx, l.ID, admin)
	require.NoError(t, err)
	l, schedule, err := h.loan.Disburse(ctx, l.ID, admin)
	require.NoError(t, err)
	return l, schedule
}

func TestLoanUseCase_TransferRequiresTerms(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	l := applyLoan(t, h, 500000, 12)

	_, err := h.loan.Review(ctx, l.ID, supervisor)
	require.NoError(t, err)

	_, err = h.loan.Transfer(ctx, l.ID, supervisor)
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)

	terms, err := h.loan.DefineTerms(ctx, l.ID, supervisor, defaultTerms())
	require.NoError(t, err)
	assert.Equal(t, "44424.39", terms.MonthlyInstallment.StringFixed(2))

	l, err = h.loan.Transfer(ctx, l.ID, supervisor)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanTransferredToAdmin, l.State)

	_, err = h.loan.DefineTerms(ctx, l.ID, supervisor, defaultTerms())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "terms are frozen after review")
}

func TestLoanUseCase_TransferChecksStateBeforeTerms(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	l := applyLoan(t, h, 500000, 12)

	tests := []struct {
		name  string
		actor domain.Actor
	}{
		{"client on submitted loan", client},
		{"supervisor before review", supervisor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.loan.Transfer(ctx, l.ID, tt.actor)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
			assert.NotErrorIs(t, err, domain.ErrBusinessRuleViolation)
		})
	}

	_, err := h.loan.Review(ctx, l.ID, supervisor)
	require.NoError(t, err)

	_, err = h.loan.Transfer(ctx, l.ID, client)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "role is checked before terms")
}

func TestLoanUseCase_RoleGuards(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	l := applyLoan(t, h, 100000, 6)

	_, err := h.loan.Review(ctx, l.ID, agent)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.loan.Review(ctx, l.ID, supervisor)
	require.NoError(t, err)

	_, err = h.loan.DefineTerms(ctx, l.ID, admin, defaultTerms())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.loan.DefineTerms(ctx, l.ID, supervisor, defaultTerms())
	require.NoError(t, err)
	_, err = h.loan.Transfer(ctx, l.ID, supervisor)
	require.NoError(t, err)

	_, err = h.loan.Approve(ctx, l.ID, supervisor)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, _, err = h.loan.Disburse(ctx, l.ID, admin)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "disbursement requires approval")
}

func TestLoanUseCase_DisburseMaterializesSchedule(t *testing.T) {
	h := newHarness(t, idleConfig())
	l, schedule := disbursedLoan(t, h, 500000, 12)

	assert.Equal(t, domain.LoanDisbursed, l.State)
	require.NotNil(t, l.FirstDueDate)
	assert.Equal(t, 5, l.FirstDueDate.Day())
	require.Len(t, schedule, 12)

	total := decimal.Zero
	for _, inst := range schedule {
		total = total.Add(inst.Principal)
		assert.Equal(t, domain.InstallmentPending, inst.Status)
	}
	assert.True(t, total.Equal(decimal.NewFromInt(500000)))

	lines, err := h.loan.Schedule(context.Background(), l.ID)
	require.NoError(t, err)
	require.Len(t, lines, 12)
	assert.True(t, lines[0].Penalty.IsZero())
	assert.Len(t, h.outbox.EventsOfType(domain.EventTypeLoanDisbursed), 1)
}

func TestLoanUseCase_RepaymentSettlesLoan(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	l, _ := disbursedLoan(t, h, 10000, 2)

	for i := 1; i <= 2; i++ {
		res, err := h.loan.Repay(ctx, l.ID, client, "")
		require.NoError(t, err)
		assert.Equal(t, i, res.Installment.Number)
		require.Equal(t, domain.TxPending, res.Transaction.Status)

		body := webhookBody(t, res.Transaction.ProviderRef, domain.TxSuccess, res.Transaction.Amount)
		require.NoError(t, h.reconciler.HandleWebhook(ctx, body, "valid"))
		require.NoError(t, h.reconciler.HandleWebhook(ctx, body, "valid"))

		l, err = h.loan.Get(ctx, l.ID)
		require.NoError(t, err)
		if i == 1 {
			assert.Equal(t, domain.LoanRepaying, l.State)
		}
	}

	assert.Equal(t, domain.LoanSettled, l.State)
	lines, err := h.loan.Schedule(ctx, l.ID)
	require.NoError(t, err)
	for _, line := range lines {
		assert.Equal(t, domain.InstallmentPaid, line.Status)
	}
	assert.Len(t, h.outbox.EventsOfType(domain.EventTypeLoanSettled), 1)

	_, err = h.loan.Repay(ctx, l.ID, client, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestLoanUseCase_FailedRepaymentChangesNothing(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	l, _ := disbursedLoan(t, h, 10000, 2)

	res, err := h.loan.Repay(ctx, l.ID, client, "")
	require.NoError(t, err)

	_, err = h.loan.Repay(ctx, l.ID, client, "")
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation, "one repayment at a time")

	body := webhookBody(t, res.Transaction.ProviderRef, domain.TxFailed, res.Transaction.Amount)
	require.NoError(t, h.reconciler.HandleWebhook(ctx, body, "valid"))

	l, err = h.loan.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanDisbursed, l.State)

	lines, err := h.loan.Schedule(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentPending, lines[0].Status)
}

func TestLoanUseCase_OnlyOwnerRepays(t *testing.T) {
	h := newHarness(t, idleConfig())
	l, _ := disbursedLoan(t, h, 10000, 2)

	_, err := h.loan.Repay(context.Background(), l.ID, otherUser, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
