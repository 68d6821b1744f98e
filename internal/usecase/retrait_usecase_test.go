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

func requestRetrait(t *testing.T, h *harness, amount int64) *domain.Retrait {
	t.Helper()
	r, err := h.retrait.Request(context.Background(), client, usecase.RequestRetraitInput{
		Pool:   savings,
		Amount: decimal.NewFromInt(amount),
		Phone:  "22997000000",
	})
	require.NoError(t, err)
	return r
}

func TestRetraitUseCase_InsufficientBalance(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "15000")

	r := requestRetrait(t, h, 20000)

	_, err := h.retrait.Approve(ctx, r.ID, agent)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	assert.Contains(t, err.Error(), "insufficient balance")

	r, err = h.retrait.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitPending, r.State)

	active, err := h.txRepo.ListActive(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 0, h.gateway.Initiated())
}

func TestRetraitUseCase_RoleGuards(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "50000")

	_, err := h.retrait.Request(ctx, agent, usecase.RequestRetraitInput{Pool: savings, Amount: decimal.NewFromInt(100), Phone: "22997000000"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	r := requestRetrait(t, h, 1000)

	_, err = h.retrait.Approve(ctx, r.ID, client)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.retrait.Dispatch(ctx, r.ID, agent)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "dispatch requires approval")
}

func TestRetraitUseCase_ConfirmedWithdrawalDebits(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "20000")

	r := requestRetrait(t, h, 15000)
	r, err := h.retrait.Approve(ctx, r.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitApproved, r.State)

	r, err = h.retrait.Dispatch(ctx, r.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitPaymentDispatched, r.State)

	balance, err := h.ledger.Balance(ctx, client.ID, savings)
	require.NoError(t, err)
	assert.Equal(t, "20000", balance.String(), "pending debit must not count")

	payment := h.transaction(t, r.TransactionID)
	assert.Equal(t, domain.PurposeWithdrawal, payment.Purpose)
	require.NoError(t, h.reconciler.HandleWebhook(ctx, webhookBody(t, payment.ProviderRef, domain.TxSuccess, payment.Amount), "valid"))

	r, err = h.retrait.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitConfirmed, r.State)

	balance, err = h.ledger.Balance(ctx, client.ID, savings)
	require.NoError(t, err)
	assert.Equal(t, "5000", balance.String())
	assert.Len(t, h.outbox.EventsOfType(domain.EventTypeRetraitConfirmed), 1)
}

func TestRetraitUseCase_FailedPayoutExpires(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "20000")

	r := requestRetrait(t, h, 15000)
	_, err := h.retrait.Approve(ctx, r.ID, agent)
	require.NoError(t, err)
	r, err = h.retrait.Dispatch(ctx, r.ID, agent)
	require.NoError(t, err)

	payment := h.transaction(t, r.TransactionID)
	require.NoError(t, h.reconciler.HandleWebhook(ctx, webhookBody(t, payment.ProviderRef, domain.TxFailed, payment.Amount), "valid"))

	r, err = h.retrait.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitExpired, r.State)

	balance, err := h.ledger.Balance(ctx, client.ID, savings)
	require.NoError(t, err)
	assert.Equal(t, "20000", balance.String())
}

func TestRetraitUseCase_DispatchRechecksBalance(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "20000")

	r := requestRetrait(t, h, 15000)
	_, err := h.retrait.Approve(ctx, r.ID, agent)
	require.NoError(t, err)

	h.ledgerRepo.Seed(domain.LedgerRecord{
		ID: "spent", OwnerID: client.ID, Pool: savings, Kind: domain.EntryDebit,
		Amount: decimal.NewFromInt(10000), TransactionID: "other", Confirmed: true,
	})

	_, err = h.retrait.Dispatch(ctx, r.ID, agent)
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)

	r, err = h.retrait.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitApproved, r.State)
}

func TestRetraitUseCase_InFlightPayoutReservesFunds(t *testing.T) {
	h := newHarness(t, idleConfig())
	ctx := context.Background()
	h.seedBalance(t, client.ID, savings, "15000")

	first := requestRetrait(t, h, 10000)
	second := requestRetrait(t, h, 10000)
	for _, r := range []*domain.Retrait{first, second} {
		_, err := h.retrait.Approve(ctx, r.ID, agent)
		require.NoError(t, err)
	}

	first, err := h.retrait.Dispatch(ctx, first.ID, agent)
	require.NoError(t, err)
	require.Equal(t, domain.RetraitPaymentDispatched, first.State)

	_, err = h.retrait.Dispatch(ctx, second.ID, agent)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	assert.Equal(t, 1, h.gateway.Initiated())

	second, err = h.retrait.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitApproved, second.State)

	// a failed payout releases its reservation
	payment := h.transaction(t, first.TransactionID)
	require.NoError(t, h.reconciler.HandleWebhook(ctx, webhookBody(t, payment.ProviderRef, domain.TxFailed, payment.Amount), "valid"))

	second, err = h.retrait.Dispatch(ctx, second.ID, agent)
	require.NoError(t, err)
	assert.Equal(t, domain.RetraitPaymentDispatched, second.State)

	payment = h.transaction(t, second.TransactionID)
	require.NoError(t, h.reconciler.HandleWebhook(ctx, webhookBody(t, payment.ProviderRef, domain.TxSuccess, payment.Amount), "valid"))

	balance, err := h.ledger.Balance(ctx, client.ID, savings)
	require.NoError(t, err)
	assert.Equal(t, "5000", balance.String())
	assert.Equal(t, 3, h.ledgerRepo.Locks, "every dispatch attempt locks the pool")
}
