package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// DepositInput is a client contribution or savings deposit.
type DepositInput struct {
	Pool   domain.Pool
	Amount decimal.Decimal
	Phone  string
}

// DepositResult pairs the pending ledger record with its payment.
type DepositResult struct {
	Record      *domain.LedgerRecord
	Transaction *domain.ExternalTransaction
}

// LedgerUseCase computes balances and records collections into pools.
type LedgerUseCase struct {
	workflowBase
	repo     LedgerRecordRepository
	cache    BalanceCache
	payments Payments
}

// NewLedgerUseCase creates a new LedgerUseCase. cache may be nil.
func NewLedgerUseCase(deps WorkflowDeps, repo LedgerRecordRepository, cache BalanceCache, payments Payments) *LedgerUseCase {
	return &LedgerUseCase{
		workflowBase: newWorkflowBase("ledger", deps),
		repo:         repo,
		cache:        cache,
		payments:     payments,
	}
}

// Balance computes the confirmed balance of owner in pool from its records.
func (uc *LedgerUseCase) Balance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	records, err := uc.repo.ListByOwnerPool(ctx, ownerID, pool)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load ledger records: %w", err)
	}
	return domain.Balance(records, ownerID, pool), nil
}

// CachedBalance serves reporting reads from the balance cache, filling it on miss.
// Guards must call Balance instead.
func (uc *LedgerUseCase) CachedBalance(ctx context.Context, ownerID string, pool domain.Pool) (decimal.Decimal, error) {
	if uc.cache == nil {
		return uc.Balance(ctx, ownerID, pool)
	}

	cached, ok, err := uc.cache.Get(ctx, ownerID, pool)
	switch {
	case err != nil:
		uc.Metrics.BalanceCache("error")
		uc.logger.Warn().Err(err).Str("owner_id", ownerID).Str("pool", pool.String()).Msg("balance cache read failed")
	case ok:
		uc.Metrics.BalanceCache("hit")
		return cached, nil
	default:
		uc.Metrics.BalanceCache("miss")
	}

	balance, err := uc.Balance(ctx, ownerID, pool)
	if err != nil {
		return decimal.Zero, err
	}
	if err := uc.cache.Set(ctx, ownerID, pool, balance); err != nil {
		uc.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("balance cache write failed")
	}
	return balance, nil
}

// Invalidate drops the cached balance of owner in pool.
func (uc *LedgerUseCase) Invalidate(ctx context.Context, ownerID string, pool domain.Pool) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.Invalidate(ctx, ownerID, pool); err != nil {
		uc.logger.Warn().Err(err).Str("owner_id", ownerID).Str("pool", pool.String()).Msg("balance cache invalidation failed")
	}
}

// Deposit starts a collection into a pool. The credit counts toward the balance only
// once its payment succeeds.
func (uc *LedgerUseCase) Deposit(ctx context.Context, actor domain.Actor, input DepositInput) (*DepositResult, error) {
	if actor.Role != domain.RoleClient {
		return nil, uc.refuse(domain.InvalidTransition("ledger: only clients deposit"))
	}

	now := uc.now()
	record := &domain.LedgerRecord{
		ID:        uc.IDGen.Generate(),
		OwnerID:   actor.ID,
		Pool:      input.Pool,
		Kind:      domain.EntryCredit,
		Amount:    input.Amount,
		CreatedAt: now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	purpose := domain.PurposeDeposit
	if input.Pool.Kind == domain.PoolTontine {
		purpose = domain.PurposeContribution
	}

	var payment *domain.ExternalTransaction
	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		p, err := uc.payments.Create(ctx, tx, CreatePaymentInput{
			WorkflowID:  record.ID,
			Purpose:     purpose,
			Amount:      input.Amount,
			Phone:       input.Phone,
			Description: fmt.Sprintf("%s %s", purpose, input.Pool),
		})
		if err != nil {
			return err
		}
		payment = p
		record.TransactionID = p.ID
		return uc.repo.Create(ctx, tx, record)
	}); err != nil {
		return nil, uc.refuse(err)
	}

	submitted, err := uc.payments.Submit(ctx, payment.ID)
	if submitted != nil {
		payment = submitted
	}
	return &DepositResult{Record: record, Transaction: payment}, err
}

// OnTransactionTerminal confirms the credit of a successful collection.
// Failed collections leave the record unconfirmed, which contributes nothing.
func (uc *LedgerUseCase) OnTransactionTerminal(ctx context.Context, t *domain.ExternalTransaction) error {
	if t.Status != domain.TxSuccess {
		return nil
	}
	record, err := uc.repo.GetByTransaction(ctx, t.ID)
	if err != nil {
		return err
	}

	var confirmed bool
	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		ok, err := uc.repo.ConfirmByTransaction(ctx, tx, t.ID, uc.now())
		confirmed = ok
		return err
	}); err != nil {
		return fmt.Errorf("confirm ledger record: %w", err)
	}
	if confirmed {
		uc.Metrics.LedgerConfirmed(string(record.Kind))
		uc.Invalidate(ctx, record.OwnerID, record.Pool)
	}
	return nil
}
