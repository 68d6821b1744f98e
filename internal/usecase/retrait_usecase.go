package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// RequestRetraitInput is a client's withdrawal request.
type RequestRetraitInput struct {
	Pool   domain.Pool
	Amount decimal.Decimal
	Phone  string
	Notes  string
}

// RetraitUseCase runs the withdrawal workflow.
type RetraitUseCase struct {
	workflowBase
	repo       RetraitRepository
	ledgerRepo LedgerRecordRepository
	ledger     *LedgerUseCase
	payments   Payments
}

// NewRetraitUseCase creates a new RetraitUseCase.
func NewRetraitUseCase(
	deps WorkflowDeps,
	repo RetraitRepository,
	ledgerRepo LedgerRecordRepository,
	ledger *LedgerUseCase,
	payments Payments,
) *RetraitUseCase {
	return &RetraitUseCase{
		workflowBase: newWorkflowBase(domain.AggregateTypeRetrait, deps),
		repo:         repo,
		ledgerRepo:   ledgerRepo,
		ledger:       ledger,
		payments:     payments,
	}
}

// Request creates a pending withdrawal. Funds are checked at approval and dispatch.
func (uc *RetraitUseCase) Request(ctx context.Context, actor domain.Actor, input RequestRetraitInput) (*domain.Retrait, error) {
	if actor.Role != domain.RoleClient {
		return nil, uc.refuse(domain.InvalidTransition("retrait: only clients request withdrawals"))
	}
	if err := domain.ValidateNotes(input.Notes); err != nil {
		return nil, err
	}

	now := uc.now()
	r := &domain.Retrait{
		ID:        uc.IDGen.Generate(),
		ClientID:  actor.ID,
		Pool:      input.Pool,
		Amount:    input.Amount,
		Phone:     input.Phone,
		State:     domain.RetraitMachine.Initial,
		Notes:     input.Notes,
		Trail:     domain.NewTrail(domain.RetraitMachine.Initial, actor, now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		return uc.repo.Create(ctx, tx, r)
	}); err != nil {
		return nil, fmt.Errorf("create retrait: %w", err)
	}
	return r, nil
}

// Get returns a withdrawal.
func (uc *RetraitUseCase) Get(ctx context.Context, id string) (*domain.Retrait, error) {
	return uc.repo.GetByID(ctx, id)
}

// Approve accepts the request when the pool balance covers it.
func (uc *RetraitUseCase) Approve(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	next, err := current.Apply(domain.ActionApprove, actor, now)
	if err != nil {
		return nil, uc.refuse(err)
	}
	if err := uc.checkFunds(ctx, nil, current); err != nil {
		return nil, uc.refuse(err)
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, id, domain.ActionApprove, actor, current.State, next.State, current, next, now)
	}); err != nil {
		return nil, uc.refuse(err)
	}
	return &next, nil
}

// Reject closes a pending request.
func (uc *RetraitUseCase) Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Retrait, error) {
	if err := domain.ValidateNotes(reason); err != nil {
		return nil, err
	}
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	next, err := current.Apply(domain.ActionReject, actor, now)
	if err != nil {
		return nil, uc.refuse(err)
	}
	if reason != "" {
		next.Notes = reason
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, id, domain.ActionReject, actor, current.State, next.State, current, next, now)
	}); err != nil {
		return nil, uc.refuse(err)
	}
	return &next, nil
}

// Dispatch re-checks the balance under the pool lock, records the pending debit and
// sends the payout.
func (uc *RetraitUseCase) Dispatch(ctx context.Context, id string, actor domain.Actor) (*domain.Retrait, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	next, err := current.Apply(domain.ActionDispatch, actor, now)
	if err != nil {
		return nil, uc.refuse(err)
	}

	var payment *domain.ExternalTransaction
	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if err := uc.ledgerRepo.LockPool(ctx, tx, current.ClientID, current.Pool); err != nil {
			return err
		}
		if err := uc.checkFunds(ctx, tx, current); err != nil {
			return err
		}

		p, err := uc.payments.Create(ctx, tx, CreatePaymentInput{
			WorkflowID:  current.ID,
			Purpose:     domain.PurposeWithdrawal,
			Amount:      current.Amount,
			Phone:       current.Phone,
			Description: "Withdrawal " + current.Pool.String(),
		})
		if err != nil {
			return err
		}
		payment = p
		next.TransactionID = p.ID

		if err := uc.ledgerRepo.Create(ctx, tx, &domain.LedgerRecord{
			ID:            uc.IDGen.Generate(),
			OwnerID:       current.ClientID,
			Pool:          current.Pool,
			Kind:          domain.EntryDebit,
			Amount:        current.Amount,
			TransactionID: p.ID,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, id, domain.ActionDispatch, actor, current.State, next.State, current, next, now)
	}); err != nil {
		return nil, uc.refuse(err)
	}

	if _, err := uc.payments.Submit(ctx, payment.ID); err != nil {
		return uc.reload(ctx, &next), err
	}
	return uc.reload(ctx, &next), nil
}

// checkFunds compares r with the confirmed balance less payouts still in flight.
func (uc *RetraitUseCase) checkFunds(ctx context.Context, tx Transaction, r *domain.Retrait) error {
	balance, err := uc.ledger.Balance(ctx, r.ClientID, r.Pool)
	if err != nil {
		return err
	}
	pending, err := uc.ledgerRepo.PendingDebits(ctx, tx, r.ClientID, r.Pool)
	if err != nil {
		return fmt.Errorf("load pending debits: %w", err)
	}
	return r.CheckFunds(balance.Sub(pending))
}

// OnTransactionTerminal confirms the debit and the withdrawal on success, or
// expires the withdrawal otherwise. The unconfirmed debit then counts for nothing.
func (uc *RetraitUseCase) OnTransactionTerminal(ctx context.Context, t *domain.ExternalTransaction) error {
	current, err := uc.repo.GetByID(ctx, t.WorkflowID)
	if err != nil {
		return err
	}
	if current.TransactionID != t.ID {
		uc.logger.Warn().Str("id", current.ID).Str("transaction_id", t.ID).Msg("outcome for a transaction the retrait no longer tracks")
		return nil
	}

	action, eventType := domain.ActionExpirePayment, domain.EventTypeRetraitExpired
	if t.Status == domain.TxSuccess {
		action, eventType = domain.ActionConfirm, domain.EventTypeRetraitConfirmed
	}

	now := uc.now()
	actor := domain.SystemActor
	next, err := current.Apply(action, actor, now)
	if err != nil {
		return ignoreSettled(err)
	}

	var confirmed bool
	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		if t.Status == domain.TxSuccess {
			ok, err := uc.ledgerRepo.ConfirmByTransaction(ctx, tx, t.ID, now)
			if err != nil {
				return err
			}
			confirmed = ok
		}
		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		if err := uc.recordTransition(ctx, tx, current.ID, action, actor, current.State, next.State, current, next, now); err != nil {
			return err
		}
		return uc.emit(ctx, tx, current.ID, eventType, map[string]any{
			"retrait_id":     current.ID,
			"client_id":      current.ClientID,
			"pool":           current.Pool.String(),
			"amount":         current.Amount.String(),
			"transaction_id": t.ID,
			"status":         string(t.Status),
		})
	})
	if err != nil {
		return ignoreSettled(err)
	}

	if confirmed {
		uc.Metrics.LedgerConfirmed(string(domain.EntryDebit))
		uc.ledger.Invalidate(ctx, current.ClientID, current.Pool)
	}
	return nil
}

func (uc *RetraitUseCase) reload(ctx context.Context, fallback *domain.Retrait) *domain.Retrait {
	fresh, err := uc.repo.GetByID(ctx, fallback.ID)
	if err != nil {
		return fallback
	}
	return fresh
}
