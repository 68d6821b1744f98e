package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/tontiflex/internal/domain"
)

// SubmitAdhesionInput is a client's application to a tontine.
type SubmitAdhesionInput struct {
	TontineID    string
	Phone        string
	Fee          decimal.Decimal
	Contribution decimal.Decimal
	Notes        string
}

// AdhesionUseCase runs the membership workflow.
type AdhesionUseCase struct {
	workflowBase
	repo     AdhesionRepository
	payments Payments
}

// NewAdhesionUseCase creates a new AdhesionUseCase.
func NewAdhesionUseCase(deps WorkflowDeps, repo AdhesionRepository, payments Payments) *AdhesionUseCase {
	return &AdhesionUseCase{
		workflowBase: newWorkflowBase(domain.AggregateTypeAdhesion, deps),
		repo:         repo,
		payments:     payments,
	}
}

// Submit creates an adhesion in the submitted state.
func (uc *AdhesionUseCase) Submit(ctx context.Context, actor domain.Actor, input SubmitAdhesionInput) (*domain.Adhesion, error) {
	if actor.Role != domain.RoleClient {
		return nil, uc.refuse(domain.InvalidTransition("adhesion: only clients apply"))
	}
	if err := domain.ValidateNotes(input.Notes); err != nil {
		return nil, err
	}

	now := uc.now()
	a := &domain.Adhesion{
		ID:           uc.IDGen.Generate(),
		ClientID:     actor.ID,
		TontineID:    input.TontineID,
		Phone:        input.Phone,
		Fee:          input.Fee,
		Contribution: input.Contribution,
		State:        domain.AdhesionMachine.Initial,
		Notes:        input.Notes,
		Trail:        domain.NewTrail(domain.AdhesionMachine.Initial, actor, now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		return uc.repo.Create(ctx, tx, a)
	}); err != nil {
		return nil, fmt.Errorf("create adhesion: %w", err)
	}
	return a, nil
}

// Get returns an adhesion.
func (uc *AdhesionUseCase) Get(ctx context.Context, id string) (*domain.Adhesion, error) {
	return uc.repo.GetByID(ctx, id)
}

// ListByClient returns a client's adhesions.
func (uc *AdhesionUseCase) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*domain.Adhesion, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.repo.ListByClient(ctx, clientID, limit, offset)
}

// Validate is the agent's approval of the application.
func (uc *AdhesionUseCase) Validate(ctx context.Context, id string, actor domain.Actor, notes string) (*domain.Adhesion, error) {
	return uc.advance(ctx, id, domain.ActionValidate, actor, notes)
}

// Reject closes the application.
func (uc *AdhesionUseCase) Reject(ctx context.Context, id string, actor domain.Actor, reason string) (*domain.Adhesion, error) {
	return uc.advance(ctx, id, domain.ActionReject, actor, reason)
}

func (uc *AdhesionUseCase) advance(ctx context.Context, id string, action domain.Action, actor domain.Actor, notes string) (*domain.Adhesion, error) {
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

// InitiatePayment starts collection of the adhesion fee. The adhesion moves to
// payment_pending; the payment outcome arrives later through OnTransactionTerminal.
func (uc *AdhesionUseCase) InitiatePayment(ctx context.Context, id string, actor domain.Actor, phone string) (*domain.Adhesion, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	next, err := current.Apply(domain.ActionInitiatePayment, actor, now)
	if err != nil {
		return nil, uc.refuse(err)
	}
	if phone == "" {
		phone = current.Phone
	}

	var payment *domain.ExternalTransaction
	if err := uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		p, err := uc.payments.Create(ctx, tx, CreatePaymentInput{
			WorkflowID:  current.ID,
			Purpose:     domain.PurposeAdhesionFee,
			Amount:      current.Fee,
			Phone:       phone,
			Description: "Adhesion fee " + current.TontineID,
		})
		if err != nil {
			return err
		}
		payment = p
		next.TransactionID = p.ID
		next.Phone = p.Phone

		if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
			return err
		}
		return uc.recordTransition(ctx, tx, id, domain.ActionInitiatePayment, actor, current.State, next.State, current, next, now)
	}); err != nil {
		return nil, uc.refuse(err)
	}

	if _, err := uc.payments.Submit(ctx, payment.ID); err != nil {
		return uc.reload(ctx, &next), err
	}
	return uc.reload(ctx, &next), nil
}

// CancelPayment aborts a pending fee payment on the client's request. It fails with
// BusinessRuleViolation when the payment already reached a final outcome.
func (uc *AdhesionUseCase) CancelPayment(ctx context.Context, id string, actor domain.Actor) (*domain.Adhesion, error) {
	current, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := uc.requireOwner(actor, current.ClientID); err != nil {
		return nil, uc.refuse(err)
	}
	if current.State != domain.AdhesionPaymentPending {
		return nil, uc.refuse(domain.InvalidTransition("adhesion: no payment to cancel in state %s", current.State))
	}

	cancelled, err := uc.payments.Cancel(ctx, current.TransactionID)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		return uc.reload(ctx, current), uc.refuse(domain.BusinessRule("payment already completed"))
	}
	return uc.reload(ctx, current), nil
}

// OnTransactionTerminal applies a fee payment outcome. Success confirms the payment
// and makes the client a member; any other outcome expires the adhesion.
func (uc *AdhesionUseCase) OnTransactionTerminal(ctx context.Context, t *domain.ExternalTransaction) error {
	current, err := uc.repo.GetByID(ctx, t.WorkflowID)
	if err != nil {
		return err
	}
	if current.TransactionID != t.ID {
		uc.logger.Warn().Str("id", current.ID).Str("transaction_id", t.ID).Msg("outcome for a transaction the adhesion no longer tracks")
		return nil
	}

	now := uc.now()
	actor := domain.SystemActor

	if t.Status != domain.TxSuccess {
		next, err := current.Apply(domain.ActionExpirePayment, actor, now)
		if err != nil {
			return ignoreSettled(err)
		}
		return ignoreSettled(uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
			if err := uc.repo.Update(ctx, tx, &next, current.State); err != nil {
				return err
			}
			if err := uc.recordTransition(ctx, tx, current.ID, domain.ActionExpirePayment, actor, current.State, next.State, current, next, now); err != nil {
				return err
			}
			return uc.emit(ctx, tx, current.ID, domain.EventTypeAdhesionExpired, map[string]any{
				"adhesion_id":    current.ID,
				"client_id":      current.ClientID,
				"transaction_id": t.ID,
				"status":         string(t.Status),
				"reason":         t.Reason,
			})
		}))
	}

	state := *current
	return ignoreSettled(uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		for _, action := range []domain.Action{domain.ActionConfirmPayment, domain.ActionFinalize} {
			if !domain.AdhesionMachine.Can(state.State, action, actor) {
				continue
			}
			next, err := state.Apply(action, actor, now)
			if err != nil {
				return err
			}
			if err := uc.repo.Update(ctx, tx, &next, state.State); err != nil {
				return err
			}
			if err := uc.recordTransition(ctx, tx, state.ID, action, actor, state.State, next.State, state, next, now); err != nil {
				return err
			}
			state = next
		}
		if state.State != domain.AdhesionMember || current.State == domain.AdhesionMember {
			return nil
		}
		return uc.emit(ctx, tx, state.ID, domain.EventTypeAdhesionMember, map[string]any{
			"adhesion_id":  state.ID,
			"client_id":    state.ClientID,
			"tontine_id":   state.TontineID,
			"contribution": state.Contribution.String(),
		})
	}))
}

func (uc *AdhesionUseCase) reload(ctx context.Context, fallback *domain.Adhesion) *domain.Adhesion {
	fresh, err := uc.repo.GetByID(ctx, fallback.ID)
	if err != nil {
		return fallback
	}
	return fresh
}
