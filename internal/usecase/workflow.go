package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/infrastructure/logger"
	"github.com/iho/tontiflex/internal/infrastructure/metrics"
)

// WorkflowDeps are the collaborators shared by all workflow use cases.
// Retrier, Audit, Outbox and Metrics are optional.
type WorkflowDeps struct {
	TxManager TransactionManager
	Retrier   Retrier
	Outbox    OutboxRepository
	Audit     AuditRepository
	IDGen     IDGenerator
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

type workflowBase struct {
	WorkflowDeps
	process string
	logger  zerolog.Logger
	now     func() time.Time
}

func newWorkflowBase(process string, deps WorkflowDeps) workflowBase {
	return workflowBase{
		WorkflowDeps: deps,
		process:      process,
		logger:       deps.Logger.With().Str("process", process).Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// inTx runs fn in a database transaction with the standard timeout, retrying the
// whole unit on transient storage errors when a retrier is configured.
func (b *workflowBase) inTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	run := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := b.TxManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}
		return tx.Commit(txCtx)
	}

	if b.Retrier == nil {
		return run()
	}
	return b.Retrier.Retry(ctx, run)
}

// recordTransition writes the audit row for one applied transition.
func (b *workflowBase) recordTransition(
	ctx context.Context,
	tx Transaction,
	id string,
	action domain.Action,
	actor domain.Actor,
	from, to domain.State,
	before, after any,
	at time.Time,
) error {
	b.Metrics.Transition(b.process, string(action))
	log := logger.WithContext(ctx, b.logger)
	log.Info().
		Str("id", id).
		Str("action", string(action)).
		Str("actor_id", actor.ID).
		Str("actor_role", string(actor.Role)).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("transition applied")

	if b.Audit == nil {
		return nil
	}
	return b.Audit.Create(ctx, tx, &domain.AuditLog{
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Action:       domain.AuditActionFor(b.process, action),
		ResourceType: b.process,
		ResourceID:   id,
		RequestID:    logger.RequestID(ctx),
		FromState:    from,
		ToState:      to,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		CreatedAt:    at,
	})
}

func (b *workflowBase) emit(ctx context.Context, tx Transaction, id, eventType string, payload map[string]any) error {
	if b.Outbox == nil {
		return nil
	}
	return b.Outbox.Create(ctx, tx, domain.NewOutboxEvent(b.IDGen.Generate(), b.process, id, eventType, payload, b.now()))
}

// refuse counts and returns a guard failure. Stale writes become InvalidTransition:
// a concurrent call already moved the entity.
func (b *workflowBase) refuse(err error) error {
	if errors.Is(err, domain.ErrStaleState) {
		err = domain.InvalidTransition("%s: state changed concurrently", b.process)
	}
	if kind := domain.KindOf(err); kind != "" {
		b.Metrics.Rejection(b.process, string(kind))
	}
	return err
}

// requireOwner rejects client actions performed on someone else's entity.
func (b *workflowBase) requireOwner(actor domain.Actor, clientID string) error {
	if actor.Role != domain.RoleClient || actor.ID != clientID {
		return domain.InvalidTransition("%s: only the owning client may do this", b.process)
	}
	return nil
}

// requireRole rejects actors outside roles for operations that are not graph edges.
func (b *workflowBase) requireRole(actor domain.Actor, roles ...domain.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return domain.InvalidTransition("%s: role %q not allowed", b.process, actor.Role)
}

// ignoreSettled treats an InvalidTransition raised by a repeated callback as done.
func ignoreSettled(err error) error {
	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrStaleState) {
		return nil
	}
	return err
}
