package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

const retraitColumns = `id, client_id, pool_kind, pool_id, amount, phone, state, transaction_id, notes,
	actor_id, actor_role, entered_at, created_at, updated_at`

// RetraitRepository implements usecase.RetraitRepository.
type RetraitRepository struct {
	pool Pool
}

// NewRetraitRepository creates a new RetraitRepository.
func NewRetraitRepository(pool Pool) *RetraitRepository {
	return &RetraitRepository{pool: pool}
}

// Create inserts a new withdrawal request.
func (r *RetraitRepository) Create(ctx context.Context, tx usecase.Transaction, rt *domain.Retrait) error {
	trail, err := trailToColumns(rt.Trail)
	if err != nil {
		return err
	}

	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO retraits (`+retraitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rt.ID, rt.ClientID, rt.Pool.Kind, rt.Pool.ID, rt.Amount, rt.Phone, rt.State, rt.TransactionID, rt.Notes,
		trail.actorID, trail.actorRole, trail.entered, rt.CreatedAt, rt.UpdatedAt,
	)
	return err
}

// GetByID retrieves a withdrawal request.
func (r *RetraitRepository) GetByID(ctx context.Context, id string) (*domain.Retrait, error) {
	var (
		rt    domain.Retrait
		trail trailColumns
	)
	err := r.pool.QueryRow(ctx, `SELECT `+retraitColumns+` FROM retraits WHERE id = $1`, id).Scan(
		&rt.ID, &rt.ClientID, &rt.Pool.Kind, &rt.Pool.ID, &rt.Amount, &rt.Phone, &rt.State, &rt.TransactionID, &rt.Notes,
		&trail.actorID, &trail.actorRole, &trail.entered, &rt.CreatedAt, &rt.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRetraitNotFound
	}
	if err != nil {
		return nil, err
	}
	if rt.Trail, err = trail.trail(); err != nil {
		return nil, err
	}
	return &rt, nil
}

// Update writes the withdrawal if its stored state is still expected.
func (r *RetraitRepository) Update(ctx context.Context, tx usecase.Transaction, rt *domain.Retrait, expected domain.State) error {
	trail, err := trailToColumns(rt.Trail)
	if err != nil {
		return err
	}

	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE retraits
		SET state = $2, transaction_id = $3, notes = $4, actor_id = $5, actor_role = $6, entered_at = $7, updated_at = $8
		WHERE id = $1 AND state = $9`,
		rt.ID, rt.State, rt.TransactionID, rt.Notes, trail.actorID, trail.actorRole, trail.entered, rt.UpdatedAt, expected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}
