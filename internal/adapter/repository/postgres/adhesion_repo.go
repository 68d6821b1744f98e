package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tontiflex/internal/domain"
	"github.com/iho/tontiflex/internal/usecase"
)

const adhesionColumns = `id, client_id, tontine_id, phone, fee, contribution, state, transaction_id, notes,
	actor_id, actor_role, entered_at, created_at, updated_at`

// AdhesionRepository implements usecase.AdhesionRepository.
type AdhesionRepository struct {
	pool Pool
}

// NewAdhesionRepository creates a new AdhesionRepository.
func NewAdhesionRepository(pool Pool) *AdhesionRepository {
	return &AdhesionRepository{pool: pool}
}

// Create inserts a new adhesion.
func (r *AdhesionRepository) Create(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion) error {
	trail, err := trailToColumns(a.Trail)
	if err != nil {
		return err
	}

	_, err = conn(r.pool, tx).Exec(ctx, `
		INSERT INTO adhesions (`+adhesionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		a.ID, a.ClientID, a.TontineID, a.Phone, a.Fee, a.Contribution, a.State, a.TransactionID, a.Notes,
		trail.actorID, trail.actorRole, trail.entered, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// GetByID retrieves an adhesion.
func (r *AdhesionRepository) GetByID(ctx context.Context, id string) (*domain.Adhesion, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adhesionColumns+` FROM adhesions WHERE id = $1`, id)
	a, err := scanAdhesion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAdhesionNotFound
	}
	return a, err
}

// Update writes the adhesion if its stored state is still expected.
func (r *AdhesionRepository) Update(ctx context.Context, tx usecase.Transaction, a *domain.Adhesion, expected domain.State) error {
	trail, err := trailToColumns(a.Trail)
	if err != nil {
		return err
	}

	tag, err := conn(r.pool, tx).Exec(ctx, `
		UPDATE adhesions
		SET state = $2, transaction_id = $3, notes = $4, actor_id = $5, actor_role = $6, entered_at = $7, updated_at = $8
		WHERE id = $1 AND state = $9`,
		a.ID, a.State, a.TransactionID, a.Notes, trail.actorID, trail.actorRole, trail.entered, a.UpdatedAt, expected,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}

// ListByClient lists a client's adhesions, newest first.
func (r *AdhesionRepository) ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*domain.Adhesion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+adhesionColumns+` FROM adhesions
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Adhesion
	for rows.Next() {
		a, err := scanAdhesion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAdhesion(row pgx.Row) (*domain.Adhesion, error) {
	var (
		a     domain.Adhesion
		trail trailColumns
	)
	err := row.Scan(
		&a.ID, &a.ClientID, &a.TontineID, &a.Phone, &a.Fee, &a.Contribution, &a.State, &a.TransactionID, &a.Notes,
		&trail.actorID, &trail.actorRole, &trail.entered, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if a.Trail, err = trail.trail(); err != nil {
		return nil, err
	}
	return &a, nil
}
