package rollout

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otafleet/otafleet/internal/database"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL rollout repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectRollout = `
	SELECT id, seq, name, feed, flavor, firmware_id, paused, success_count, failure_count, created_at
	FROM rollouts
`

// Create stores a new rollout. Seq comes from the table's sequence.
func (r *PostgresRepository) Create(ctx context.Context, ro *Rollout) error {
	query := `
		INSERT INTO rollouts (id, name, feed, flavor, firmware_id, paused, success_count, failure_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`

	return database.Conn(ctx, r.pool).QueryRow(ctx, query,
		ro.ID,
		ro.Name,
		ro.Feed,
		ro.Flavor,
		ro.FirmwareID,
		ro.Paused,
		ro.SuccessCount,
		ro.FailureCount,
		ro.CreatedAt,
	).Scan(&ro.Seq)
}

// Get retrieves a rollout by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Rollout, error) {
	ro, err := scanRollout(database.Conn(ctx, r.pool).QueryRow(ctx, selectRollout+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRolloutNotFound
		}
		return nil, err
	}
	return ro, nil
}

func scanRollout(row pgx.Row) (*Rollout, error) {
	var ro Rollout
	err := row.Scan(
		&ro.ID,
		&ro.Seq,
		&ro.Name,
		&ro.Feed,
		&ro.Flavor,
		&ro.FirmwareID,
		&ro.Paused,
		&ro.SuccessCount,
		&ro.FailureCount,
		&ro.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ro, nil
}

// List retrieves all rollouts in creation order.
func (r *PostgresRepository) List(ctx context.Context) ([]*Rollout, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, selectRollout+` ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Rollout
	for rows.Next() {
		ro, err := scanRollout(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, ro)
	}
	return items, rows.Err()
}

// SetPaused sets the pause flag on every listed rollout in one transaction.
func (r *PostgresRepository) SetPaused(ctx context.Context, ids []string, paused bool) error {
	ids = dedupe(ids)

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `UPDATE rollouts SET paused = $2 WHERE id = ANY($1)`, ids, paused)
		if err != nil {
			return err
		}
		if result.RowsAffected() != int64(len(ids)) {
			return ErrRolloutNotFound
		}
		return nil
	})
}

// RecordOutcome increments a counter in place, so concurrent outcomes for
// the same rollout never lose an update. It joins the caller's transaction.
func (r *PostgresRepository) RecordOutcome(ctx context.Context, id string, success bool) error {
	query := `UPDATE rollouts SET failure_count = failure_count + 1 WHERE id = $1`
	if success {
		query = `UPDATE rollouts SET success_count = success_count + 1 WHERE id = $1`
	}

	result, err := database.Conn(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrRolloutNotFound
	}
	return nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
