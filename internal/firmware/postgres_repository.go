package firmware

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

// NewPostgresRepository creates a new PostgreSQL firmware repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectFirmware = `
	SELECT f.id, f.version, f.hash, f.size, f.uri, f.filename, f.created_at,
		COALESCE(array_agg(c.hardware_id ORDER BY c.hardware_id) FILTER (WHERE c.hardware_id IS NOT NULL), '{}')
	FROM firmware f
	LEFT JOIN firmware_compatibility c ON c.firmware_id = f.id
`

// Create stores a new firmware record with its hardware compatibility.
func (r *PostgresRepository) Create(ctx context.Context, fw *Firmware) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO firmware (id, version, hash, size, uri, filename, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, fw.ID, fw.Version, fw.Hash, fw.Size, fw.URI, fw.Filename, fw.CreatedAt)
		if err != nil {
			return err
		}

		for _, hwID := range fw.HardwareIDs {
			_, err := tx.Exec(ctx,
				`INSERT INTO firmware_compatibility (firmware_id, hardware_id) VALUES ($1, $2)`,
				fw.ID, hwID,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a firmware record by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Firmware, error) {
	return r.scanFirmware(ctx, selectFirmware+` WHERE f.id = $1 GROUP BY f.id`, id)
}

// GetByURI retrieves a firmware record by artifact URI.
func (r *PostgresRepository) GetByURI(ctx context.Context, uri string) (*Firmware, error) {
	return r.scanFirmware(ctx, selectFirmware+` WHERE f.uri = $1 GROUP BY f.id`, uri)
}

func (r *PostgresRepository) scanFirmware(ctx context.Context, query string, args ...any) (*Firmware, error) {
	var fw Firmware
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(
		&fw.ID,
		&fw.Version,
		&fw.Hash,
		&fw.Size,
		&fw.URI,
		&fw.Filename,
		&fw.CreatedAt,
		&fw.HardwareIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFirmwareNotFound
		}
		return nil, err
	}
	return &fw, nil
}

// List retrieves all firmware records, oldest first.
func (r *PostgresRepository) List(ctx context.Context) ([]*Firmware, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, selectFirmware+` GROUP BY f.id ORDER BY f.created_at, f.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Firmware
	for rows.Next() {
		var fw Firmware
		if err := rows.Scan(
			&fw.ID,
			&fw.Version,
			&fw.Hash,
			&fw.Size,
			&fw.URI,
			&fw.Filename,
			&fw.CreatedAt,
			&fw.HardwareIDs,
		); err != nil {
			return nil, err
		}
		items = append(items, &fw)
	}
	return items, rows.Err()
}

// Delete removes a firmware record. Compatibility rows cascade.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := database.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM firmware WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrFirmwareNotFound
	}
	return nil
}

// GetOrCreateHardware returns the matching hardware, storing hw if none exists.
func (r *PostgresRepository) GetOrCreateHardware(ctx context.Context, hw *Hardware) (*Hardware, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO hardware (id, model, revision)
		VALUES ($1, $2, $3)
		ON CONFLICT (model, revision) DO UPDATE SET model = EXCLUDED.model
		RETURNING id, model, revision
	`

	var out Hardware
	err := database.Conn(ctx, r.pool).QueryRow(ctx, query, hw.ID, hw.Model, hw.Revision).
		Scan(&out.ID, &out.Model, &out.Revision)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHardware retrieves a hardware class by ID.
func (r *PostgresRepository) GetHardware(ctx context.Context, id string) (*Hardware, error) {
	var hw Hardware
	err := database.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, model, revision FROM hardware WHERE id = $1`, id,
	).Scan(&hw.ID, &hw.Model, &hw.Revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHardwareNotFound
		}
		return nil, err
	}
	return &hw, nil
}

// ListHardware retrieves all hardware classes ordered by model and revision.
func (r *PostgresRepository) ListHardware(ctx context.Context) ([]*Hardware, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx,
		`SELECT id, model, revision FROM hardware ORDER BY model, revision`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Hardware
	for rows.Next() {
		var hw Hardware
		if err := rows.Scan(&hw.ID, &hw.Model, &hw.Revision); err != nil {
			return nil, err
		}
		items = append(items, &hw)
	}
	return items, rows.Err()
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
