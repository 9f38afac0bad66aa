package device

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otafleet/otafleet/internal/database"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const selectDevice = `
	SELECT id, hardware_id, feed, flavor, pinned, firmware_target, installed_version,
		state, last_firmware_id, last_log, last_seen, last_state_update, created_at
	FROM devices
`

// Get retrieves a device by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Device, error) {
	row := database.Conn(ctx, r.pool).QueryRow(ctx, selectDevice+` WHERE id = $1`, id)

	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

// scanDevice scans a single device row. NULL hardware and timestamps map
// to zero values.
func scanDevice(row pgx.Row) (*Device, error) {
	var (
		device          Device
		hardwareID      *string
		lastSeen        *time.Time
		lastStateUpdate *time.Time
	)

	err := row.Scan(
		&device.ID,
		&hardwareID,
		&device.Feed,
		&device.Flavor,
		&device.Pinned,
		&device.FirmwareTarget,
		&device.InstalledVersion,
		&device.State,
		&device.LastFirmwareID,
		&device.LastLog,
		&lastSeen,
		&lastStateUpdate,
		&device.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if hardwareID != nil {
		device.HardwareID = *hardwareID
	}
	if lastSeen != nil {
		device.LastSeen = *lastSeen
	}
	if lastStateUpdate != nil {
		device.LastStateUpdate = *lastStateUpdate
	}
	return &device, nil
}

// Create stores a newly registered device.
func (r *PostgresRepository) Create(ctx context.Context, device *Device) error {
	query := `
		INSERT INTO devices (id, hardware_id, feed, flavor, pinned, firmware_target, installed_version,
			state, last_firmware_id, last_log, last_seen, last_state_update, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		device.ID,
		nullString(device.HardwareID),
		device.Feed,
		device.Flavor,
		device.Pinned,
		device.FirmwareTarget,
		device.InstalledVersion,
		device.State,
		device.LastFirmwareID,
		device.LastLog,
		nullTime(device.LastSeen),
		nullTime(device.LastStateUpdate),
		device.CreatedAt,
	)
	return err
}

// Update replaces an existing device record.
func (r *PostgresRepository) Update(ctx context.Context, device *Device) error {
	query := `
		UPDATE devices SET
			hardware_id = $2,
			feed = $3,
			flavor = $4,
			pinned = $5,
			firmware_target = $6,
			installed_version = $7,
			state = $8,
			last_firmware_id = $9,
			last_log = $10,
			last_seen = $11,
			last_state_update = $12
		WHERE id = $1
	`

	result, err := database.Conn(ctx, r.pool).Exec(ctx, query,
		device.ID,
		nullString(device.HardwareID),
		device.Feed,
		device.Flavor,
		device.Pinned,
		device.FirmwareTarget,
		device.InstalledVersion,
		device.State,
		device.LastFirmwareID,
		device.LastLog,
		nullTime(device.LastSeen),
		nullTime(device.LastStateUpdate),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// List retrieves all devices ordered by ID.
func (r *PostgresRepository) List(ctx context.Context) ([]*Device, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, selectDevice+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return devices, rows.Err()
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
