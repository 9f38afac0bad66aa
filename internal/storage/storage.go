// Package storage opens the configured persistence backend and hands out
// the repositories and transactor built on it.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/database"
	"github.com/otafleet/otafleet/internal/device"
	"github.com/otafleet/otafleet/internal/firmware"
	"github.com/otafleet/otafleet/internal/rollout"
)

// Stores bundles one backend's repositories.
type Stores struct {
	Driver     string
	Firmware   firmware.Repository
	Devices    device.Repository
	Rollouts   rollout.Repository
	Transactor database.Transactor

	ping  func(ctx context.Context) error
	close func() error
}

// Open connects to the backend named by cfg.Storage.Driver. Postgres
// schemas are migrated when migrate is set.
func Open(ctx context.Context, cfg *config.Config, migrate bool, logger zerolog.Logger) (*Stores, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory storage, state is lost on restart")
		return NewMemory(), nil
	case config.DriverPostgres:
		pool, err := database.Connect(ctx, database.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrate schema: %w", err)
			}
		}
		logger.Info().Int("max_conns", cfg.Database.MaxOpenConns).Msg("database connected")
		return NewPostgres(pool), nil
	case config.DriverBolt:
		db, err := database.OpenBolt(cfg.Storage.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.Storage.BoltPath).Msg("bolt database opened")
		return NewBolt(db), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewMemory returns process-local stores.
func NewMemory() *Stores {
	return &Stores{
		Driver:     config.DriverMemory,
		Firmware:   firmware.NewInMemoryRepository(),
		Devices:    device.NewInMemoryRepository(),
		Rollouts:   rollout.NewInMemoryRepository(),
		Transactor: database.NewMemoryTransactor(),
		ping:       func(context.Context) error { return nil },
		close:      func() error { return nil },
	}
}

// NewPostgres returns stores on an open pool. Close closes the pool.
func NewPostgres(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Driver:     config.DriverPostgres,
		Firmware:   firmware.NewPostgresRepository(pool),
		Devices:    device.NewPostgresRepository(pool),
		Rollouts:   rollout.NewPostgresRepository(pool),
		Transactor: database.NewPgxTransactor(pool),
		ping:       pool.Ping,
		close: func() error {
			pool.Close()
			return nil
		},
	}
}

// NewBolt returns stores on an open bolt database. Close closes the file.
func NewBolt(db *bolt.DB) *Stores {
	return &Stores{
		Driver:     config.DriverBolt,
		Firmware:   firmware.NewBoltRepository(db),
		Devices:    device.NewBoltRepository(db),
		Rollouts:   rollout.NewBoltRepository(db),
		Transactor: database.NewBoltTransactor(db),
		ping: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return db.View(func(tx *bolt.Tx) error {
				if tx.Bucket(database.BucketDevices) == nil {
					return errors.New("devices bucket missing")
				}
				return nil
			})
		},
		close: db.Close,
	}
}

// Ping checks that the backend is reachable.
func (s *Stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close releases the backend.
func (s *Stores) Close() error {
	return s.close()
}
