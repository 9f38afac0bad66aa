package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/device"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestOpen_Memory(t *testing.T) {
	cfg := loadConfig(t)

	s, err := Open(context.Background(), cfg, false, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, config.DriverMemory, s.Driver)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_BoltPersistsAcrossReopen(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Storage.Driver = config.DriverBolt
	cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "data", "fleet.db")
	ctx := context.Background()

	s, err := Open(ctx, cfg, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, config.DriverBolt, s.Driver)
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Devices.Create(ctx, device.New("gw-0001", time.Now().UTC())))
	require.NoError(t, s.Close())

	s, err = Open(ctx, cfg, false, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	d, err := s.Devices.Get(ctx, "gw-0001")
	require.NoError(t, err)
	assert.Equal(t, device.StateRegistered, d.State)
}

func TestOpen_BoltPingHonoursContext(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Storage.Driver = config.DriverBolt
	cfg.Storage.BoltPath = filepath.Join(t.TempDir(), "fleet.db")

	s, err := Open(context.Background(), cfg, false, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Storage.Driver = "mysql"

	_, err := Open(context.Background(), cfg, false, zerolog.Nop())
	assert.Error(t, err)
}
