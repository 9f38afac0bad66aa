package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Server.PollInterval)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.UsesDevSigningKey())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otafleet.yaml")
	content := `
server:
  addr: ":9090"
  poll_interval: 30s
storage:
  driver: bolt
  bolt_path: /var/lib/otafleet/fleet.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("OTAFLEET_LOG_FORMAT", "console")
	t.Setenv("OTAFLEET_SERVER_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr, "env overrides file")
	assert.Equal(t, 30*time.Second, cfg.Server.PollInterval)
	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/otafleet/fleet.db", cfg.Storage.BoltPath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "otafleet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("artifacts:\n  dir: /srv/fw\n"), 0o600))
	t.Setenv("OTAFLEET_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/srv/fw", cfg.Artifacts.Dir)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "mysql" },
			wantErr: "storage.driver",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverPostgres
				c.Database.URL = ""
			},
			wantErr: "database.url",
		},
		{
			name:    "bolt without path",
			mutate:  func(c *Config) { c.Storage.Driver = DriverBolt; c.Storage.BoltPath = "" },
			wantErr: "storage.bolt_path",
		},
		{
			name:    "production with dev key",
			mutate:  func(c *Config) { c.Env = "production" },
			wantErr: "must be changed in production",
		},
		{
			name: "production with auth disabled",
			mutate: func(c *Config) {
				c.Env = "production"
				c.Auth.SigningKey = "prod-secret"
				c.Auth.Disabled = true
			},
			wantErr: "auth.disabled",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: "log.format",
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Server.PollInterval = 0 },
			wantErr: "server.poll_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
