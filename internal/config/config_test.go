package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtick.yaml")
	data := `
database:
  driver: postgres
  dsn: "host=localhost dbname=jobs sslmode=disable"
scheduler:
  tick_interval_sec: 5
  lease_duration_sec: 120
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5, cfg.Scheduler.TickIntervalSec)
	assert.Equal(t, 120, cfg.Scheduler.LeaseDurationSec)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched keys keep their defaults
	assert.Equal(t, Default().Scheduler.BatchSize, cfg.Scheduler.BatchSize)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtick.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestLoad_RejectsNonPositiveTickInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtick.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  tick_interval_sec: -1\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "tick_interval_sec")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobtick.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
