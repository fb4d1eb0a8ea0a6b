package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxviazov/registry-api/internal/config"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/tasks"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// clearSecrets blanks every env name the loader accepts for secrets.
func clearSecrets(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"APP_DATABASE_USER", "APP_POSTGRES_USER", "POSTGRES_USER", "DB_USER",
		"APP_DATABASE_PASSWORD", "APP_POSTGRES_PASSWORD", "POSTGRES_PASSWORD", "DB_PASSWORD",
		"APP_DATABASE_DB", "APP_POSTGRES_DB", "POSTGRES_DB", "DB_NAME",
		"APP_DATABASE_DSN", "DATABASE_URL",
	} {
		t.Setenv(name, "")
	}
}

func TestConfigLoad_FromYAMLAndEnv(t *testing.T) {
	yaml := `
app:
  name: registry-api
  version: 0.1.0
  env: test
  port: 18080

logger:
  level: info
  format: json
  time_format: rfc3339

database:
  driver: postgres
  host: 127.0.0.1
  port: 5432
  sslmode: disable
  max_conns: 5
  min_conns: 1

workers:
  workers: 3
  queue_size: 16

pagination:
  default_per_page: 20
  max_per_page: 50
`
	path := writeTempConfig(t, yaml)
	clearSecrets(t)
	t.Setenv("APP_POSTGRES_USER", "testuser")
	t.Setenv("APP_POSTGRES_PASSWORD", "testpass")
	t.Setenv("APP_POSTGRES_DB", "testdb")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 18080, cfg.App.Port)
	assert.Equal(t, "testuser", cfg.Database.User)
	assert.Equal(t, "testpass", cfg.Database.Password)
	assert.Equal(t, "testdb", cfg.Database.DBName)
	assert.Equal(t, "127.0.0.1", cfg.Database.Host)
	assert.Equal(t, int32(5), cfg.Database.MaxConns)
	assert.Equal(t, 3, cfg.Workers.Workers)
	assert.Equal(t, 16, cfg.Workers.QueueSize)
	assert.Equal(t, 20, cfg.Pagination.DefaultPerPage)
	assert.Equal(t, 50, cfg.Pagination.MaxPerPage)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestConfigLoad_Defaults(t *testing.T) {
	path := writeTempConfig(t, "database:\n  driver: sqlite\n  dsn: \"file::memory:?cache=shared\"\n")
	clearSecrets(t)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 8, cfg.Workers.Workers)
	assert.Equal(t, 10, cfg.Pagination.DefaultPerPage)
	assert.Equal(t, 100, cfg.Pagination.MaxPerPage)
	assert.Equal(t, 200, cfg.Database.SlowQueryMillis)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestConfigLoad_MissingRequiredEnvFails(t *testing.T) {
	yaml := `
app:
  port: 18080

database:
  driver: postgres
  host: localhost
  port: 5432
`
	path := writeTempConfig(t, yaml)
	clearSecrets(t)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.user is required")
}

func TestConfigLoad_DSNSkipsDiscreteCredentials(t *testing.T) {
	path := writeTempConfig(t, "database:\n  driver: postgres\n")
	clearSecrets(t)
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/registry?sslmode=disable")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost:5432/registry?sslmode=disable", cfg.Database.DSN)
}

func TestConfigLoad_InvalidSections(t *testing.T) {
	cases := map[string]string{
		"unknown driver":      "database:\n  driver: oracle\n  dsn: x\n",
		"zero workers":        "database:\n  driver: sqlite\nworkers:\n  workers: 0\n",
		"default above max":   "database:\n  driver: sqlite\npagination:\n  default_per_page: 50\n  max_per_page: 20\n",
		"port out of range":   "database:\n  driver: sqlite\napp:\n  port: 70000\n",
		"min conns above max": "database:\n  driver: sqlite\n  max_conns: 2\n  min_conns: 3\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			clearSecrets(t)
			_, err := config.Load(writeTempConfig(t, yaml))
			assert.Error(t, err)
		})
	}
}

func TestConfigLoad_MinConnsWithDriverDefaultMax(t *testing.T) {
	clearSecrets(t)
	cfg, err := config.Load(writeTempConfig(t, "database:\n  driver: sqlite\n  max_conns: 0\n  min_conns: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, int32(0), cfg.Database.MaxConns)
	assert.Equal(t, int32(3), cfg.Database.MinConns)
}

func TestConfig_ValidateConnBounds(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			App:        config.AppConfig{Port: 8080},
			Database:   config.DatabaseConfig{Driver: "sqlite"},
			Workers:    tasks.Config{Workers: 1},
			Pagination: pagination.DefaultLimits(),
		}
	}

	cfg := base()
	cfg.Database.MinConns, cfg.Database.MaxConns = 1, 0
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Database.MinConns, cfg.Database.MaxConns = 4, 4
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Database.MinConns, cfg.Database.MaxConns = 5, 4
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_conns")
}

func TestConfigLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
