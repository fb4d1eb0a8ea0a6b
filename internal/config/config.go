package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/maxviazov/registry-api/internal/logger"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/tasks"
)

type Config struct {
	App        AppConfig           `mapstructure:"app"`
	Logger     logger.LoggerConfig `mapstructure:"logger"`
	Database   DatabaseConfig      `mapstructure:"database"`
	Workers    tasks.Config        `mapstructure:"workers"`
	Pagination pagination.Limits   `mapstructure:"pagination"`
}

type AppConfig struct {
	Name            string `mapstructure:"name"`
	Version         string `mapstructure:"version"`
	Env             string `mapstructure:"env"`
	Port            int    `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"min=0"` // seconds
}

// DatabaseConfig selects the storage driver. DSN, when set, wins over the discrete fields.
// Durations are in seconds, like the rest of the file.
type DatabaseConfig struct {
	Driver            string `mapstructure:"driver" validate:"oneof=postgres sqlite mysql"`
	DSN               string `mapstructure:"dsn"`
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port" validate:"min=0,max=65535"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	DBName            string `mapstructure:"db"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns" validate:"min=0"`
	MinConns          int32  `mapstructure:"min_conns" validate:"min=0"`
	MaxConnLifetime   int    `mapstructure:"max_conn_lifetime" validate:"min=0"`
	MaxConnIdleTime   int    `mapstructure:"max_conn_idle_time" validate:"min=0"`
	HealthCheckPeriod int    `mapstructure:"health_check_period" validate:"min=0"`
	QueryLog          bool   `mapstructure:"query_log"`
	SlowQueryMillis   int    `mapstructure:"slow_query_ms" validate:"min=0"`
	AutoMigrate       bool   `mapstructure:"auto_migrate"`
}

// Validate checks field rules and the credentials a networked driver needs.
// The logger section is validated by logger.New once its defaults are applied.
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []any{c.App, c.Database, c.Workers, c.Pagination} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("config validation error: %w", err)
		}
	}
	db := c.Database
	// max_conns 0 leaves the pool size to the driver, so there is nothing to compare to
	if db.MaxConns > 0 && db.MinConns > db.MaxConns {
		return fmt.Errorf("config validation error: database.min_conns (%d) exceeds database.max_conns (%d)", db.MinConns, db.MaxConns)
	}
	if db.Driver != "sqlite" && db.DSN == "" {
		var missing []error
		if db.User == "" {
			missing = append(missing, errors.New("database.user is required"))
		}
		if db.Password == "" {
			missing = append(missing, errors.New("database.password is required"))
		}
		if db.DBName == "" {
			missing = append(missing, errors.New("database.db is required"))
		}
		if len(missing) > 0 {
			return errors.Join(missing...)
		}
	}
	return nil
}
