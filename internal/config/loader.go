package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// secretEnv lists the accepted env names for secrets that usually never live in the file.
var secretEnv = map[string][]string{
	"database.user":     {"APP_DATABASE_USER", "APP_POSTGRES_USER", "POSTGRES_USER", "DB_USER"},
	"database.password": {"APP_DATABASE_PASSWORD", "APP_POSTGRES_PASSWORD", "POSTGRES_PASSWORD", "DB_PASSWORD"},
	"database.db":       {"APP_DATABASE_DB", "APP_POSTGRES_DB", "POSTGRES_DB", "DB_NAME"},
	"database.dsn":      {"APP_DATABASE_DSN", "DATABASE_URL"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "registry-api")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_timeout", 15)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 3600)
	v.SetDefault("database.max_conn_idle_time", 300)
	v.SetDefault("database.health_check_period", 30)
	v.SetDefault("database.slow_query_ms", 200)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("workers.workers", 8)
	v.SetDefault("workers.queue_size", 0)
	v.SetDefault("workers.dispatch_rate", 0)
	v.SetDefault("workers.dispatch_burst", 0)

	v.SetDefault("pagination.default_per_page", 10)
	v.SetDefault("pagination.max_per_page", 100)
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	for key, names := range secretEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var config Config
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
