package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/maxviazov/registry-api/internal/config"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

const connectTimeout = 5 * time.Second

// Repository инкапсулирует соединение с БД: bun поверх database/sql,
// а для Postgres ещё и пул pgx, из которого этот database/sql берёт соединения.
type Repository struct {
	db     *bun.DB
	pool   *pgxpool.Pool
	driver string
	log    zerolog.Logger
}

// New открывает БД выбранного драйвера и проверяет соединение.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Repository, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	dbc := cfg.Database
	r := &Repository{driver: dbc.Driver, log: logger.With().Str("component", "db").Logger()}

	var err error
	switch dbc.Driver {
	case DriverPostgres, "":
		r.driver = DriverPostgres
		err = r.openPostgres(ctx, dbc, logger)
	case DriverSQLite:
		err = r.openSQLite(dbc)
	case DriverMySQL:
		err = r.openMySQL(dbc)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if dbc.SlowQueryMillis > 0 {
		r.db.AddQueryHook(newSlowQueryHook(time.Duration(dbc.SlowQueryMillis)*time.Millisecond, r.log))
	}
	if dbc.QueryLog {
		r.db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}

	// Проверяем соединение с таймаутом, чтобы не зависнуть на старте.
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", r.driver, err)
	}

	r.log.Info().
		Str("driver", r.driver).
		Str("host", dbc.Host).
		Int("port", dbc.Port).
		Str("db", dbc.DBName).
		Msg("Successfully connected to database")

	return r, nil
}

func (r *Repository) openPostgres(ctx context.Context, dbc config.DatabaseConfig, logger *zerolog.Logger) error {
	// 1. Собираем DSN через url.URL для корректного экранирования.
	dsn := dbc.DSN
	if dsn == "" {
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port)),
			Path:   dbc.DBName,
		}
		if dbc.User != "" || dbc.Password != "" {
			u.User = url.UserPassword(dbc.User, dbc.Password)
		}
		q := u.Query()
		if dbc.SSLMode != "" {
			q.Set("sslmode", dbc.SSLMode)
		}
		u.RawQuery = q.Encode()
		dsn = u.String()
	}

	// 2. Парсим DSN в конфигурацию пула соединений.
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("failed to parse pool config: %w", err)
	}

	// 3. Трассировка pgx пишет в zerolog.
	poolConfig.ConnConfig.Tracer = newPgxTracer(*logger)

	// 4. Применяем параметры тюнинга пула.
	if dbc.MaxConns > 0 {
		poolConfig.MaxConns = dbc.MaxConns
	}
	poolConfig.MinConns = dbc.MinConns
	poolConfig.MaxConnLifetime = time.Duration(dbc.MaxConnLifetime) * time.Second
	poolConfig.MaxConnIdleTime = time.Duration(dbc.MaxConnIdleTime) * time.Second
	if dbc.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = time.Duration(dbc.HealthCheckPeriod) * time.Second
	}

	// 5. Создаем пул и отдаём его bun через database/sql.
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	r.pool = pool
	r.db = bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	return nil
}

func (r *Repository) openSQLite(dbc config.DatabaseConfig) error {
	dsn := dbc.DSN
	if dsn == "" {
		if dbc.DBName == "" {
			dsn = ":memory:"
		} else {
			dsn = fmt.Sprintf("file:%s.db", dbc.DBName)
		}
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite: %w", err)
	}
	// every new connection to an in-memory database is a fresh empty database
	if isMemorySQLite(dsn) {
		sqldb.SetMaxOpenConns(1)
		sqldb.SetConnMaxLifetime(0)
		sqldb.SetConnMaxIdleTime(0)
	} else {
		tuneSQLDB(sqldb, dbc)
	}
	r.db = bun.NewDB(sqldb, sqlitedialect.New())
	return nil
}

func (r *Repository) openMySQL(dbc config.DatabaseConfig) error {
	dsn := dbc.DSN
	if dsn == "" {
		mc := mysql.NewConfig()
		mc.User = dbc.User
		mc.Passwd = dbc.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
		mc.DBName = dbc.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Timeout = connectTimeout
		mc.Params = map[string]string{"charset": "utf8mb4"}
		dsn = mc.FormatDSN()
	}

	sqldb, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open mysql: %w", err)
	}
	tuneSQLDB(sqldb, dbc)
	r.db = bun.NewDB(sqldb, mysqldialect.New())
	return nil
}

func tuneSQLDB(sqldb *sql.DB, dbc config.DatabaseConfig) {
	if dbc.MaxConns > 0 {
		sqldb.SetMaxOpenConns(int(dbc.MaxConns))
	}
	sqldb.SetMaxIdleConns(int(max(dbc.MinConns, 2)))
	sqldb.SetConnMaxLifetime(time.Duration(dbc.MaxConnLifetime) * time.Second)
	sqldb.SetConnMaxIdleTime(time.Duration(dbc.MaxConnIdleTime) * time.Second)
}

func isMemorySQLite(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.HasPrefix(dsn, "file::memory:")
}

// DB exposes the bun handle the stores build queries on.
func (r *Repository) DB() *bun.DB { return r.db }

// Driver reports the normalized driver name.
func (r *Repository) Driver() string { return r.driver }

// Ping satisfies Pinger.
func (r *Repository) Ping(ctx context.Context) error {
	if r.pool != nil {
		return r.pool.Ping(ctx)
	}
	return r.db.PingContext(ctx)
}

// SnapshotTxOptions returns the options under which a page's count and window read the
// same data. SQLite serializes writers on a single file, so the driver default already
// gives a consistent read there.
func (r *Repository) SnapshotTxOptions() *sql.TxOptions {
	switch r.driver {
	case DriverPostgres, DriverMySQL:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	default:
		return nil
	}
}

// Close освобождает database/sql и пул pgx.
func (r *Repository) Close() {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.log.Warn().Err(err).Msg("database close failed")
		}
	}
	if r.pool != nil {
		r.pool.Close()
	}
}
