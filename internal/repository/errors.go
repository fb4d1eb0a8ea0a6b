package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Domain-level errors I prefer to bubble up from repository implementations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("conflict")
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlNoReferencedRow  = 1452
	mysqlRowIsReferenced  = 1451
	sqliteUniqueViolation = "UNIQUE constraint failed"
	sqliteForeignKey      = "FOREIGN KEY constraint failed"
)

// MapError translates driver errors to domain errors.
// I only map what I expect to handle explicitly at higher layers; everything else passes through.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrAlreadyExists
		case pgerrcode.ForeignKeyViolation:
			return ErrConflict
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry:
			return ErrAlreadyExists
		case mysqlNoReferencedRow, mysqlRowIsReferenced:
			return ErrConflict
		}
		return err
	}

	// sqlite drivers differ in error types; the message is stable across them.
	switch msg := err.Error(); {
	case strings.Contains(msg, sqliteUniqueViolation):
		return ErrAlreadyExists
	case strings.Contains(msg, sqliteForeignKey):
		return ErrConflict
	}
	return err
}
