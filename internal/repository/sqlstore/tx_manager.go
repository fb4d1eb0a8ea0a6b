package sqlstore

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"github.com/maxviazov/registry-api/internal/repository"
)

type txKey struct{}

func withTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// getDB returns the transaction carried by ctx, or db when there is none.
func getDB(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

type txManager struct{ db *bun.DB }

func NewTxManager(db *bun.DB) repository.TxManager { return &txManager{db: db} }

func (m *txManager) WithinTx(ctx context.Context, opts *sql.TxOptions, fn repository.TxFunc) error {
	// already inside a transaction: join it instead of nesting
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	err := m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(withTx(ctx, tx))
	})
	return repository.MapError(err)
}

// ensure interfaces are satisfied at compile time
var _ repository.TxManager = (*txManager)(nil)
