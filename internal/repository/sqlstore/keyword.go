package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/repository"
)

var (
	alphabetical = pagination.Ordering[model.Keyword]{
		Keys:   []pagination.SortKey{pagination.Asc("keyword")},
		Values: func(k model.Keyword) []any { return []any{k.Keyword} },
	}
	// keyword text is unique, so it breaks ties between equal crate counts
	byCrates = pagination.Ordering[model.Keyword]{
		Keys:   []pagination.SortKey{pagination.Desc("crates_cnt"), pagination.Asc("keyword")},
		Values: func(k model.Keyword) []any { return []any{k.CratesCnt, k.Keyword} },
	}
)

func keywordOrdering(sort repository.KeywordSort) pagination.Ordering[model.Keyword] {
	if sort == repository.SortCrates {
		return byCrates
	}
	return alphabetical
}

type keywordRepository struct {
	db       *bun.DB
	tx       repository.TxManager
	snapshot *sql.TxOptions
}

// NewKeywordRepository builds the keyword store. snapshot is the transaction mode List
// reads under; nil leaves it to the driver.
func NewKeywordRepository(db *bun.DB, tx repository.TxManager, snapshot *sql.TxOptions) repository.KeywordRepository {
	return &keywordRepository{db: db, tx: tx, snapshot: snapshot}
}

func (r *keywordRepository) Create(ctx context.Context, k model.Keyword) (model.Keyword, error) {
	k.Keyword = strings.TrimSpace(k.Keyword)
	if k.Keyword == "" {
		return model.Keyword{}, errors.New("keyword text is required")
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if _, err := getDB(ctx, r.db).NewInsert().Model(&k).Exec(ctx); err != nil {
		return model.Keyword{}, repository.MapError(err)
	}
	return k, nil
}

func (r *keywordRepository) FindByKeyword(ctx context.Context, name string) (model.Keyword, error) {
	var out model.Keyword
	err := getDB(ctx, r.db).NewSelect().
		Model(&out).
		Where("lower(?TableAlias.keyword) = lower(?)", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return model.Keyword{}, repository.MapError(err)
	}
	return out, nil
}

func (r *keywordRepository) List(ctx context.Context, sort repository.KeywordSort, opts pagination.Options) (pagination.Paginated[model.Keyword], error) {
	query := pagination.Paginate(nil, keywordOrdering(sort), opts)

	var page pagination.Paginated[model.Keyword]
	err := r.tx.WithinTx(ctx, r.snapshot, func(ctx context.Context) error {
		var err error
		page, err = query.Load(ctx, getDB(ctx, r.db))
		return err
	})
	if err != nil {
		return pagination.Paginated[model.Keyword]{}, err
	}
	return page, nil
}

var _ repository.KeywordRepository = (*keywordRepository)(nil)
