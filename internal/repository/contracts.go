package repository

import (
	"context"
	"database/sql"

	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
)

// Pinger represents a minimal readiness probe capability.
// I use it to decouple health checks from storage implementation details.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TxFunc is the unit of work executed within a transaction boundary.
// I pass context through so nested calls can honor cancellations and deadlines.
type TxFunc func(ctx context.Context) error

// TxManager abstracts transactional execution for repositories that support it.
// A nil opts uses the driver defaults. Calls nested inside an open transaction join it.
type TxManager interface {
	WithinTx(ctx context.Context, opts *sql.TxOptions, fn TxFunc) error
}

// KeywordSort selects the total order of a keyword listing.
type KeywordSort string

const (
	// SortAlpha orders by keyword text.
	SortAlpha KeywordSort = "alpha"
	// SortCrates orders by crate count, most used first, then by keyword text.
	SortCrates KeywordSort = "crates"
)

// ParseKeywordSort maps the ?sort= value; empty means alphabetical.
func ParseKeywordSort(s string) (KeywordSort, bool) {
	switch KeywordSort(s) {
	case "", SortAlpha:
		return SortAlpha, true
	case SortCrates:
		return SortCrates, true
	default:
		return "", false
	}
}

// KeywordRepository declares persistence operations for keywords.
// I return domain models and surface domain errors from errors.go rather than driver codes.
type KeywordRepository interface {
	Create(ctx context.Context, k model.Keyword) (model.Keyword, error)
	// FindByKeyword matches the keyword text case-insensitively.
	FindByKeyword(ctx context.Context, name string) (model.Keyword, error)
	// List reads one page; the count and the window share one snapshot.
	List(ctx context.Context, sort KeywordSort, opts pagination.Options) (pagination.Paginated[model.Keyword], error)
}
