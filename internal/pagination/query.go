package pagination

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// SortKey is one column of a total order.
type SortKey struct {
	Column string
	Desc   bool
}

func Asc(column string) SortKey  { return SortKey{Column: column} }
func Desc(column string) SortKey { return SortKey{Column: column, Desc: true} }

// Ordering is the total order a query is paginated over. The last key must be unique,
// otherwise rows sharing every key value can be skipped or repeated between pages.
// Values extracts the key values of a row in Keys order; it feeds the next seek cursor
// and, called with the zero T, tells which value types a cursor must carry.
type Ordering[T any] struct {
	Keys   []SortKey
	Values func(row T) []any
}

// Filter narrows the base query. It must not add ORDER BY, LIMIT or OFFSET.
type Filter func(*bun.SelectQuery) *bun.SelectQuery

// Query is an ordered, filtered selection of T together with the page to read.
type Query[T any] struct {
	Filter  Filter
	Order   Ordering[T]
	Options Options
}

// Paginate attaches opts to a filtered, ordered query.
func Paginate[T any](filter Filter, order Ordering[T], opts Options) *Query[T] {
	return &Query[T]{Filter: filter, Order: order, Options: opts}
}

func (q *Query[T]) validate() error {
	if len(q.Order.Keys) == 0 {
		return errors.New("pagination: query has no ordering")
	}
	if q.Options.PerPage < 1 {
		return &ParamError{Param: ParamPerPage, Message: "must be at least 1"}
	}
	switch q.Options.Strategy {
	case StrategyOffset:
		if q.Options.Page < 1 {
			return &ParamError{Param: ParamPage, Message: fmt.Sprintf("page indexing starts from 1, page %d is invalid", q.Options.Page)}
		}
	case StrategySeek:
		if _, err := q.seekArgs(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pagination: unknown strategy %d", q.Options.Strategy)
	}
	return nil
}

func (q *Query[T]) filtered(sq *bun.SelectQuery) *bun.SelectQuery {
	if q.Filter == nil {
		return sq
	}
	return q.Filter(sq)
}

// Window decorates sq with the filter, the ordering and the page window. It does no I/O.
func (q *Query[T]) Window(sq *bun.SelectQuery) (*bun.SelectQuery, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	sq = q.filtered(sq)

	if q.Options.Strategy == StrategySeek && q.Options.Cursor != nil {
		values, err := q.seekArgs()
		if err != nil {
			return nil, err
		}
		pred, args := seekPredicate(q.Order.Keys, values)
		sq = sq.Where(pred, args...)
	}
	for _, k := range q.Order.Keys {
		if k.Desc {
			sq = sq.OrderExpr("? DESC", bun.Ident(k.Column))
		} else {
			sq = sq.OrderExpr("? ASC", bun.Ident(k.Column))
		}
	}
	sq = sq.Limit(q.Options.PerPage)
	if off := q.Options.Offset(); off > 0 {
		sq = sq.Offset(off)
	}
	return sq, nil
}

// CountQuery decorates sq with the filter only, so the count ignores the window.
func (q *Query[T]) CountQuery(sq *bun.SelectQuery) *bun.SelectQuery {
	return q.filtered(sq)
}

// seekArgs checks the cursor against the key types of the ordering and converts each
// value to what its column compares against. A mismatch is a ParamError.
func (q *Query[T]) seekArgs() ([]any, error) {
	cursor := q.Options.Cursor
	if cursor == nil {
		return nil, nil
	}
	invalid := &ParamError{Param: ParamSeek, Message: "invalid seek parameter"}
	if len(cursor) != len(q.Order.Keys) {
		return nil, invalid
	}
	if q.Order.Values == nil {
		return cursor, nil
	}

	var zero T
	want := q.Order.Values(zero)
	if len(want) != len(cursor) {
		return nil, fmt.Errorf("pagination: ordering has %d keys but yields %d values", len(q.Order.Keys), len(want))
	}
	out := make([]any, len(cursor))
	for i, v := range cursor {
		c, ok := coerceCursorValue(kindOf(want[i]), v)
		if !ok {
			return nil, invalid
		}
		out[i] = c
	}
	return out, nil
}

type valueKind int

const (
	kindAny valueKind = iota
	kindInt
	kindFloat
	kindString
	kindBool
	kindTime
)

var timeType = reflect.TypeOf(time.Time{})

func kindOf(v any) valueKind {
	t := reflect.TypeOf(v)
	if t == nil {
		return kindAny
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return kindTime
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return kindInt
	case reflect.Float32, reflect.Float64:
		return kindFloat
	case reflect.String:
		return kindString
	case reflect.Bool:
		return kindBool
	default:
		return kindAny
	}
}

// coerceCursorValue matches a decoded cursor value (int64, float64, string or bool)
// against the kind of its sort key.
func coerceCursorValue(kind valueKind, v any) (any, bool) {
	switch kind {
	case kindInt:
		n, ok := v.(int64)
		return n, ok
	case kindFloat:
		switch x := v.(type) {
		case float64:
			return x, true
		case int64:
			return float64(x), true
		}
		return nil, false
	case kindString:
		s, ok := v.(string)
		return s, ok
	case kindBool:
		b, ok := v.(bool)
		return b, ok
	case kindTime:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, false
		}
		return t, true
	default:
		return v, true
	}
}

// seekPredicate expands "row > cursor" for mixed sort directions:
// (k1 > v1) OR (k1 = v1 AND k2 > v2) OR ... with < for descending keys.
func seekPredicate(keys []SortKey, values []any) (string, []any) {
	var (
		b    strings.Builder
		args = make([]any, 0, len(keys)*(len(keys)+1))
	)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteByte('(')
		for j := range i {
			b.WriteString("? = ? AND ")
			args = append(args, bun.Ident(keys[j].Column), values[j])
		}
		if k.Desc {
			b.WriteString("? < ?")
		} else {
			b.WriteString("? > ?")
		}
		args = append(args, bun.Ident(k.Column), values[i])
		b.WriteByte(')')
	}
	return b.String(), args
}

// Load runs the count and window queries against db. Pass a transaction when the two
// reads must observe the same snapshot.
func (q *Query[T]) Load(ctx context.Context, db bun.IDB) (Paginated[T], error) {
	rows := make([]T, 0, max(q.Options.PerPage, 0))
	window, err := q.Window(db.NewSelect().Model(&rows))
	if err != nil {
		return Paginated[T]{}, err
	}

	total, err := q.CountQuery(db.NewSelect().Model((*T)(nil))).Count(ctx)
	if err != nil {
		return Paginated[T]{}, fmt.Errorf("count rows: %w", err)
	}
	if total > 0 {
		if err := window.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return Paginated[T]{}, fmt.Errorf("load page: %w", err)
		}
	}

	page := Paginated[T]{Rows: rows, Total: int64(total), Options: q.Options}
	if q.Options.Strategy == StrategySeek && len(rows) == q.Options.PerPage && q.Order.Values != nil {
		page.nextCursor = q.Order.Values(rows[len(rows)-1])
	}
	return page, nil
}
