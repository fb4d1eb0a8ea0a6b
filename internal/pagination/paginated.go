package pagination

import (
	"maps"
	"net/url"
	"strconv"
)

// Paginated is one page of rows plus the number of rows matching the query filter.
// len(Rows) <= Options.PerPage and Total >= len(Rows).
type Paginated[T any] struct {
	Rows    []T
	Total   int64
	Options Options

	nextCursor []any
}

func (p Paginated[T]) Len() int { return len(p.Rows) }

// NextSeek is the cursor that continues after the last row, or "" when the page was
// not full and there is nothing more to read.
func (p Paginated[T]) NextSeek() string {
	if p.nextCursor == nil {
		return ""
	}
	s, err := EncodeCursor(p.nextCursor)
	if err != nil {
		return ""
	}
	return s
}

// NextPage returns the query string of the following page, or "" on the last page.
// Parameters of query other than the pagination ones are carried over unchanged.
func (p Paginated[T]) NextPage(query url.Values) string {
	v := linkValues(query)
	switch p.Options.Strategy {
	case StrategyOffset:
		if int64(p.Options.Offset()+len(p.Rows)) >= p.Total || len(p.Rows) == 0 {
			return ""
		}
		v.Set(ParamPage, strconv.Itoa(p.Options.Page+1))
	case StrategySeek:
		seek := p.NextSeek()
		if seek == "" {
			return ""
		}
		v.Set(ParamSeek, seek)
	default:
		return ""
	}
	v.Set(ParamPerPage, strconv.Itoa(p.Options.PerPage))
	return "?" + v.Encode()
}

// PrevPage returns the query string of the preceding offset page. Seek pages have no
// way back and always return "".
func (p Paginated[T]) PrevPage(query url.Values) string {
	if p.Options.Strategy != StrategyOffset || p.Options.Page <= 1 {
		return ""
	}
	v := linkValues(query)
	v.Set(ParamPage, strconv.Itoa(p.Options.Page-1))
	v.Set(ParamPerPage, strconv.Itoa(p.Options.PerPage))
	return "?" + v.Encode()
}

// linkValues copies query without its pagination parameters.
func linkValues(query url.Values) url.Values {
	v := maps.Clone(query)
	if v == nil {
		v = url.Values{}
	}
	v.Del(ParamPage)
	v.Del(ParamSeek)
	v.Del(ParamPerPage)
	return v
}

// Map converts the rows of a page, keeping the total and the navigation state.
func Map[T, U any](p Paginated[T], fn func(T) U) Paginated[U] {
	rows := make([]U, len(p.Rows))
	for i, r := range p.Rows {
		rows[i] = fn(r)
	}
	return Paginated[U]{Rows: rows, Total: p.Total, Options: p.Options, nextCursor: p.nextCursor}
}
