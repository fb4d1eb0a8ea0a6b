// Package pagination parses page requests and turns an ordered bun query into a
// bounded window plus a total count of every row the query's filter matches.
//
// Two strategies are supported:
//   - Offset: ?page=N&per_page=M, LIMIT M OFFSET (N-1)*M.
//   - Seek: ?seek=<cursor>&per_page=M, rows strictly after the cursor position in the
//     query's total order, LIMIT M. Stable while rows are inserted behind the reader.
//
// The package shapes queries and never picks a connection; Load runs against whatever
// bun.IDB it is given, normally a read-only transaction on a worker goroutine.
package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// Query parameter names.
const (
	ParamPage    = "page"
	ParamPerPage = "per_page"
	ParamSeek    = "seek"
)

// ErrInvalidParams is the marker for every rejected pagination input (maps to HTTP 400).
var ErrInvalidParams = errors.New("invalid pagination parameters")

// ParamError names the offending query parameter.
type ParamError struct {
	Param   string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s parameter: %s", e.Param, e.Message)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParams }

// Limits bounds per_page. Values come from configuration.
type Limits struct {
	DefaultPerPage int `mapstructure:"default_per_page" validate:"min=1,ltefield=MaxPerPage"`
	MaxPerPage     int `mapstructure:"max_per_page" validate:"min=1"`
}

// DefaultLimits returns the stock 10/100 limits.
func DefaultLimits() Limits {
	return Limits{DefaultPerPage: DefaultPerPage, MaxPerPage: MaxPerPage}
}

// Strategy selects how a page window is located.
type Strategy int

const (
	StrategyOffset Strategy = iota + 1
	StrategySeek
)

func (s Strategy) String() string {
	switch s {
	case StrategyOffset:
		return "offset"
	case StrategySeek:
		return "seek"
	default:
		return "unknown"
	}
}

// Options is a validated page request. Page is set only for StrategyOffset, Cursor only
// for StrategySeek; a nil Cursor starts at the beginning of the order.
type Options struct {
	Strategy Strategy
	Page     int
	PerPage  int
	Cursor   []any
}

// Offset is the number of rows skipped by an offset page.
func (o Options) Offset() int {
	if o.Strategy != StrategyOffset || o.Page < 1 {
		return 0
	}
	return (o.Page - 1) * o.PerPage
}

// OffsetOptions builds offset options without going through request parsing.
func OffsetOptions(page, perPage int) Options {
	return Options{Strategy: StrategyOffset, Page: page, PerPage: perPage}
}

// SeekOptions builds seek options from already-decoded cursor values.
func SeekOptions(cursor []any, perPage int) Options {
	return Options{Strategy: StrategySeek, Cursor: cursor, PerPage: perPage}
}

// Builder gathers Options from request query parameters. Each strategy must be
// enabled explicitly; a request using a disabled one is rejected.
type Builder struct {
	limits   Limits
	pages    bool
	seek     bool
	validate *validator.Validate
}

func NewBuilder(limits Limits) *Builder {
	if limits.MaxPerPage < 1 {
		limits.MaxPerPage = MaxPerPage
	}
	if limits.DefaultPerPage < 1 || limits.DefaultPerPage > limits.MaxPerPage {
		limits.DefaultPerPage = min(DefaultPerPage, limits.MaxPerPage)
	}
	return &Builder{limits: limits, validate: validator.New()}
}

func (b *Builder) EnablePages() *Builder {
	b.pages = true
	return b
}

func (b *Builder) EnableSeek() *Builder {
	b.seek = true
	return b
}

// Gather parses page, per_page and seek. Nothing invalid is silently corrected.
func (b *Builder) Gather(q url.Values) (Options, error) {
	perPage := b.limits.DefaultPerPage
	if q.Has(ParamPerPage) {
		n, err := parseInt(ParamPerPage, q.Get(ParamPerPage))
		if err != nil {
			return Options{}, err
		}
		rule := fmt.Sprintf("min=1,max=%d", b.limits.MaxPerPage)
		if err := b.check(ParamPerPage, n, rule); err != nil {
			return Options{}, err
		}
		perPage = n
	}

	hasPage, hasSeek := q.Has(ParamPage), q.Has(ParamSeek)
	switch {
	case hasPage && hasSeek:
		return Options{}, &ParamError{Param: ParamSeek, Message: "cannot be combined with ?page="}
	case hasPage && !b.pages:
		return Options{}, &ParamError{Param: ParamPage, Message: "?page= is not supported for this request"}
	case hasSeek && !b.seek:
		return Options{}, &ParamError{Param: ParamSeek, Message: "?seek= is not supported for this request"}
	}

	if hasSeek {
		cursor, err := DecodeCursor(q.Get(ParamSeek))
		if err != nil {
			return Options{}, err
		}
		return SeekOptions(cursor, perPage), nil
	}

	page := 1
	if hasPage {
		n, err := parseInt(ParamPage, q.Get(ParamPage))
		if err != nil {
			return Options{}, err
		}
		if err := b.check(ParamPage, n, "min=1"); err != nil {
			return Options{}, err
		}
		page = n
	}
	if !b.pages {
		return SeekOptions(nil, perPage), nil
	}
	return OffsetOptions(page, perPage), nil
}

func (b *Builder) check(param string, n int, rule string) error {
	err := b.validate.Var(n, rule)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ParamError{Param: param, Message: err.Error()}
	}
	switch {
	case param == ParamPage:
		return &ParamError{Param: param, Message: fmt.Sprintf("page indexing starts from 1, page %d is invalid", n)}
	case verrs[0].Tag() == "max":
		return &ParamError{Param: param, Message: fmt.Sprintf("cannot request more than %d items", b.limits.MaxPerPage)}
	default:
		return &ParamError{Param: param, Message: "must be at least 1"}
	}
}

func parseInt(param, raw string) (int, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, &ParamError{Param: param, Message: fmt.Sprintf("%q is not a valid integer", raw)}
	}
	return int(n), nil
}
