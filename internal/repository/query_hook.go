package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
)

// slowQueryHook reports bun queries slower than threshold and queries that failed with
// anything other than an empty result.
type slowQueryHook struct {
	threshold time.Duration
	log       zerolog.Logger
}

var _ bun.QueryHook = (*slowQueryHook)(nil)

func newSlowQueryHook(threshold time.Duration, log zerolog.Logger) *slowQueryHook {
	return &slowQueryHook{threshold: threshold, log: log.With().Str("component", "bun").Logger()}
}

func (h *slowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *slowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	took := time.Since(event.StartTime)

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) && !errors.Is(event.Err, sql.ErrTxDone):
		h.log.Debug().
			Err(event.Err).
			Str("op", event.Operation()).
			Dur("took", took).
			Str("sql", event.Query).
			Msg("query failed")
	case event.Err == nil && took > h.threshold:
		h.log.Warn().
			Str("op", event.Operation()).
			Dur("took", took).
			Dur("threshold", h.threshold).
			Str("sql", event.Query).
			Msg("slow query")
	}
}
