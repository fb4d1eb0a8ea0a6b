package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/repository"
	"github.com/maxviazov/registry-api/internal/tasks"
)

// keywordService validates input and hands every repository call to the worker pool.
type keywordService struct {
	repo repository.KeywordRepository
	pool *tasks.Pool
	log  zerolog.Logger
}

func NewKeywordService(repo repository.KeywordRepository, pool *tasks.Pool, logger zerolog.Logger) KeywordService {
	l := logger.With().Str("module", "service").Str("component", "keyword").Logger()
	return &keywordService{repo: repo, pool: pool, log: l}
}

// runBlocking dispatches fn to the pool. fn receives ctx without its cancellation: once
// dispatched, the query runs to completion even if the caller stops waiting.
func runBlocking[T any](ctx context.Context, pool *tasks.Pool, fn func(context.Context) (T, error)) (T, error) {
	detached := context.WithoutCancel(ctx)
	return tasks.SpawnBlocking(ctx, pool, func() (T, error) {
		return fn(detached)
	})
}

func (s *keywordService) ListKeywords(ctx context.Context, sort string, opts pagination.Options) (pagination.Paginated[model.Keyword], error) {
	start := time.Now()
	ks := parseSort(sort)

	page, err := runBlocking(ctx, s.pool, func(ctx context.Context) (pagination.Paginated[model.Keyword], error) {
		return s.repo.List(ctx, ks, opts)
	})
	if err != nil {
		s.logFailure(err, "list keywords failed")
		return pagination.Paginated[model.Keyword]{}, err
	}
	s.log.Debug().
		Str("sort", string(ks)).
		Stringer("strategy", opts.Strategy).
		Int("rows", page.Len()).
		Int64("total", page.Total).
		Dur("took", time.Since(start)).
		Msg("keywords listed")
	return page, nil
}

func (s *keywordService) GetKeyword(ctx context.Context, name string) (model.Keyword, error) {
	name, ferrs := normalizeKeyword(name)
	if err := newInvalidInput(ferrs); err != nil {
		return model.Keyword{}, err
	}
	k, err := runBlocking(ctx, s.pool, func(ctx context.Context) (model.Keyword, error) {
		return s.repo.FindByKeyword(ctx, name)
	})
	if err != nil {
		s.logFailure(err, "get keyword failed")
		return model.Keyword{}, err
	}
	return k, nil
}

// logFailure keeps expected outcomes out of the error log. The pool has already logged
// the panic detail of a faulted task.
func (s *keywordService) logFailure(err error, msg string) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, pagination.ErrInvalidParams):
		s.log.Debug().Err(err).Msg(msg)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.log.Info().Err(err).Msg(msg + ": caller gave up")
	case tasks.IsWorkerFault(err):
		s.log.Error().Bool("faulted", true).Msg(msg)
	default:
		s.log.Error().Err(err).Msg(msg)
	}
}
