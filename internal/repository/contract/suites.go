package contract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/repository"
)

type KeywordFactory func(t *testing.T) (repository.KeywordRepository, func())

type TxFactory func(t *testing.T) (tx repository.TxManager, keywords repository.KeywordRepository, cleanup func())

type PingerFactory func(t *testing.T) (repository.Pinger, func())

func seedKeywords(t *testing.T, repo repository.KeywordRepository, n int, crates func(i int) int32) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		k := model.Keyword{Keyword: fmt.Sprintf("kw-%02d", i), CratesCnt: crates(i)}
		if _, err := repo.Create(ctx, k); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
}

func names(rows []model.Keyword) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Keyword
	}
	return out
}

func RunKeywordRepositoryContract(t *testing.T, makeRepo KeywordFactory) {
	t.Helper()

	t.Run("create_and_find_case_insensitive", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		created, err := repo.Create(ctx, model.Keyword{Keyword: "Serde", CratesCnt: 3})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if created.CreatedAt.IsZero() {
			t.Fatalf("expected created_at to be set")
		}
		got, err := repo.FindByKeyword(ctx, "sErDe")
		if err != nil {
			t.Fatalf("find failed: %v", err)
		}
		if got.Keyword != "Serde" || got.CratesCnt != 3 {
			t.Fatalf("mismatch: %+v", got)
		}
	})

	t.Run("find_not_found", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		_, err := repo.FindByKeyword(context.Background(), "missing")
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("duplicate_rejected", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		if _, err := repo.Create(ctx, model.Keyword{Keyword: "async"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := repo.Create(ctx, model.Keyword{Keyword: "async"}); !errors.Is(err, repository.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if _, err := repo.Create(ctx, model.Keyword{Keyword: "ASYNC"}); !errors.Is(err, repository.ErrAlreadyExists) {
			t.Fatalf("expected case-insensitive ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("list_empty", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		res, err := repo.List(context.Background(), repository.SortAlpha, pagination.OffsetOptions(1, 10))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(res.Rows) != 0 || res.Total != 0 {
			t.Fatalf("unexpected page: len=%d total=%d", len(res.Rows), res.Total)
		}
	})

	t.Run("list_alpha_pages_total", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		seedKeywords(t, repo, 25, func(int) int32 { return 1 })
		ctx := context.Background()

		want := []struct {
			page  int
			n     int
			first string
		}{{1, 10, "kw-00"}, {2, 10, "kw-10"}, {3, 5, "kw-20"}, {4, 0, ""}}
		for _, w := range want {
			res, err := repo.List(ctx, repository.SortAlpha, pagination.OffsetOptions(w.page, 10))
			if err != nil {
				t.Fatalf("list page %d: %v", w.page, err)
			}
			if len(res.Rows) != w.n || res.Total != 25 {
				t.Fatalf("page %d: len=%d total=%d", w.page, len(res.Rows), res.Total)
			}
			if w.n > 0 && res.Rows[0].Keyword != w.first {
				t.Fatalf("page %d starts with %q, want %q", w.page, res.Rows[0].Keyword, w.first)
			}
		}
	})

	t.Run("list_crates_order", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		seedKeywords(t, repo, 12, func(i int) int32 { return int32(i % 3) })
		res, err := repo.List(context.Background(), repository.SortCrates, pagination.OffsetOptions(1, 100))
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(res.Rows) != 12 {
			t.Fatalf("expected 12 rows, got %d", len(res.Rows))
		}
		for i := 1; i < len(res.Rows); i++ {
			prev, cur := res.Rows[i-1], res.Rows[i]
			if prev.CratesCnt < cur.CratesCnt ||
				(prev.CratesCnt == cur.CratesCnt && prev.Keyword >= cur.Keyword) {
				t.Fatalf("rows %d and %d out of order: %+v then %+v", i-1, i, prev, cur)
			}
		}
	})

	t.Run("seek_matches_offset_listing", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		seedKeywords(t, repo, 15, func(i int) int32 { return int32(i % 4) })
		ctx := context.Background()

		full, err := repo.List(ctx, repository.SortCrates, pagination.OffsetOptions(1, 100))
		if err != nil {
			t.Fatalf("full list: %v", err)
		}

		var (
			seen   []string
			cursor []any
		)
		for i := 0; i < 10; i++ {
			res, err := repo.List(ctx, repository.SortCrates, pagination.SeekOptions(cursor, 4))
			if err != nil {
				t.Fatalf("seek list: %v", err)
			}
			if res.Total != 15 {
				t.Fatalf("seek total=%d", res.Total)
			}
			seen = append(seen, names(res.Rows)...)
			next := res.NextSeek()
			if next == "" {
				break
			}
			if cursor, err = pagination.DecodeCursor(next); err != nil {
				t.Fatalf("decode cursor: %v", err)
			}
		}
		if fmt.Sprint(seen) != fmt.Sprint(names(full.Rows)) {
			t.Fatalf("seek listing %v differs from offset listing %v", seen, names(full.Rows))
		}
	})

	t.Run("seek_cursor_of_wrong_types_rejected", func(t *testing.T) {
		repo, cleanup := makeRepo(t)
		t.Cleanup(cleanup)
		seedKeywords(t, repo, 5, func(i int) int32 { return int32(i) })
		ctx := context.Background()

		for _, tc := range []struct {
			sort   repository.KeywordSort
			cursor []any
		}{
			{repository.SortCrates, []any{"zzz", "zzz"}},
			{repository.SortCrates, []any{int64(2), int64(3)}},
			{repository.SortAlpha, []any{int64(1)}},
		} {
			_, err := repo.List(ctx, tc.sort, pagination.SeekOptions(tc.cursor, 2))
			if !errors.Is(err, pagination.ErrInvalidParams) {
				t.Fatalf("sort=%s cursor=%v: expected ErrInvalidParams, got %v", tc.sort, tc.cursor, err)
			}
		}
	})
}

func RunTxManagerContract(t *testing.T, makeTx TxFactory) {
	t.Helper()

	t.Run("commit_on_nil_error", func(t *testing.T) {
		tx, keywords, cleanup := makeTx(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		err := tx.WithinTx(ctx, nil, func(ctx context.Context) error {
			_, err := keywords.Create(ctx, model.Keyword{Keyword: "tx-commit"})
			return err
		})
		if err != nil {
			t.Fatalf("WithinTx: %v", err)
		}
		if _, err := keywords.FindByKeyword(ctx, "tx-commit"); err != nil {
			t.Fatalf("expected committed row visible, got err=%v", err)
		}
	})

	t.Run("rollback_on_error", func(t *testing.T) {
		tx, keywords, cleanup := makeTx(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		errMarker := errors.New("boom")
		err := tx.WithinTx(ctx, nil, func(ctx context.Context) error {
			if _, err := keywords.Create(ctx, model.Keyword{Keyword: "tx-rollback"}); err != nil {
				return err
			}
			return errMarker
		})
		if !errors.Is(err, errMarker) {
			t.Fatalf("expected marker error, got %v", err)
		}
		if _, err := keywords.FindByKeyword(ctx, "tx-rollback"); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after rollback, got %v", err)
		}
	})

	t.Run("nested_joins_outer", func(t *testing.T) {
		tx, keywords, cleanup := makeTx(t)
		t.Cleanup(cleanup)
		ctx := context.Background()
		errMarker := errors.New("outer failed")
		err := tx.WithinTx(ctx, nil, func(ctx context.Context) error {
			inner := tx.WithinTx(ctx, nil, func(ctx context.Context) error {
				_, err := keywords.Create(ctx, model.Keyword{Keyword: "tx-nested"})
				return err
			})
			if inner != nil {
				return inner
			}
			// the outer transaction sees the inner write before commit
			page, err := keywords.List(ctx, repository.SortAlpha, pagination.OffsetOptions(1, 10))
			if err != nil {
				return err
			}
			if page.Total != 1 {
				return fmt.Errorf("inner write not visible: total=%d", page.Total)
			}
			return errMarker
		})
		if !errors.Is(err, errMarker) {
			t.Fatalf("expected marker error, got %v", err)
		}
		if _, err := keywords.FindByKeyword(ctx, "tx-nested"); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("expected inner write rolled back with outer, got %v", err)
		}
	})
}

func RunPingerContract(t *testing.T, makePinger PingerFactory) {
	t.Helper()
	t.Run("ping_ok", func(t *testing.T) {
		p, cleanup := makePinger(t)
		t.Cleanup(cleanup)
		if err := p.Ping(context.Background()); err != nil {
			t.Fatalf("expected ping ok, got %v", err)
		}
	})
}
