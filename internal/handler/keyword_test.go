package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxviazov/registry-api/internal/handler"
	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/repository"
	"github.com/maxviazov/registry-api/internal/tasks"
)

type stubKeywordService struct {
	list struct {
		rows  []model.Keyword
		total int64
		err   error
		sort  string
		opts  pagination.Options
	}
	get struct {
		kw   model.Keyword
		err  error
		name string
	}
}

func (s *stubKeywordService) ListKeywords(_ context.Context, sort string, opts pagination.Options) (pagination.Paginated[model.Keyword], error) {
	s.list.sort, s.list.opts = sort, opts
	if s.list.err != nil {
		return pagination.Paginated[model.Keyword]{}, s.list.err
	}
	return pagination.Paginated[model.Keyword]{Rows: s.list.rows, Total: s.list.total, Options: opts}, nil
}

func (s *stubKeywordService) GetKeyword(_ context.Context, name string) (model.Keyword, error) {
	s.get.name = name
	return s.get.kw, s.get.err
}

type stubPingerNoop struct{}

func (stubPingerNoop) Ping(context.Context) error { return nil }

func newRouter(svc *stubKeywordService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.Recovery(zerolog.Nop()), handler.RequestLogger(zerolog.Nop()))
	handler.Register(r, stubPingerNoop{}, nil, svc, pagination.DefaultLimits())
	return r
}

func get(t *testing.T, r *gin.Engine, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

type listBody struct {
	Keywords []model.EncodableKeyword `json:"keywords"`
	Meta     struct {
		Total    int64   `json:"total"`
		NextPage *string `json:"next_page"`
		PrevPage *string `json:"prev_page"`
	} `json:"meta"`
}

func keywords(n int) []model.Keyword {
	out := make([]model.Keyword, n)
	for i := range out {
		out[i] = model.Keyword{ID: int64(i + 1), Keyword: string(rune('a' + i)), CratesCnt: int32(i), CreatedAt: time.Unix(0, 0).UTC()}
	}
	return out
}

func TestKeywordHandler_List_OK(t *testing.T) {
	stub := &stubKeywordService{}
	stub.list.rows = keywords(2)
	stub.list.total = 25
	r := newRouter(stub)

	w := get(t, r, "/api/v1/keywords?sort=crates&page=2&per_page=2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "crates", stub.list.sort)
	assert.Equal(t, pagination.OffsetOptions(2, 2), stub.list.opts)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Keywords, 2)
	assert.Equal(t, "a", body.Keywords[0].ID)
	assert.Equal(t, "a", body.Keywords[0].Keyword)
	assert.Equal(t, int64(25), body.Meta.Total)
	require.NotNil(t, body.Meta.NextPage)
	assert.Equal(t, "?page=3&per_page=2&sort=crates", *body.Meta.NextPage)
	require.NotNil(t, body.Meta.PrevPage)
	assert.Equal(t, "?page=1&per_page=2&sort=crates", *body.Meta.PrevPage)
}

func TestKeywordHandler_List_LinksKeepSort(t *testing.T) {
	stub := &stubKeywordService{}
	stub.list.rows = keywords(10)
	stub.list.total = 25
	r := newRouter(stub)

	w := get(t, r, "/api/v1/keywords?sort=crates&page=2&per_page=10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Meta.NextPage)
	require.NotNil(t, body.Meta.PrevPage)
	for _, link := range []string{*body.Meta.NextPage, *body.Meta.PrevPage} {
		q, err := url.ParseQuery(strings.TrimPrefix(link, "?"))
		require.NoError(t, err)
		assert.Equal(t, "crates", q.Get("sort"), link)
		assert.Equal(t, "10", q.Get("per_page"), link)
	}

	// following the link asks the service for the same ordering
	w = get(t, r, "/api/v1/keywords"+*body.Meta.NextPage)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "crates", stub.list.sort)
	assert.Equal(t, pagination.OffsetOptions(3, 10), stub.list.opts)
}

func TestKeywordHandler_List_EmptyPage(t *testing.T) {
	stub := &stubKeywordService{}
	stub.list.total = 3
	r := newRouter(stub)

	w := get(t, r, "/api/v1/keywords?page=9")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"keywords":[],"meta":{"total":3,"next_page":null,"prev_page":"?page=8&per_page=10"}}`, w.Body.String())
}

func TestKeywordHandler_List_Defaults(t *testing.T) {
	stub := &stubKeywordService{}
	r := newRouter(stub)

	w := get(t, r, "/api/v1/keywords")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", stub.list.sort)
	assert.Equal(t, pagination.OffsetOptions(1, 10), stub.list.opts)
}

func TestKeywordHandler_List_InvalidParams(t *testing.T) {
	cursor, err := pagination.EncodeCursor([]any{"serde"})
	require.NoError(t, err)

	cases := map[string]string{
		"per_page above max": "/api/v1/keywords?per_page=101",
		"page zero":          "/api/v1/keywords?page=0",
		"page not a number":  "/api/v1/keywords?page=two",
		"bad cursor":         "/api/v1/keywords?seek=not-a-cursor",
		"seek with page":     "/api/v1/keywords?page=2&seek=" + cursor,
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			stub := &stubKeywordService{}
			w := get(t, newRouter(stub), target)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "invalid_input")
			assert.Zero(t, stub.list.opts.PerPage, "service must not be called")
		})
	}
}

func TestKeywordHandler_List_Seek(t *testing.T) {
	cursor, err := pagination.EncodeCursor([]any{int64(4), "serde"})
	require.NoError(t, err)
	stub := &stubKeywordService{}
	stub.list.rows = keywords(1)
	stub.list.total = 1
	r := newRouter(stub)

	w := get(t, r, "/api/v1/keywords?sort=crates&per_page=5&seek="+cursor)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, pagination.SeekOptions([]any{int64(4), "serde"}, 5), stub.list.opts)

	var body listBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body.Meta.NextPage)
	assert.Nil(t, body.Meta.PrevPage)
}

func TestKeywordHandler_List_WorkerFault(t *testing.T) {
	stub := &stubKeywordService{}
	stub.list.err = &tasks.WorkerFault{Value: "runtime error: invalid memory address"}
	w := get(t, newRouter(stub), "/api/v1/keywords")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestKeywordHandler_Show(t *testing.T) {
	stub := &stubKeywordService{}
	stub.get.kw = model.Keyword{ID: 3, Keyword: "serde", CratesCnt: 42, CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	w := get(t, newRouter(stub), "/api/v1/keywords/serde")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "serde", stub.get.name)
	assert.JSONEq(t, `{"keyword":{"id":"serde","keyword":"serde","created_at":"2024-01-02T03:04:05Z","crates_cnt":42}}`, w.Body.String())
}

func TestKeywordHandler_Show_NotFound(t *testing.T) {
	stub := &stubKeywordService{}
	stub.get.err = repository.ErrNotFound
	w := get(t, newRouter(stub), "/api/v1/keywords/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKeywordHandler_Show_InternalError(t *testing.T) {
	stub := &stubKeywordService{}
	stub.get.err = errors.New("connection refused")
	w := get(t, newRouter(stub), "/api/v1/keywords/serde")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestRecovery_PanicBecomesGeneric500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.Recovery(zerolog.Nop()))
	r.GET("/boom", func(*gin.Context) { panic("secret detail") })

	w := get(t, r, "/boom")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}
