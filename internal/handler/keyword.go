package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/maxviazov/registry-api/internal/model"
	"github.com/maxviazov/registry-api/internal/pagination"
	"github.com/maxviazov/registry-api/internal/service"
	"github.com/maxviazov/registry-api/pkg/response"
)

type KeywordHandler struct {
	svc   service.KeywordService
	pages *pagination.Builder
}

func NewKeywordHandler(svc service.KeywordService, limits pagination.Limits) *KeywordHandler {
	return &KeywordHandler{
		svc:   svc,
		pages: pagination.NewBuilder(limits).EnablePages().EnableSeek(),
	}
}

func (h *KeywordHandler) Register(r *gin.RouterGroup) {
	g := r.Group("/keywords")
	{
		g.GET("", h.list)
		g.GET("/:keyword_id", h.show)
	}
}

type listMeta struct {
	Total    int64   `json:"total"`
	NextPage *string `json:"next_page"`
	PrevPage *string `json:"prev_page"`
}

type listKeywordsResponse struct {
	Keywords []model.EncodableKeyword `json:"keywords"`
	Meta     listMeta                 `json:"meta"`
}

type showKeywordResponse struct {
	Keyword model.EncodableKeyword `json:"keyword"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *KeywordHandler) list(c *gin.Context) {
	query := c.Request.URL.Query()
	opts, err := h.pages.Gather(query)
	if err != nil {
		response.WriteError(c, err)
		return
	}
	page, err := h.svc.ListKeywords(c.Request.Context(), c.Query("sort"), opts)
	if err != nil {
		response.WriteError(c, err)
		return
	}

	encoded := pagination.Map(page, model.Keyword.Encodable)
	response.WriteData(c, http.StatusOK, listKeywordsResponse{
		Keywords: encoded.Rows,
		Meta: listMeta{
			Total:    encoded.Total,
			NextPage: optional(encoded.NextPage(query)),
			PrevPage: optional(encoded.PrevPage(query)),
		},
	})
}

func (h *KeywordHandler) show(c *gin.Context) {
	kw, err := h.svc.GetKeyword(c.Request.Context(), c.Param("keyword_id"))
	if err != nil {
		response.WriteError(c, err)
		return
	}
	response.WriteData(c, http.StatusOK, showKeywordResponse{Keyword: kw.Encodable()})
}
