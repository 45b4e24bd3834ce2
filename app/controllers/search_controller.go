package controllers

import (
	"net/http"

	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/search"
)

// SearchController 站内搜索与自动补全
type SearchController struct {
	BaseController
	Service  *search.Service
	Live     *features.LiveSearch
	Features *features.Registry
}

// NewSearchController 创建搜索控制器
func NewSearchController(service *search.Service, live *features.LiveSearch, registry *features.Registry) *SearchController {
	return &SearchController{Service: service, Live: live, Features: registry}
}

// Search GET /api/search?s=term&paged=1&posts_per_page=10
func (c *SearchController) Search() {
	resp, err := c.Service.Search(c.Ctx.Request.Context(), search.Request{
		Term:         c.GetString("s"),
		Paged:        c.intQuery("paged", 1),
		PostsPerPage: c.intQuery("posts_per_page", 0),
	})
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(resp)
}

// Suggest GET /api/suggest?term=prefix
func (c *SearchController) Suggest() {
	ctx := c.Ctx.Request.Context()
	active, err := c.Features.IsActive(ctx, c.Live.Info().Slug)
	if err != nil {
		c.handleError(err)
		return
	}
	if !active {
		c.JSONError(http.StatusNotFound, "live search is not active")
		return
	}

	suggestions, err := c.Live.Suggest(ctx, c.GetString("term"))
	if err != nil {
		c.handleError(err)
		return
	}

	items := make([]map[string]interface{}, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, map[string]interface{}{
			"title":     s.Term,
			"permalink": s.Payload,
			"score":     s.Score,
		})
	}
	c.JSONSuccess(items)
}
