package controllers

import (
	"github.com/aihub/wpredisearch/internal/contentsync"
)

// ContentController 内容变更通知
type ContentController struct {
	BaseController
	Syncer *contentsync.Syncer
}

// NewContentController 创建内容同步控制器
func NewContentController(syncer *contentsync.Syncer) *ContentController {
	return &ContentController{Syncer: syncer}
}

// Sync POST /api/content/:id/sync
func (c *ContentController) Sync() {
	id, ok := c.uintParam(":id")
	if !ok {
		return
	}
	res, err := c.Syncer.Sync(c.Ctx.Request.Context(), id)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(res)
}

// Remove DELETE /api/content/:id
func (c *ContentController) Remove() {
	id, ok := c.uintParam(":id")
	if !ok {
		return
	}
	res, err := c.Syncer.Remove(c.Ctx.Request.Context(), id)
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(res)
}
