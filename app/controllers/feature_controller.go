package controllers

import (
	"github.com/aihub/wpredisearch/internal/features"
)

// FeatureController 扩展功能开关
type FeatureController struct {
	BaseController
	Features *features.Registry
}

// NewFeatureController 创建功能控制器
func NewFeatureController(registry *features.Registry) *FeatureController {
	return &FeatureController{Features: registry}
}

// List GET /api/features?all=true
func (c *FeatureController) List() {
	all, _ := c.GetBool("all", false)
	list, err := c.Features.List(c.Ctx.Request.Context(), all)
	if err != nil {
		c.handleError(err)
		return
	}
	pending, err := c.Features.ReindexPending(c.Ctx.Request.Context())
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"features":         list,
		"reindex_required": pending,
	})
}

// Activate POST /api/features/:slug/activate
func (c *FeatureController) Activate() {
	res, err := c.Features.Activate(c.Ctx.Request.Context(), c.Ctx.Input.Param(":slug"))
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(res)
}

// Deactivate POST /api/features/:slug/deactivate
func (c *FeatureController) Deactivate() {
	res, err := c.Features.Deactivate(c.Ctx.Request.Context(), c.Ctx.Input.Param(":slug"))
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(res)
}
