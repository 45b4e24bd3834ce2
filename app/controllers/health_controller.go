package controllers

import (
	"net/http"

	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/index"
)

// HealthController 引擎健康与索引信息
type HealthController struct {
	BaseController
	Checker *database.HealthChecker
	Manager *index.Manager
}

// NewHealthController 创建健康检查控制器
func NewHealthController(health *database.HealthChecker, manager *index.Manager) *HealthController {
	return &HealthController{Checker: health, Manager: manager}
}

// Health GET /health，引擎不可用时返回 503
func (c *HealthController) Health() {
	result := c.Checker.GetHealthResult()
	status := http.StatusOK
	if !result.Healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

// Info GET /api/index/info
func (c *HealthController) Info() {
	info, err := c.Manager.Info(c.Ctx.Request.Context())
	if err != nil {
		c.handleError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"index":       info.Name,
		"num_docs":    info.NumDocs,
		"num_terms":   info.NumTerms,
		"num_records": info.NumRecords,
		"fields":      info.Fields,
	})
}
