package controllers

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
	Registry *prometheus.Registry
}

// NewMetricsController 创建指标控制器
func NewMetricsController(reg *prometheus.Registry) *MetricsController {
	return &MetricsController{Registry: reg}
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	handler := promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})
	handler.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
