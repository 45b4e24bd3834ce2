// Package metrics 定义索引与搜索的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 索引写入方式
const (
	ModeBatch       = "batch"
	ModeIncremental = "incremental"
)

// Metrics 索引与搜索指标。所有方法对 nil 接收者安全。
type Metrics struct {
	documentsIndexed *prometheus.CounterVec
	documentsFailed  *prometheus.CounterVec
	documentsDeleted prometheus.Counter
	batchDuration    prometheus.Histogram
	searchRequests   *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	engineUp         prometheus.Gauge
}

// New 在给定注册器上注册指标
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		documentsIndexed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wprs_documents_indexed_total",
				Help: "Documents submitted to the search engine",
			},
			[]string{"mode"},
		),
		documentsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wprs_documents_failed_total",
				Help: "Documents rejected while indexing",
			},
			[]string{"mode"},
		),
		documentsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "wprs_documents_deleted_total",
			Help: "Documents removed after leaving an indexable status",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wprs_batch_duration_seconds",
			Help:    "Duration of one indexing batch",
			Buckets: prometheus.DefBuckets,
		}),
		searchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wprs_search_requests_total",
				Help: "Search queries by final translator state",
			},
			[]string{"state"},
		),
		searchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "wprs_search_duration_seconds",
			Help:    "Duration of engine search plus hydration",
			Buckets: prometheus.DefBuckets,
		}),
		engineUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "wprs_engine_up",
			Help: "Whether the last engine health check passed",
		}),
	}
}

// DocumentIndexed 记录一次成功写入
func (m *Metrics) DocumentIndexed(mode string) {
	if m == nil {
		return
	}
	m.documentsIndexed.WithLabelValues(mode).Inc()
}

// DocumentFailed 记录一次写入失败
func (m *Metrics) DocumentFailed(mode string) {
	if m == nil {
		return
	}
	m.documentsFailed.WithLabelValues(mode).Inc()
}

// DocumentDeleted 记录一次删除
func (m *Metrics) DocumentDeleted() {
	if m == nil {
		return
	}
	m.documentsDeleted.Inc()
}

// ObserveBatch 记录批次耗时
func (m *Metrics) ObserveBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(d.Seconds())
}

// SearchCompleted 记录搜索结束状态与耗时
func (m *Metrics) SearchCompleted(state string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(state).Inc()
	if d > 0 {
		m.searchDuration.Observe(d.Seconds())
	}
}

// SetEngineUp 记录引擎健康状态
func (m *Metrics) SetEngineUp(up bool) {
	if m == nil {
		return
	}
	if up {
		m.engineUp.Set(1)
		return
	}
	m.engineUp.Set(0)
}
