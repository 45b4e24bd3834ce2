package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisPool 提供连接池统计，*redis.Client 满足该接口
type RedisPool interface {
	PoolStats() *redis.PoolStats
}

// MetricsCollector 连接池指标收集器
type MetricsCollector struct {
	db              *sql.DB
	redis           RedisPool
	logger          *logrus.Logger
	collectInterval time.Duration

	dbConnectionsGauge    *prometheus.GaugeVec
	redisConnectionsGauge *prometheus.GaugeVec
	redisPoolCounter      *prometheus.GaugeVec
}

// NewMetricsCollector 创建收集器，db 与 rdb 均可为 nil
func NewMetricsCollector(reg prometheus.Registerer, db *sql.DB, rdb RedisPool, logger *logrus.Logger) *MetricsCollector {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	mc := &MetricsCollector{
		db:              db,
		redis:           rdb,
		logger:          logger,
		collectInterval: 15 * time.Second,
	}
	mc.registerMetrics(reg)
	return mc
}

func (mc *MetricsCollector) registerMetrics(reg prometheus.Registerer) {
	factory := promauto.With(reg)

	mc.dbConnectionsGauge = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wprs_database_connections",
			Help: "Content database connections by state",
		},
		[]string{"state"},
	)

	mc.redisConnectionsGauge = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wprs_redis_connections",
			Help: "Search engine connections by state",
		},
		[]string{"state"},
	)

	mc.redisPoolCounter = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wprs_redis_pool_events",
			Help: "Cumulative search engine pool hits, misses and timeouts",
		},
		[]string{"event"},
	)
}

// Start 周期收集，阻塞到 ctx 结束
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting connection pool metrics collection")

	ticker := time.NewTicker(mc.collectInterval)
	defer ticker.Stop()

	mc.Collect()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.Collect()
		}
	}
}

// Collect 采集一次连接池统计
func (mc *MetricsCollector) Collect() {
	fields := logrus.Fields{}

	if mc.db != nil {
		stats := mc.db.Stats()
		mc.dbConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
		mc.dbConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		mc.dbConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
		mc.dbConnectionsGauge.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
		fields["db_open"] = stats.OpenConnections
		fields["db_in_use"] = stats.InUse
	}

	if mc.redis != nil {
		if stats := mc.redis.PoolStats(); stats != nil {
			mc.redisConnectionsGauge.WithLabelValues("total").Set(float64(stats.TotalConns))
			mc.redisConnectionsGauge.WithLabelValues("idle").Set(float64(stats.IdleConns))
			mc.redisConnectionsGauge.WithLabelValues("stale").Set(float64(stats.StaleConns))
			mc.redisPoolCounter.WithLabelValues("hits").Set(float64(stats.Hits))
			mc.redisPoolCounter.WithLabelValues("misses").Set(float64(stats.Misses))
			mc.redisPoolCounter.WithLabelValues("timeouts").Set(float64(stats.Timeouts))
			fields["redis_total"] = stats.TotalConns
			fields["redis_idle"] = stats.IdleConns
		}
	}

	mc.logger.WithFields(fields).Debug("Connection pool stats collected")
}
