package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/metrics"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/sirupsen/logrus"
)

// ErrSearchModuleMissing Redis 实例未加载 search 模块
var ErrSearchModuleMissing = errors.New("redis instance does not have the search module loaded")

// EngineProbe 引擎探测所需的命令
type EngineProbe interface {
	Ping(ctx context.Context) error
	HasSearchModule(ctx context.Context) (bool, error)
	Info(ctx context.Context, name string) (*redisearch.IndexInfo, error)
}

// HealthChecker 搜索引擎与内容库健康检查器
//
// IsHealthy 只反映搜索引擎：连接可用且加载了 search 模块。
// 索引不存在不算故障，查询会在引擎侧失败并回退。
type HealthChecker struct {
	engine        EngineProbe
	db            *sql.DB
	indexName     string
	metrics       *metrics.Metrics
	logger        *logrus.Logger
	checkInterval time.Duration
	retryDelay    time.Duration
	maxRetries    int
	isHealthy     bool
	indexExists   bool
	numDocs       int64
	lastCheck     time.Time
	lastError     error
	dbError       error
	responseTime  time.Duration
	mu            sync.RWMutex
	stopChan      chan struct{}
	running       bool
}

// HealthCheckResult 健康检查结果
type HealthCheckResult struct {
	Healthy      bool      `json:"healthy"`
	Index        string    `json:"index"`
	IndexExists  bool      `json:"index_exists"`
	NumDocs      int64     `json:"num_docs"`
	Database     string    `json:"database,omitempty"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

// NewHealthChecker 创建健康检查器，db 为 nil 时不检查内容库
func NewHealthChecker(engine EngineProbe, db *sql.DB, indexName string, m *metrics.Metrics, logger *logrus.Logger) *HealthChecker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HealthChecker{
		engine:        engine,
		db:            db,
		indexName:     indexName,
		metrics:       m,
		logger:        logger,
		checkInterval: 30 * time.Second,
		retryDelay:    5 * time.Second,
		maxRetries:    3,
		stopChan:      make(chan struct{}),
	}
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// SetRetryConfig 设置重试配置
func (hc *HealthChecker) SetRetryConfig(delay time.Duration, maxRetries int) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.retryDelay = delay
	hc.maxRetries = maxRetries
}

// Start 开始周期检查，阻塞到 ctx 结束或 Stop 被调用
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	stop := hc.stopChan
	interval := hc.checkInterval
	hc.mu.Unlock()

	hc.logger.WithField("index", hc.indexName).Info("Starting search engine health checker")

	hc.checkAndUpdate(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.markStopped()
			return
		case <-stop:
			hc.markStopped()
			return
		case <-ticker.C:
			hc.checkAndUpdate(ctx)
		}
	}
}

func (hc *HealthChecker) markStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	hc.logger.Info("Search engine health checker stopped")
}

// Stop 停止周期检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	select {
	case <-hc.stopChan:
	default:
		close(hc.stopChan)
	}
}

// Check 执行单次健康检查
func (hc *HealthChecker) Check(ctx context.Context) error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := hc.probeEngine(ctx)
	var (
		info      *redisearch.IndexInfo
		infoError error
	)
	if err == nil {
		info, infoError = hc.engine.Info(ctx, hc.indexName)
		if infoError != nil && !apperrors.IsCode(infoError, apperrors.ErrCodeIndexNotFound) {
			err = infoError
		}
	}

	var dbErr error
	if hc.db != nil {
		dbErr = hc.db.PingContext(ctx)
	}
	responseTime := time.Since(start)

	hc.mu.Lock()
	wasHealthy := hc.isHealthy
	hc.lastCheck = time.Now()
	hc.responseTime = responseTime
	hc.dbError = dbErr
	hc.lastError = err
	hc.isHealthy = err == nil
	hc.indexExists = err == nil && info != nil
	hc.numDocs = 0
	if info != nil {
		hc.numDocs = info.NumDocs
	}
	hc.mu.Unlock()

	hc.metrics.SetEngineUp(err == nil)

	if dbErr != nil {
		hc.logger.WithError(dbErr).Warn("Database health check failed")
	}
	if err != nil {
		hc.logger.WithFields(logrus.Fields{
			"error":         err.Error(),
			"response_time": responseTime,
		}).Warn("Search engine health check failed")
		return err
	}

	if !wasHealthy {
		hc.logger.WithField("response_time", responseTime).Info("Search engine connection restored")
	}
	hc.logger.WithField("response_time", responseTime).Debug("Search engine health check passed")
	return nil
}

func (hc *HealthChecker) probeEngine(ctx context.Context) error {
	if err := hc.engine.Ping(ctx); err != nil {
		return err
	}
	ok, err := hc.engine.HasSearchModule(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSearchModuleMissing
	}
	return nil
}

// checkAndUpdate 执行检查，失败时按退避重试
func (hc *HealthChecker) checkAndUpdate(ctx context.Context) {
	if err := hc.Check(ctx); err != nil {
		hc.retryWithBackoff(ctx)
	}
}

// retryWithBackoff 带退避的重试逻辑
func (hc *HealthChecker) retryWithBackoff(ctx context.Context) {
	hc.mu.RLock()
	delay, maxRetries := hc.retryDelay, hc.maxRetries
	hc.mu.RUnlock()

	for i := 0; i < maxRetries; i++ {
		hc.logger.WithField("attempt", i+1).Info("Retrying search engine connection")

		select {
		case <-time.After(delay * time.Duration(i+1)):
			if err := hc.Check(ctx); err == nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}

	hc.logger.Error("Search engine connection failed after all retries")
}

// IsHealthy 获取当前健康状态
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.isHealthy
}

// GetHealthResult 获取健康检查结果
func (hc *HealthChecker) GetHealthResult() HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	result := HealthCheckResult{
		Healthy:     hc.isHealthy,
		Index:       hc.indexName,
		IndexExists: hc.indexExists,
		NumDocs:     hc.numDocs,
		LastCheck:   hc.lastCheck,
	}
	if hc.lastError != nil {
		result.LastError = hc.lastError.Error()
	}
	if !hc.lastCheck.IsZero() {
		result.ResponseTime = hc.responseTime.String()
	}
	if hc.db != nil && !hc.lastCheck.IsZero() {
		result.Database = "up"
		if hc.dbError != nil {
			result.Database = "down"
		}
	}
	return result
}

// WaitForHealthy 等待引擎变为健康状态
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
