package di

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/contentsync"
	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/extract"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/kafka"
	"github.com/aihub/wpredisearch/internal/metrics"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/repository"
	"github.com/aihub/wpredisearch/internal/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// connectGrace 启动时连接 Redis 在拨号超时之外额外等待的时间
const connectGrace = 5 * time.Second

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	providers := []interface{}{
		// 基础设施
		func() *config.Config { return cfg },
		func() *zap.Logger { return logger },
		newLogrusLogger,
		prometheus.NewRegistry,
		func(reg *prometheus.Registry) *metrics.Metrics { return metrics.New(reg) },
		hooks.NewRegistry,
		newRedisClient,
		newGormDB,
		func(db *gorm.DB) (*sql.DB, error) { return db.DB() },

		// 关系库与引擎
		func(db *gorm.DB, cfg *config.Config) repository.ContentRepository {
			return repository.NewContentRepository(db, cfg.Database.TablePrefix)
		},
		func(db *gorm.DB, cfg *config.Config) repository.OptionRepository {
			return repository.NewOptionRepository(db, cfg.Database.TablePrefix)
		},
		func(rdb *redis.Client, logger *zap.Logger) *redisearch.Client {
			return redisearch.NewClient(rdb, logger.Named("redisearch"))
		},
		newHealthChecker,
		func(reg *prometheus.Registry, db *sql.DB, rdb *redis.Client, log *logrus.Logger) *database.MetricsCollector {
			return database.NewMetricsCollector(reg, db, rdb, log)
		},

		// 索引
		func(options repository.OptionRepository) index.CursorStore { return index.NewOptionCursorStore(options) },
		func(client *redisearch.Client, cursors index.CursorStore, cfg *config.Config, h *hooks.Registry, logger *zap.Logger) *index.Manager {
			return index.NewManager(client, cursors, cfg.Index, h, logger.Named("index"))
		},
		func(content repository.ContentRepository, cfg *config.Config, h *hooks.Registry, logger *zap.Logger) *index.Preparer {
			return index.NewPreparer(content, cfg, h, logger.Named("preparer"))
		},
		func(client *redisearch.Client, content repository.ContentRepository, preparer *index.Preparer, cursors index.CursorStore,
			cfg *config.Config, h *hooks.Registry, m *metrics.Metrics, logger *zap.Logger) *index.BatchIndexer {
			return index.NewBatchIndexer(client, content, preparer, cursors, cfg.Index, h, m, logger.Named("batch"))
		},
		func(client *redisearch.Client, preparer *index.Preparer, cfg *config.Config, h *hooks.Registry, m *metrics.Metrics, logger *zap.Logger) *index.IncrementalIndexer {
			return index.NewIncrementalIndexer(client, preparer, cfg.Index, h, m, logger.Named("incremental"))
		},
		func(rdb *redis.Client, cfg *config.Config) *index.ReindexLock {
			return index.NewReindexLock(rdb, cfg.Index.Name, cfg.Index.LockTTL)
		},
		func(manager *index.Manager, batch *index.BatchIndexer, cursors index.CursorStore, preparer *index.Preparer,
			h *hooks.Registry, lock *index.ReindexLock, logger *zap.Logger) *index.Runner {
			return index.NewRunner(manager, batch, cursors, preparer, h, lock, out, logger.Named("runner"))
		},

		// 搜索
		func(client *redisearch.Client, content repository.ContentRepository, health *database.HealthChecker,
			cfg *config.Config, h *hooks.Registry, m *metrics.Metrics, logger *zap.Logger) *search.Translator {
			return search.NewTranslator(client, content, health, cfg, h, m, logger.Named("search"))
		},
		func(translator *search.Translator, content repository.ContentRepository, cfg *config.Config, h *hooks.Registry, logger *zap.Logger) *search.Service {
			schema := index.NewSchemaBuilder(cfg.Index, h)
			return search.NewService(translator, content, schema.PostTypes, schema.PostStatuses, logger.Named("search"))
		},

		// 扩展功能
		newProducer,
		newExtractor,
		func(client *redisearch.Client, cfg *config.Config, logger *zap.Logger) *features.LiveSearch {
			return features.NewLiveSearch(client, cfg.Index, logger.Named("live-search"))
		},
		newFeatureRegistry,

		// 内容同步
		func(content repository.ContentRepository, incremental *index.IncrementalIndexer, logger *zap.Logger) *contentsync.Syncer {
			return contentsync.NewSyncer(content, incremental, logger.Named("sync"))
		},
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// newLogrusLogger 健康检查与连接池指标沿用 logrus
func newLogrusLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
	if cfg.Server.Env == "development" {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+connectGrace)
	defer cancel()
	return database.NewRedisClient(ctx, cfg.Redis)
}

func newGormDB(cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.Server.Env == "development" {
		level = gormlogger.Info
	}
	return database.Open(cfg.Database, level)
}

func newHealthChecker(client *redisearch.Client, db *sql.DB, cfg *config.Config, m *metrics.Metrics, log *logrus.Logger) *database.HealthChecker {
	return database.NewHealthChecker(client, db, cfg.Index.Name, m, log)
}

// newProducer 未配置 brokers 时返回 nil，事件推送功能无法激活
func newProducer(cfg *config.Config, logger *zap.Logger) *kafka.Producer {
	stream := cfg.Features.EventStream
	if len(stream.Brokers) == 0 || stream.Topic == "" {
		return nil
	}
	producer, err := kafka.NewProducer(stream.Brokers, stream.Topic, logger.Named("kafka"))
	if err != nil {
		logger.Warn("event stream disabled", zap.Error(err))
		return nil
	}
	return producer
}

// newExtractor 存储配置错误时返回 nil，附件文档功能无法激活
func newExtractor(cfg *config.Config, logger *zap.Logger) *extract.Extractor {
	doc := cfg.Features.Document
	if err := extract.SetLicenseKey(doc.LicenseKey); err != nil {
		logger.Warn("document parser license rejected", zap.Error(err))
	}
	source, err := extract.NewSource(doc)
	if err != nil {
		logger.Warn("document storage unavailable", zap.Error(err))
		return nil
	}
	return extract.NewExtractor(source, extract.NewManager(), logger.Named("extract"))
}

func newFeatureRegistry(
	options repository.OptionRepository,
	content repository.ContentRepository,
	client *redisearch.Client,
	live *features.LiveSearch,
	producer *kafka.Producer,
	extractor *extract.Extractor,
	cfg *config.Config,
	logger *zap.Logger,
) (*features.Registry, error) {
	var publisher features.Publisher
	if producer != nil {
		publisher = producer
	}
	var textExtractor features.TextExtractor
	if extractor != nil {
		textExtractor = extractor
	}

	mimeTypes := cfg.Features.Document.AllowedMimeTypes
	if len(mimeTypes) == 0 {
		mimeTypes = extract.DefaultMimeTypes
	}

	registry := features.NewRegistry(options, logger.Named("features"))
	for _, f := range []features.Feature{
		live,
		features.NewSynonym(client, cfg.Index.Name, cfg.Features.Synonym.Groups, logger.Named("synonym")),
		features.NewDocument(textExtractor, content, mimeTypes, logger.Named("document")),
		features.NewEventStream(publisher, logger.Named("event-stream")),
		features.NewPersistence(client, cfg.Index.WriteToDisk, logger.Named("write-to-disk")),
	} {
		if err := registry.Register(f); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
