package bootstrap

import (
	"context"
	"database/sql"
	"io"
	"log"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/contentsync"
	"github.com/aihub/wpredisearch/internal/database"
	"github.com/aihub/wpredisearch/internal/di"
	"github.com/aihub/wpredisearch/internal/features"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/kafka"
	"github.com/aihub/wpredisearch/internal/logger"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Container *dig.Container

	loader       *config.Loader
	cancel       context.CancelFunc
	cleanupTasks []func() error
}

// Options 控制启动哪些后台任务
type Options struct {
	// 启动健康检查与连接池指标采集（HTTP 服务）
	Background bool
	// 订阅 Kafka 内容变更主题（sync.enabled 时）
	ContentSync bool
	// 索引进度输出，nil 时写到标准输出
	Output io.Writer
}

// Init bootstraps configuration, logger, connections and the component
// container. Features that are switched on register their hooks here.
func Init(opts Options) (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	config.AppConfig = cfg

	container, err := di.Build(cfg, logger.Logger, opts.Output)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, Container: container, loader: loader, cancel: cancel}

	err = container.Invoke(func(rdb *redis.Client, db *sql.DB) {
		app.cleanupTasks = append(app.cleanupTasks, db.Close, rdb.Close)
	})
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	err = container.Invoke(func(registry *features.Registry, h *hooks.Registry) error {
		enabled, err := registry.Setup(ctx, h)
		if err == nil {
			logger.Info("Features enabled", zap.Strings("features", enabled))
		}
		return err
	})
	if err != nil {
		app.Shutdown()
		return nil, err
	}

	// Close the event stream producer if one was created.
	_ = container.Invoke(func(producer *kafka.Producer) {
		if producer != nil {
			app.cleanupTasks = append(app.cleanupTasks, producer.Close)
		}
	})

	if opts.Background {
		if err := app.startBackground(ctx); err != nil {
			app.Shutdown()
			return nil, err
		}
	}

	if opts.ContentSync && cfg.Sync.Enabled {
		if err := app.startContentSync(ctx); err != nil {
			// Kafka is optional; the HTTP sync endpoint keeps working.
			logger.Warn("Failed to start content sync consumer", zap.Error(err))
		}
	}

	loader.RegisterCallback(func(_, _ *config.Config) error {
		logger.Warn("Configuration file changed; restart to apply index and connection settings")
		return nil
	})
	if err := loader.StartWatching(); err != nil {
		logger.Debug("Config watcher not started", zap.Error(err))
	}

	return app, nil
}

func (a *App) startBackground(ctx context.Context) error {
	return a.Container.Invoke(func(health *database.HealthChecker, collector *database.MetricsCollector) {
		go health.Start(ctx)
		go collector.Start(ctx)
		a.cleanupTasks = append(a.cleanupTasks, func() error {
			health.Stop()
			return nil
		})
	})
}

func (a *App) startContentSync(ctx context.Context) error {
	sync := a.Config.Sync
	consumer, err := kafka.NewConsumer(sync.Brokers, sync.GroupID, []string{sync.Topic}, logger.Named("sync-consumer"))
	if err != nil {
		return err
	}
	err = a.Container.Invoke(func(syncer *contentsync.Syncer) {
		consumer.RegisterHandler(sync.Topic, syncer.HandleMessage)
	})
	if err != nil {
		_ = consumer.Close()
		return err
	}
	consumer.Start(ctx)
	a.cleanupTasks = append(a.cleanupTasks, consumer.Close)
	logger.Info("Content sync consumer started", zap.String("topic", sync.Topic), zap.String("group_id", sync.GroupID))
	return nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
