package database

import (
	"fmt"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 连接池默认值
const (
	defaultMaxOpenConns    = 100
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 30 * time.Minute
)

// PoolSettings 连接池参数
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// PoolSettingsFrom 从配置读取连接池参数，未配置的项使用默认值
func PoolSettingsFrom(cfg config.DatabaseConfig) PoolSettings {
	p := PoolSettings{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if p.MaxOpenConns <= 0 {
		p.MaxOpenConns = defaultMaxOpenConns
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = defaultMaxIdleConns
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return p
}

// Open 打开内容库连接
func Open(cfg config.DatabaseConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := PoolSettingsFrom(cfg)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if cfg.AutoMigrate {
		if err := AutoMigrate(db, cfg.TablePrefix); err != nil {
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}

	logrus.WithField("table_prefix", cfg.TablePrefix).Info("Database connected successfully")
	return db, nil
}

type tabler interface {
	TableName() string
}

// AutoMigrate 按表前缀创建或更新内容表
func AutoMigrate(db *gorm.DB, prefix string) error {
	for _, m := range models.AllModels() {
		t, ok := m.(tabler)
		if !ok {
			continue
		}
		table := prefix + t.TableName()
		if err := db.Table(table).AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

