package index

import (
	"context"
	"fmt"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"go.uber.org/zap"
)

// Manager 索引生命周期：创建、删除、信息与落盘
type Manager struct {
	engine  Engine
	cursors CursorStore
	schema  *SchemaBuilder
	hooks   *hooks.Registry
	cfg     config.IndexConfig
	logger  *zap.Logger
}

// NewManager 创建索引管理器
func NewManager(engine Engine, cursors CursorStore, cfg config.IndexConfig, h *hooks.Registry, logger *zap.Logger) *Manager {
	if h == nil {
		h = hooks.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		engine:  engine,
		cursors: cursors,
		schema:  NewSchemaBuilder(cfg, h),
		hooks:   h,
		cfg:     cfg,
		logger:  logger,
	}
}

// Name 索引名
func (m *Manager) Name() string {
	return m.cfg.Name
}

// Schema 按当前配置与扩展点生成的索引结构
func (m *Manager) Schema() (IndexSchema, error) {
	return m.schema.Build()
}

// CreateIndex 重建索引并清空游标
func (m *Manager) CreateIndex(ctx context.Context) (IndexSchema, error) {
	schema, err := m.schema.Build()
	if err != nil {
		return IndexSchema{}, err
	}
	if err := Apply(ctx, m.engine, m.cfg.Name, schema, StopWordPolicyFrom(m.cfg), m.hooks, m.logger); err != nil {
		return IndexSchema{}, err
	}
	if err := m.cursors.Reset(ctx); err != nil {
		return IndexSchema{}, err
	}

	m.logger.Info("index rebuilt",
		zap.String("index", m.cfg.Name),
		zap.Strings("prefixes", schema.Prefixes),
		zap.Int("fields", len(schema.Fields)),
	)
	return schema, nil
}

// DropIndex 删除索引及其文档，并清空游标
func (m *Manager) DropIndex(ctx context.Context) error {
	if err := m.engine.DropIndex(ctx, m.cfg.Name, true); err != nil {
		return fmt.Errorf("drop index %s: %w", m.cfg.Name, err)
	}
	if err := m.cursors.Reset(ctx); err != nil {
		return err
	}
	m.logger.Info("index dropped", zap.String("index", m.cfg.Name))
	return nil
}

// Info 索引统计信息
func (m *Manager) Info(ctx context.Context) (*redisearch.IndexInfo, error) {
	return m.engine.Info(ctx, m.cfg.Name)
}

// Cursor 当前全量索引进度
func (m *Manager) Cursor(ctx context.Context) (Cursor, error) {
	return m.cursors.Load(ctx)
}

// WriteToDisk 触发引擎快照
func (m *Manager) WriteToDisk(ctx context.Context) error {
	if err := m.engine.Save(ctx); err != nil {
		return fmt.Errorf("write index to disk: %w", err)
	}
	return nil
}
