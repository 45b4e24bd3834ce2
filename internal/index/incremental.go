package index

import (
	"context"
	"fmt"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/metrics"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"go.uber.org/zap"
)

// ChangeEvent 单条内容的保存事件
type ChangeEvent struct {
	ID       uint64
	Post     *models.Post
	Update   bool
	Autosave bool
}

// Outcome 增量索引的处理结果
type Outcome int

const (
	// Ignored 修订、自动保存或不可索引的类型
	Ignored Outcome = iota
	// Deleted 状态不可索引，文档已删除
	Deleted
	// Published 文档已写入（覆盖）
	Published
)

func (o Outcome) String() string {
	switch o {
	case Deleted:
		return "deleted"
	case Published:
		return "published"
	default:
		return "ignored"
	}
}

// IncrementalIndexer 响应单条内容变更，写入或删除对应文档
type IncrementalIndexer struct {
	engine   DocumentEngine
	preparer *Preparer
	schema   *SchemaBuilder
	hooks    *hooks.Registry
	cfg      config.IndexConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewIncrementalIndexer 创建增量索引器
func NewIncrementalIndexer(engine DocumentEngine, preparer *Preparer, cfg config.IndexConfig, h *hooks.Registry, m *metrics.Metrics, logger *zap.Logger) *IncrementalIndexer {
	if h == nil {
		h = hooks.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncrementalIndexer{
		engine:   engine,
		preparer: preparer,
		schema:   NewSchemaBuilder(cfg, h),
		hooks:    h,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// OnContentChange 处理内容保存事件
func (ii *IncrementalIndexer) OnContentChange(ctx context.Context, ev ChangeEvent) (Outcome, error) {
	post := ev.Post
	if post == nil {
		return Ignored, fmt.Errorf("content change %d: record is required", ev.ID)
	}
	if ev.Autosave || post.PostType == "revision" {
		return Ignored, nil
	}
	if !containsString(ii.schema.PostTypes(), post.PostType) {
		return Ignored, nil
	}

	key := DocumentKey(ii.cfg.Name, post.PostType, post.ID)
	statuses := ii.schema.PostStatuses()

	if !containsString(statuses, post.PostStatus) {
		removed, err := ii.engine.DeleteDocument(ctx, key)
		if err != nil {
			return Ignored, fmt.Errorf("remove post %d from index: %w", post.ID, err)
		}
		if removed {
			ii.metrics.DocumentDeleted()
		}
		ii.hooks.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{
			Index:  ii.cfg.Name,
			Key:    key,
			PostID: post.ID,
			Post:   post,
		})
		ii.logger.Debug("post removed from index",
			zap.Uint64("post_id", post.ID), zap.String("status", post.PostStatus), zap.Bool("existed", removed))
		return Deleted, nil
	}

	fields, err := ii.preparer.Prepare(ctx, post)
	if err != nil {
		ii.metrics.DocumentFailed(metrics.ModeIncremental)
		return Ignored, err
	}
	language := ii.hooks.IndexLanguage.Apply(ii.cfg.Language, post)

	if err := ii.engine.AddDocument(ctx, redisearch.Document{
		Key:      key,
		Score:    1,
		Language: language,
		Fields:   fields,
		Replace:  true,
	}); err != nil {
		ii.metrics.DocumentFailed(metrics.ModeIncremental)
		return Ignored, fmt.Errorf("index post %d: %w", post.ID, err)
	}
	ii.metrics.DocumentIndexed(metrics.ModeIncremental)

	ii.hooks.AfterPostPublished.Do(ctx, hooks.PostIndexedEvent{
		Index:    ii.cfg.Name,
		Key:      key,
		Post:     post,
		Language: language,
		Fields:   fields,
	})
	ii.logger.Debug("post indexed",
		zap.Uint64("post_id", post.ID), zap.String("key", key), zap.Bool("update", ev.Update))
	return Published, nil
}

// OnContentRemoved 记录已从关系库删除时，按所有可索引类型删除可能存在的文档
func (ii *IncrementalIndexer) OnContentRemoved(ctx context.Context, id uint64) (bool, error) {
	removedAny := false
	for _, postType := range ii.schema.PostTypes() {
		key := DocumentKey(ii.cfg.Name, postType, id)
		removed, err := ii.engine.DeleteDocument(ctx, key)
		if err != nil {
			return removedAny, fmt.Errorf("remove post %d from index: %w", id, err)
		}
		if !removed {
			continue
		}
		removedAny = true
		ii.metrics.DocumentDeleted()
		ii.hooks.AfterPostDeleted.Do(ctx, hooks.PostDeletedEvent{Index: ii.cfg.Name, Key: key, PostID: id})
	}
	return removedAny, nil
}
