package index

import (
	"context"
	"fmt"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/metrics"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/repository"
	"go.uber.org/zap"
)

// RecordError 单条记录写入失败
type RecordError struct {
	PostID uint64
	Key    string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("post %d (%s): %v", e.PostID, e.Key, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// BatchOptions 单次批量运行的覆盖参数，零值表示使用配置与扩展点
type BatchOptions struct {
	BatchSize int
	PostTypes []string
	PostIDs   []uint64
}

// BatchResult 单批执行结果
type BatchResult struct {
	Cursor Cursor
	// 本批开始时的偏移
	From int
	// 本批查询到的记录数
	PageSize int
	Indexed  int
	Failed   []*RecordError
}

// BatchIndexer 基于持久化游标的可恢复批量索引
type BatchIndexer struct {
	engine   DocumentEngine
	finder   PostFinder
	preparer *Preparer
	cursors  CursorStore
	schema   *SchemaBuilder
	hooks    *hooks.Registry
	cfg      config.IndexConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewBatchIndexer 创建批量索引器
func NewBatchIndexer(
	engine DocumentEngine,
	finder PostFinder,
	preparer *Preparer,
	cursors CursorStore,
	cfg config.IndexConfig,
	h *hooks.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BatchIndexer {
	if h == nil {
		h = hooks.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchIndexer{
		engine:   engine,
		finder:   finder,
		preparer: preparer,
		cursors:  cursors,
		schema:   NewSchemaBuilder(cfg, h),
		hooks:    h,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
	}
}

// RunBatch 按配置执行一批
func (b *BatchIndexer) RunBatch(ctx context.Context) (*BatchResult, error) {
	return b.RunBatchWith(ctx, BatchOptions{})
}

// BatchSize 本次运行的每批数量
func (b *BatchIndexer) BatchSize(opts BatchOptions) int {
	size := opts.BatchSize
	if size <= 0 {
		size = b.hooks.BatchSize.Apply(b.cfg.BatchSize, hooks.None{})
	}
	if size < 1 {
		size = 1
	}
	return size
}

func (b *BatchIndexer) query(opts BatchOptions, offset, limit int) repository.PostQuery {
	types := opts.PostTypes
	if len(types) == 0 {
		types = b.schema.PostTypes()
	}
	statuses := b.schema.PostStatuses()

	q := b.hooks.IndexQuery.Apply(repository.PostQuery{
		PostTypes:    types,
		PostStatuses: statuses,
		PostIDs:      opts.PostIDs,
	}, hooks.None{})
	// 分页由游标决定
	q.Offset = offset
	q.Limit = limit
	return q
}

// RunBatchWith 执行一批：读取游标，查询一页，逐条准备并写入，推进并保存游标
//
// 单条记录被拒绝时记录错误并继续；连接错误中止本批且不推进游标。
func (b *BatchIndexer) RunBatchWith(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	start := time.Now()
	defer func() { b.metrics.ObserveBatch(time.Since(start)) }()

	cursor, err := b.cursors.Load(ctx)
	if err != nil {
		return nil, err
	}

	size := b.BatchSize(opts)
	q := b.query(opts, cursor.Offset, size)

	posts, total, err := b.finder.FindPage(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query indexable posts: %w", err)
	}
	posts = b.hooks.AfterIndexQuery.Apply(posts, q)

	result := &BatchResult{From: cursor.Offset}
	cursor.FoundPosts = int(total)

	if cursor.Offset >= cursor.FoundPosts {
		cursor.Offset = cursor.FoundPosts
		result.Cursor = cursor
		if err := b.cursors.Save(ctx, cursor); err != nil {
			return nil, err
		}
		return result, nil
	}

	result.PageSize = len(posts)
	for i := range posts {
		post := &posts[i]
		key := DocumentKey(b.cfg.Name, post.PostType, post.ID)

		if err := b.indexPost(ctx, key, post); err != nil {
			if apperrors.IsConnectionError(err) {
				result.Cursor = cursor
				return result, fmt.Errorf("index batch aborted at post %d: %w", post.ID, err)
			}
			b.metrics.DocumentFailed(metrics.ModeBatch)
			b.logger.Warn("post indexing failed",
				zap.Uint64("post_id", post.ID), zap.String("key", key), zap.Error(err))
			result.Failed = append(result.Failed, &RecordError{PostID: post.ID, Key: key, Err: err})
			continue
		}
		b.metrics.DocumentIndexed(metrics.ModeBatch)
		result.Indexed++
	}

	cursor.Offset += size
	if cursor.Offset > cursor.FoundPosts {
		cursor.Offset = cursor.FoundPosts
	}
	if err := b.cursors.Save(ctx, cursor); err != nil {
		return nil, err
	}
	result.Cursor = cursor

	b.logger.Info("index batch completed",
		zap.String("index", b.cfg.Name),
		zap.Int("from", result.From),
		zap.Int("offset", cursor.Offset),
		zap.Int("found_posts", cursor.FoundPosts),
		zap.Int("indexed", result.Indexed),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (b *BatchIndexer) indexPost(ctx context.Context, key string, post *models.Post) error {
	fields, err := b.preparer.Prepare(ctx, post)
	if err != nil {
		return err
	}
	language := b.hooks.IndexLanguage.Apply(b.cfg.Language, post)

	if err := b.engine.AddDocument(ctx, redisearch.Document{
		Key:      key,
		Score:    1,
		Language: language,
		Fields:   fields,
	}); err != nil {
		return err
	}

	b.hooks.AfterPostIndexed.Do(ctx, hooks.PostIndexedEvent{
		Index:    b.cfg.Name,
		Key:      key,
		Post:     post,
		Language: language,
		Fields:   fields,
	})
	return nil
}
