package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"go.uber.org/zap"
)

// SuggestionEngine 自动补全字典操作
type SuggestionEngine interface {
	SugAdd(ctx context.Context, key string, s redisearch.Suggestion, incr bool) error
	SugDel(ctx context.Context, key, term string) (bool, error)
	SugGet(ctx context.Context, key, prefix string, fuzzy bool, max int) ([]redisearch.Suggestion, error)
}

// LiveSearch 实时搜索：索引写入时维护以标题为词条、永久链接为负载的补全字典
type LiveSearch struct {
	engine SuggestionEngine
	cfg    config.IndexConfig
	logger *zap.Logger
}

// NewLiveSearch 创建实时搜索功能
func NewLiveSearch(engine SuggestionEngine, cfg config.IndexConfig, logger *zap.Logger) *LiveSearch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LiveSearch{engine: engine, cfg: cfg, logger: logger}
}

// Info 功能描述
func (l *LiveSearch) Info() Info {
	return Info{
		Slug:        "live-search",
		Title:       "Live Search",
		Description: "Suggest titles while the visitor is typing.",
	}
}

// Requirements 字典只在索引写入时填充，已有内容需要重建索引
func (l *LiveSearch) Requirements(context.Context) Requirement {
	return Requirement{Code: RequirementsWarning, Messages: []string{"Re-indexing is highly recommended."}}
}

// Setup 注册索引事件回调
func (l *LiveSearch) Setup(h *hooks.Registry) {
	h.AfterPostIndexed.Add("live-search:add", hooks.DefaultPriority, l.onIndexed)
	h.AfterPostPublished.Add("live-search:add", hooks.DefaultPriority, l.onIndexed)
	h.AfterPostDeleted.Add("live-search:delete", hooks.DefaultPriority, l.onDeleted)
}

func (l *LiveSearch) key(indexName string) string {
	if indexName == "" {
		indexName = l.cfg.Name
	}
	return redisearch.SuggestionKey(indexName)
}

func (l *LiveSearch) onIndexed(ctx context.Context, ev hooks.PostIndexedEvent) {
	if ev.Post == nil || strings.TrimSpace(ev.Post.PostTitle) == "" {
		return
	}
	key := l.key(ev.Index)
	title := ev.Post.PostTitle
	permalink, _ := ev.Fields[index.FieldPermalink].(string)

	// 标题不变时 SUGADD 只会叠加，先删除旧条目
	if _, err := l.engine.SugDel(ctx, key, title); err != nil {
		l.logger.Warn("failed to remove previous suggestion", zap.String("term", title), zap.Error(err))
	}
	if err := l.engine.SugAdd(ctx, key, redisearch.Suggestion{Term: title, Score: 1, Payload: permalink}, false); err != nil {
		l.logger.Warn("failed to add suggestion", zap.Uint64("post_id", ev.Post.ID), zap.Error(err))
	}
}

func (l *LiveSearch) onDeleted(ctx context.Context, ev hooks.PostDeletedEvent) {
	if ev.Post == nil || ev.Post.PostTitle == "" {
		return
	}
	if _, err := l.engine.SugDel(ctx, l.key(ev.Index), ev.Post.PostTitle); err != nil {
		l.logger.Warn("failed to delete suggestion", zap.Uint64("post_id", ev.PostID), zap.Error(err))
	}
}

// Suggest 按前缀模糊匹配，条数不超过 SuggestedResults
func (l *LiveSearch) Suggest(ctx context.Context, term string) ([]redisearch.Suggestion, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []redisearch.Suggestion{}, nil
	}
	max := l.cfg.SuggestedResults
	if max <= 0 {
		max = 5
	}
	out, err := l.engine.SugGet(ctx, l.key(""), term, true, max)
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", term, err)
	}
	return out, nil
}
