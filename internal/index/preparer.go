package index

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/models"
	"go.uber.org/zap"
)

// Preparer 将一条内容记录转换为与索引结构对应的字段集
//
// Preparer 只读取关系库，不访问搜索引擎。作者显示名按作者缓存，
// 长时间批量运行时由 Reset 清空。
type Preparer struct {
	source    ContentSource
	hooks     *hooks.Registry
	schema    *SchemaBuilder
	permalink *PermalinkBuilder
	location  *time.Location
	logger    *zap.Logger

	mu      sync.Mutex
	authors map[uint64]string
}

// NewPreparer 创建文档准备器
func NewPreparer(source ContentSource, cfg *config.Config, h *hooks.Registry, logger *zap.Logger) *Preparer {
	if h == nil {
		h = hooks.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := time.LoadLocation(cfg.Site.Timezone)
	if err != nil || cfg.Site.Timezone == "" {
		loc = time.UTC
	}
	return &Preparer{
		source:    source,
		hooks:     h,
		schema:    NewSchemaBuilder(cfg.Index, h),
		permalink: NewPermalinkBuilder(cfg.Site),
		location:  loc,
		logger:    logger,
		authors:   make(map[uint64]string),
	}
}

// Reset 清空作者缓存
func (p *Preparer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authors = make(map[uint64]string)
}

// PrepareByID 读取记录并生成字段集
func (p *Preparer) PrepareByID(ctx context.Context, id uint64) (*models.Post, map[string]interface{}, error) {
	post, err := p.source.GetPost(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load post %d: %w", id, err)
	}
	fields, err := p.Prepare(ctx, post)
	if err != nil {
		return nil, nil, err
	}
	return post, fields, nil
}

// Prepare 生成字段集：核心字段、分类项、元数据，最后经过 PreparedFields 扩展点
func (p *Preparer) Prepare(ctx context.Context, post *models.Post) (map[string]interface{}, error) {
	if post == nil {
		return nil, fmt.Errorf("prepare: post is nil")
	}

	filtered := p.hooks.TheContent.Apply(post.PostContent, post)

	fields := map[string]interface{}{
		FieldID:              post.ID,
		FieldAuthor:          p.authorName(ctx, post.PostAuthor),
		FieldDate:            p.epoch(post.PostDate),
		FieldTitle:           post.PostTitle,
		FieldExcerpt:         post.PostExcerpt,
		FieldContentFiltered: StripMarkup(StripShortcodes(filtered)),
		FieldContent:         StripMarkup(post.PostContent),
		FieldType:            post.PostType,
		FieldPermalink:       p.permalink.Build(post),
		FieldMenuOrder:       abs(post.MenuOrder),
	}

	for k, v := range p.terms(ctx, post) {
		fields[k] = v
	}
	for k, v := range p.meta(ctx, post) {
		fields[k] = v
	}

	return p.hooks.PreparedFields.Apply(fields, post), nil
}

func (p *Preparer) authorName(ctx context.Context, userID uint64) string {
	p.mu.Lock()
	name, ok := p.authors[userID]
	p.mu.Unlock()
	if ok {
		return name
	}

	name, err := p.source.AuthorDisplayName(ctx, userID)
	if err != nil {
		p.logger.Debug("author lookup failed", zap.Uint64("author", userID), zap.Error(err))
		return ""
	}

	p.mu.Lock()
	p.authors[userID] = name
	p.mu.Unlock()
	return name
}

// epoch 发布时间按站点时区解释；零值返回 nil
func (p *Preparer) epoch(t time.Time) interface{} {
	if t.IsZero() || t.Year() <= 1 {
		return nil
	}
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, p.location)
	return local.Unix()
}

func (p *Preparer) terms(ctx context.Context, post *models.Post) map[string]interface{} {
	terms := make(map[string]interface{})
	for _, taxonomy := range p.schema.Taxonomies(post) {
		names, err := p.source.PostTerms(ctx, post.ID, taxonomy)
		if err != nil {
			p.logger.Debug("term lookup failed",
				zap.Uint64("post_id", post.ID), zap.String("taxonomy", taxonomy), zap.Error(err))
			continue
		}
		if len(names) == 0 {
			continue
		}
		terms[taxonomy] = strings.TrimLeft(strings.Join(names, ","), ",")
	}
	return p.hooks.PreparedTerms.Apply(terms, post)
}

func (p *Preparer) meta(ctx context.Context, post *models.Post) map[string]interface{} {
	meta := make(map[string]interface{})
	for _, key := range p.schema.MetaKeys() {
		raw, ok, err := p.source.PostMeta(ctx, post.ID, key)
		if err != nil {
			p.logger.Debug("meta lookup failed",
				zap.Uint64("post_id", post.ID), zap.String("meta_key", key), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		value, err := MetaValue(raw)
		if err != nil {
			p.logger.Debug("meta encode failed", zap.String("meta_key", key), zap.Error(err))
			continue
		}
		meta[key] = value
	}
	return meta
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
