package index

import (
	"context"
	"fmt"

	"github.com/aihub/wpredisearch/internal/config"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"go.uber.org/zap"
)

// 核心字段名
const (
	FieldTitle           = "post_title"
	FieldContent         = "post_content"
	FieldContentFiltered = "post_content_filtered"
	FieldExcerpt         = "post_excerpt"
	FieldType            = "post_type"
	FieldAuthor          = "post_author"
	FieldID              = "post_id"
	FieldMenuOrder       = "menu_order"
	FieldPermalink       = "permalink"
	FieldDate            = "post_date"
)

// IndexSchema 有序的字段定义与键前缀
type IndexSchema struct {
	Prefixes []string
	Fields   []redisearch.FieldDefinition
}

// Field 按名称查找字段
func (s IndexSchema) Field(name string) (redisearch.FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return redisearch.FieldDefinition{}, false
}

// Names 字段名列表
func (s IndexSchema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// StopWordPolicy 停用词策略：Disabled 优先，其次自定义列表，都没有时使用引擎默认
type StopWordPolicy struct {
	Disabled bool
	Words    []string
}

// StopWordPolicyFrom 从索引配置得到停用词策略
func StopWordPolicyFrom(cfg config.IndexConfig) StopWordPolicy {
	if cfg.DisableStopWords {
		return StopWordPolicy{Disabled: true}
	}
	return StopWordPolicy{Words: cfg.StopWordList()}
}

func coreFields() []redisearch.FieldDefinition {
	return []redisearch.FieldDefinition{
		{Name: FieldTitle, Kind: redisearch.Text, Weight: 5, Sortable: true},
		{Name: FieldContent, Kind: redisearch.Text},
		{Name: FieldContentFiltered, Kind: redisearch.Text},
		{Name: FieldExcerpt, Kind: redisearch.Text},
		{Name: FieldType, Kind: redisearch.Text},
		{Name: FieldAuthor, Kind: redisearch.Text},
		{Name: FieldID, Kind: redisearch.Numeric, Sortable: true},
		{Name: FieldMenuOrder, Kind: redisearch.Numeric},
		{Name: FieldPermalink, Kind: redisearch.Text},
		{Name: FieldDate, Kind: redisearch.Numeric, Sortable: true},
	}
}

// SchemaBuilder 根据配置与扩展点生成索引结构
type SchemaBuilder struct {
	cfg   config.IndexConfig
	hooks *hooks.Registry
}

// NewSchemaBuilder 创建构建器
func NewSchemaBuilder(cfg config.IndexConfig, h *hooks.Registry) *SchemaBuilder {
	if h == nil {
		h = hooks.NewRegistry()
	}
	return &SchemaBuilder{cfg: cfg, hooks: h}
}

// PostTypes 经过扩展点处理后的可索引类型
func (b *SchemaBuilder) PostTypes() []string {
	return b.hooks.PostTypes.Apply(append([]string(nil), b.cfg.PostTypes...), hooks.None{})
}

// PostStatuses 经过扩展点处理后的可索引状态
func (b *SchemaBuilder) PostStatuses() []string {
	return b.hooks.PostStatuses.Apply(append([]string(nil), b.cfg.PostStatuses...), hooks.None{})
}

// MetaKeys 经过扩展点处理后的可索引元数据键
func (b *SchemaBuilder) MetaKeys() []string {
	return b.hooks.MetaKeys.Apply(append([]string(nil), b.cfg.MetaKeys...), hooks.None{})
}

// Taxonomies 经过扩展点处理后的可索引分类法，post 为 nil 时表示构建 schema
func (b *SchemaBuilder) Taxonomies(post *models.Post) []string {
	return b.hooks.Taxonomies.Apply(append([]string(nil), b.cfg.Taxonomies...), post)
}

// Build 生成索引结构。同名字段后出现的定义原位覆盖先出现的定义。
func (b *SchemaBuilder) Build() (IndexSchema, error) {
	types := b.PostTypes()
	if len(types) == 0 {
		return IndexSchema{}, apperrors.NewValidationError(apperrors.ErrCodeInvalidSchema, "no indexable post types")
	}

	metaKeys := b.MetaKeys()
	metaFields := make([]redisearch.FieldDefinition, 0, len(metaKeys))
	for _, key := range metaKeys {
		metaFields = append(metaFields, redisearch.FieldDefinition{Name: key, Kind: redisearch.Text})
	}
	metaFields = b.hooks.MetaSchema.Apply(metaFields, metaKeys)

	taxonomies := b.Taxonomies(nil)
	tagFields := make([]redisearch.FieldDefinition, 0, len(taxonomies))
	for _, tax := range taxonomies {
		tagFields = append(tagFields, redisearch.FieldDefinition{Name: tax, Kind: redisearch.Tag})
	}

	var fields []redisearch.FieldDefinition
	position := make(map[string]int)
	for _, group := range [][]redisearch.FieldDefinition{coreFields(), metaFields, tagFields} {
		for _, f := range group {
			if f.Name == "" {
				continue
			}
			if i, ok := position[f.Name]; ok {
				fields[i] = f
				continue
			}
			position[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}

	schema := IndexSchema{Prefixes: Prefixes(b.cfg.Name, types), Fields: fields}
	for _, required := range []string{FieldID, FieldPermalink} {
		if _, ok := schema.Field(required); !ok {
			return IndexSchema{}, apperrors.NewValidationError(apperrors.ErrCodeInvalidSchema,
				fmt.Sprintf("schema is missing required field %s", required))
		}
	}
	return schema, nil
}

// Apply 删除旧索引（连同文档）后重新创建，并触发 AfterIndexCreated
//
// 索引不存在不视为错误；其它错误直接返回，调用方不得继续写入文档。
func Apply(ctx context.Context, engine SchemaEngine, indexName string, schema IndexSchema, policy StopWordPolicy, h *hooks.Registry, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := engine.DropIndex(ctx, indexName, true); err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", indexName, err)
		}
		logger.Debug("index did not exist before create", zap.String("index", indexName))
	}

	def := redisearch.IndexDefinition{
		Name:        indexName,
		Prefixes:    schema.Prefixes,
		Fields:      schema.Fields,
		StopWords:   policy.Words,
		NoStopWords: policy.Disabled,
	}
	if err := engine.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}

	if h != nil {
		h.AfterIndexCreated.Do(ctx, hooks.IndexCreatedEvent{Index: indexName, Fields: schema.Fields})
	}
	return nil
}
