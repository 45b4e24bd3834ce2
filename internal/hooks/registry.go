package hooks

import (
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/repository"
)

// IndexCreatedEvent 索引创建完成
type IndexCreatedEvent struct {
	Index  string
	Fields []redisearch.FieldDefinition
}

// PostIndexedEvent 文档写入完成（批量索引与发布共用）
type PostIndexedEvent struct {
	Index    string
	Key      string
	Post     *models.Post
	Language string
	Fields   map[string]interface{}
}

// PostDeletedEvent 文档被删除
type PostDeletedEvent struct {
	Index  string
	Key    string
	PostID uint64
	Post   *models.Post
}

// Registry 全部扩展点
type Registry struct {
	// 可索引的内容类型
	PostTypes *Filter[[]string, None]
	// 可索引的内容状态
	PostStatuses *Filter[[]string, None]
	// 可索引的元数据键
	MetaKeys *Filter[[]string, None]
	// 元数据字段定义，参数为元数据键
	MetaSchema *Filter[[]redisearch.FieldDefinition, []string]
	// 可索引的分类法，参数为当前内容（构建 schema 时为 nil）
	Taxonomies *Filter[[]string, *models.Post]
	// 分类项字段
	PreparedTerms *Filter[map[string]interface{}, *models.Post]
	// 最终字段集
	PreparedFields *Filter[map[string]interface{}, *models.Post]
	// 正文渲染（短代码、嵌入展开）
	TheContent *Filter[string, *models.Post]
	// 文档语言
	IndexLanguage *Filter[string, *models.Post]
	// 每批数量
	BatchSize *Filter[int, None]
	// 批量索引查询条件
	IndexQuery *Filter[repository.PostQuery, None]
	// 批量索引查询结果
	AfterIndexQuery *Filter[[]models.Post, repository.PostQuery]
	// 搜索引擎查询语句
	SearchQuery *Filter[string, None]
	// 水合前的 ID 列表
	BeforeHydrate *Filter[[]uint64, string]
	// 水合结果
	AfterHydrate *Filter[[]models.Post, string]

	AfterIndexCreated  *Action[IndexCreatedEvent]
	AfterPostIndexed   *Action[PostIndexedEvent]
	AfterPostPublished *Action[PostIndexedEvent]
	AfterPostDeleted   *Action[PostDeletedEvent]
}

// NewRegistry 创建扩展点注册表
func NewRegistry() *Registry {
	return &Registry{
		PostTypes:          NewFilter[[]string, None]("indexable_post_types"),
		PostStatuses:       NewFilter[[]string, None]("indexable_post_status"),
		MetaKeys:           NewFilter[[]string, None]("indexable_meta_keys"),
		MetaSchema:         NewFilter[[]redisearch.FieldDefinition, []string]("indexable_meta_schema"),
		Taxonomies:         NewFilter[[]string, *models.Post]("indexable_terms"),
		PreparedTerms:      NewFilter[map[string]interface{}, *models.Post]("prepared_terms"),
		PreparedFields:     NewFilter[map[string]interface{}, *models.Post]("prepared_post_args"),
		TheContent:         NewFilter[string, *models.Post]("the_content"),
		IndexLanguage:      NewFilter[string, *models.Post]("index_language"),
		BatchSize:          NewFilter[int, None]("posts_per_page"),
		IndexQuery:         NewFilter[repository.PostQuery, None]("before_index_query"),
		AfterIndexQuery:    NewFilter[[]models.Post, repository.PostQuery]("after_index_query"),
		SearchQuery:        NewFilter[string, None]("before_search_query"),
		BeforeHydrate:      NewFilter[[]uint64, string]("before_search_hydrate"),
		AfterHydrate:       NewFilter[[]models.Post, string]("after_search_hydrate"),
		AfterIndexCreated:  NewAction[IndexCreatedEvent]("after_index_created"),
		AfterPostIndexed:   NewAction[PostIndexedEvent]("after_post_indexed"),
		AfterPostPublished: NewAction[PostIndexedEvent]("after_post_published"),
		AfterPostDeleted:   NewAction[PostDeletedEvent]("after_post_deleted"),
	}
}

type point interface {
	snapshot() func()
	removePrefix(prefix string) int
}

func (r *Registry) points() []point {
	return []point{
		&r.PostTypes.chain, &r.PostStatuses.chain, &r.MetaKeys.chain, &r.MetaSchema.chain,
		&r.Taxonomies.chain, &r.PreparedTerms.chain, &r.PreparedFields.chain, &r.TheContent.chain,
		&r.IndexLanguage.chain, &r.BatchSize.chain, &r.IndexQuery.chain, &r.AfterIndexQuery.chain,
		&r.SearchQuery.chain, &r.BeforeHydrate.chain, &r.AfterHydrate.chain,
		&r.AfterIndexCreated.chain, &r.AfterPostIndexed.chain, &r.AfterPostPublished.chain,
		&r.AfterPostDeleted.chain,
	}
}

// Snapshot 记录当前注册状态，返回的函数将注册表恢复到该状态
func (r *Registry) Snapshot() (restore func()) {
	points := r.points()
	restores := make([]func(), len(points))
	for i, p := range points {
		restores[i] = p.snapshot()
	}
	return func() {
		for _, fn := range restores {
			fn()
		}
	}
}

// RemovePrefix 从所有扩展点注销名称以 prefix 开头的回调，返回注销数量
func (r *Registry) RemovePrefix(prefix string) int {
	removed := 0
	for _, p := range r.points() {
		removed += p.removePrefix(prefix)
	}
	return removed
}
