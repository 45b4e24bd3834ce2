// Package search 将站内搜索查询转交搜索引擎，并按引擎排序回填内容记录。
package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/metrics"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"go.uber.org/zap"
)

const (
	// DefaultPostsPerPage 未指定每页数量时使用
	DefaultPostsPerPage = 10
	// MaxPostsPerPage 未配置上限时的每页最大数量
	MaxPostsPerPage = 100
)

// pageWindow 计算分页窗口：每页数量限制在 [1, maxPer]，页码小于 2 按第一页处理。
// 偏移量超出 int 范围时 ok 为 false，该页必然为空。
func pageWindow(paged, perPage, maxPer int) (from, limit int, ok bool) {
	if maxPer <= 0 {
		maxPer = MaxPostsPerPage
	}
	if perPage <= 0 {
		perPage = DefaultPostsPerPage
	}
	if perPage > maxPer {
		perPage = maxPer
	}
	if paged <= 1 {
		return 0, perPage, true
	}
	if paged-1 > math.MaxInt/perPage {
		return 0, perPage, false
	}
	return perPage * (paged - 1), perPage, true
}

// State 查询所处阶段
type State int

const (
	NotApplicable State = iota
	EngineUnavailable
	Searching
	ZeroResults
	Hydrating
	Filtered
)

func (s State) String() string {
	switch s {
	case EngineUnavailable:
		return "engine_unavailable"
	case Searching:
		return "searching"
	case ZeroResults:
		return "zero_results"
	case Hydrating:
		return "hydrating"
	case Filtered:
		return "filtered"
	default:
		return "not_applicable"
	}
}

// Query 一次内容查询。前半部分为输入，后半部分由 Translator 填写。
type Query struct {
	S            string
	Paged        int
	PostsPerPage int
	IsAdmin      bool
	IsMainQuery  bool
	IsSearch     bool

	State State
	// 经由引擎处理过（包括失败）
	Attempted bool
	// 引擎查询成功，关系库不应再执行原查询
	Success     bool
	FoundPosts  int64
	MaxNumPages int
	IDs         []uint64
	Posts       []models.Post
}

// HealthProvider 引擎健康状态
type HealthProvider interface {
	IsHealthy() bool
}

// Engine 搜索命令
type Engine interface {
	Search(ctx context.Context, req redisearch.SearchRequest) (*redisearch.SearchResult, error)
}

// PostLoader 按 ID 读取内容
type PostLoader interface {
	FindByIDs(ctx context.Context, ids []uint64) ([]models.Post, error)
}

// Translator 查询转换器
type Translator struct {
	engine     Engine
	loader     PostLoader
	health     HealthProvider
	hooks      *hooks.Registry
	cfg        config.IndexConfig
	postsTable string
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewTranslator 创建查询转换器，health 为 nil 时视为始终健康
func NewTranslator(engine Engine, loader PostLoader, health HealthProvider, cfg *config.Config, h *hooks.Registry, m *metrics.Metrics, logger *zap.Logger) *Translator {
	if h == nil {
		h = hooks.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		engine:     engine,
		loader:     loader,
		health:     health,
		hooks:      h,
		cfg:        cfg.Index,
		postsTable: cfg.Database.TablePrefix + models.Post{}.TableName(),
		metrics:    m,
		logger:     logger,
	}
}

func (t *Translator) applicable(q *Query) bool {
	if !q.IsMainQuery || !q.IsSearch || strings.TrimSpace(q.S) == "" {
		return false
	}
	if q.IsAdmin && !t.cfg.SearchInAdmin {
		return false
	}
	return true
}

// Translate 执行引擎查询并回填记录
//
// 引擎不可用或查询失败时 State 为 EngineUnavailable，调用方应回退到关系库搜索；
// 只有关系库回填失败才返回错误。
func (t *Translator) Translate(ctx context.Context, q *Query) error {
	start := time.Now()

	if !t.applicable(q) {
		q.State = NotApplicable
		return nil
	}
	q.Attempted = true

	if t.health != nil && !t.health.IsHealthy() {
		q.State = EngineUnavailable
		t.metrics.SearchCompleted(q.State.String(), 0)
		return nil
	}

	q.State = Searching
	from, perPage, inRange := pageWindow(q.Paged, q.PostsPerPage, t.cfg.MaxPostsPerPage)

	term := t.hooks.SearchQuery.Apply(q.S, hooks.None{})
	res, err := t.engine.Search(ctx, redisearch.SearchRequest{
		Index:     t.cfg.Name,
		Query:     term,
		NoContent: true,
		Language:  t.cfg.Language,
		Offset:    from,
		Limit:     perPage,
		CountOnly: !inRange,
	})
	if err != nil {
		t.logger.Warn("search engine query failed, falling back",
			zap.String("index", t.cfg.Name), zap.String("query", term), zap.Error(err))
		q.State = EngineUnavailable
		t.metrics.SearchCompleted(q.State.String(), time.Since(start))
		return nil
	}

	q.Success = true
	q.FoundPosts = res.Total
	if res.Total == 0 {
		q.State = ZeroResults
		q.MaxNumPages = 0
		q.Posts = []models.Post{}
		t.metrics.SearchCompleted(q.State.String(), time.Since(start))
		return nil
	}

	q.State = Hydrating
	ids := make([]uint64, 0, len(res.Documents))
	for _, key := range res.Keys() {
		if id, ok := index.ParseDocumentID(key); ok {
			ids = append(ids, id)
		}
	}
	ids = t.hooks.BeforeHydrate.Apply(ids, term)
	q.IDs = ids

	posts, err := t.hydrate(ctx, ids)
	if err != nil {
		return err
	}
	q.Posts = t.hooks.AfterHydrate.Apply(posts, term)
	q.MaxNumPages = int((res.Total + int64(perPage) - 1) / int64(perPage))

	t.metrics.SearchCompleted(q.State.String(), time.Since(start))
	return nil
}

// hydrate 读取记录并按 ids 的顺序排列，已删除的记录被跳过
func (t *Translator) hydrate(ctx context.Context, ids []uint64) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	found, err := t.loader.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate search results: %w", err)
	}

	byID := make(map[uint64]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	posts := make([]models.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// PostsRequest 引擎查询成功时把关系库要执行的语句替换为空查询
func (t *Translator) PostsRequest(request string, q *Query) string {
	if q == nil || !q.Success {
		return request
	}
	return fmt.Sprintf("SELECT * FROM %s WHERE 1=0", t.postsTable)
}

// FilterPosts 用回填的记录替换关系库返回的结果
func (t *Translator) FilterPosts(posts []models.Post, q *Query) []models.Post {
	if q == nil || !q.Success {
		return posts
	}
	if q.State == Hydrating {
		q.State = Filtered
	}
	return q.Posts
}
