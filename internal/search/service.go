package search

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/repository"
	"go.uber.org/zap"
)

// PostFinder 关系库分页查询
type PostFinder interface {
	FindPage(ctx context.Context, q repository.PostQuery) ([]models.Post, int64, error)
}

// Request 站内搜索请求
type Request struct {
	Term         string
	Paged        int
	PostsPerPage int
	IsAdmin      bool
}

// Response 站内搜索结果
type Response struct {
	Posts       []models.Post `json:"posts"`
	FoundPosts  int64         `json:"found_posts"`
	MaxNumPages int           `json:"max_num_pages"`
	State       string        `json:"state"`
	// 结果来自搜索引擎
	Engine bool `json:"engine"`
}

// Service 搜索服务：优先走搜索引擎，不可用时回退到关系库关键字查询
type Service struct {
	translator *Translator
	finder     PostFinder
	types      func() []string
	statuses   func() []string
	logger     *zap.Logger
}

// NewService 创建搜索服务，types 与 statuses 提供回退查询的范围
func NewService(translator *Translator, finder PostFinder, types, statuses func() []string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		translator: translator,
		finder:     finder,
		types:      types,
		statuses:   statuses,
		logger:     logger,
	}
}

// Search 执行一次站内搜索
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	q := &Query{
		S:            req.Term,
		Paged:        req.Paged,
		PostsPerPage: req.PostsPerPage,
		IsAdmin:      req.IsAdmin,
		IsMainQuery:  true,
		IsSearch:     true,
	}
	if err := s.translator.Translate(ctx, q); err != nil {
		return nil, err
	}

	if q.Success {
		// 与页面渲染流程一致：关系库执行空查询后替换为回填结果
		posts := s.translator.FilterPosts(nil, q)
		return &Response{
			Posts:       posts,
			FoundPosts:  q.FoundPosts,
			MaxNumPages: q.MaxNumPages,
			State:       q.State.String(),
			Engine:      true,
		}, nil
	}

	if strings.TrimSpace(req.Term) == "" {
		return &Response{Posts: []models.Post{}, State: q.State.String()}, nil
	}
	return s.fallback(ctx, q)
}

func (s *Service) fallback(ctx context.Context, q *Query) (*Response, error) {
	offset, perPage, inRange := pageWindow(q.Paged, q.PostsPerPage, s.translator.cfg.MaxPostsPerPage)
	if !inRange {
		offset = math.MaxInt
	}

	pq := repository.PostQuery{
		Keyword: strings.TrimSpace(q.S),
		Offset:  offset,
		Limit:   perPage,
	}
	if s.types != nil {
		pq.PostTypes = s.types()
	}
	if s.statuses != nil {
		pq.PostStatuses = s.statuses()
	}

	posts, total, err := s.finder.FindPage(ctx, pq)
	if err != nil {
		return nil, fmt.Errorf("relational search: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	s.logger.Debug("served search from relational store",
		zap.String("state", q.State.String()), zap.Int64("found", total))

	return &Response{
		Posts:       posts,
		FoundPosts:  total,
		MaxNumPages: int((total + int64(perPage) - 1) / int64(perPage)),
		State:       q.State.String(),
	}, nil
}
