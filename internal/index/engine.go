// Package index 负责索引结构、文档准备以及批量与增量索引。
package index

import (
	"context"

	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/repository"
)

// SchemaEngine 索引结构相关的引擎命令
type SchemaEngine interface {
	CreateIndex(ctx context.Context, def redisearch.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// DocumentEngine 文档写入相关的引擎命令
type DocumentEngine interface {
	AddDocument(ctx context.Context, doc redisearch.Document) error
	DeleteDocument(ctx context.Context, key string) (bool, error)
}

// Engine 索引模块使用的全部引擎命令，*redisearch.Client 实现该接口
type Engine interface {
	SchemaEngine
	DocumentEngine
	Info(ctx context.Context, name string) (*redisearch.IndexInfo, error)
	Save(ctx context.Context) error
}

var _ Engine = (*redisearch.Client)(nil)

// ContentSource 文档准备所需的关系库读取能力
type ContentSource interface {
	GetPost(ctx context.Context, id uint64) (*models.Post, error)
	AuthorDisplayName(ctx context.Context, userID uint64) (string, error)
	PostTerms(ctx context.Context, postID uint64, taxonomy string) ([]string, error)
	PostMeta(ctx context.Context, postID uint64, key string) (string, bool, error)
}

// PostFinder 批量索引的分页查询
type PostFinder interface {
	FindPage(ctx context.Context, q repository.PostQuery) ([]models.Post, int64, error)
}

var (
	_ ContentSource = (repository.ContentRepository)(nil)
	_ PostFinder    = (repository.ContentRepository)(nil)
)
