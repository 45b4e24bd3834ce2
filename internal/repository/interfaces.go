package repository

import (
	"context"

	"github.com/aihub/wpredisearch/internal/models"
	"gorm.io/gorm"
)

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// PostQuery 内容分页查询条件，结果固定按 ID 倒序
type PostQuery struct {
	PostTypes    []string
	PostStatuses []string
	PostIDs      []uint64
	MimeTypes    []string

	// 关键字匹配标题、摘要或正文（引擎不可用时的关系库搜索）
	Keyword string
	Offset  int
	Limit   int
}

// ContentRepository 内容仓库接口（只读）
type ContentRepository interface {
	Repository
	FindPage(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]models.Post, error)
	GetPost(ctx context.Context, id uint64) (*models.Post, error)
	AuthorDisplayName(ctx context.Context, userID uint64) (string, error)
	PostTerms(ctx context.Context, postID uint64, taxonomy string) ([]string, error)
	PostMeta(ctx context.Context, postID uint64, key string) (string, bool, error)
}

// OptionRepository 选项仓库接口
type OptionRepository interface {
	Repository
	Get(ctx context.Context, name string) (string, bool, error)
	Set(ctx context.Context, name, value string) error
	Delete(ctx context.Context, name string) error
}
