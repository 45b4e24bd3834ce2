package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// contentRepository 内容仓库实现
type contentRepository struct {
	db     *gorm.DB
	prefix string
}

// NewContentRepository 创建内容仓库
func NewContentRepository(db *gorm.DB, tablePrefix string) ContentRepository {
	return &contentRepository{db: db, prefix: tablePrefix}
}

// GetDB 获取数据库连接
func (r *contentRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *contentRepository) table(name string) string {
	return r.prefix + name
}

func (r *contentRepository) posts(ctx context.Context, q PostQuery) *gorm.DB {
	query := r.db.WithContext(ctx).Table(r.table(models.Post{}.TableName()))
	if len(q.PostTypes) > 0 {
		query = query.Where("post_type IN ?", q.PostTypes)
	}
	if len(q.PostStatuses) > 0 {
		query = query.Where("post_status IN ?", q.PostStatuses)
	}
	if len(q.PostIDs) > 0 {
		query = query.Where(`"ID" IN ?`, q.PostIDs)
	}
	if len(q.MimeTypes) > 0 {
		// 非附件的 mime 为空
		query = query.Where("post_mime_type IN ? OR post_mime_type = ''", q.MimeTypes)
	}
	if q.Keyword != "" {
		like := "%" + likeEscaper.Replace(q.Keyword) + "%"
		query = query.Where("post_title ILIKE ? OR post_excerpt ILIKE ? OR post_content ILIKE ?", like, like, like)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// FindPage 分页查询内容，返回当前条件下的总数
func (r *contentRepository) FindPage(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	var total int64
	if err := r.posts(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	var posts []models.Post
	if q.Offset >= int(total) {
		return posts, total, nil
	}

	query := r.posts(ctx, q).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "ID"}, Desc: true}).
		Offset(q.Offset)
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	if err := query.Find(&posts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}
	return posts, total, nil
}

// FindByIDs 按给定顺序返回内容，不存在的 ID 被跳过
func (r *contentRepository) FindByIDs(ctx context.Context, ids []uint64) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var found []models.Post
	err := r.db.WithContext(ctx).
		Table(r.table(models.Post{}.TableName())).
		Where(`"ID" IN ?`, ids).
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query posts by id: %w", err)
	}

	byID := make(map[uint64]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
			delete(byID, id)
		}
	}
	return ordered, nil
}

// GetPost 根据ID获取内容
func (r *contentRepository) GetPost(ctx context.Context, id uint64) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Table(r.table(post.TableName())).
		Where(`"ID" = ?`, id).
		Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError(apperrors.ErrCodeRecordNotFound, fmt.Sprintf("post %d", id))
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return &post, nil
}

// AuthorDisplayName 获取作者显示名
func (r *contentRepository) AuthorDisplayName(ctx context.Context, userID uint64) (string, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Table(r.table(user.TableName())).
		Where(`"ID" = ?`, userID).
		Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.NewNotFoundError(apperrors.ErrCodeRecordNotFound, fmt.Sprintf("user %d", userID))
		}
		return "", fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return user.DisplayName, nil
}

// PostTerms 获取内容在指定分类法下的分类项名称
func (r *contentRepository) PostTerms(ctx context.Context, postID uint64, taxonomy string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table(r.table("terms")+" AS t").
		Joins("INNER JOIN "+r.table("term_taxonomy")+" AS tt ON tt.term_id = t.term_id").
		Joins("INNER JOIN "+r.table("term_relationships")+" AS tr ON tr.term_taxonomy_id = tt.term_taxonomy_id").
		Where("tr.object_id = ? AND tt.taxonomy = ?", postID, taxonomy).
		Order("t.name ASC").
		Pluck("t.name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get %s terms for post %d: %w", taxonomy, postID, err)
	}
	return names, nil
}

// PostMeta 获取第一条元数据值
func (r *contentRepository) PostMeta(ctx context.Context, postID uint64, key string) (string, bool, error) {
	var values []string
	err := r.db.WithContext(ctx).
		Table(r.table(models.PostMeta{}.TableName())).
		Where("post_id = ? AND meta_key = ?", postID, key).
		Order("meta_id ASC").
		Limit(1).
		Pluck("meta_value", &values).Error
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s for post %d: %w", key, postID, err)
	}
	if len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}
