// Package repositorytest 提供仓库接口的内存实现，用于单元测试。
package repositorytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/repository"
	"gorm.io/gorm"
)

// Content 内存内容仓库
type Content struct {
	mu    sync.RWMutex
	posts map[uint64]models.Post
	users map[uint64]string
	terms map[uint64]map[string][]string
	meta  map[uint64]map[string][]string

	// 设置后 FindPage 返回该错误
	FindErr error
	// 设置后 PostTerms 对该分类法返回错误
	TermsErr map[string]error
	// 记录 FindPage 的查询条件
	Queries []repository.PostQuery
}

var _ repository.ContentRepository = (*Content)(nil)

// NewContent 创建空仓库
func NewContent() *Content {
	return &Content{
		posts:    make(map[uint64]models.Post),
		users:    make(map[uint64]string),
		terms:    make(map[uint64]map[string][]string),
		meta:     make(map[uint64]map[string][]string),
		TermsErr: make(map[string]error),
	}
}

// AddPost 添加或覆盖内容
func (c *Content) AddPost(p models.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts[p.ID] = p
}

// DeletePost 删除内容
func (c *Content) DeletePost(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.posts, id)
}

// AddUser 添加作者
func (c *Content) AddUser(id uint64, displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[id] = displayName
}

// SetTerms 设置内容在某分类法下的分类项
func (c *Content) SetTerms(postID uint64, taxonomy string, names ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terms[postID] == nil {
		c.terms[postID] = make(map[string][]string)
	}
	c.terms[postID][taxonomy] = names
}

// AddMeta 追加元数据
func (c *Content) AddMeta(postID uint64, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.meta[postID] == nil {
		c.meta[postID] = make(map[string][]string)
	}
	c.meta[postID][key] = append(c.meta[postID][key], value)
}

// DeleteMeta 删除某个键的全部元数据
func (c *Content) DeleteMeta(postID uint64, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.meta[postID], key)
}

// GetDB 内存实现没有数据库连接
func (c *Content) GetDB() *gorm.DB { return nil }

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func (c *Content) match(p models.Post, q repository.PostQuery) bool {
	if len(q.PostTypes) > 0 && !contains(q.PostTypes, p.PostType) {
		return false
	}
	if len(q.PostStatuses) > 0 && !contains(q.PostStatuses, p.PostStatus) {
		return false
	}
	if len(q.PostIDs) > 0 {
		found := false
		for _, id := range q.PostIDs {
			if id == p.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.MimeTypes) > 0 && p.PostMimeType != "" && !contains(q.MimeTypes, p.PostMimeType) {
		return false
	}
	if q.Keyword != "" {
		kw := strings.ToLower(q.Keyword)
		if !strings.Contains(strings.ToLower(p.PostTitle), kw) &&
			!strings.Contains(strings.ToLower(p.PostExcerpt), kw) &&
			!strings.Contains(strings.ToLower(p.PostContent), kw) {
			return false
		}
	}
	return true
}

// FindPage 按 ID 倒序分页
func (c *Content) FindPage(_ context.Context, q repository.PostQuery) ([]models.Post, int64, error) {
	c.mu.Lock()
	c.Queries = append(c.Queries, q)
	c.mu.Unlock()

	if c.FindErr != nil {
		return nil, 0, c.FindErr
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []models.Post
	for _, p := range c.posts {
		if c.match(p, q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return nil, total, nil
	}
	end := len(matched)
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return append([]models.Post(nil), matched[q.Offset:end]...), total, nil
}

// FindByIDs 按给定顺序返回
func (c *Content) FindByIDs(_ context.Context, ids []uint64) ([]models.Post, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.Post
	for _, id := range ids {
		if p, ok := c.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// GetPost 获取内容
func (c *Content) GetPost(_ context.Context, id uint64) (*models.Post, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posts[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeRecordNotFound, fmt.Sprintf("post %d", id))
	}
	return &p, nil
}

// AuthorDisplayName 获取作者显示名
func (c *Content) AuthorDisplayName(_ context.Context, userID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.users[userID]
	if !ok {
		return "", apperrors.NewNotFoundError(apperrors.ErrCodeRecordNotFound, fmt.Sprintf("user %d", userID))
	}
	return name, nil
}

// PostTerms 获取分类项
func (c *Content) PostTerms(_ context.Context, postID uint64, taxonomy string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.TermsErr[taxonomy]; err != nil {
		return nil, err
	}
	return c.terms[postID][taxonomy], nil
}

// PostMeta 获取第一条元数据
func (c *Content) PostMeta(_ context.Context, postID uint64, key string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	values := c.meta[postID][key]
	if len(values) == 0 {
		return "", false, nil
	}
	return values[0], true, nil
}

// Options 内存选项仓库
type Options struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ repository.OptionRepository = (*Options)(nil)

// NewOptions 创建空选项仓库
func NewOptions() *Options {
	return &Options{values: make(map[string]string)}
}

// GetDB 内存实现没有数据库连接
func (o *Options) GetDB() *gorm.DB { return nil }

// Get 读取选项
func (o *Options) Get(_ context.Context, name string) (string, bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.values[name]
	return v, ok, nil
}

// Set 写入选项
func (o *Options) Set(_ context.Context, name, value string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.values[name] = value
	return nil
}

// Delete 删除选项
func (o *Options) Delete(_ context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.values, name)
	return nil
}
