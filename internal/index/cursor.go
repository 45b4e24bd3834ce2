package index

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aihub/wpredisearch/internal/repository"
)

// CursorOption 游标在选项表中的名称
const CursorOption = "wp_redisearch_index_meta"

// Cursor 全量索引进度
type Cursor struct {
	Offset     int `json:"offset"`
	FoundPosts int `json:"found_posts"`
}

// Done 已处理完全部匹配内容
func (c Cursor) Done() bool {
	return c.Offset >= c.FoundPosts
}

// CursorStore 游标持久化
type CursorStore interface {
	Load(ctx context.Context) (Cursor, error)
	Save(ctx context.Context, c Cursor) error
	Reset(ctx context.Context) error
}

// OptionCursorStore 基于选项表的游标存储
type OptionCursorStore struct {
	options repository.OptionRepository
	name    string
}

// NewOptionCursorStore 创建游标存储
func NewOptionCursorStore(options repository.OptionRepository) *OptionCursorStore {
	return &OptionCursorStore{options: options, name: CursorOption}
}

// Load 读取游标，不存在时返回零值
func (s *OptionCursorStore) Load(ctx context.Context) (Cursor, error) {
	raw, ok, err := s.options.Get(ctx, s.name)
	if err != nil {
		return Cursor{}, fmt.Errorf("load index cursor: %w", err)
	}
	if !ok || raw == "" {
		return Cursor{}, nil
	}
	var c Cursor
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cursor{}, fmt.Errorf("decode index cursor: %w", err)
	}
	if c.Offset < 0 {
		c.Offset = 0
	}
	if c.FoundPosts < 0 {
		c.FoundPosts = 0
	}
	return c, nil
}

// Save 写入游标
func (s *OptionCursorStore) Save(ctx context.Context, c Cursor) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode index cursor: %w", err)
	}
	if err := s.options.Set(ctx, s.name, string(raw)); err != nil {
		return fmt.Errorf("save index cursor: %w", err)
	}
	return nil
}

// Reset 删除游标
func (s *OptionCursorStore) Reset(ctx context.Context) error {
	if err := s.options.Delete(ctx, s.name); err != nil {
		return fmt.Errorf("reset index cursor: %w", err)
	}
	return nil
}
