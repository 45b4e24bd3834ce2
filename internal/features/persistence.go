package features

import (
	"context"

	"github.com/aihub/wpredisearch/internal/hooks"
	"go.uber.org/zap"
)

// Saver 触发引擎快照
type Saver interface {
	Save(ctx context.Context) error
}

// Persistence 单条内容写入或删除后立即落盘
type Persistence struct {
	saver         Saver
	defaultActive bool
	logger        *zap.Logger
}

// NewPersistence 创建落盘功能，defaultActive 取自 index.write_to_disk
func NewPersistence(saver Saver, defaultActive bool, logger *zap.Logger) *Persistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persistence{saver: saver, defaultActive: defaultActive, logger: logger}
}

// Info 功能描述
func (p *Persistence) Info() Info {
	return Info{
		Slug:          "write-to-disk",
		Title:         "Write To Disk",
		Description:   "Save the index to disk after every content change.",
		DefaultActive: p.defaultActive,
	}
}

// Setup 批量索引由 Runner 在结束时落盘，这里只处理单条变更
func (p *Persistence) Setup(h *hooks.Registry) {
	h.AfterPostPublished.Add("write-to-disk:published", 100, func(ctx context.Context, _ hooks.PostIndexedEvent) {
		p.save(ctx)
	})
	h.AfterPostDeleted.Add("write-to-disk:deleted", 100, func(ctx context.Context, _ hooks.PostDeletedEvent) {
		p.save(ctx)
	})
}

func (p *Persistence) save(ctx context.Context) {
	if err := p.saver.Save(ctx); err != nil {
		p.logger.Warn("failed to write index to disk", zap.Error(err))
	}
}
