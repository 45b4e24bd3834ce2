// Package contentsync 根据外部通知把单条内容同步到搜索索引。
//
// 通知来源有两个：HTTP 接口与 Kafka 内容变更主题。两者都只携带内容 ID，
// 记录本身总是从关系库重新读取。
package contentsync

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/aihub/wpredisearch/internal/kafka"
	"github.com/aihub/wpredisearch/internal/models"
	"go.uber.org/zap"
)

// PostGetter 读取单条内容
type PostGetter interface {
	GetPost(ctx context.Context, id uint64) (*models.Post, error)
}

// ChangeHandler 增量索引
type ChangeHandler interface {
	OnContentChange(ctx context.Context, ev index.ChangeEvent) (index.Outcome, error)
	OnContentRemoved(ctx context.Context, id uint64) (bool, error)
}

// Result 同步结果
type Result struct {
	PostID  uint64 `json:"post_id"`
	Outcome string `json:"outcome"`
}

// Syncer 内容同步器
type Syncer struct {
	posts   PostGetter
	indexer ChangeHandler
	logger  *zap.Logger
}

// NewSyncer 创建同步器
func NewSyncer(posts PostGetter, indexer ChangeHandler, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{posts: posts, indexer: indexer, logger: logger}
}

// Sync 重新读取记录并按其当前状态写入或删除文档；记录已不存在时删除文档
func (s *Syncer) Sync(ctx context.Context, id uint64) (*Result, error) {
	if id == 0 {
		return nil, apperrors.NewValidationError(apperrors.ErrCodeInvalidConfig, "post id is required")
	}

	post, err := s.posts.GetPost(ctx, id)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeRecordNotFound) {
			return s.Remove(ctx, id)
		}
		return nil, fmt.Errorf("load post %d: %w", id, err)
	}

	outcome, err := s.indexer.OnContentChange(ctx, index.ChangeEvent{ID: id, Post: post, Update: true})
	if err != nil {
		return nil, err
	}
	s.logger.Info("content synced", zap.Uint64("post_id", id), zap.Stringer("outcome", outcome))
	return &Result{PostID: id, Outcome: outcome.String()}, nil
}

// Remove 删除内容对应的文档
func (s *Syncer) Remove(ctx context.Context, id uint64) (*Result, error) {
	removed, err := s.indexer.OnContentRemoved(ctx, id)
	if err != nil {
		return nil, err
	}
	outcome := index.Ignored
	if removed {
		outcome = index.Deleted
	}
	s.logger.Info("content removed", zap.Uint64("post_id", id), zap.Bool("existed", removed))
	return &Result{PostID: id, Outcome: outcome.String()}, nil
}

// HandleMessage 处理 Kafka 内容变更消息
//
// 格式错误的消息记录后跳过；引擎或数据库错误返回给消费者，消息不被确认。
func (s *Syncer) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	msg, err := kafka.ParseContentChangeMessage(message.Value)
	if err != nil {
		s.logger.Warn("skipping malformed content change message",
			zap.Int32("partition", message.Partition),
			zap.Int64("offset", message.Offset),
			zap.Error(err))
		return nil
	}

	switch msg.Action {
	case kafka.ActionDelete:
		_, err = s.Remove(ctx, msg.PostID)
	default:
		_, err = s.Sync(ctx, msg.PostID)
	}
	return err
}
