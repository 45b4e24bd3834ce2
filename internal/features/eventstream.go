package features

import (
	"context"
	"time"

	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/index"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 索引事件类型
const (
	EventIndexed = "content.indexed"
	EventDeleted = "content.deleted"
)

// Publisher 消息发布
type Publisher interface {
	Publish(key string, v interface{}, headers map[string]string) error
}

// IndexEvent 推送到消息队列的索引事件
type IndexEvent struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Index     string    `json:"index"`
	Key       string    `json:"key"`
	PostID    uint64    `json:"post_id"`
	PostType  string    `json:"post_type,omitempty"`
	Title     string    `json:"title,omitempty"`
	Permalink string    `json:"permalink,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventStream 把文档写入与删除事件推送到 Kafka
type EventStream struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventStream 创建事件推送功能，publisher 为 nil 时无法激活
func NewEventStream(publisher Publisher, logger *zap.Logger) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventStream{publisher: publisher, logger: logger, now: time.Now}
}

// Info 功能描述
func (e *EventStream) Info() Info {
	return Info{
		Slug:        "event-stream",
		Title:       "Event Stream",
		Description: "Publish index changes to Kafka.",
	}
}

// Requirements 需要配置 Kafka
func (e *EventStream) Requirements(context.Context) Requirement {
	if e.publisher == nil {
		return Requirement{Code: RequirementsUnmet, Messages: []string{"Kafka brokers are not configured."}}
	}
	return Requirement{Code: RequirementsMet}
}

// Setup 注册索引事件回调
func (e *EventStream) Setup(h *hooks.Registry) {
	h.AfterPostIndexed.Add("event-stream:indexed", 20, e.onIndexed)
	h.AfterPostPublished.Add("event-stream:indexed", 20, e.onIndexed)
	h.AfterPostDeleted.Add("event-stream:deleted", 20, e.onDeleted)
}

func (e *EventStream) onIndexed(_ context.Context, ev hooks.PostIndexedEvent) {
	out := IndexEvent{
		Event:    EventIndexed,
		Index:    ev.Index,
		Key:      ev.Key,
		Language: ev.Language,
	}
	if ev.Post != nil {
		out.PostID = ev.Post.ID
		out.PostType = ev.Post.PostType
		out.Title = ev.Post.PostTitle
	}
	out.Permalink, _ = ev.Fields[index.FieldPermalink].(string)
	e.publish(out)
}

func (e *EventStream) onDeleted(_ context.Context, ev hooks.PostDeletedEvent) {
	out := IndexEvent{Event: EventDeleted, Index: ev.Index, Key: ev.Key, PostID: ev.PostID}
	if ev.Post != nil {
		out.PostType = ev.Post.PostType
		out.Title = ev.Post.PostTitle
	}
	e.publish(out)
}

func (e *EventStream) publish(ev IndexEvent) {
	if e.publisher == nil {
		return
	}
	ev.ID = uuid.NewString()
	ev.Timestamp = e.now().UTC()
	if err := e.publisher.Publish(ev.Key, ev, map[string]string{"event": ev.Event}); err != nil {
		e.logger.Warn("failed to publish index event", zap.String("event", ev.Event), zap.String("key", ev.Key), zap.Error(err))
	}
}
