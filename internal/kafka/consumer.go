package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数，返回错误时消息不被标记，等待重新投递
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer Kafka消费者组
type Consumer struct {
	group    sarama.ConsumerGroup
	groupID  string
	topics   []string
	handlers map[string]MessageHandler
	logger   *zap.Logger
	mu       sync.RWMutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewConsumerConfig 消费者组配置
func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0
	return config
}

// NewConsumer 创建消费者组，Start 之后开始消费
func NewConsumer(brokers []string, groupID string, topics []string, logger *zap.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("kafka consumer initialized",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.Strings("topics", topics))

	return &Consumer{
		group:    group,
		groupID:  groupID,
		topics:   topics,
		handlers: make(map[string]MessageHandler),
		logger:   logger,
	}, nil
}

// RegisterHandler 注册主题的处理器
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("kafka handler registered", zap.String("topic", topic))
}

func (c *Consumer) handlerSnapshot() map[string]MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]MessageHandler, len(c.handlers))
	for k, v := range c.handlers {
		out[k] = v
	}
	return out
}

// Start 在后台消费，直到 ctx 结束或 Close
func (c *Consumer) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("kafka consumer stopped")
				return
			default:
			}
			handler := &consumerGroupHandler{handlers: c.handlerSnapshot(), logger: c.logger}
			if err := c.group.Consume(ctx, c.topics, handler); err != nil {
				c.logger.Error("kafka consume failed", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Second):
				}
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", zap.Error(err))
		}
	}()
}

// Close 停止消费并关闭消费者组
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// consumerGroupHandler 消费者组处理器
type consumerGroupHandler struct {
	handlers map[string]MessageHandler
	logger   *zap.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 逐条处理分区消息
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			handler, found := h.handlers[message.Topic]
			if !found {
				h.logger.Warn("no kafka handler for topic", zap.String("topic", message.Topic))
				session.MarkMessage(message, "")
				continue
			}

			if err := handler(session.Context(), message); err != nil {
				h.logger.Error("kafka message handling failed",
					zap.String("topic", message.Topic),
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
				continue
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// 内容变更动作
const (
	ActionSave   = "save"
	ActionDelete = "delete"
)

// ContentChangeMessage 内容变更消息
type ContentChangeMessage struct {
	PostID uint64 `json:"post_id"`
	Action string `json:"action"`
}

// ParseContentChangeMessage 解析内容变更消息，缺省动作为 save
func ParseContentChangeMessage(data []byte) (*ContentChangeMessage, error) {
	var msg ContentChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse content change message: %w", err)
	}
	if msg.PostID == 0 {
		return nil, fmt.Errorf("content change message without post_id")
	}
	switch msg.Action {
	case "":
		msg.Action = ActionSave
	case ActionSave, ActionDelete:
	default:
		return nil, fmt.Errorf("unknown content change action %q", msg.Action)
	}
	return &msg, nil
}
