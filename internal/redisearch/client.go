// Package redisearch 通过 go-redis 的原始命令接口访问 RediSearch 模块。
package redisearch

import (
	"context"
	"errors"
	"strings"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Doer 执行任意 Redis 命令，*redis.Client 满足该接口
type Doer interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
}

// Client RediSearch 客户端
type Client struct {
	rdb    Doer
	logger *zap.Logger
}

// NewClient 创建客户端
func NewClient(rdb Doer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rdb: rdb, logger: logger}
}

// do 执行命令并统一错误类型
func (c *Client) do(ctx context.Context, args ...interface{}) (interface{}, error) {
	val, err := c.rdb.Do(ctx, args...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		name := commandName(args)
		c.logger.Debug("redisearch command failed", zap.String("command", name), zap.Error(err))
		return nil, classify(name, args, err)
	}
	return val, nil
}

// classify 区分连接错误与引擎拒绝的命令
func classify(name string, args []interface{}, err error) error {
	var replyErr redis.Error
	if errors.As(err, &replyErr) {
		msg := strings.ToLower(replyErr.Error())
		if strings.Contains(msg, "unknown index") || strings.Contains(msg, "no such index") {
			index := ""
			if len(args) > 1 {
				index = toString(args[1])
			}
			return apperrors.NewIndexNotFoundError(index, err)
		}
		return apperrors.NewCommandError(name, err)
	}
	return apperrors.NewConnectionError("search engine", err)
}

func commandName(args []interface{}) string {
	if len(args) == 0 {
		return ""
	}
	name := strings.ToUpper(toString(args[0]))
	if name == "MODULE" && len(args) > 1 {
		name += " " + strings.ToUpper(toString(args[1]))
	}
	return name
}

// Ping 检查连接
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, "PING")
	return err
}

// Save 触发一次同步落盘
func (c *Client) Save(ctx context.Context) error {
	_, err := c.do(ctx, "SAVE")
	return err
}

// ModuleList 返回已加载模块名
func (c *Client) ModuleList(ctx context.Context) ([]string, error) {
	val, err := c.do(ctx, "MODULE", "LIST")
	if err != nil {
		return nil, err
	}
	items, _ := val.([]interface{})
	names := make([]string, 0, len(items))
	for _, item := range items {
		switch m := item.(type) {
		case []interface{}:
			for i := 0; i+1 < len(m); i += 2 {
				if strings.EqualFold(toString(m[i]), "name") {
					names = append(names, toString(m[i+1]))
				}
			}
		case map[interface{}]interface{}:
			names = append(names, toString(m["name"]))
		}
	}
	return names, nil
}

// HasSearchModule 判断是否加载了 search 模块
func (c *Client) HasSearchModule(ctx context.Context) (bool, error) {
	names, err := c.ModuleList(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if strings.EqualFold(n, "search") || strings.EqualFold(n, "ft") {
			return true, nil
		}
	}
	return false, nil
}
