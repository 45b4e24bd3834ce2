package index

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`
	refreshScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("PEXPIRE", KEYS[1], ARGV[2]) else return 0 end`
)

// ReindexLock 全量索引互斥锁，防止两个进程同时推进同一个游标
type ReindexLock struct {
	rdb   redisearch.Doer
	key   string
	ttl   time.Duration
	token string
}

// NewReindexLock 创建索引锁
func NewReindexLock(rdb redisearch.Doer, indexName string, ttl time.Duration) *ReindexLock {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ReindexLock{
		rdb: rdb,
		key: "wp_redisearch_reindex_lock:" + indexName,
		ttl: ttl,
	}
}

// Key 锁键
func (l *ReindexLock) Key() string {
	return l.key
}

// Acquire 获取锁，已被占用时返回 REINDEX_IN_PROGRESS
func (l *ReindexLock) Acquire(ctx context.Context) error {
	token := uuid.NewString()
	err := l.rdb.Do(ctx, "SET", l.key, token, "NX", "PX", l.ttl.Milliseconds()).Err()
	if errors.Is(err, redis.Nil) {
		return apperrors.NewBusinessError(apperrors.ErrCodeReindexInProgress,
			fmt.Sprintf("reindex of %s is already running", l.key))
	}
	if err != nil {
		return apperrors.NewConnectionError("redis", err)
	}
	l.token = token
	return nil
}

// Refresh 仅当锁仍由自己持有时把过期时间重置为 ttl，锁已丢失时返回 REINDEX_IN_PROGRESS
func (l *ReindexLock) Refresh(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	n, err := l.rdb.Do(ctx, "EVAL", refreshScript, 1, l.key, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return apperrors.NewConnectionError("redis", err)
	}
	if n == 0 {
		l.token = ""
		return apperrors.NewBusinessError(apperrors.ErrCodeReindexInProgress,
			fmt.Sprintf("reindex lock %s was lost", l.key))
	}
	return nil
}

// Release 仅当锁仍由自己持有时释放
func (l *ReindexLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	err := l.rdb.Do(ctx, "EVAL", releaseScript, 1, l.key, l.token).Err()
	l.token = ""
	if err != nil {
		return fmt.Errorf("release reindex lock: %w", err)
	}
	return nil
}
