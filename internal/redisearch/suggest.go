package redisearch

import (
	"context"
	"fmt"
	"strconv"
)

// SugAdd 向自动补全字典添加条目
func (c *Client) SugAdd(ctx context.Context, key string, s Suggestion, incr bool) error {
	score := s.Score
	if score <= 0 {
		score = 1
	}
	args := []interface{}{"FT.SUGADD", key, s.Term, strconv.FormatFloat(score, 'f', -1, 64)}
	if incr {
		args = append(args, "INCR")
	}
	if s.Payload != "" {
		args = append(args, "PAYLOAD", s.Payload)
	}
	if _, err := c.do(ctx, args...); err != nil {
		return fmt.Errorf("add suggestion %q: %w", s.Term, err)
	}
	return nil
}

// SugDel 删除条目，返回是否存在
func (c *Client) SugDel(ctx context.Context, key, term string) (bool, error) {
	n, err := c.do(ctx, "FT.SUGDEL", key, term)
	if err != nil {
		return false, fmt.Errorf("delete suggestion %q: %w", term, err)
	}
	return toInt64(n) > 0, nil
}

// SugGet 按前缀获取补全条目（带评分和负载）
func (c *Client) SugGet(ctx context.Context, key, prefix string, fuzzy bool, max int) ([]Suggestion, error) {
	if max <= 0 {
		max = 5
	}
	args := []interface{}{"FT.SUGGET", key, prefix}
	if fuzzy {
		args = append(args, "FUZZY")
	}
	args = append(args, "MAX", max, "WITHSCORES", "WITHPAYLOADS")

	val, err := c.do(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("get suggestions %q: %w", prefix, err)
	}

	items, _ := val.([]interface{})
	out := make([]Suggestion, 0, len(items)/3)
	for i := 0; i+2 < len(items); i += 3 {
		score, _ := strconv.ParseFloat(toString(items[i+1]), 64)
		out = append(out, Suggestion{
			Term:    toString(items[i]),
			Score:   score,
			Payload: toString(items[i+2]),
		})
	}
	return out, nil
}
