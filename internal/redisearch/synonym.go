package redisearch

import (
	"context"
	"fmt"
)

// SynUpdate 更新同义词组
func (c *Client) SynUpdate(ctx context.Context, index, groupID string, terms ...string) error {
	if len(terms) == 0 {
		return nil
	}
	args := []interface{}{"FT.SYNUPDATE", index, groupID}
	for _, t := range terms {
		args = append(args, t)
	}
	if _, err := c.do(ctx, args...); err != nil {
		return fmt.Errorf("update synonym group %s: %w", groupID, err)
	}
	return nil
}

// SynDump 返回 term -> 组ID 列表
func (c *Client) SynDump(ctx context.Context, index string) (map[string][]string, error) {
	val, err := c.do(ctx, "FT.SYNDUMP", index)
	if err != nil {
		return nil, fmt.Errorf("dump synonyms: %w", err)
	}
	out := make(map[string][]string)
	for term, groups := range pairsToMap(val) {
		list, _ := groups.([]interface{})
		for _, g := range list {
			out[term] = append(out[term], toString(g))
		}
	}
	return out, nil
}
