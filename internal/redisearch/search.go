package redisearch

import (
	"context"
	"fmt"
)

// Search 执行 FT.SEARCH，返回总数和按相关度排序的文档
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	args := []interface{}{"FT.SEARCH", req.Index, req.Query}
	if req.NoContent {
		args = append(args, "NOCONTENT")
	}
	if req.Language != "" {
		args = append(args, "LANGUAGE", req.Language)
	}
	if !req.NoContent && len(req.Return) > 0 {
		args = append(args, "RETURN", len(req.Return))
		for _, f := range req.Return {
			args = append(args, f)
		}
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if req.CountOnly {
		offset, limit = 0, 0
	}
	args = append(args, "LIMIT", offset, limit)

	val, err := c.do(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}
	return parseSearchReply(val, req.NoContent), nil
}

func parseSearchReply(val interface{}, noContent bool) *SearchResult {
	result := &SearchResult{}
	items, ok := val.([]interface{})
	if !ok || len(items) == 0 {
		return result
	}
	result.Total = toInt64(items[0])

	rest := items[1:]
	if noContent {
		for _, key := range rest {
			result.Documents = append(result.Documents, SearchDocument{Key: toString(key)})
		}
		return result
	}

	for i := 0; i < len(rest); i++ {
		doc := SearchDocument{Key: toString(rest[i]), Fields: map[string]string{}}
		if i+1 < len(rest) {
			if fields, ok := rest[i+1].([]interface{}); ok {
				for k, v := range pairsToMap(fields) {
					doc.Fields[k] = toString(v)
				}
				i++
			}
		}
		result.Documents = append(result.Documents, doc)
	}
	return result
}
