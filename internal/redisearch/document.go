package redisearch

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
)

// AddDocument 以哈希形式写入文档
//
// Replace 为假时键已存在则返回 DOCUMENT_EXISTS；为真时先删除旧哈希，
// 保证旧版本中多余的字段不会残留。
func (c *Client) AddDocument(ctx context.Context, doc Document) error {
	if doc.Key == "" {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidSchema, "document key is required")
	}

	if doc.Replace {
		if _, err := c.do(ctx, "DEL", doc.Key); err != nil {
			return fmt.Errorf("replace document %s: %w", doc.Key, err)
		}
	} else {
		exists, err := c.do(ctx, "EXISTS", doc.Key)
		if err != nil {
			return fmt.Errorf("add document %s: %w", doc.Key, err)
		}
		if toInt64(exists) > 0 {
			return apperrors.NewDocumentExistsError(doc.Key)
		}
	}

	score := doc.Score
	if score == 0 {
		score = 1
	}
	args := []interface{}{"HSET", doc.Key, ScoreField, strconv.FormatFloat(score, 'f', -1, 64)}
	if doc.Language != "" {
		args = append(args, LanguageField, doc.Language)
	}

	names := make([]string, 0, len(doc.Fields))
	for name, v := range doc.Fields {
		if v == nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, name, formatValue(doc.Fields[name]))
	}

	if _, err := c.do(ctx, args...); err != nil {
		return fmt.Errorf("add document %s: %w", doc.Key, err)
	}
	return nil
}

// DeleteDocument 删除文档，返回是否确实删除
func (c *Client) DeleteDocument(ctx context.Context, key string) (bool, error) {
	n, err := c.do(ctx, "DEL", key)
	if err != nil {
		return false, fmt.Errorf("delete document %s: %w", key, err)
	}
	return toInt64(n) > 0, nil
}

// GetDocument 读取文档字段，不存在时返回 nil
func (c *Client) GetDocument(ctx context.Context, key string) (map[string]string, error) {
	val, err := c.do(ctx, "HGETALL", key)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", key, err)
	}
	raw := pairsToMap(val)
	if len(raw) == 0 {
		return nil, nil
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = toString(v)
	}
	return fields, nil
}
