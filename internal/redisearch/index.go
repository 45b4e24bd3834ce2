package redisearch

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"go.uber.org/zap"
)

// CreateIndex 创建索引（FT.CREATE ... ON HASH）
func (c *Client) CreateIndex(ctx context.Context, def IndexDefinition) error {
	if def.Name == "" {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidSchema, "index name is required")
	}
	if len(def.Fields) == 0 {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidSchema, "schema has no fields")
	}

	args := []interface{}{"FT.CREATE", def.Name, "ON", "HASH"}
	if len(def.Prefixes) > 0 {
		args = append(args, "PREFIX", len(def.Prefixes))
		for _, p := range def.Prefixes {
			args = append(args, p)
		}
	}
	args = append(args, "LANGUAGE_FIELD", LanguageField, "SCORE_FIELD", ScoreField)

	switch {
	case def.NoStopWords:
		args = append(args, "STOPWORDS", 0)
	case len(def.StopWords) > 0:
		args = append(args, "STOPWORDS", len(def.StopWords))
		for _, w := range def.StopWords {
			args = append(args, w)
		}
	}

	args = append(args, "SCHEMA")
	for _, f := range def.Fields {
		args = append(args, f.args()...)
	}

	if _, err := c.do(ctx, args...); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	c.logger.Info("search index created", zap.String("index", def.Name), zap.Int("fields", len(def.Fields)))
	return nil
}

// DropIndex 删除索引，deleteDocs 为真时一并删除文档哈希
func (c *Client) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	args := []interface{}{"FT.DROPINDEX", name}
	if deleteDocs {
		args = append(args, "DD")
	}
	if _, err := c.do(ctx, args...); err != nil {
		return fmt.Errorf("drop index %s: %w", name, err)
	}
	return nil
}

// Info 读取索引统计信息
func (c *Client) Info(ctx context.Context, name string) (*IndexInfo, error) {
	val, err := c.do(ctx, "FT.INFO", name)
	if err != nil {
		return nil, fmt.Errorf("index info %s: %w", name, err)
	}

	raw := pairsToMap(val)
	info := &IndexInfo{
		Name:       toString(raw["index_name"]),
		NumDocs:    toInt64(raw["num_docs"]),
		NumTerms:   toInt64(raw["num_terms"]),
		NumRecords: toInt64(raw["num_records"]),
		Raw:        raw,
	}
	if info.Name == "" {
		info.Name = name
	}

	fields := raw["attributes"]
	if fields == nil {
		fields = raw["fields"]
	}
	if list, ok := fields.([]interface{}); ok {
		for _, item := range list {
			if name := attributeName(item); name != "" {
				info.Fields = append(info.Fields, name)
			}
		}
	}
	return info, nil
}

// pairsToMap 将 [k1, v1, k2, v2...] 形式的回复转换为 map
func pairsToMap(val interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	switch v := val.(type) {
	case []interface{}:
		for i := 0; i+1 < len(v); i += 2 {
			out[toString(v[i])] = v[i+1]
		}
	case map[interface{}]interface{}:
		for k, item := range v {
			out[toString(k)] = item
		}
	}
	return out
}

// attributeName 兼容 1.x 的 fields 与 2.x 的 attributes 格式
func attributeName(item interface{}) string {
	parts, ok := item.([]interface{})
	if !ok || len(parts) == 0 {
		return ""
	}
	for i := 0; i+1 < len(parts); i += 2 {
		if strings.EqualFold(toString(parts[i]), "attribute") {
			return toString(parts[i+1])
		}
	}
	return toString(parts[0])
}
