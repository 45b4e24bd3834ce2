package redisearch

import (
	"fmt"
	"strconv"
)

// 文档哈希中保存评分与语言的字段名
const (
	ScoreField    = "documentScore"
	LanguageField = "documentLanguage"
)

// FieldKind 字段类型
type FieldKind int

const (
	Text FieldKind = iota
	Numeric
	Tag
	Geo
)

func (k FieldKind) String() string {
	switch k {
	case Numeric:
		return "NUMERIC"
	case Tag:
		return "TAG"
	case Geo:
		return "GEO"
	default:
		return "TEXT"
	}
}

// FieldDefinition 索引字段定义
type FieldDefinition struct {
	Name     string
	Kind     FieldKind
	Weight   float64 // 仅 Text 字段
	Sortable bool
}

// args 生成 SCHEMA 子句中该字段的参数
func (f FieldDefinition) args() []interface{} {
	args := []interface{}{f.Name, f.Kind.String()}
	if f.Kind == Text && f.Weight > 0 && f.Weight != 1 {
		args = append(args, "WEIGHT", strconv.FormatFloat(f.Weight, 'f', -1, 64))
	}
	if f.Kind == Tag {
		args = append(args, "SEPARATOR", ",")
	}
	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args
}

// IndexDefinition FT.CREATE 所需的完整定义
type IndexDefinition struct {
	Name        string
	Prefixes    []string
	Fields      []FieldDefinition
	StopWords   []string
	NoStopWords bool
}

// Document 提交给引擎的文档
type Document struct {
	Key      string
	Score    float64
	Language string
	Fields   map[string]interface{}
	Replace  bool
}

// SearchRequest 搜索请求
type SearchRequest struct {
	Index     string
	Query     string
	NoContent bool
	Return    []string
	Language  string
	Offset    int
	Limit     int
	// 只统计命中数（LIMIT 0 0）
	CountOnly bool
}

// SearchDocument 单条命中
type SearchDocument struct {
	Key    string
	Fields map[string]string
}

// SearchResult 搜索结果，Documents 保持引擎排序
type SearchResult struct {
	Total     int64
	Documents []SearchDocument
}

// Keys 返回命中文档的键，顺序不变
func (r *SearchResult) Keys() []string {
	keys := make([]string, 0, len(r.Documents))
	for _, d := range r.Documents {
		keys = append(keys, d.Key)
	}
	return keys
}

// Suggestion 自动补全条目
type Suggestion struct {
	Term    string
	Score   float64
	Payload string
}

// IndexInfo FT.INFO 解析结果
type IndexInfo struct {
	Name       string
	NumDocs    int64
	NumTerms   int64
	NumRecords int64
	Fields     []string
	Raw        map[string]interface{}
}

// SuggestionKey 自动补全字典的键
func SuggestionKey(indexName string) string {
	return indexName + "Sugg"
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(val)
	}
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return int64(f)
		}
	}
	return 0
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
