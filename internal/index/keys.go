package index

import (
	"fmt"
	"strconv"
	"strings"
)

// DocumentKey 文档键：索引名:内容类型:ID
func DocumentKey(indexName, postType string, id uint64) string {
	return fmt.Sprintf("%s:%s:%d", indexName, postType, id)
}

// Prefix 某内容类型的键前缀
func Prefix(indexName, postType string) string {
	return indexName + ":" + postType
}

// Prefixes 所有可索引类型的键前缀
func Prefixes(indexName string, postTypes []string) []string {
	prefixes := make([]string, 0, len(postTypes))
	for _, t := range postTypes {
		prefixes = append(prefixes, Prefix(indexName, t))
	}
	return prefixes
}

// ParseDocumentID 从文档键的最后一段解析内容 ID
func ParseDocumentID(key string) (uint64, bool) {
	i := strings.LastIndexByte(key, ':')
	if i < 0 || i == len(key)-1 {
		return 0, false
	}
	id, err := strconv.ParseUint(key[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
