package index

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy().AddSpaceWhenStrippingTag(true)
	shortcodeRe = regexp.MustCompile(`\[\[?/?[a-zA-Z][\w-]*(?:\s[^\[\]]*)?/?\]\]?`)
)

// StripMarkup 去除 HTML 标签，还原实体并压缩空白
func StripMarkup(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

// StripShortcodes 去除短代码标记，保留其包裹的内容
func StripShortcodes(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}
	return shortcodeRe.ReplaceAllString(s, "")
}
