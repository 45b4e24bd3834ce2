package index

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/aihub/wpredisearch/internal/models"
)

// PermalinkBuilder 根据站点地址与固定链接结构生成文档链接
type PermalinkBuilder struct {
	base      string
	structure string
}

// NewPermalinkBuilder 创建链接生成器
func NewPermalinkBuilder(site config.SiteConfig) *PermalinkBuilder {
	return &PermalinkBuilder{
		base:      strings.TrimRight(site.URL, "/"),
		structure: site.PermalinkStructure,
	}
}

// Build 生成内容链接。未配置结构时使用查询参数形式。
func (b *PermalinkBuilder) Build(p *models.Post) string {
	if p == nil {
		return ""
	}

	if b.structure == "" {
		switch p.PostType {
		case "post":
			return fmt.Sprintf("%s/?p=%d", b.base, p.ID)
		case "page":
			return fmt.Sprintf("%s/?page_id=%d", b.base, p.ID)
		case "attachment":
			return fmt.Sprintf("%s/?attachment_id=%d", b.base, p.ID)
		default:
			return fmt.Sprintf("%s/?post_type=%s&p=%d", b.base, p.PostType, p.ID)
		}
	}

	slug := p.PostName
	if slug == "" {
		slug = strconv.FormatUint(p.ID, 10)
	}

	switch p.PostType {
	case "post":
		d := p.PostDate
		path := strings.NewReplacer(
			"%year%", fmt.Sprintf("%04d", d.Year()),
			"%monthnum%", fmt.Sprintf("%02d", int(d.Month())),
			"%day%", fmt.Sprintf("%02d", d.Day()),
			"%hour%", fmt.Sprintf("%02d", d.Hour()),
			"%minute%", fmt.Sprintf("%02d", d.Minute()),
			"%second%", fmt.Sprintf("%02d", d.Second()),
			"%post_id%", strconv.FormatUint(p.ID, 10),
			"%postname%", slug,
		).Replace(b.structure)
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return b.base + path
	case "page":
		return fmt.Sprintf("%s/%s/", b.base, slug)
	case "attachment":
		return fmt.Sprintf("%s/?attachment_id=%d", b.base, p.ID)
	default:
		return fmt.Sprintf("%s/%s/%s/", b.base, p.PostType, slug)
	}
}
