package features

import (
	"context"
	"time"

	"github.com/aihub/wpredisearch/internal/hooks"
	"github.com/aihub/wpredisearch/internal/models"
	"github.com/aihub/wpredisearch/internal/redisearch"
	"github.com/aihub/wpredisearch/internal/repository"
	"go.uber.org/zap"
)

const (
	// FieldDocument 附件正文字段
	FieldDocument = "document"
	// AttachedFileMeta 附件相对路径所在的元数据键
	AttachedFileMeta = "_wp_attached_file"
)

// TextExtractor 附件正文提取
type TextExtractor interface {
	Extract(ctx context.Context, file, mimeType string) (string, error)
}

// MetaReader 读取内容元数据
type MetaReader interface {
	PostMeta(ctx context.Context, postID uint64, key string) (string, bool, error)
}

// Document 附件文档：索引允许类型的附件，并写入提取出的正文
type Document struct {
	extractor TextExtractor
	meta      MetaReader
	mimeTypes []string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewDocument 创建附件文档功能，extractor 为 nil 时无法激活
func NewDocument(extractor TextExtractor, meta MetaReader, mimeTypes []string, logger *zap.Logger) *Document {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Document{
		extractor: extractor,
		meta:      meta,
		mimeTypes: mimeTypes,
		timeout:   time.Minute,
		logger:    logger,
	}
}

// Info 功能描述
func (d *Document) Info() Info {
	return Info{
		Slug:                        "document",
		Title:                       "Document",
		Description:                 "Index the text of uploaded documents.",
		RequiresReindex:             true,
		DeactivationRequiresReindex: true,
	}
}

// Requirements 需要可用的提取器
func (d *Document) Requirements(context.Context) Requirement {
	if d.extractor == nil || d.meta == nil {
		return Requirement{Code: RequirementsUnmet, Messages: []string{"No document storage is configured."}}
	}
	if len(d.mimeTypes) == 0 {
		return Requirement{Code: RequirementsUnmet, Messages: []string{"No document mime types are allowed."}}
	}
	return Requirement{Code: RequirementsMet}
}

// Setup 扩展可索引类型、状态与字段，并在准备字段时提取附件正文
func (d *Document) Setup(h *hooks.Registry) {
	h.PostTypes.Add("document:types", hooks.DefaultPriority, func(types []string, _ hooks.None) []string {
		return appendMissing(types, "attachment")
	})
	h.PostStatuses.Add("document:statuses", hooks.DefaultPriority, func(statuses []string, _ hooks.None) []string {
		return appendMissing(statuses, "inherit")
	})
	h.MetaSchema.Add("document:schema", hooks.DefaultPriority, func(fields []redisearch.FieldDefinition, _ []string) []redisearch.FieldDefinition {
		return append(fields, redisearch.FieldDefinition{Name: FieldDocument, Kind: redisearch.Text})
	})
	h.IndexQuery.Add("document:mime", hooks.DefaultPriority, func(q repository.PostQuery, _ hooks.None) repository.PostQuery {
		q.MimeTypes = append([]string(nil), d.mimeTypes...)
		return q
	})
	h.PreparedFields.Add("document:content", hooks.DefaultPriority, d.prepare)
}

func (d *Document) allowed(mimeType string) bool {
	return containsString(d.mimeTypes, mimeType)
}

func (d *Document) prepare(fields map[string]interface{}, post *models.Post) map[string]interface{} {
	if post == nil || post.PostType != "attachment" || !d.allowed(post.PostMimeType) {
		return fields
	}
	if d.extractor == nil || d.meta == nil {
		return fields
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	file, ok, err := d.meta.PostMeta(ctx, post.ID, AttachedFileMeta)
	if err != nil || !ok || file == "" {
		d.logger.Warn("attachment has no file", zap.Uint64("post_id", post.ID), zap.Error(err))
		return fields
	}

	text, err := d.extractor.Extract(ctx, file, post.PostMimeType)
	if err != nil {
		d.logger.Warn("document extraction failed", zap.Uint64("post_id", post.ID), zap.String("file", file), zap.Error(err))
		return fields
	}
	fields[FieldDocument] = text
	return fields
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func appendMissing(list []string, v string) []string {
	if containsString(list, v) {
		return list
	}
	return append(list, v)
}
