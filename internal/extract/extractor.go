package extract

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/unidoc/unioffice/common/license"
	pdflicense "github.com/unidoc/unipdf/v3/common/license"
	"go.uber.org/zap"
)

// DefaultMaxBytes 单个附件读取上限
const DefaultMaxBytes = 32 << 20

// DefaultMimeTypes 默认允许索引的附件类型
var DefaultMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/markdown",
	"text/csv",
}

// mimeExtensions 文件名缺少扩展名时按 MIME 选择解析器
var mimeExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       ".xlsx",
	"text/plain":    ".txt",
	"text/markdown": ".md",
	"text/csv":      ".csv",
}

// SetLicenseKey 为 unidoc 解析库设置计量许可
func SetLicenseKey(key string) error {
	if key == "" {
		return nil
	}
	if err := pdflicense.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set pdf license: %w", err)
	}
	if err := license.SetMeteredKey(key); err != nil {
		return fmt.Errorf("set office license: %w", err)
	}
	return nil
}

// Extractor 读取附件并提取文本
type Extractor struct {
	source   Source
	manager  *Manager
	maxBytes int64
	logger   *zap.Logger
}

// NewExtractor 创建提取器
func NewExtractor(source Source, manager *Manager, logger *zap.Logger) *Extractor {
	if manager == nil {
		manager = NewManager()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{source: source, manager: manager, maxBytes: DefaultMaxBytes, logger: logger}
}

// SetMaxBytes 设置读取上限
func (e *Extractor) SetMaxBytes(n int64) {
	e.maxBytes = n
}

// Extract 提取附件文本，空白折叠为单个空格
func (e *Extractor) Extract(ctx context.Context, file, mimeType string) (string, error) {
	name := path.Base(file)
	if !e.manager.Supports(name) {
		if ext, ok := mimeExtensions[mimeType]; ok {
			name += ext
		}
	}
	if !e.manager.Supports(name) {
		return "", apperrors.NewExtractionError(file, &UnsupportedError{Filename: file})
	}

	rc, err := e.source.Open(ctx, file)
	if err != nil {
		return "", apperrors.NewExtractionError(file, err)
	}
	defer rc.Close()

	var reader io.Reader = rc
	if e.maxBytes > 0 {
		reader = io.LimitReader(rc, e.maxBytes)
	}

	text, err := e.manager.ParseFile(reader, name)
	if err != nil {
		return "", apperrors.NewExtractionError(file, err)
	}

	text = strings.Join(strings.Fields(text), " ")
	e.logger.Debug("attachment text extracted", zap.String("file", file), zap.Int("chars", len(text)))
	return text, nil
}
