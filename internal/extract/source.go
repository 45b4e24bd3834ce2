package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aihub/wpredisearch/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Source 按上传目录内的相对路径打开附件
type Source interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// LocalSource 本地上传目录
type LocalSource struct {
	root string
}

// NewLocalSource 创建本地来源
func NewLocalSource(root string) *LocalSource {
	return &LocalSource{root: root}
}

// Open 打开 root 下的文件，路径不能越出 root
func (s *LocalSource) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full := filepath.Join(s.root, filepath.Clean("/"+path))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open attachment %s: %w", path, err)
	}
	return f, nil
}

// ObjectGetter minio 客户端的读取接口
type ObjectGetter interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

// MinIOSource MinIO 对象存储中的上传目录
type MinIOSource struct {
	client ObjectGetter
	bucket string
}

// NewMinIOClient 创建 MinIO 客户端，endpoint 可带协议前缀
func NewMinIOClient(cfg config.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// NewMinIOSource 创建 MinIO 来源
func NewMinIOSource(client ObjectGetter, bucket string) *MinIOSource {
	return &MinIOSource{client: client, bucket: bucket}
}

// Open 读取对象
func (s *MinIOSource) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+path)), "/")
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", s.bucket, key, err)
	}
	// GetObject 延迟请求，Stat 确认对象存在
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat object %s/%s: %w", s.bucket, key, err)
	}
	return obj, nil
}

// NewSource 按配置选择附件来源
func NewSource(cfg config.DocumentConfig) (Source, error) {
	switch cfg.Storage {
	case "minio":
		client, err := NewMinIOClient(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		bucket := cfg.MinIO.Bucket
		if bucket == "" {
			bucket = "uploads"
		}
		return NewMinIOSource(client, bucket), nil
	case "", "local":
		root := cfg.UploadsPath
		if root == "" {
			root = "wp-content/uploads"
		}
		return NewLocalSource(root), nil
	default:
		return nil, fmt.Errorf("unknown document storage %q", cfg.Storage)
	}
}
