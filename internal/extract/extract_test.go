package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aihub/wpredisearch/internal/config"
	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_Supports(t *testing.T) {
	m := NewManager()

	for _, name := range []string{"a.pdf", "B.DOCX", "old.doc", "sheet.xlsx", "notes.txt", "readme.md", "data.csv"} {
		assert.True(t, m.Supports(name), name)
	}
	for _, name := range []string{"slides.pptx", "image.png", "archive", "book.xls"} {
		assert.False(t, m.Supports(name), name)
	}

	assert.Equal(t, []string{".csv", ".doc", ".docx", ".markdown", ".md", ".pdf", ".txt", ".xlsx"}, m.SupportedFormats())
}

func TestManager_ParseFile(t *testing.T) {
	m := NewManager()

	text, err := m.ParseFile(strings.NewReader("hello\nworld"), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld", text)

	_, err = m.ParseFile(strings.NewReader("x"), "photo.jpg")
	var unsupported *UnsupportedError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "photo.jpg", unsupported.Filename)
}

func TestLegacyDocText(t *testing.T) {
	data := []byte("\x00\x01binary header\rQuarterly report (draft)\rTotal: 42%\r\rnull\x00line")
	assert.Equal(t, "Quarterly report (draft) Total 42 ", legacyDocText(data))
}

func TestLocalSource_Open(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024", "03"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", "03", "guide.txt"), []byte("install guide"), 0o644))

	src := NewLocalSource(root)
	rc, err := src.Open(context.Background(), "2024/03/guide.txt")
	require.NoError(t, err)
	rc.Close()

	// 越出上传目录的路径被限制在 root 内
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	defer os.Remove(outside)

	_, err = src.Open(context.Background(), "../secret.txt")
	assert.Error(t, err)
}

func TestExtractor_Extract(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "manual.txt"), []byte("  Redis\n\tsearch   manual \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "upload-no-ext"), []byte("plain body"), 0o644))

	ex := NewExtractor(NewLocalSource(root), nil, nil)

	text, err := ex.Extract(context.Background(), "manual.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "Redis search manual", text)

	text, err = ex.Extract(context.Background(), "upload-no-ext", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "plain body", text)
}

func TestExtractor_MaxBytes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte("abcdefghij"), 0o644))

	ex := NewExtractor(NewLocalSource(root), nil, nil)
	ex.SetMaxBytes(4)

	text, err := ex.Extract(context.Background(), "big.txt", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "abcd", text)
}

func TestExtractor_Errors(t *testing.T) {
	ex := NewExtractor(NewLocalSource(t.TempDir()), nil, nil)

	_, err := ex.Extract(context.Background(), "missing.pdf", "application/pdf")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExtractionFailed))

	_, err = ex.Extract(context.Background(), "slides.pptx", "application/vnd.ms-powerpoint")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExtractionFailed))
	var unsupported *UnsupportedError
	assert.ErrorAs(t, err, &unsupported)
}

type mockObjects struct {
	mock.Mock
}

func (m *mockObjects) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (*minio.Object, error) {
	args := m.Called(ctx, bucket, object)
	obj, _ := args.Get(0).(*minio.Object)
	return obj, args.Error(1)
}

func TestMinIOSource_ObjectKey(t *testing.T) {
	objects := new(mockObjects)
	objects.On("GetObject", mock.Anything, "uploads", "2024/03/report.pdf").
		Return(nil, errors.New("connection refused"))

	src := NewMinIOSource(objects, "uploads")
	_, err := src.Open(context.Background(), "../2024/03/report.pdf")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploads/2024/03/report.pdf")
	objects.AssertExpectations(t)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.DocumentConfig{UploadsPath: "/var/www/uploads"})
	require.NoError(t, err)
	assert.IsType(t, &LocalSource{}, src)

	src, err = NewSource(config.DocumentConfig{
		Storage: "minio",
		MinIO:   config.MinIOConfig{Endpoint: "http://minio:9000", AccessKey: "key", SecretKey: "secret"},
	})
	require.NoError(t, err)
	assert.IsType(t, &MinIOSource{}, src)
	assert.Equal(t, "uploads", src.(*MinIOSource).bucket)

	_, err = NewSource(config.DocumentConfig{Storage: "minio"})
	assert.Error(t, err)

	_, err = NewSource(config.DocumentConfig{Storage: "s3"})
	assert.Error(t, err)
}

func TestSetLicenseKey_Empty(t *testing.T) {
	assert.NoError(t, SetLicenseKey(""))
}
