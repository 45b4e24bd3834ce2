// Package extract 从附件文件（PDF、Word、Excel、纯文本）中提取可索引的文本。
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Parser 文件解析器接口
type Parser interface {
	Parse(reader io.Reader, filename string) (string, error)
	Supports(filename string) bool
	Extensions() []string
}

func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// TextParser 文本文件解析器
type TextParser struct{}

func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md", ".markdown", ".csv"}
}

func (p *TextParser) Supports(filename string) bool {
	return hasExt(p, filename)
}

func (p *TextParser) Parse(reader io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}
	return string(content), nil
}

// PDFParser PDF文件解析器，无法读取的页面被跳过
type PDFParser struct{}

func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

func (p *PDFParser) Supports(filename string) bool {
	return hasExt(p, filename)
}

func (p *PDFParser) Parse(reader io.Reader, filename string) (string, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", filename, err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("count pdf pages %s: %w", filename, err)
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// WordParser Word文档解析器
//
// .docx 通过 unioffice 读取段落；旧版 .doc 只保留不含 NUL 的文本行。
type WordParser struct{}

func (p *WordParser) Extensions() []string { return []string{".docx", ".doc"} }

func (p *WordParser) Supports(filename string) bool {
	return hasExt(p, filename)
}

func (p *WordParser) Parse(reader io.Reader, filename string) (string, error) {
	docBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}

	if extOf(filename) == ".doc" {
		return legacyDocText(docBytes), nil
	}

	doc, err := document.Read(bytes.NewReader(docBytes), int64(len(docBytes)))
	if err != nil {
		return "", fmt.Errorf("open docx %s: %w", filename, err)
	}
	defer doc.Close()

	var sb strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			sb.WriteString(run.Text())
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// legacyDocText 从二进制 .doc 中取出可读文本
func legacyDocText(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{0x0D}) {
		if len(line) == 0 || bytes.IndexByte(line, 0x00) >= 0 {
			continue
		}
		for _, r := range string(line) {
			if legacyDocRune(r) {
				sb.WriteRune(r)
			}
		}
		sb.WriteByte(' ')
	}
	return sb.String()
}

func legacyDocRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune(" \t\n\r,.-@/_()", r)
}

// ExcelParser Excel文件解析器，单元格以制表符分隔
type ExcelParser struct{}

func (p *ExcelParser) Extensions() []string { return []string{".xlsx"} }

func (p *ExcelParser) Supports(filename string) bool {
	return hasExt(p, filename)
}

func (p *ExcelParser) Parse(reader io.Reader, filename string) (string, error) {
	excelBytes, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filename, err)
	}

	ss, err := spreadsheet.Read(bytes.NewReader(excelBytes), int64(len(excelBytes)))
	if err != nil {
		return "", fmt.Errorf("open xlsx %s: %w", filename, err)
	}
	defer ss.Close()

	var sb strings.Builder
	for _, sheet := range ss.Sheets() {
		sb.WriteString(sheet.Name())
		sb.WriteString("\n")
		for _, row := range sheet.Rows() {
			var cells []string
			for _, cell := range row.Cells() {
				cells = append(cells, cell.GetString())
			}
			if len(cells) > 0 {
				sb.WriteString(strings.Join(cells, "\t"))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func hasExt(p Parser, filename string) bool {
	ext := extOf(filename)
	for _, e := range p.Extensions() {
		if e == ext {
			return true
		}
	}
	return false
}

// UnsupportedError 没有解析器能处理该文件
type UnsupportedError struct {
	Filename string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported file format: %s", e.Filename)
}

// Manager 文件解析器管理器
type Manager struct {
	parsers []Parser
}

// NewManager 创建包含全部内置解析器的管理器
func NewManager() *Manager {
	return &Manager{
		parsers: []Parser{
			&PDFParser{},
			&WordParser{},
			&ExcelParser{},
			&TextParser{},
		},
	}
}

// Supports 是否有解析器支持该文件
func (m *Manager) Supports(filename string) bool {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return true
		}
	}
	return false
}

// ParseFile 解析文件
func (m *Manager) ParseFile(reader io.Reader, filename string) (string, error) {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser.Parse(reader, filename)
		}
	}
	return "", &UnsupportedError{Filename: filename}
}

// SupportedFormats 支持的扩展名（已排序）
func (m *Manager) SupportedFormats() []string {
	var formats []string
	for _, parser := range m.parsers {
		formats = append(formats, parser.Extensions()...)
	}
	sort.Strings(formats)
	return formats
}
