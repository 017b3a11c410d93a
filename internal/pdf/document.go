package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-visual-translator/internal/logger"
)

func init() {
	// 不在用户目录下生成 pdfcpu 配置
	api.DisableConfigDir()
}

func pdfcpuConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageSize 页面尺寸（点）
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is an open source PDF. The bytes are read once and shared by the
// extractor, the composer and the rasterizer; the file is not held open.
type Document struct {
	path   string
	data   []byte
	sizes  []PageSize
	reader *pdf.Reader
}

// OpenDocument reads and validates the PDF at path.
func OpenDocument(path string) (*Document, error) {
	if _, err := statPDF(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法读取文件", err)
	}

	dims, err := api.PageDims(bytes.NewReader(data), pdfcpuConfig())
	if err != nil {
		return nil, classifyOpenError(err)
	}
	if len(dims) == 0 {
		return nil, NewPDFError(ErrPDFInvalid, "PDF 不包含任何页面", nil)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, classifyOpenError(err)
	}

	sizes := make([]PageSize, len(dims))
	for i, d := range dims {
		sizes[i] = PageSize{Width: d.Width, Height: d.Height}
	}

	logger.Info("PDF opened",
		logger.String("pdf", filepath.Base(path)),
		logger.Int("pages", len(sizes)),
		logger.Int("bytes", len(data)))

	return &Document{path: path, data: data, sizes: sizes, reader: reader}, nil
}

func classifyOpenError(err error) *PDFError {
	if strings.Contains(strings.ToLower(err.Error()), "encrypt") {
		return NewPDFError(ErrPDFEncrypted, "PDF 已加密，无法处理", err)
	}
	return NewPDFError(ErrPDFInvalid, "无法解析 PDF 文件", err)
}

// Path returns the source file path.
func (d *Document) Path() string { return d.path }

// Data returns the raw PDF bytes. Callers must not modify them.
func (d *Document) Data() []byte { return d.data }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.sizes) }

// PageSize returns the size of page index (0-based).
func (d *Document) PageSize(index int) (PageSize, error) {
	if err := d.checkPage(index); err != nil {
		return PageSize{}, err
	}
	return d.sizes[index], nil
}

// ExtractPage returns the text blocks of page index (0-based).
func (d *Document) ExtractPage(index int) (*PageText, error) {
	if err := d.checkPage(index); err != nil {
		return nil, err
	}
	return extractPage(d.reader, index)
}

// Close releases the document.
func (d *Document) Close() error {
	d.data = nil
	d.reader = nil
	return nil
}

func (d *Document) checkPage(index int) error {
	if index < 0 || index >= len(d.sizes) {
		return NewPDFErrorWithPage(ErrPageRange, "页码超出范围", index,
			fmt.Errorf("document has %d pages", len(d.sizes)))
	}
	return nil
}

// PageCountFile 使用 pdfcpu 读取页数
func PageCountFile(pdfPath string) (int, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return 0, err
	}
	ctx, err := api.ReadContextFile(pdfPath)
	if err != nil {
		return 0, classifyOpenError(err)
	}
	return ctx.PageCount, nil
}

// ValidateFile checks that a written PDF parses cleanly.
func ValidateFile(pdfPath string) error {
	if err := api.ValidateFile(pdfPath, pdfcpuConfig()); err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "生成的 PDF 校验失败", filepath.Base(pdfPath), err)
	}
	return nil
}

// OptimizeFile rewrites in to out with duplicate resources merged. in and out
// may be the same path.
func OptimizeFile(in, out string) error {
	logger.Debug("optimizing PDF", logger.String("input", filepath.Base(in)), logger.String("output", filepath.Base(out)))
	if err := api.OptimizeFile(in, out, pdfcpuConfig()); err != nil {
		return NewPDFErrorWithDetails(ErrGenerateFailed, "优化 PDF 失败", filepath.Base(in), err)
	}
	return nil
}
