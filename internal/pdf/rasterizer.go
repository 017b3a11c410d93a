package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"

	"pdf-visual-translator/internal/logger"
)

// Rasterizer renders PDF pages to PNG. MuPDF (go-fitz) is used first;
// pdftoppm from poppler-utils is the fallback when MuPDF fails.
type Rasterizer struct {
	popplerOnce sync.Once
	usePoppler  bool
}

// NewRasterizer creates a new Rasterizer
func NewRasterizer() *Rasterizer {
	return &Rasterizer{}
}

// checkPopplerAvailable checks if pdftoppm is available
func checkPopplerAvailable() bool {
	cmd := exec.Command("pdftoppm", "-v")
	hideConsoleWindow(cmd)
	return cmd.Run() == nil
}

// RenderPNG renders page (0-based) of the PDF in data at scale times 72 dpi.
func (r *Rasterizer) RenderPNG(data []byte, page int, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	dpi := 72 * scale

	png, err := renderWithFitz(data, page, dpi)
	if err == nil {
		return png, nil
	}
	logger.Warn("MuPDF rendering failed, trying pdftoppm",
		logger.Int("page", page), logger.Err(err))

	r.popplerOnce.Do(func() { r.usePoppler = checkPopplerAvailable() })
	if !r.usePoppler {
		return nil, NewPDFErrorWithPage(ErrRenderFailed, "渲染页面失败", page, err)
	}
	png, perr := renderWithPoppler(data, page, dpi)
	if perr != nil {
		return nil, NewPDFErrorWithPage(ErrRenderFailed, "渲染页面失败", page, perr)
	}
	return png, nil
}

func renderWithFitz(data []byte, page int, dpi float64) (png []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("mupdf panic: %v", rec)
		}
	}()

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	if page < 0 || page >= doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (%d pages)", page, doc.NumPage())
	}
	return doc.ImagePNG(page, dpi)
}

// renderWithPoppler uses pdftoppm for the conversion
func renderWithPoppler(data []byte, page int, dpi float64) ([]byte, error) {
	tempDir, err := os.MkdirTemp("", "pdf2img_*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	input := filepath.Join(tempDir, "page.pdf")
	if err := os.WriteFile(input, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}

	outputPrefix := filepath.Join(tempDir, "page")
	args := []string{
		"-f", fmt.Sprintf("%d", page+1),
		"-l", fmt.Sprintf("%d", page+1),
		"-png",
		"-r", fmt.Sprintf("%g", dpi),
		"-singlefile",
		input,
		outputPrefix,
	}

	cmd := exec.Command("pdftoppm", args...)
	hideConsoleWindow(cmd)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w, output: %s", err, string(output))
	}

	png, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered image: %w", err)
	}

	logger.Debug("page rendered with pdftoppm", logger.Int("page", page), logger.Int("bytes", len(png)))
	return png, nil
}
