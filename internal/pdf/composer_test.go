package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-visual-translator/internal/fontfit"
	"pdf-visual-translator/internal/geom"
)

// monoWidth measures every rune as 1 unit.
func monoWidth(s string) float64 {
	return float64(len([]rune(s)))
}

func lineTexts(lines []wrappedLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.text
	}
	return out
}

func TestWrapTextWords(t *testing.T) {
	lines, ok := wrapText("the quick brown fox", 10, monoWidth)
	require.True(t, ok)
	assert.Equal(t, []string{"the quick", "brown fox"}, lineTexts(lines))
	assert.False(t, lines[0].last)
	assert.True(t, lines[1].last)
}

func TestWrapTextCJKBreaksAnywhere(t *testing.T) {
	lines, ok := wrapText("一二三四五六七", 3, monoWidth)
	require.True(t, ok)
	assert.Equal(t, []string{"一二三", "四五六", "七"}, lineTexts(lines))
}

func TestWrapTextMixed(t *testing.T) {
	lines, ok := wrapText("PDF文件", 4, monoWidth)
	require.True(t, ok)
	assert.Equal(t, []string{"PDF文", "件"}, lineTexts(lines))
}

func TestWrapTextParagraphs(t *testing.T) {
	lines, ok := wrapText("ab\n\ncd", 10, monoWidth)
	require.True(t, ok)
	assert.Equal(t, []string{"ab", "", "cd"}, lineTexts(lines))
	for _, l := range lines {
		assert.True(t, l.last)
	}
}

func TestWrapTextLongWordIsCut(t *testing.T) {
	lines, ok := wrapText("abcdefgh", 3, monoWidth)
	require.True(t, ok)
	assert.Equal(t, []string{"abc", "def", "gh"}, lineTexts(lines))
}

func TestWrapTextRuneWiderThanBox(t *testing.T) {
	_, ok := wrapText("abc", 0.5, monoWidth)
	assert.False(t, ok)
}

// writeSamplePDF builds a one-page A4 PDF with a single line of text.
func writeSamplePDF(t *testing.T, text string) string {
	t.Helper()
	f := fpdf.New("P", "pt", "A4", "")
	f.AddPage()
	f.SetFont("Helvetica", "", 12)
	f.Text(72, 100, text)

	path := filepath.Join(t.TempDir(), "sample.pdf")
	require.NoError(t, f.OutputFileAndClose(path))
	return path
}

func TestOpenDocumentAndExtract(t *testing.T) {
	path := writeSamplePDF(t, "Hello world")

	doc, err := OpenDocument(path)
	require.NoError(t, err)
	defer doc.Close()

	assert.Equal(t, 1, doc.PageCount())
	size, err := doc.PageSize(0)
	require.NoError(t, err)
	assert.InDelta(t, 595.28, size.Width, 0.5)
	assert.InDelta(t, 841.89, size.Height, 0.5)

	page, err := doc.ExtractPage(0)
	require.NoError(t, err)
	require.NotEmpty(t, page.Blocks)
	require.Len(t, page.Blocks, 1)
	assert.InDelta(t, 595.28, page.Width, 0.01)
	assert.InDelta(t, 841.89, page.Height, 0.01)
	b := page.Blocks[0]
	assert.Equal(t, "Hello world", b.Text)
	assert.InDelta(t, 72, b.Rect.X0(), 0.01)
	assert.InDelta(t, 100-ascentRatio*12, b.Rect.Y0(), 0.02)
	assert.InDelta(t, 100+descentRatio*12, b.Rect.Y1(), 0.02)
	assert.InDelta(t, helveticaWidth("Hello world", 12), b.Rect.Width(), 0.05)
	assert.Equal(t, 12.0, b.FontSize)
	assert.Equal(t, 1, b.Lines)

	_, err = doc.ExtractPage(1)
	pdfErr, ok := err.(*PDFError)
	require.True(t, ok)
	assert.Equal(t, ErrPageRange, pdfErr.Code)
}

func TestOpenDocumentInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0644))

	_, err := OpenDocument(path)
	pdfErr, ok := err.(*PDFError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, ErrPDFInvalid, pdfErr.Code)
}

func TestComposerWritesValidPDF(t *testing.T) {
	doc, err := OpenDocument(writeSamplePDF(t, "Hello world"))
	require.NoError(t, err)
	defer doc.Close()

	c, err := NewComposer(doc, FontSpec{})
	require.NoError(t, err)
	page, err := c.AddPage(0)
	require.NoError(t, err)

	rect := geom.Rect{72, 88, 300, 104}
	page.Redact(rect)
	remaining := page.InsertTextbox(rect, "Bonjour le monde", fontfit.Style{Size: 12, Color: geom.Black})
	assert.GreaterOrEqual(t, remaining, 0.0)

	tooLong := page.InsertTextbox(geom.Rect{0, 0, 20, 5}, strings.Repeat("overflow ", 20), fontfit.Style{Size: 12})
	assert.Less(t, tooLong, 0.0)

	out := filepath.Join(t.TempDir(), "out", "translated.pdf")
	require.NoError(t, c.WriteFile(out))
	require.NoError(t, ValidateFile(out))

	n, err := PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestComposerMissingFont(t *testing.T) {
	doc, err := OpenDocument(writeSamplePDF(t, "x"))
	require.NoError(t, err)
	defer doc.Close()

	_, err = NewComposer(doc, FontSpec{Name: "cjk", File: "/non/existent/font.ttf"})
	pdfErr, ok := err.(*PDFError)
	require.True(t, ok)
	assert.Equal(t, ErrFontMissing, pdfErr.Code)
}
