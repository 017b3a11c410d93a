package reconstruct

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-visual-translator/internal/fontfit"
	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/store"
	"pdf-visual-translator/internal/types"
)

// recordingCanvas logs every operation. A box fits when it is at least
// size*len(text)/2 wide and size*1.2 high.
type recordingCanvas struct {
	ops []string
}

func (c *recordingCanvas) Redact(r geom.Rect) {
	c.ops = append(c.ops, fmt.Sprintf("redact %v", r))
}

func (c *recordingCanvas) InsertTextbox(r geom.Rect, text string, s fontfit.Style) float64 {
	need := s.Size * float64(len([]rune(text))) / 2
	if r.Width() < need {
		return -1
	}
	remaining := r.Height() - s.Size*1.2
	if remaining >= 0 {
		c.ops = append(c.ops, fmt.Sprintf("insert %v %q size=%v color=%v align=%v font=%s",
			r, text, s.Size, s.Color, s.Align, s.FontName))
	}
	return remaining
}

func strPtr(s string) *string { return &s }

func sampleRecords() []store.TranslationRecord {
	moved := geom.Rect{10, 40, 200, 80}
	return []store.TranslationRecord{
		{Original: "Hello", Rect: geom.Rect{10, 10, 200, 30}, Translation: strPtr("你好"), FontSize: 12},
		{Original: "Draft", Rect: geom.Rect{10, 30, 200, 50}, FontSize: 12},
		{Original: "Title", Rect: geom.Rect{10, 50, 200, 70}, NewRect: &moved, Translation: strPtr("标题"),
			FontSize: 14, Color: geom.Color{1, 0, 0}, Align: geom.AlignCenter},
		{Original: "Empty", Rect: geom.Rect{10, 70, 200, 90}, Translation: strPtr(""), FontSize: 12},
	}
}

func TestReconstructRedactsAllBeforeInserting(t *testing.T) {
	c := &recordingCanvas{}
	placed := Reconstruct(c, sampleRecords(), Options{FontName: "cjk", MinFontSize: 5})

	require.Len(t, c.ops, 6)
	for i := 0; i < 4; i++ {
		assert.Contains(t, c.ops[i], "redact", "op %d", i)
	}
	assert.Contains(t, c.ops[4], `"你好"`)
	assert.Contains(t, c.ops[5], `"标题"`)

	require.Len(t, placed, 2)
	assert.Equal(t, 0, placed[0].Record)
	assert.Equal(t, 2, placed[1].Record)
}

func TestReconstructUsesRecordStyleAndTargetRect(t *testing.T) {
	c := &recordingCanvas{}
	placed := Reconstruct(c, sampleRecords(), Options{FontName: "cjk", FontFile: "cjk.ttf", MinFontSize: 5})

	title := placed[1]
	assert.Equal(t, geom.Rect{10, 40, 200, 80}, title.Rect)
	assert.Equal(t, 14.0, title.Result.FontSize)
	assert.Equal(t, "cjk.ttf", title.Style.FontFile)
	assert.Contains(t, c.ops[5], "[10 40 200 80]")
	assert.Contains(t, c.ops[5], "color=[1 0 0]")
	assert.Contains(t, c.ops[5], "align=center")
	assert.Contains(t, c.ops[5], "font=cjk")

	// 被遮盖的是原始区域而不是新位置
	assert.Equal(t, "redact [10 50 200 70]", c.ops[2])
}

func TestReconstructOverlappingRects(t *testing.T) {
	// 第二条记录的原始区域覆盖第一条译文的位置，两遍式保证译文不会被擦掉
	target := geom.Rect{0, 100, 300, 140}
	records := []store.TranslationRecord{
		{Original: "A", Rect: geom.Rect{0, 0, 300, 20}, NewRect: &target, Translation: strPtr("甲"), FontSize: 10},
		{Original: "B", Rect: geom.Rect{0, 100, 300, 140}, Translation: strPtr("乙"), FontSize: 10},
	}
	c := &recordingCanvas{}
	Reconstruct(c, records, Options{MinFontSize: 5})

	lastRedact := -1
	firstInsert := len(c.ops)
	for i, op := range c.ops {
		if op[:6] == "redact" {
			lastRedact = i
		} else if i < firstInsert {
			firstInsert = i
		}
	}
	assert.Less(t, lastRedact, firstInsert)
}

func TestReconstructGrowsBoxAtMinSize(t *testing.T) {
	records := []store.TranslationRecord{
		{Original: "x", Rect: geom.Rect{0, 0, 10, 5}, Translation: strPtr("a long translation"), FontSize: 8},
	}
	placed := Reconstruct(&recordingCanvas{}, records, Options{MinFontSize: 5})

	require.Len(t, placed, 1)
	assert.True(t, placed[0].Result.Grown)
	assert.Equal(t, 5.0, placed[0].Result.FontSize)
}

func TestReconstructDeterministic(t *testing.T) {
	a, b := &recordingCanvas{}, &recordingCanvas{}
	opts := Options{FontName: "cjk", MinFontSize: 5}
	pa := Reconstruct(a, sampleRecords(), opts)
	pb := Reconstruct(b, sampleRecords(), opts)

	assert.Equal(t, a.ops, b.ops)
	assert.Equal(t, pa, pb)
	assert.Equal(t, NewPlan(sampleRecords(), opts), NewPlan(sampleRecords(), opts))
}

func TestNewPlanEmpty(t *testing.T) {
	p := NewPlan(nil, Options{})
	assert.Empty(t, p.Redactions)
	assert.Empty(t, p.Placements)
}

func writeSamplePDF(t *testing.T, pages int) string {
	t.Helper()
	f := fpdf.New("P", "pt", "A4", "")
	f.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		f.AddPage()
		f.Text(72, 100, fmt.Sprintf("Page %d", i+1))
	}
	path := filepath.Join(t.TempDir(), "book.pdf")
	require.NoError(t, f.OutputFileAndClose(path))
	return path
}

func TestRendererExport(t *testing.T) {
	doc, err := pdf.OpenDocument(writeSamplePDF(t, 2))
	require.NoError(t, err)
	defer doc.Close()

	src, err := doc.ExtractPage(1)
	require.NoError(t, err)
	require.Len(t, src.Blocks, 1)
	b := src.Blocks[0]
	require.Equal(t, "Page 2", b.Text)
	require.Greater(t, b.Rect.Width(), 0.0)

	tr := store.NewDocumentTranslations(2)
	tr.Pages[1].Translations = []store.TranslationRecord{
		{Original: b.Text, Rect: b.Rect, Translation: strPtr("Seite 2"), FontSize: b.FontSize},
	}

	out := filepath.Join(t.TempDir(), "book_translated.pdf")
	report, err := NewRenderer(Options{MinFontSize: 5}).Export(doc, tr, out)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Pages)
	assert.Equal(t, 1, report.Redactions)
	assert.Equal(t, 1, report.Insertions)
	assert.Equal(t, len("Page 2"), report.GlyphsRemoved)

	n, err := pdf.PageCountFile(out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRendererPreviewPDFPageOutOfRange(t *testing.T) {
	doc, err := pdf.OpenDocument(writeSamplePDF(t, 1))
	require.NoError(t, err)
	defer doc.Close()

	_, err = NewRenderer(Options{}).PreviewPDF(doc, 3, nil)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestRendererPreview(t *testing.T) {
	doc, err := pdf.OpenDocument(writeSamplePDF(t, 1))
	require.NoError(t, err)
	defer doc.Close()

	png, err := NewRenderer(Options{}).Preview(doc, 0, nil, 1)
	if err != nil {
		t.Skipf("no rasteriser available: %v", err)
	}
	require.Greater(t, len(png), 8)
	assert.Equal(t, "\x89PNG", string(png[:4]))
}

// exportTranslated extracts page 0 of a one-page sample, saves a translation
// for its only block through the store and exports the document.
func exportTranslated(t *testing.T, translation string) (string, *ExportReport) {
	t.Helper()
	src := writeSamplePDF(t, 1)
	doc, err := pdf.OpenDocument(src)
	require.NoError(t, err)
	defer doc.Close()

	page, err := doc.ExtractPage(0)
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1)
	b := page.Blocks[0]

	st, err := store.Open(filepath.Join(t.TempDir(), "book_translations.json"), doc.PageCount())
	require.NoError(t, err)
	require.NoError(t, st.Upsert(store.SaveRequest{
		Page: 0, Original: b.Text, Rect: b.Rect, Translation: &translation,
		FontSize: b.FontSize, Color: b.Color,
	}))

	out := filepath.Join(t.TempDir(), "book_translated.pdf")
	report, err := NewRenderer(Options{MinFontSize: 5}).Export(doc, st.Document(), out)
	require.NoError(t, err)
	return out, report
}

func TestExportReplacesOriginalText(t *testing.T) {
	out, report := exportTranslated(t, "Seite eins")
	assert.Equal(t, len("Page 1"), report.GlyphsRemoved)
	assert.Equal(t, 1, report.Insertions)

	exported, err := pdf.OpenDocument(out)
	require.NoError(t, err)
	defer exported.Close()

	page, err := exported.ExtractPage(0)
	require.NoError(t, err)
	require.Len(t, page.Blocks, 1, "original text must be gone: %+v", page.Blocks)
	b := page.Blocks[0]
	assert.Equal(t, "Seite eins", b.Text)
	assert.Greater(t, b.Rect.Width(), 0.0)
	assert.InDelta(t, 72, b.Rect.X0(), 1)
}

func TestExportContentIsStable(t *testing.T) {
	outA, _ := exportTranslated(t, "Seite eins")
	outB, _ := exportTranslated(t, "Seite eins")

	extract := func(path string) *pdf.PageText {
		doc, err := pdf.OpenDocument(path)
		require.NoError(t, err)
		defer doc.Close()
		page, err := doc.ExtractPage(0)
		require.NoError(t, err)
		return page
	}
	assert.Equal(t, extract(outA), extract(outB))

	raster := pdf.NewRasterizer()
	render := func(path string) []byte {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		png, err := raster.RenderPNG(data, 0, 1)
		if err != nil {
			t.Skipf("no rasteriser available: %v", err)
		}
		return png
	}
	assert.Equal(t, render(outA), render(outB))
}
