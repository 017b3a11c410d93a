package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-visual-translator/internal/geom"
)

func TestRewriteShowOp(t *testing.T) {
	g := func(s string) glyph { return glyph{raw: []byte(s), Text: s, adj: -500} }
	dropB := func(x glyph) bool { return x.Text == "B" }

	ops, err := lexContent([]byte("[(AB) -100 (C)] TJ (AB) Tj (B) ' 1 2 (AB) \""))
	require.NoError(t, err)
	require.Len(t, ops, 4)

	repl, n := rewriteShowOp(ops[0], []glyph{g("A"), g("B"), g("C")}, dropB)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[<41> -600 <43>] TJ", repl)

	repl, n = rewriteShowOp(ops[1], []glyph{g("A"), g("B")}, dropB)
	assert.Equal(t, 1, n)
	assert.Equal(t, "[<41> -500] TJ", repl)

	repl, _ = rewriteShowOp(ops[2], []glyph{g("B")}, dropB)
	assert.Equal(t, "T* [-500] TJ", repl)

	repl, _ = rewriteShowOp(ops[3], []glyph{g("A"), g("B")}, dropB)
	assert.Equal(t, "1 Tw 2 Tc T* [<41> -500] TJ", repl)

	_, n = rewriteShowOp(ops[1], []glyph{g("A"), g("C")}, dropB)
	assert.Zero(t, n)
}

func writeRewritten(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewritten.pdf")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestRemoveText(t *testing.T) {
	path := buildPDF(t, "A4", func(f *fpdf.Fpdf) {
		f.AddPage()
		f.SetFont("Helvetica", "", 12)
		f.Text(72, 100, "Secret line")
		f.Text(72, 200, "Kept line")
	})
	doc, err := OpenDocument(path)
	require.NoError(t, err)
	defer doc.Close()

	before, err := doc.ExtractPage(0)
	require.NoError(t, err)
	require.Len(t, before.Blocks, 2)
	kept := before.Blocks[1]

	data, n, err := doc.RemoveText(map[int][]geom.Rect{0: {before.Blocks[0].Rect}})
	require.NoError(t, err)
	assert.Equal(t, len("Secret line"), n)

	after := extractFirstPage(t, writeRewritten(t, data))
	require.Len(t, after.Blocks, 1)
	assert.Equal(t, "Kept line", after.Blocks[0].Text)
	assert.Equal(t, kept.Rect, after.Blocks[0].Rect)
}

func TestRemoveTextPartialKeepsPositions(t *testing.T) {
	path := buildPDF(t, "A4", func(f *fpdf.Fpdf) {
		f.AddPage()
		f.SetFont("Helvetica", "", 12)
		f.Text(72, 100, "AAAA BBBB")
	})
	doc, err := OpenDocument(path)
	require.NoError(t, err)
	defer doc.Close()

	left := helveticaWidth("AAAA ", 12)
	box := geom.Rect{60, 80, 72 + left - 1, 110}
	data, n, err := doc.RemoveText(map[int][]geom.Rect{0: {box}})
	require.NoError(t, err)
	assert.Equal(t, len("AAAA "), n)

	after := extractFirstPage(t, writeRewritten(t, data))
	require.Len(t, after.Blocks, 1)
	assert.Equal(t, "BBBB", after.Blocks[0].Text)
	assert.InDelta(t, 72+left, after.Blocks[0].Rect.X0(), 0.02)
}

func TestRemoveTextNoHits(t *testing.T) {
	doc, err := OpenDocument(writeSamplePDF(t, "Hello"))
	require.NoError(t, err)
	defer doc.Close()

	data, n, err := doc.RemoveText(map[int][]geom.Rect{0: {{400, 400, 500, 500}}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, doc.Data(), data)

	_, _, err = doc.RemoveText(map[int][]geom.Rect{5: {{0, 0, 10, 10}}})
	pdfErr, ok := err.(*PDFError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, ErrPageRange, pdfErr.Code)
}

func TestComposerRemovesTextUnderRedaction(t *testing.T) {
	doc, err := OpenDocument(writeSamplePDF(t, "Hello world"))
	require.NoError(t, err)
	defer doc.Close()

	src, err := doc.ExtractPage(0)
	require.NoError(t, err)
	rect := src.Blocks[0].Rect

	c, err := NewComposer(doc, FontSpec{})
	require.NoError(t, err)
	assert.Equal(t, len("Hello world"), c.RemoveText(map[int][]geom.Rect{0: {rect}}))
	page, err := c.AddPage(0)
	require.NoError(t, err)
	page.Redact(rect)

	out := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, c.WriteFile(out))
	require.NoError(t, ValidateFile(out))

	// 导入后的页面是 Form XObject，再次抽取时原文应已不存在
	got := extractFirstPage(t, out)
	assert.Empty(t, got.Blocks)

	assert.Zero(t, c.RemoveText(map[int][]geom.Rect{0: {rect}}), "removal after AddPage is refused")
}
