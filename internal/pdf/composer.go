package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"pdf-visual-translator/internal/fontfit"
	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
)

// LineHeightRatio is the line pitch as a multiple of the font size.
const LineHeightRatio = 1.2

// 固定文档时间戳，相同输入得到相同字节
var fixedDocTime = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// FontSpec names the font used for inserted text. Without a file the core
// Helvetica font is used, which only covers cp1252.
type FontSpec struct {
	Name string
	File string
}

// Composer builds an output PDF whose pages are the source pages imported as
// templates with white boxes and text drawn over them.
type Composer struct {
	doc    *Document
	pdf    *fpdf.Fpdf
	imp    *gofpdi.Importer
	rs     io.ReadSeeker
	family string
	tr     func(string) string
	pages  int
}

// NewComposer prepares a composer for doc. The font file, when given, must be
// a TrueType font.
func NewComposer(doc *Document, font FontSpec) (*Composer, error) {
	f := fpdf.New("P", "pt", "", "")
	f.SetCellMargin(0)
	f.SetAutoPageBreak(false, 0)
	f.SetMargins(0, 0, 0)
	f.SetCreationDate(fixedDocTime)
	f.SetModificationDate(fixedDocTime)
	f.SetCatalogSort(true)
	f.SetProducer("pdf-visual-translator", false)

	c := &Composer{
		doc: doc,
		pdf: f,
		imp: gofpdi.NewImporter(),
		rs:  io.ReadSeeker(bytes.NewReader(doc.Data())),
	}

	if font.File != "" {
		data, err := os.ReadFile(font.File)
		if err != nil {
			return nil, NewPDFErrorWithDetails(ErrFontMissing, "无法读取字体文件", font.File, err)
		}
		c.family = fontFamily(font)
		f.AddUTF8FontFromBytes(c.family, "", data)
		if f.Err() {
			return nil, NewPDFErrorWithDetails(ErrFontMissing, "字体文件无效", font.File, f.Error())
		}
		c.tr = func(s string) string { return s }
	} else {
		logger.Warn("no font file configured, falling back to Helvetica",
			logger.String("font", font.Name))
		c.family = "Helvetica"
		c.tr = f.UnicodeTranslatorFromDescriptor("")
	}

	return c, nil
}

func fontFamily(font FontSpec) string {
	if font.Name != "" {
		return font.Name
	}
	return strings.TrimSuffix(filepath.Base(font.File), filepath.Ext(font.File))
}

// RemoveText strips the glyphs under rects (keyed by page index) from the
// pages the composer imports, so hidden text no longer shows up in copy and
// search. It must run before the first AddPage. On failure the source is
// imported as is and the white boxes alone hide the text.
func (c *Composer) RemoveText(rects map[int][]geom.Rect) int {
	if c.pages > 0 {
		logger.Warn("text removal requested after pages were imported")
		return 0
	}
	data, n, err := c.doc.RemoveText(rects)
	if err != nil {
		logger.Warn("original text kept under white boxes", logger.Err(err))
		return 0
	}
	c.rs = bytes.NewReader(data)
	return n
}

// AddPage appends a copy of source page index (0-based) and returns the
// canvas for drawing over it.
func (c *Composer) AddPage(index int) (page *ComposedPage, err error) {
	size, err := c.doc.PageSize(index)
	if err != nil {
		return nil, err
	}

	// gofpdi 遇到不支持的对象时会 panic
	defer func() {
		if rec := recover(); rec != nil {
			page = nil
			err = NewPDFErrorWithPage(ErrGenerateFailed, "导入源页面失败", index, fmt.Errorf("%v", rec))
		}
	}()

	c.pdf.AddPageFormat("P", fpdf.SizeType{Wd: size.Width, Ht: size.Height})
	tpl := c.imp.ImportPageFromStream(c.pdf, &c.rs, index+1, "/MediaBox")
	c.imp.UseImportedTemplate(c.pdf, tpl, 0, 0, size.Width, size.Height)
	if c.pdf.Err() {
		return nil, NewPDFErrorWithPage(ErrGenerateFailed, "导入源页面失败", index, c.pdf.Error())
	}
	c.pages++

	return &ComposedPage{c: c, index: index, size: size}, nil
}

// PageCount returns the number of pages added so far.
func (c *Composer) PageCount() int { return c.pages }

// Output writes the composed PDF.
func (c *Composer) Output(w io.Writer) error {
	if c.pdf.Err() {
		return NewPDFError(ErrGenerateFailed, "生成 PDF 失败", c.pdf.Error())
	}
	if err := c.pdf.Output(w); err != nil {
		return NewPDFError(ErrGenerateFailed, "写出 PDF 失败", err)
	}
	return nil
}

// Bytes returns the composed PDF.
func (c *Composer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes the composed PDF to path.
func (c *Composer) WriteFile(path string) error {
	data, err := c.Bytes()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return NewPDFError(ErrGenerateFailed, "无法创建输出目录", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return NewPDFError(ErrGenerateFailed, "无法写入输出文件", err)
	}
	return nil
}

// ComposedPage is one output page. It implements fontfit.Textbox.
type ComposedPage struct {
	c     *Composer
	index int
	size  PageSize
}

// Index returns the source page index.
func (p *ComposedPage) Index() int { return p.index }

// Size returns the page size in points.
func (p *ComposedPage) Size() PageSize { return p.size }

// Redact paints rect white so the original text underneath is hidden.
func (p *ComposedPage) Redact(rect geom.Rect) {
	if rect.IsEmpty() {
		return
	}
	f := p.c.pdf
	r, g, b := geom.White.RGB255()
	f.SetFillColor(r, g, b)
	f.Rect(rect.X0(), rect.Y0(), rect.Width(), rect.Height(), "F")
}

// InsertTextbox lays text out in rect at style.Size. It returns the unused
// height, or a negative value without drawing anything when the text does
// not fit.
func (p *ComposedPage) InsertTextbox(rect geom.Rect, text string, style fontfit.Style) float64 {
	f := p.c.pdf
	w := rect.Width()
	if w <= 0 || style.Size <= 0 {
		return -1
	}

	f.SetFont(p.c.family, "", style.Size)
	text = p.c.tr(text)
	lines, ok := wrapText(text, w, f.GetStringWidth)
	if !ok {
		return -1
	}

	lh := style.Size * LineHeightRatio
	remaining := rect.Height() - float64(len(lines))*lh
	if remaining < 0 {
		return remaining
	}

	r, g, b := style.Color.RGB255()
	f.SetTextColor(r, g, b)
	y := rect.Y0()
	for _, line := range lines {
		if style.Align == geom.AlignJustify && !line.last {
			drawJustified(f, rect.X0(), y, w, lh, line.text)
		} else {
			f.SetXY(rect.X0(), y)
			f.CellFormat(w, lh, line.text, "", 0, cellAlign(style.Align), false, 0, "")
		}
		y += lh
	}
	return remaining
}

func cellAlign(a geom.Align) string {
	switch a {
	case geom.AlignCenter:
		return "C"
	case geom.AlignRight:
		return "R"
	default:
		return "L"
	}
}

// drawJustified spreads the words (or, for unspaced CJK text, the runes) of
// line across width w.
func drawJustified(f *fpdf.Fpdf, x, y, w, lh float64, line string) {
	var units []string
	if strings.ContainsRune(line, ' ') {
		units = strings.Fields(line)
	} else {
		for _, r := range line {
			units = append(units, string(r))
		}
	}
	if len(units) < 2 {
		f.SetXY(x, y)
		f.CellFormat(w, lh, line, "", 0, "L", false, 0, "")
		return
	}

	total := 0.0
	widths := make([]float64, len(units))
	for i, u := range units {
		widths[i] = f.GetStringWidth(u)
		total += widths[i]
	}
	gap := (w - total) / float64(len(units)-1)
	for i, u := range units {
		f.SetXY(x, y)
		f.CellFormat(widths[i], lh, u, "", 0, "L", false, 0, "")
		x += widths[i] + gap
	}
}

// wrappedLine is one output line; last marks the end of a paragraph.
type wrappedLine struct {
	text string
	last bool
}

// wrapText breaks text into lines no wider than w. Explicit newlines start a
// new paragraph, words break at spaces and CJK runes break anywhere. It
// reports false when a single rune is wider than w.
func wrapText(text string, w float64, width func(string) float64) ([]wrappedLine, bool) {
	var out []wrappedLine
	for _, para := range strings.Split(text, "\n") {
		var line strings.Builder
		flush := func() {
			out = append(out, wrappedLine{text: line.String()})
			line.Reset()
		}

		for _, tok := range tokenize(para) {
			candidate := tok.text
			if line.Len() > 0 {
				if tok.spaceBefore {
					candidate = line.String() + " " + tok.text
				} else {
					candidate = line.String() + tok.text
				}
			}
			if width(candidate) <= w {
				line.Reset()
				line.WriteString(candidate)
				continue
			}
			if line.Len() > 0 {
				flush()
			}
			if width(tok.text) <= w {
				line.WriteString(tok.text)
				continue
			}
			// 单词本身超宽，按字符切开
			for _, r := range tok.text {
				s := string(r)
				if width(s) > w {
					return nil, false
				}
				if width(line.String()+s) > w {
					flush()
				}
				line.WriteString(s)
			}
		}
		flush()
		out[len(out)-1].last = true
	}
	return out, true
}

type token struct {
	text        string
	spaceBefore bool
}

// tokenize splits a paragraph into words and single CJK runes.
func tokenize(para string) []token {
	var toks []token
	var word strings.Builder
	space := false
	emit := func() {
		if word.Len() > 0 {
			toks = append(toks, token{text: word.String(), spaceBefore: space})
			word.Reset()
			space = false
		}
	}
	for _, r := range para {
		switch {
		case unicode.IsSpace(r):
			emit()
			if len(toks) > 0 {
				space = true
			}
		case isWideRune(r):
			emit()
			toks = append(toks, token{text: string(r), spaceBefore: space})
			space = false
		default:
			word.WriteRune(r)
		}
	}
	emit()
	return toks
}

func isWideRune(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r) ||
		(r >= 0x3000 && r <= 0x303F) || // CJK 标点
		(r >= 0xFF00 && r <= 0xFFEF)
}
