package pdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/unicode/norm"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
)

// 至少包含一个字母、数字或 CJK 统一汉字的块才参与翻译
var validTextRe = regexp.MustCompile(`[a-zA-Z0-9\x{4e00}-\x{9fff}]`)

const (
	lineTolerance = 0.3 // 同一行基线允许的偏差，按字号比例
	spaceGap      = 0.25
	segmentGap    = 1.5
	paragraphGap  = 1.8
	sizeTolerance = 1.0
	ascentRatio   = 0.8
	descentRatio  = 0.2
	defaultFontPt = 12.0
	rectPrecision = 2
	minBlockWidth = 1.0
)

// PDFParser 负责解析 PDF 并提取文本块
type PDFParser struct {
	workDir string
}

// NewPDFParser creates a new PDFParser with the specified working directory
func NewPDFParser(workDir string) *PDFParser {
	return &PDFParser{
		workDir: workDir,
	}
}

// GetPDFInfo 获取 PDF 基本信息（页数、文件大小）
func (p *PDFParser) GetPDFInfo(pdfPath string) (*PDFInfo, error) {
	fileInfo, err := statPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	return &PDFInfo{
		FilePath:  pdfPath,
		FileName:  filepath.Base(pdfPath),
		PageCount: r.NumPage(),
		FileSize:  fileInfo.Size(),
	}, nil
}

// IsTextPDF 检查 PDF 前几页是否包含可提取的文本，扫描件返回 false
func (p *PDFParser) IsTextPDF(pdfPath string) (bool, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return false, err
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return false, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	maxPagesToCheck := 3
	if r.NumPage() < maxPagesToCheck {
		maxPagesToCheck = r.NumPage()
	}

	total := 0
	for pageNum := 1; pageNum <= maxPagesToCheck; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, c := range content {
			if !unicode.IsSpace(c) {
				total++
			}
		}
		if total > 50 {
			return true, nil
		}
	}
	return total > 0, nil
}

// ExtractPage 打开文件并抽取第 index 页（从 0 开始）的文本块
func (p *PDFParser) ExtractPage(pdfPath string, index int) (*PageText, error) {
	if _, err := statPDF(pdfPath); err != nil {
		return nil, err
	}

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, NewPDFError(ErrPDFInvalid, "无法打开 PDF 文件", err)
	}
	defer f.Close()

	return extractPage(r, index)
}

// extractPage groups the glyphs of one page into blocks in reading order.
func extractPage(r *pdf.Reader, index int) (pt *PageText, err error) {
	if index < 0 || index >= r.NumPage() {
		return nil, NewPDFErrorWithPage(ErrPageRange, "页码超出范围", index,
			fmt.Errorf("document has %d pages", r.NumPage()))
	}

	page := r.Page(index + 1)
	if page.V.IsNull() {
		return nil, NewPDFErrorWithPage(ErrExtractFailed, "页面对象为空", index, nil)
	}

	// ledongthuc/pdf 对损坏的内容流会直接 panic
	defer func() {
		if rec := recover(); rec != nil {
			pt = nil
			err = NewPDFErrorWithPage(ErrExtractFailed, "解析页面内容失败", index, fmt.Errorf("%v", rec))
		}
	}()

	mb := pageBox(page)
	pt = &PageText{
		Index:  index,
		Width:  mb.Width(),
		Height: mb.Height(),
		Blocks: []TextBlock{},
	}

	data, err := pageContent(page)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrExtractFailed, "读取页面内容流失败", index, err)
	}
	ops, err := lexContent(data)
	if err != nil {
		return nil, NewPDFErrorWithPage(ErrExtractFailed, "解析页面内容失败", index, err)
	}
	glyphs := pageGlyphs(page, ops)
	for _, b := range groupBlocks(glyphs, mb) {
		if !isTranslatable(b.Text) {
			continue
		}
		pt.Blocks = append(pt.Blocks, b)
	}

	logger.Debug("page extracted",
		logger.Int("page", index),
		logger.Int("ops", len(ops)),
		logger.Int("glyphs", len(glyphs)),
		logger.Int("blocks", len(pt.Blocks)))
	return pt, nil
}

func statPDF(pdfPath string) (os.FileInfo, error) {
	fileInfo, err := os.Stat(pdfPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewPDFError(ErrPDFNotFound, "文件不存在，请检查路径", err)
		}
		return nil, NewPDFError(ErrPDFInvalid, "无法访问文件", err)
	}
	if fileInfo.IsDir() {
		return nil, NewPDFError(ErrPDFInvalid, "路径指向目录而非文件", nil)
	}
	return fileInfo, nil
}

// segment is a run of glyphs on one baseline without a wide gap.
type segment struct {
	x0, x1 float64
	y      float64
	size   float64
	font   string
	text   strings.Builder
	inks   inkCount
}

// inkCount tallies fill colours by shown characters, keeping first-seen order
// so ties resolve to the earliest colour.
type inkCount struct {
	order []geom.Color
	n     map[geom.Color]int
}

func (c *inkCount) add(col geom.Color, k int) {
	if c.n == nil {
		c.n = make(map[geom.Color]int)
	}
	if _, ok := c.n[col]; !ok {
		c.order = append(c.order, col)
	}
	c.n[col] += k
}

func (c *inkCount) dominant() geom.Color {
	best, most := geom.Black, 0
	for _, col := range c.order {
		if c.n[col] > most {
			best, most = col, c.n[col]
		}
	}
	return best
}

// groupBlocks turns positioned glyphs into text blocks. Glyphs are swept
// into lines by baseline, lines are cut into segments at wide gaps, and
// vertically adjacent segments of similar size that overlap horizontally
// form a block. A block takes the colour most of its characters are filled
// with.
func groupBlocks(all []glyph, mb geom.Rect) []TextBlock {
	glyphs := make([]glyph, 0, len(all))
	for _, g := range all {
		if g.Text == "" {
			continue
		}
		glyphs = append(glyphs, g)
	}
	if len(glyphs) == 0 {
		return nil
	}

	sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].Y > glyphs[j].Y })

	var lines [][]glyph
	var cur []glyph
	lineY := glyphs[0].Y
	for _, g := range glyphs {
		if len(cur) > 0 && math.Abs(g.Y-lineY) > lineTolerance*glyphSize(g) {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			lineY = g.Y
		}
		cur = append(cur, g)
	}
	lines = append(lines, cur)

	var segments []*segment
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		segments = append(segments, splitLine(line)...)
	}

	type block struct {
		segs []*segment
		x0   float64
		x1   float64
	}
	var blocks []*block
	for _, s := range segments {
		var target *block
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			last := b.segs[len(b.segs)-1]
			gap := last.y - s.y
			if gap <= 0 || gap > paragraphGap*last.size {
				continue
			}
			if math.Abs(last.size-s.size) > sizeTolerance {
				continue
			}
			if s.x1 < b.x0 || s.x0 > b.x1 {
				continue
			}
			target = b
			break
		}
		if target == nil {
			blocks = append(blocks, &block{segs: []*segment{s}, x0: s.x0, x1: s.x1})
			continue
		}
		target.segs = append(target.segs, s)
		target.x0 = math.Min(target.x0, s.x0)
		target.x1 = math.Max(target.x1, s.x1)
	}

	out := make([]TextBlock, 0, len(blocks))
	for _, b := range blocks {
		first := b.segs[0]
		top, bottom := math.Inf(-1), math.Inf(1)
		lineTexts := make([]string, 0, len(b.segs))
		var inks inkCount
		for _, s := range b.segs {
			top = math.Max(top, s.y+ascentRatio*s.size)
			bottom = math.Min(bottom, s.y-descentRatio*s.size)
			lineTexts = append(lineTexts, strings.TrimSpace(s.text.String()))
			for _, col := range s.inks.order {
				inks.add(col, s.inks.n[col])
			}
		}

		text := norm.NFC.String(strings.TrimSpace(strings.Join(lineTexts, "\n")))
		size := first.size
		if size <= 0 {
			size = defaultFontPt
		}
		x1 := b.x1
		if x1-b.x0 < minBlockWidth {
			// 字体没有宽度信息时按半个字号估算每个字符
			x1 = b.x0 + math.Max(minBlockWidth, defaultGlyphWidth/1000*size*float64(utf8.RuneCountInString(text)))
		}
		rect := geom.Rect{
			b.x0 - mb.X0(),
			mb.Y1() - top,
			x1 - mb.X0(),
			mb.Y1() - bottom,
		}.Round(rectPrecision)

		out = append(out, TextBlock{
			Text:     text,
			Rect:     rect,
			FontSize: math.Round(size*100) / 100,
			FontName: first.font,
			Color:    inks.dominant(),
			Lines:    len(b.segs),
		})
	}
	return out
}

// splitLine joins the glyphs of a line, inserting a space for small gaps and
// starting a new segment for large ones.
func splitLine(line []glyph) []*segment {
	var segs []*segment
	var s *segment
	for _, g := range line {
		size := glyphSize(g)
		if s != nil {
			gap := g.X - s.x1
			switch {
			case gap > segmentGap*size:
				s = nil
			case gap > spaceGap*size && !strings.HasSuffix(s.text.String(), " ") && !strings.HasPrefix(g.Text, " "):
				s.text.WriteByte(' ')
			}
		}
		if s == nil {
			s = &segment{x0: g.X, x1: g.X, y: g.Y, size: size, font: g.Font}
			segs = append(segs, s)
		}
		s.text.WriteString(g.Text)
		s.x1 = math.Max(s.x1, g.X+g.W)
		if t := strings.TrimSpace(g.Text); t != "" {
			s.inks.add(g.Color, utf8.RuneCountInString(t))
		}
	}
	return segs
}

func glyphSize(g glyph) float64 {
	if g.Size > 0 {
		return g.Size
	}
	return defaultFontPt
}

// isTranslatable filters out blocks with nothing to translate and operator
// garbage leaked from broken content streams.
func isTranslatable(text string) bool {
	if !validTextRe.MatchString(text) {
		return false
	}
	if isPostScriptCode(text) {
		return false
	}
	return !hasExcessiveNonPrintable(text)
}

// isPostScriptCode checks if text looks like PostScript/PDF operator code
// These are internal PDF commands that should not be extracted as text
func isPostScriptCode(text string) bool {
	if len(text) == 0 {
		return false
	}

	textLower := strings.ToLower(text)

	// "/name def" 是最可靠的特征
	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(textLower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") {
		return true
	}
	if strings.Contains(textLower, "/burl") || strings.Contains(textLower, "burl@") {
		return true
	}

	psOperators := []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
		"moveto", "lineto", "curveto",
	}
	for _, op := range psOperators {
		if strings.Contains(textLower, op) {
			return true
		}
	}

	// URL 里也有斜杠，排除后再数 PostScript 名字
	if strings.Contains(text, "://") || strings.Contains(textLower, "http") {
		return false
	}
	slashNameCount := 0
	for _, word := range strings.Fields(text) {
		if len(word) < 2 || word[0] != '/' {
			continue
		}
		isName := true
		for _, c := range word[1:] {
			if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '@') {
				isName = false
				break
			}
		}
		if isName {
			slashNameCount++
		}
	}
	return slashNameCount >= 3
}

// hasExcessiveNonPrintable checks if text has too many non-printable characters
func hasExcessiveNonPrintable(text string) bool {
	if len(text) == 0 {
		return false
	}

	nonPrintable, total := 0, 0
	for _, r := range text {
		total++
		if r < 32 && r != '\n' && r != '\r' && r != '\t' {
			nonPrintable++
		}
		if r >= 0x7F && r <= 0x9F {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(total) > 0.1
}
