package pdf

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
)

// glyphCenterRise places the centre of a glyph above its baseline, as a
// share of the font size.
const glyphCenterRise = 0.3

// RemoveText deletes the glyphs whose centre falls inside one of the rects
// of their page from the content streams, and returns the rewritten PDF with
// the number of glyphs removed. rects are keyed by 0-based page index and use
// the top-left coordinates of TextBlock.Rect. Each removed glyph is replaced
// by a TJ offset of the same advance, so the remaining text keeps its place.
// Text drawn by Form XObjects is left alone.
func (d *Document) RemoveText(rects map[int][]geom.Rect) ([]byte, int, error) {
	if d.reader == nil {
		return nil, 0, NewPDFError(ErrPDFInvalid, "文档已关闭", nil)
	}
	if len(rects) == 0 {
		return d.data, 0, nil
	}

	conf := pdfcpuConfig()
	// gofpdi 只能读取传统 xref 表
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	ctx, err := api.ReadAndValidate(bytes.NewReader(d.data), conf)
	if err != nil {
		return nil, 0, NewPDFError(ErrGenerateFailed, "无法读取源 PDF 结构", err)
	}

	pages := make([]int, 0, len(rects))
	for i := range rects {
		pages = append(pages, i)
	}
	sort.Ints(pages)

	removed := 0
	for _, i := range pages {
		if err := d.checkPage(i); err != nil {
			return nil, 0, err
		}
		n, err := d.removePageText(ctx, i, rects[i])
		if err != nil {
			logger.Warn("glyphs kept under redaction",
				logger.Int("page", i), logger.Err(err))
			continue
		}
		removed += n
	}
	if removed == 0 {
		return d.data, 0, nil
	}

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, 0, NewPDFError(ErrGenerateFailed, "写出去除文字后的 PDF 失败", err)
	}
	logger.Debug("glyphs removed from content streams",
		logger.Int("pages", len(pages)), logger.Int("glyphs", removed))
	return buf.Bytes(), removed, nil
}

func (d *Document) removePageText(ctx *model.Context, index int, rects []geom.Rect) (n int, err error) {
	// ledongthuc/pdf 读取资源时可能 panic
	defer func() {
		if rec := recover(); rec != nil {
			n, err = 0, fmt.Errorf("%v", rec)
		}
	}()

	pageDict, _, _, err := ctx.PageDict(index+1, false)
	if err != nil {
		return 0, err
	}
	data, err := pdfcpuPageContent(ctx, pageDict)
	if err != nil {
		return 0, err
	}
	ops, err := lexContent(data)
	if err != nil {
		return 0, err
	}

	page := d.reader.Page(index + 1)
	mb := pageBox(page)
	hits := make(map[int][]glyph)
	shown := make(map[int][]glyph)
	for _, g := range pageGlyphs(page, ops) {
		if g.op < 0 {
			continue
		}
		shown[g.op] = append(shown[g.op], g)
		if glyphHit(g, mb, rects) {
			hits[g.op] = append(hits[g.op], g)
		}
	}
	if len(hits) == 0 {
		return 0, nil
	}

	var out bytes.Buffer
	last := 0
	for i, op := range ops {
		if len(hits[i]) == 0 {
			continue
		}
		repl, k := rewriteShowOp(op, shown[i], func(g glyph) bool { return glyphHit(g, mb, rects) })
		if k == 0 {
			continue
		}
		out.WriteString(string(data[last:op.Start]))
		out.WriteString(repl)
		last = op.End
		n += k
	}
	out.Write(data[last:])

	ir, err := ctx.StreamDictIndRef(out.Bytes())
	if err != nil {
		return 0, err
	}
	pageDict.Update("Contents", *ir)
	return n, nil
}

// pdfcpuPageContent decodes and joins the content streams of pageDict.
func pdfcpuPageContent(ctx *model.Context, pageDict types.Dict) ([]byte, error) {
	o, found := pageDict.Find("Contents")
	if !found {
		return nil, nil
	}
	o, err := ctx.Dereference(o)
	if err != nil {
		return nil, err
	}
	var parts []types.Object
	switch v := o.(type) {
	case types.StreamDict:
		parts = []types.Object{v}
	case types.Array:
		parts = v
	}

	var buf bytes.Buffer
	for _, p := range parts {
		sd, _, err := ctx.DereferenceStreamDict(p)
		if err != nil {
			return nil, err
		}
		if sd == nil {
			continue
		}
		if err := sd.Decode(); err != nil {
			return nil, err
		}
		buf.Write(sd.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// glyphHit reports whether the centre of g lies in one of rects.
func glyphHit(g glyph, mb geom.Rect, rects []geom.Rect) bool {
	if strings.TrimSpace(g.Text) == "" && g.W == 0 {
		return false
	}
	x := g.X + g.W/2 - mb.X0()
	y := mb.Y1() - (g.Y + glyphCenterRise*glyphSize(g))
	for _, r := range rects {
		if x >= r.X0() && x <= r.X1() && y >= r.Y0() && y <= r.Y1() {
			return true
		}
	}
	return false
}

// rewriteShowOp turns a text showing operator into a TJ that shows only the
// glyphs drop rejects. glyphs are the glyphs op showed, in order. It returns
// the replacement and the number of glyphs dropped.
func rewriteShowOp(op contentOp, glyphs []glyph, drop func(glyph) bool) (string, int) {
	var operands []types.Object
	var prefix string
	switch op.Name {
	case "Tj":
		operands = op.Args
	case "'":
		operands = op.Args
		prefix = "T* "
	case "\"":
		if len(op.Args) != 3 {
			return "", 0
		}
		operands = op.Args[2:]
		prefix = formatNumber(argNumber(op.Args, 0)) + " Tw " + formatNumber(argNumber(op.Args, 1)) + " Tc T* "
	case "TJ":
		if len(op.Args) == 1 {
			operands, _ = op.Args[0].(types.Array)
		}
	}
	if len(operands) == 0 {
		return "", 0
	}

	var (
		parts   []string
		run     []byte
		shift   float64
		dropped int
	)
	flushRun := func() {
		if len(run) > 0 {
			parts = append(parts, "<"+hex.EncodeToString(run)+">")
			run = nil
		}
	}
	flushShift := func() {
		if shift != 0 {
			parts = append(parts, formatNumber(math.Round(shift*1000)/1000))
			shift = 0
		}
	}

	for _, o := range operands {
		raw, ok := stringBytes(o)
		if !ok {
			if v, ok := argNumbers([]types.Object{o}); ok {
				flushRun()
				shift += v[0]
			}
			continue
		}
		for consumed := 0; consumed < len(raw) && len(glyphs) > 0; {
			g := glyphs[0]
			glyphs = glyphs[1:]
			consumed += len(g.raw)
			if drop(g) {
				flushRun()
				shift += g.adj
				dropped++
				continue
			}
			flushShift()
			run = append(run, g.raw...)
		}
	}
	flushRun()
	flushShift()
	if dropped == 0 {
		return "", 0
	}
	return prefix + "[" + strings.Join(parts, " ") + "] TJ", dropped
}
