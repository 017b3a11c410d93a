package pdf

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/matrix"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
)

// maxFormDepth bounds Form XObject nesting.
const maxFormDepth = 8

// glyph is one shown character code in PDF user space, origin bottom-left.
type glyph struct {
	Text  string
	X, Y  float64 // baseline start
	W     float64 // advance along the baseline
	Size  float64 // font size after the text and current matrices
	Font  string
	Color geom.Color

	op  int     // index of the showing operator in the page stream, -1 inside forms
	raw []byte  // character code
	adj float64 // TJ number that moves the pen as far as this glyph does
}

type textState struct {
	font      *fontMetrics
	size      float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
}

type graphicsState struct {
	ctm  matrix.Matrix
	fill geom.Color
	text textState
}

func newGraphicsState() graphicsState {
	return graphicsState{
		ctm:  matrix.IdentMatrix,
		fill: geom.Black,
		text: textState{font: unknownFont, hscale: 1},
	}
}

func newMatrix(a, b, c, d, e, f float64) matrix.Matrix {
	return matrix.Matrix{{a, b, 0}, {c, d, 0}, {e, f, 1}}
}

func translate(tx, ty float64) matrix.Matrix {
	return newMatrix(1, 0, 0, 1, tx, ty)
}

// textInterp walks content streams and reports every shown glyph.
type textInterp struct {
	emit  func(glyph)
	depth int
}

// run interprets ops with the resource dictionary res. Glyphs shown by the
// top-level stream carry their operator index.
func (in *textInterp) run(ops []contentOp, res pdf.Value, gs graphicsState) {
	fonts := make(map[string]*fontMetrics)
	var stack []graphicsState
	tm, tlm := matrix.IdentMatrix, matrix.IdentMatrix

	nextLine := func() {
		tlm = translate(0, -gs.text.leading).Multiply(tlm)
		tm = tlm
	}

	for i, op := range ops {
		idx := i
		if in.depth > 0 {
			idx = -1
		}
		args := op.Args

		switch op.Name {
		case "q":
			stack = append(stack, gs)
		case "Q":
			if n := len(stack); n > 0 {
				gs = stack[n-1]
				stack = stack[:n-1]
			}
		case "cm":
			if v, ok := argNumbers(args); ok && len(v) == 6 {
				gs.ctm = newMatrix(v[0], v[1], v[2], v[3], v[4], v[5]).Multiply(gs.ctm)
			}

		case "BT":
			tm, tlm = matrix.IdentMatrix, matrix.IdentMatrix
		case "Tc":
			gs.text.charSpace = argNumber(args, 0)
		case "Tw":
			gs.text.wordSpace = argNumber(args, 0)
		case "Tz":
			gs.text.hscale = argNumber(args, 0) / 100
		case "TL":
			gs.text.leading = argNumber(args, 0)
		case "Ts":
			gs.text.rise = argNumber(args, 0)
		case "Tf":
			gs.text.font = in.font(fonts, res, argName(args, 0))
			gs.text.size = argNumber(args, 1)
		case "Td":
			tlm = translate(argNumber(args, 0), argNumber(args, 1)).Multiply(tlm)
			tm = tlm
		case "TD":
			gs.text.leading = -argNumber(args, 1)
			tlm = translate(argNumber(args, 0), argNumber(args, 1)).Multiply(tlm)
			tm = tlm
		case "Tm":
			if v, ok := argNumbers(args); ok && len(v) == 6 {
				tlm = newMatrix(v[0], v[1], v[2], v[3], v[4], v[5])
				tm = tlm
			}
		case "T*":
			nextLine()

		case "Tj":
			if len(args) == 1 {
				in.show(&gs, &tm, args[0], idx)
			}
		case "'":
			nextLine()
			if len(args) == 1 {
				in.show(&gs, &tm, args[0], idx)
			}
		case "\"":
			if len(args) == 3 {
				gs.text.wordSpace = argNumber(args, 0)
				gs.text.charSpace = argNumber(args, 1)
				nextLine()
				in.show(&gs, &tm, args[2], idx)
			}
		case "TJ":
			if len(args) != 1 {
				continue
			}
			arr, _ := args[0].(types.Array)
			for _, e := range arr {
				switch v := e.(type) {
				case types.Float, types.Integer:
					n := argNumber([]types.Object{v}, 0)
					tm = translate(-n/1000*gs.text.size*gs.text.hscale, 0).Multiply(tm)
				default:
					in.show(&gs, &tm, e, idx)
				}
			}

		case "g":
			g := argNumber(args, 0)
			gs.fill = geom.Color{g, g, g}
		case "rg":
			gs.fill = geom.Color{argNumber(args, 0), argNumber(args, 1), argNumber(args, 2)}
		case "k":
			gs.fill = cmykColor(argNumber(args, 0), argNumber(args, 1), argNumber(args, 2), argNumber(args, 3))
		case "sc", "scn":
			if v, ok := argNumbers(args); ok {
				switch len(v) {
				case 1:
					gs.fill = geom.Color{v[0], v[0], v[0]}
				case 3:
					gs.fill = geom.Color{v[0], v[1], v[2]}
				case 4:
					gs.fill = cmykColor(v[0], v[1], v[2], v[3])
				}
			}
		case "cs":
			gs.fill = geom.Black

		case "Do":
			in.form(res, argName(args, 0), gs)
		}
	}
}

func (in *textInterp) font(cache map[string]*fontMetrics, res pdf.Value, name string) *fontMetrics {
	if f, ok := cache[name]; ok {
		return f
	}
	f := unknownFont
	if v := res.Key("Font").Key(name); v.Kind() == pdf.Dict {
		f = loadFont(v)
	}
	cache[name] = f
	return f
}

// show reports the glyphs of one string operand and advances tm.
func (in *textInterp) show(gs *graphicsState, tm *matrix.Matrix, s types.Object, op int) {
	raw, ok := stringBytes(s)
	if !ok {
		return
	}
	ts := &gs.text
	for _, code := range ts.font.codes(raw) {
		tx := ts.font.width(code)/1000*ts.size + ts.charSpace
		if len(code) == 1 && code[0] == ' ' {
			tx += ts.wordSpace
		}

		full := tm.Multiply(gs.ctm)
		start := full.Transform(types.Point{X: 0, Y: ts.rise})
		end := full.Transform(types.Point{X: tx * ts.hscale, Y: ts.rise})
		g := glyph{
			Text:  ts.font.decode(code),
			X:     math.Min(start.X, end.X),
			Y:     start.Y,
			W:     math.Abs(end.X - start.X),
			Size:  math.Abs(ts.size) * math.Hypot(full[1][0], full[1][1]),
			Font:  ts.font.name,
			Color: gs.fill,
			op:    op,
			raw:   code,
		}
		if ts.size != 0 {
			g.adj = -tx * 1000 / ts.size
		}
		in.emit(g)

		*tm = translate(tx*ts.hscale, 0).Multiply(*tm)
	}
}

// form runs the Form XObject called name.
func (in *textInterp) form(res pdf.Value, name string, gs graphicsState) {
	xo := res.Key("XObject").Key(name)
	if xo.Kind() != pdf.Stream || xo.Key("Subtype").Name() != "Form" || in.depth >= maxFormDepth {
		return
	}
	data, err := readStream(xo)
	if err != nil {
		logger.Debug("form xobject unreadable", logger.String("name", name), logger.Err(err))
		return
	}
	ops, err := lexContent(data)
	if err != nil {
		logger.Debug("form xobject unparsable", logger.String("name", name), logger.Err(err))
		return
	}

	if m := xo.Key("Matrix"); m.Len() == 6 {
		gs.ctm = newMatrix(m.Index(0).Float64(), m.Index(1).Float64(), m.Index(2).Float64(),
			m.Index(3).Float64(), m.Index(4).Float64(), m.Index(5).Float64()).Multiply(gs.ctm)
	}
	formRes := xo.Key("Resources")
	if formRes.IsNull() {
		formRes = res
	}

	in.depth++
	in.run(ops, formRes, gs)
	in.depth--
}

func cmykColor(c, m, y, k float64) geom.Color {
	return geom.Color{(1 - c) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)}
}

// readStream decodes stream v. The reader panics on filters it does not
// support; that is reported as an error.
func readStream(v pdf.Value) (data []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			data, err = nil, fmt.Errorf("decode stream: %v", rec)
		}
	}()
	rc := v.Reader()
	defer rc.Close()
	return io.ReadAll(rc)
}

// pageContent concatenates the content streams of page.
func pageContent(page pdf.Page) ([]byte, error) {
	contents := page.V.Key("Contents")
	var buf bytes.Buffer
	switch contents.Kind() {
	case pdf.Stream:
		b, err := readStream(contents)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
	case pdf.Array:
		for i := 0; i < contents.Len(); i++ {
			b, err := readStream(contents.Index(i))
			if err != nil {
				return nil, err
			}
			buf.Write(b)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// pageGlyphs interprets ops, the lexed content of page.
func pageGlyphs(page pdf.Page, ops []contentOp) []glyph {
	var out []glyph
	in := &textInterp{emit: func(g glyph) { out = append(out, g) }}
	in.run(ops, page.Resources(), newGraphicsState())
	return out
}

// pageBox reads the page MediaBox, inherited through the page tree, in
// PDF user space. Letter size is assumed when absent.
func pageBox(page pdf.Page) geom.Rect {
	var box pdf.Value
	for v := page.V; !v.IsNull(); v = v.Key("Parent") {
		if b := v.Key("MediaBox"); !b.IsNull() {
			box = b
			break
		}
	}
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return geom.Rect{0, 0, 612, 792}
	}
	r := geom.Rect{box.Index(0).Float64(), box.Index(1).Float64(), box.Index(2).Float64(), box.Index(3).Float64()}
	if r[0] > r[2] {
		r[0], r[2] = r[2], r[0]
	}
	if r[1] > r[3] {
		r[1], r[3] = r[3], r[1]
	}
	return r
}
