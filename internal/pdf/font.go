package pdf

import (
	"strings"
	"sync"
	"unicode/utf8"

	"codeberg.org/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"golang.org/x/text/encoding/unicode"
)

// defaultGlyphWidth is used when a font gives no width for a code, in
// thousandths of the font size.
const defaultGlyphWidth = 500.0

// fontMetrics decodes and measures the codes of one font resource. Widths
// are in thousandths of the font size.
type fontMetrics struct {
	name     string
	twoByte  bool
	identity bool
	scale    float64
	first    int
	widths   []float64
	missing  float64
	core     []float64
	cidW     map[int]float64
	dw       float64
	toUni    *toUnicodeMap
	enc      pdf.TextEncoding
}

// unknownFont stands in for a Tf that names no font resource.
var unknownFont = &fontMetrics{scale: 1}

// loadFont reads the metrics of font dictionary v. Widths come from
// /Widths, then /W of the descendant CIDFont, then /MissingWidth, then the
// standard 14 metrics shipped with fpdf.
func loadFont(v pdf.Value) *fontMetrics {
	f := pdf.Font{V: v}
	m := &fontMetrics{name: f.BaseFont(), scale: 1}
	if tu := v.Key("ToUnicode"); tu.Kind() == pdf.Stream {
		m.toUni = readToUnicode(tu)
	}

	switch v.Key("Subtype").Name() {
	case "Type0":
		m.twoByte = true
		enc := v.Key("Encoding")
		m.identity = enc.Kind() == pdf.Name && strings.HasPrefix(enc.Name(), "Identity")
		desc := v.Key("DescendantFonts").Index(0)
		m.dw = 1000
		if dw := desc.Key("DW"); !dw.IsNull() {
			m.dw = dw.Float64()
		}
		m.cidW = cidWidths(desc.Key("W"))
		return m
	case "Type3":
		// Type3 的宽度在字形空间，需要乘 FontMatrix
		if fm := v.Key("FontMatrix"); fm.Len() == 6 {
			m.scale = fm.Index(0).Float64() * 1000
		}
	}

	m.first = f.FirstChar()
	m.widths = f.Widths()
	m.missing = v.Key("FontDescriptor").Key("MissingWidth").Float64()
	if len(m.widths) == 0 {
		m.core = coreWidths(m.name)
	}
	m.enc = f.Encoder()
	return m
}

// codes splits a shown string into character codes.
func (m *fontMetrics) codes(raw []byte) [][]byte {
	n := 1
	if m.twoByte {
		n = 2
	}
	out := make([][]byte, 0, len(raw)/n+1)
	for len(raw) > 0 {
		k := n
		if k > len(raw) {
			k = len(raw)
		}
		out = append(out, raw[:k])
		raw = raw[k:]
	}
	return out
}

func codeValue(code []byte) int {
	v := 0
	for _, b := range code {
		v = v<<8 | int(b)
	}
	return v
}

// width returns the advance of code in thousandths of the font size.
func (m *fontMetrics) width(code []byte) float64 {
	c := codeValue(code)
	if m.twoByte {
		if w, ok := m.cidW[c]; ok {
			return w
		}
		return m.dw
	}
	if i := c - m.first; i >= 0 && i < len(m.widths) {
		return m.widths[i] * m.scale
	}
	if m.missing > 0 {
		return m.missing * m.scale
	}
	if c < len(m.core) && m.core[c] > 0 {
		return m.core[c]
	}
	return defaultGlyphWidth
}

// decode maps code to text. Codes without a mapping decode to "".
func (m *fontMetrics) decode(code []byte) string {
	if m.toUni != nil {
		if s, ok := m.toUni.lookup(code); ok {
			return s
		}
	}
	if m.twoByte {
		if m.identity {
			if r := rune(codeValue(code)); r >= 0x20 && utf8.ValidRune(r) {
				return string(r)
			}
		}
		return ""
	}
	if m.enc != nil {
		return strings.TrimRight(m.enc.Decode(string(code)), "\x00")
	}
	return ""
}

// cidWidths parses a CIDFont /W array, which mixes "c [w1 w2 ...]" and
// "cfirst clast w" entries.
func cidWidths(w pdf.Value) map[int]float64 {
	out := make(map[int]float64)
	for i := 0; i < w.Len(); {
		first := int(w.Index(i).Int64())
		next := w.Index(i + 1)
		if next.Kind() == pdf.Array {
			for j := 0; j < next.Len(); j++ {
				out[first+j] = next.Index(j).Float64()
			}
			i += 2
			continue
		}
		last := int(next.Int64())
		width := w.Index(i + 2).Float64()
		for c := first; c <= last && c-first < 0x10000; c++ {
			out[c] = width
		}
		i += 3
	}
	return out
}

var coreCache sync.Map

// coreWidths returns the 256 code widths of the standard font that base
// names, or nil when base is not one of them.
func coreWidths(base string) []float64 {
	family, style, ok := coreFamily(base)
	if !ok {
		return nil
	}
	key := family + style
	if w, ok := coreCache.Load(key); ok {
		return w.([]float64)
	}

	f := fpdf.New("P", "pt", "A4", "")
	f.SetFont(family, style, 1000)
	if f.Err() {
		return nil
	}
	w := make([]float64, 256)
	for c := 1; c < 256; c++ {
		w[c] = float64(f.GetStringSymbolWidth(string([]byte{byte(c)})))
	}
	coreCache.Store(key, w)
	return w
}

func coreFamily(base string) (family, style string, ok bool) {
	name := strings.ToLower(base)
	if i := strings.IndexByte(name, '+'); i >= 0 {
		name = name[i+1:]
	}
	switch {
	case strings.HasPrefix(name, "helvetica"), strings.HasPrefix(name, "arial"):
		family = "helvetica"
	case strings.HasPrefix(name, "times"):
		family = "times"
	case strings.HasPrefix(name, "courier"):
		family = "courier"
	default:
		return "", "", false
	}
	if strings.Contains(name, "bold") {
		style += "B"
	}
	if strings.Contains(name, "italic") || strings.Contains(name, "oblique") {
		style += "I"
	}
	return family, style, true
}

// toUnicodeMap is a parsed ToUnicode CMap.
type toUnicodeMap struct {
	chars  map[string]string
	ranges []unicodeRange
}

type unicodeRange struct {
	lo, hi string
	dst    []byte   // first destination, UTF-16BE
	list   []string // per-code destinations when given as an array
}

// readToUnicode parses the bfchar and bfrange sections of a ToUnicode
// stream. Broken maps yield nil and the font encoding is used instead.
func readToUnicode(v pdf.Value) *toUnicodeMap {
	data, err := readStream(v)
	if err != nil {
		return nil
	}
	return parseToUnicode(data)
}

func parseToUnicode(data []byte) *toUnicodeMap {
	ops, err := lexContent(data)
	if err != nil {
		return nil
	}

	m := &toUnicodeMap{chars: make(map[string]string)}
	for _, op := range ops {
		switch op.Name {
		case "endbfchar":
			for i := 0; i+1 < len(op.Args); i += 2 {
				src, ok1 := stringBytes(op.Args[i])
				dst, ok2 := stringBytes(op.Args[i+1])
				if ok1 && ok2 {
					m.chars[string(src)] = utf16Text(dst)
				}
			}
		case "endbfrange":
			for i := 0; i+2 < len(op.Args); i += 3 {
				lo, ok1 := stringBytes(op.Args[i])
				hi, ok2 := stringBytes(op.Args[i+1])
				if !ok1 || !ok2 || len(lo) != len(hi) {
					continue
				}
				r := unicodeRange{lo: string(lo), hi: string(hi)}
				if dst, ok := stringBytes(op.Args[i+2]); ok {
					r.dst = dst
				} else if arr, ok := op.Args[i+2].(types.Array); ok {
					for _, o := range arr {
						b, _ := stringBytes(o)
						r.list = append(r.list, utf16Text(b))
					}
				}
				m.ranges = append(m.ranges, r)
			}
		}
	}
	if len(m.chars) == 0 && len(m.ranges) == 0 {
		return nil
	}
	return m
}

func (m *toUnicodeMap) lookup(code []byte) (string, bool) {
	if s, ok := m.chars[string(code)]; ok {
		return s, true
	}
	c := string(code)
	for _, r := range m.ranges {
		if len(r.lo) != len(c) || c < r.lo || c > r.hi {
			continue
		}
		off := codeValue(code) - codeValue([]byte(r.lo))
		if r.list != nil {
			if off < len(r.list) {
				return r.list[off], true
			}
			return "", false
		}
		if len(r.dst) < 2 {
			return "", false
		}
		// 目标按 UTF-16 码元整体递增，而不只是最后一个字节
		dst := append([]byte(nil), r.dst...)
		n := len(dst)
		u := int(dst[n-2])<<8 | int(dst[n-1]) + off
		dst[n-2], dst[n-1] = byte(u>>8), byte(u)
		return utf16Text(dst), true
	}
	return "", false
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)

func utf16Text(b []byte) string {
	if len(b) == 1 {
		return string(rune(b[0]))
	}
	s, err := utf16BE.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}
