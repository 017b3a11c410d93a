// Package geom holds the page geometry and styling values shared by the
// extractor, the translation store and the reconstructor.
package geom

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Rect is [x0, y0, x1, y1] in PDF points, origin at the top-left of the page.
type Rect [4]float64

// NewRect builds a Rect from its corners.
func NewRect(x0, y0, x1, y1 float64) Rect {
	return Rect{x0, y0, x1, y1}
}

func (r Rect) X0() float64 { return r[0] }
func (r Rect) Y0() float64 { return r[1] }
func (r Rect) X1() float64 { return r[2] }
func (r Rect) Y1() float64 { return r[3] }

// Width of the rectangle.
func (r Rect) Width() float64 { return r[2] - r[0] }

// Height of the rectangle.
func (r Rect) Height() float64 { return r[3] - r[1] }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Width() <= 0 || r.Height() <= 0 }

// Round returns r with every coordinate rounded to the given number of decimals.
func (r Rect) Round(decimals int) Rect {
	p := math.Pow(10, float64(decimals))
	var out Rect
	for i, v := range r {
		out[i] = math.Round(v*p) / p
	}
	return out
}

// Color is an RGB triple with components in [0, 1].
type Color [3]float64

// Black is the default text color.
var Black = Color{0, 0, 0}

// White is the redaction fill.
var White = Color{1, 1, 1}

// ParseHexColor parses "#rrggbb" (or "#rgb").
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimSpace(s)
	if len(s) == 4 && s[0] == '#' {
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{c.R, c.G, c.B}, nil
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return colorful.Color{R: c[0], G: c[1], B: c[2]}.Clamped().Hex()
}

// RGB255 returns the color as 8-bit components.
func (c Color) RGB255() (r, g, b int) {
	r8, g8, b8 := colorful.Color{R: c[0], G: c[1], B: c[2]}.Clamped().RGB255()
	return int(r8), int(g8), int(b8)
}

// UnmarshalJSON accepts either a [r,g,b] array or a hex string.
func (c *Color) UnmarshalJSON(data []byte) error {
	var arr [3]float64
	if err := json.Unmarshal(data, &arr); err == nil {
		*c = arr
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("color must be [r,g,b] or \"#rrggbb\": %w", err)
	}
	parsed, err := ParseHexColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Align is the horizontal text alignment inside a box.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
	AlignJustify
)

var alignNames = [...]string{"left", "center", "right", "justify"}

func (a Align) String() string {
	if a < AlignLeft || a > AlignJustify {
		return "left"
	}
	return alignNames[a]
}

// Valid reports whether a is one of the four alignments.
func (a Align) Valid() bool { return a >= AlignLeft && a <= AlignJustify }

// ParseAlign maps a name to an Align, defaulting to left.
func ParseAlign(s string) Align {
	for i, n := range alignNames {
		if strings.EqualFold(strings.TrimSpace(s), n) {
			return Align(i)
		}
	}
	return AlignLeft
}

// UnmarshalJSON accepts the integer code or the name.
func (a *Align) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*a = Align(n)
		if !a.Valid() {
			*a = AlignLeft
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("align must be an integer or a name: %w", err)
	}
	*a = ParseAlign(s)
	return nil
}
