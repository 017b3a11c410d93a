// Package fontfit places a translation inside a rectangle, shrinking the
// font until it fits and growing the rectangle when even the minimum size
// overflows. Insertion never fails.
package fontfit

import (
	"pdf-visual-translator/internal/geom"
)

const (
	// DefaultInitialSize is used when a record carries no font size.
	DefaultInitialSize = 60.0
	// DefaultMinSize is the smallest font size tried before growing the box.
	DefaultMinSize = 5.0
	// Step is the font size decrement between attempts.
	Step = 0.5
)

// Style describes how the text is drawn.
type Style struct {
	FontName string
	FontFile string
	Size     float64
	Color    geom.Color
	Align    geom.Align
}

// Textbox lays out text in a rectangle. It returns the unused height; a
// negative value means the text did not fit and nothing was drawn.
type Textbox interface {
	InsertTextbox(rect geom.Rect, text string, style Style) float64
}

// Result reports what Insert ended up doing.
type Result struct {
	FontSize float64
	Rect     geom.Rect
	Attempts int
	Grown    bool
}

// Insert draws text in rect starting at style.Size and stepping down by Step
// while the size is at least minSize. When every size overflows, minSize is
// kept and the rect is grown until the text fits: each attempt widens it to
// the original width plus an increasing delta and pushes its bottom edge down
// by the same delta.
func Insert(box Textbox, rect geom.Rect, text string, style Style, minSize float64) Result {
	if minSize <= 0 {
		minSize = DefaultMinSize
	}
	if style.Size <= 0 {
		style.Size = DefaultInitialSize
	}

	res := Result{Rect: rect}
	for size := style.Size; size >= minSize; size -= Step {
		res.Attempts++
		s := style
		s.Size = size
		if box.InsertTextbox(rect, text, s) >= 0 {
			res.FontSize = size
			return res
		}
	}

	s := style
	s.Size = minSize
	delta := rect.Width()
	if delta < 0 {
		delta = 0
	}
	for {
		delta++
		rect = geom.Rect{rect.X0(), rect.Y0(), rect.X0() + delta, rect.Y1() + delta}
		res.Attempts++
		if box.InsertTextbox(rect, text, s) >= 0 {
			res.FontSize = minSize
			res.Rect = rect
			res.Grown = true
			return res
		}
	}
}
