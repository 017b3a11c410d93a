// Package reconstruct rebuilds a page from its saved translations: every
// original region is blanked first, then every translation is fitted into
// its target box. Export and preview share this code.
package reconstruct

import (
	"pdf-visual-translator/internal/fontfit"
	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/store"
)

// Canvas is a page that can be blanked and written on.
type Canvas interface {
	Redact(rect geom.Rect)
	fontfit.Textbox
}

// Options are the document-wide drawing settings.
type Options struct {
	FontName    string
	FontFile    string
	MinFontSize float64
}

// Placement is one translation to insert.
type Placement struct {
	Record int           `json:"record"`
	Rect   geom.Rect     `json:"rect"`
	Text   string        `json:"text"`
	Style  fontfit.Style `json:"-"`
	// Result is filled in by Apply.
	Result fontfit.Result `json:"result"`
}

// Plan is the ordered list of operations for one page.
type Plan struct {
	Redactions []geom.Rect `json:"redactions"`
	Placements []Placement `json:"placements"`
	MinSize    float64     `json:"min_size"`
}

// NewPlan builds the plan for records in stored order. Every record's
// original rect is redacted; records with an empty or missing translation
// are redacted but not written.
func NewPlan(records []store.TranslationRecord, opts Options) Plan {
	p := Plan{
		Redactions: make([]geom.Rect, 0, len(records)),
		Placements: make([]Placement, 0, len(records)),
		MinSize:    opts.MinFontSize,
	}
	for _, rec := range records {
		p.Redactions = append(p.Redactions, rec.Rect)
	}
	for i, rec := range records {
		text := rec.TranslationText()
		if text == "" {
			continue
		}
		p.Placements = append(p.Placements, Placement{
			Record: i,
			Rect:   rec.TargetRect(),
			Text:   text,
			Style: fontfit.Style{
				FontName: opts.FontName,
				FontFile: opts.FontFile,
				Size:     rec.FontSize,
				Color:    rec.Color,
				Align:    rec.Align,
			},
		})
	}
	return p
}

// Apply runs the plan on c: all redactions, then all insertions. It returns
// the placements with their fit results.
func (p Plan) Apply(c Canvas) []Placement {
	for _, r := range p.Redactions {
		c.Redact(r)
	}
	out := make([]Placement, len(p.Placements))
	for i, pl := range p.Placements {
		pl.Result = fontfit.Insert(c, pl.Rect, pl.Text, pl.Style, p.MinSize)
		out[i] = pl
	}
	return out
}

// Reconstruct applies the plan for records to c.
func Reconstruct(c Canvas, records []store.TranslationRecord, opts Options) []Placement {
	return NewPlan(records, opts).Apply(c)
}
