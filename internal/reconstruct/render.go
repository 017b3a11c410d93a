package reconstruct

import (
	"path/filepath"
	"time"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/store"
)

// DefaultPreviewScale renders previews at 144 dpi.
const DefaultPreviewScale = 2.0

// Renderer drives the PDF composer for export and preview.
type Renderer struct {
	opts   Options
	raster *pdf.Rasterizer
}

// NewRenderer creates a renderer drawing with opts.
func NewRenderer(opts Options) *Renderer {
	return &Renderer{opts: opts, raster: pdf.NewRasterizer()}
}

// ExportReport summarises an export.
type ExportReport struct {
	Output     string `json:"output"`
	Pages      int    `json:"pages"`
	Redactions int    `json:"redactions"`
	// GlyphsRemoved counts original glyphs deleted from the content streams.
	GlyphsRemoved int           `json:"glyphs_removed"`
	Insertions    int           `json:"insertions"`
	Grown         int           `json:"grown"`
	Duration      time.Duration `json:"duration"`
}

func (r *Renderer) composer(doc *pdf.Document) (*pdf.Composer, error) {
	return pdf.NewComposer(doc, pdf.FontSpec{Name: r.opts.FontName, File: r.opts.FontFile})
}

// Export rebuilds every page of doc from translations and writes the result
// to outPath, which is then optimised and validated.
func (r *Renderer) Export(doc *pdf.Document, translations *store.DocumentTranslations, outPath string) (*ExportReport, error) {
	start := time.Now()
	c, err := r.composer(doc)
	if err != nil {
		return nil, err
	}

	plans := make([]Plan, doc.PageCount())
	for i := range plans {
		var records []store.TranslationRecord
		if i < len(translations.Pages) {
			records = translations.Pages[i].Translations
		}
		plans[i] = NewPlan(records, r.opts)
	}

	report := &ExportReport{Output: outPath}
	report.GlyphsRemoved = c.RemoveText(redactionsByPage(plans, 0))
	for i, plan := range plans {
		page, err := c.AddPage(i)
		if err != nil {
			return nil, err
		}
		placed := plan.Apply(page)

		report.Pages++
		report.Redactions += len(plan.Redactions)
		report.Insertions += len(placed)
		for _, pl := range placed {
			if pl.Result.Grown {
				report.Grown++
				logger.Warn("translation did not fit at minimum size, box enlarged",
					logger.Int("page", i), logger.Int("record", pl.Record),
					logger.Any("rect", pl.Result.Rect))
			}
		}
	}

	if err := c.WriteFile(outPath); err != nil {
		return nil, err
	}
	if err := pdf.OptimizeFile(outPath, outPath); err != nil {
		return nil, err
	}
	if err := pdf.ValidateFile(outPath); err != nil {
		return nil, err
	}

	report.Duration = time.Since(start)
	logger.Info("translated PDF exported",
		logger.String("output", filepath.Base(outPath)),
		logger.Int("pages", report.Pages),
		logger.Int("insertions", report.Insertions),
		logger.Int("grown", report.Grown))
	return report, nil
}

// PreviewPDF rebuilds a single page in memory and returns it as a one-page PDF.
func (r *Renderer) PreviewPDF(doc *pdf.Document, index int, records []store.TranslationRecord) ([]byte, error) {
	c, err := r.composer(doc)
	if err != nil {
		return nil, err
	}
	plan := NewPlan(records, r.opts)
	c.RemoveText(redactionsByPage([]Plan{plan}, index))
	page, err := c.AddPage(index)
	if err != nil {
		return nil, err
	}
	plan.Apply(page)
	return c.Bytes()
}

// redactionsByPage collects the redaction rects of plans, the first of
// which is for page first.
func redactionsByPage(plans []Plan, first int) map[int][]geom.Rect {
	out := make(map[int][]geom.Rect)
	for i, p := range plans {
		for _, r := range p.Redactions {
			if !r.IsEmpty() {
				out[first+i] = append(out[first+i], r)
			}
		}
	}
	return out
}

// Preview rebuilds page index and rasterises it at scale, returning PNG bytes.
func (r *Renderer) Preview(doc *pdf.Document, index int, records []store.TranslationRecord, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = DefaultPreviewScale
	}
	data, err := r.PreviewPDF(doc, index, records)
	if err != nil {
		return nil, err
	}
	png, err := r.raster.RenderPNG(data, 0, scale)
	if err != nil {
		return nil, err
	}
	logger.Debug("page preview rendered",
		logger.Int("page", index), logger.Float64("scale", scale), logger.Int("bytes", len(png)))
	return png, nil
}
