// Package reconcile merges the blocks extracted from a page with the
// translations saved for that page.
package reconcile

import (
	"strings"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/store"
)

// Block is one entry of a page as shown to the reviewer. It is rebuilt on
// every request and never persisted.
type Block struct {
	OriginalRect geom.Rect  `json:"originalRect"`
	Rect         geom.Rect  `json:"rect"`
	Text         string     `json:"text"`
	FontSize     float64    `json:"font_size"`
	Color        geom.Color `json:"color"`
	Translated   bool       `json:"translated"`
	Translation  *string    `json:"translation,omitempty"`
	Align        geom.Align `json:"align"`
	IsExtra      bool       `json:"is_extra,omitempty"`
}

// Reconcile overlays the stored translations onto the extracted blocks.
//
// A stored record matches an extracted block only when its original text
// equals the trimmed block text and its rect equals the block rect exactly.
// Matched blocks take the record's translation, target rect, alignment,
// font size and color. Records that match nothing are appended with
// IsExtra set. The result has len(extracted) + unmatched records entries.
// Neither argument is modified.
func Reconcile(extracted []Block, stored store.PageTranslations) []Block {
	records := stored.Translations
	result := make([]Block, 0, len(extracted)+len(records))

	// extra[i] 为 true 表示 records[i] 尚未被任何抽取块认领
	extra := make([]bool, len(records))
	for i := range extra {
		extra[i] = true
	}

	for _, b := range extracted {
		b.Text = strings.TrimSpace(b.Text)
		b.Translated = false
		b.Translation = nil
		b.IsExtra = false

		if len(records) > 0 {
			if i := indexOf(records, b.Text, b.OriginalRect); i >= 0 {
				b = overlay(b, records[i])
				extra[i] = false
			}
		}
		result = append(result, b)
	}

	for i, rec := range records {
		if !extra[i] {
			continue
		}
		result = append(result, extraBlock(rec))
	}
	return result
}

func indexOf(records []store.TranslationRecord, text string, rect geom.Rect) int {
	for i := range records {
		if records[i].Original == text && records[i].Rect == rect {
			return i
		}
	}
	return -1
}

func overlay(b Block, rec store.TranslationRecord) Block {
	b.Translation = copyString(rec.Translation)
	b.Translated = rec.Translation != nil
	b.Rect = rec.TargetRect()
	b.Align = alignOrDefault(rec.Align)
	if b.FontSize != rec.FontSize {
		b.FontSize = rec.FontSize
	}
	if b.Color != rec.Color {
		b.Color = rec.Color
	}
	return b
}

func extraBlock(rec store.TranslationRecord) Block {
	return Block{
		OriginalRect: rec.Rect,
		Rect:         rec.TargetRect(),
		Text:         rec.Original,
		FontSize:     rec.FontSize,
		Color:        rec.Color,
		Translated:   rec.Translation != nil,
		Translation:  copyString(rec.Translation),
		Align:        alignOrDefault(rec.Align),
		IsExtra:      true,
	}
}

func alignOrDefault(a geom.Align) geom.Align {
	if !a.Valid() {
		return geom.AlignLeft
	}
	return a
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
