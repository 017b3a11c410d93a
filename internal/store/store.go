// Package store persists the per-page translation records of one document.
//
// The whole document is rewritten on every mutation; a missing file means
// "no prior translations".
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/types"
)

// TranslationRecord 一条已保存的译文，(Original, Rect) 为身份键
type TranslationRecord struct {
	Original    string     `json:"original"`
	Translation *string    `json:"translation"`
	Rect        geom.Rect  `json:"rect"`
	NewRect     *geom.Rect `json:"new_rect"`
	FontSize    float64    `json:"font_size"`
	Color       geom.Color `json:"color"`
	Align       geom.Align `json:"align"`
}

// Key returns the identity key of the record.
func (r TranslationRecord) Key() Key {
	return Key{Original: r.Original, Rect: r.Rect}
}

// TargetRect is where the translation is drawn.
func (r TranslationRecord) TargetRect() geom.Rect {
	if r.NewRect != nil {
		return *r.NewRect
	}
	return r.Rect
}

// HasTranslation reports whether a translation was saved.
func (r TranslationRecord) HasTranslation() bool {
	return r.Translation != nil
}

// TranslationText returns the translation or "".
func (r TranslationRecord) TranslationText() string {
	if r.Translation == nil {
		return ""
	}
	return *r.Translation
}

// Key identifies a block: exact text and exact original rectangle.
type Key struct {
	Original string
	Rect     geom.Rect
}

// PageTranslations 单页译文
type PageTranslations struct {
	PageNumber   int                 `json:"page_number"`
	Translations []TranslationRecord `json:"translations"`
}

// IndexOf returns the index of the record with key k, or -1.
func (p *PageTranslations) IndexOf(k Key) int {
	for i := range p.Translations {
		if p.Translations[i].Key() == k {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the page.
func (p PageTranslations) Clone() PageTranslations {
	out := PageTranslations{PageNumber: p.PageNumber, Translations: make([]TranslationRecord, len(p.Translations))}
	for i, r := range p.Translations {
		out.Translations[i] = r.clone()
	}
	return out
}

func (r TranslationRecord) clone() TranslationRecord {
	c := r
	if r.Translation != nil {
		s := *r.Translation
		c.Translation = &s
	}
	if r.NewRect != nil {
		nr := *r.NewRect
		c.NewRect = &nr
	}
	return c
}

// DocumentTranslations 整个文档的译文，页数在会话打开时固定
type DocumentTranslations struct {
	Pages []PageTranslations `json:"pages"`
}

// NewDocumentTranslations creates empty pages 0..pageCount-1.
func NewDocumentTranslations(pageCount int) *DocumentTranslations {
	doc := &DocumentTranslations{Pages: make([]PageTranslations, pageCount)}
	for i := range doc.Pages {
		doc.Pages[i] = PageTranslations{PageNumber: i, Translations: []TranslationRecord{}}
	}
	return doc
}

// SaveRequest carries the fields of a save-block operation.
type SaveRequest struct {
	Page        int
	Original    string
	Rect        geom.Rect
	Translation *string
	FontSize    float64
	Color       geom.Color
	Align       geom.Align
	NewRect     *geom.Rect
}

// Store 负责译文的加载、增删改与落盘
type Store struct {
	path string
	mu   sync.RWMutex
	doc  *DocumentTranslations
}

// Open loads the store at path. A missing file yields pageCount empty pages
// and is written immediately; malformed content is a load failure.
func Open(path string, pageCount int) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, types.NewAppError(types.ErrStore, "failed to read translation store", err)
		}
		logger.Info("translation store not found, starting empty",
			logger.String("path", path), logger.Int("pages", pageCount))
		s.doc = NewDocumentTranslations(pageCount)
		if err := s.Save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	var doc DocumentTranslations
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrStore, "failed to parse translation store", path, err)
	}
	// 旧文件页数不足时补齐空页，保证按页号下标访问安全
	for len(doc.Pages) < pageCount {
		doc.Pages = append(doc.Pages, PageTranslations{PageNumber: len(doc.Pages), Translations: []TranslationRecord{}})
	}
	s.doc = &doc

	logger.Info("translation store loaded",
		logger.String("path", path), logger.Int("pages", len(doc.Pages)), logger.Int("records", s.count()))
	return s, nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// PageCount returns the number of pages tracked.
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.doc.Pages)
}

// Page returns a copy of the records of page.
func (s *Store) Page(page int) (PageTranslations, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkPage(page); err != nil {
		return PageTranslations{}, err
	}
	return s.doc.Pages[page].Clone(), nil
}

// Document returns a deep copy of all pages.
func (s *Store) Document() *DocumentTranslations {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := &DocumentTranslations{Pages: make([]PageTranslations, len(s.doc.Pages))}
	for i, p := range s.doc.Pages {
		out.Pages[i] = p.Clone()
	}
	return out
}

// Upsert finds the record by (Original, Rect) and updates it, or appends a
// new one. NewRect defaults to Rect. The store is rewritten afterwards.
func (s *Store) Upsert(req SaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPage(req.Page); err != nil {
		return err
	}

	newRect := req.Rect
	if req.NewRect != nil {
		newRect = *req.NewRect
	}
	page := &s.doc.Pages[req.Page]
	rec := TranslationRecord{
		Original:    strings.TrimSpace(req.Original),
		Translation: req.Translation,
		Rect:        req.Rect,
		NewRect:     &newRect,
		FontSize:    req.FontSize,
		Color:       req.Color,
		Align:       req.Align,
	}

	if i := page.IndexOf(rec.Key()); i >= 0 {
		page.Translations[i] = rec.clone()
		logger.Debug("translation updated", logger.Int("page", req.Page), logger.Int("index", i))
	} else {
		page.Translations = append(page.Translations, rec.clone())
		logger.Debug("translation added", logger.Int("page", req.Page), logger.Int("index", len(page.Translations)-1))
	}

	return s.saveLocked()
}

// Delete removes the record with the given key. It reports whether a record
// was removed; a missing record is not an error.
func (s *Store) Delete(page int, original string, rect geom.Rect) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkPage(page); err != nil {
		return false, err
	}

	p := &s.doc.Pages[page]
	i := p.IndexOf(Key{Original: strings.TrimSpace(original), Rect: rect})
	if i < 0 {
		return false, nil
	}
	p.Translations = append(p.Translations[:i:i], p.Translations[i+1:]...)
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// Save rewrites the whole store file.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.NewAppError(types.ErrStore, "failed to create store directory", err)
		}
	}

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrStore, "failed to marshal translation store", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return types.NewAppError(types.ErrStore, "failed to write translation store", err)
	}
	return nil
}

func (s *Store) checkPage(page int) error {
	if page < 0 || page >= len(s.doc.Pages) {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "page out of range",
			fmt.Sprintf("page %d of %d", page, len(s.doc.Pages)), nil)
	}
	return nil
}

func (s *Store) count() int {
	n := 0
	for _, p := range s.doc.Pages {
		n += len(p.Translations)
	}
	return n
}
