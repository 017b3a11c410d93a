// Package session owns everything one reviewer works on: the open document,
// its translation store, the translator clients and the renderer.
package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/reconcile"
	"pdf-visual-translator/internal/reconstruct"
	"pdf-visual-translator/internal/store"
	"pdf-visual-translator/internal/translator"
	"pdf-visual-translator/internal/types"
)

// Options are the parameters of a new session. Empty paths are derived from
// the PDF path.
type Options struct {
	PDFPath           string  `json:"pdf_path"`
	StorePath         string  `json:"output_json_path"`
	ExportPath        string  `json:"translated_pdf_path"`
	FontName          string  `json:"font_name"`
	FontFile          string  `json:"font_file"`
	TargetLanguage    string  `json:"target_language"`
	Provider          string  `json:"provider"`
	Model             string  `json:"model"`
	ExtraRequirements string  `json:"extra_requirements"`
	MinFontSize       float64 `json:"min_font_size"`
	PreviewScale      float64 `json:"preview_scale"`
}

// DefaultStorePath returns <dir>/<stem>_translations.json.
func DefaultStorePath(pdfPath string) string {
	return siblingPath(pdfPath, "_translations.json")
}

// DefaultExportPath returns <dir>/<stem>_translated.pdf.
func DefaultExportPath(pdfPath string) string {
	return siblingPath(pdfPath, "_translated.pdf")
}

func siblingPath(pdfPath, suffix string) string {
	base := filepath.Base(pdfPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(pdfPath), stem+suffix)
}

// PageInfo is what the reviewer sees of one page.
type PageInfo struct {
	Blocks []reconcile.Block `json:"blocks"`
	Width  float64           `json:"width"`
	Height float64           `json:"height"`
}

// TranslateRequest overrides the session defaults for one block.
type TranslateRequest struct {
	Text              string
	Provider          string
	Model             string
	ExtraRequirements string
}

// Session 一次翻译会话，所有操作串行执行
type Session struct {
	id      string
	opts    Options
	created time.Time

	mu         sync.Mutex
	closed     bool
	doc        *pdf.Document
	store      *store.Store
	translator *translator.Service
	renderer   *reconstruct.Renderer
	scanned    bool
}

// Open validates opts, opens the document and loads (or creates) its store.
// Nothing is kept when any step fails.
func Open(opts Options, registry *translator.Registry, creds translator.CredentialSource) (*Session, error) {
	opts.PDFPath = strings.TrimSpace(opts.PDFPath)
	if opts.PDFPath == "" {
		return nil, types.NewAppError(types.ErrInvalidInput, "pdf_path is required", nil)
	}
	if opts.StorePath == "" {
		opts.StorePath = DefaultStorePath(opts.PDFPath)
	}
	if opts.ExportPath == "" {
		opts.ExportPath = DefaultExportPath(opts.PDFPath)
	}
	if opts.MinFontSize <= 0 {
		opts.MinFontSize = 5
	}
	if opts.PreviewScale <= 0 {
		opts.PreviewScale = reconstruct.DefaultPreviewScale
	}
	if registry == nil {
		registry = translator.DefaultRegistry()
	}
	if opts.Provider != "" {
		if _, ok := registry.Lookup(opts.Provider); !ok {
			return nil, types.NewAppErrorWithDetails(types.ErrUnknownModel, "unknown translation provider", opts.Provider, nil)
		}
	}
	if opts.FontFile != "" {
		if _, err := os.Stat(opts.FontFile); err != nil {
			return nil, pdf.NewPDFErrorWithDetails(pdf.ErrFontMissing, "字体文件不存在", opts.FontFile, err)
		}
	}

	doc, err := pdf.OpenDocument(opts.PDFPath)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(opts.StorePath, doc.PageCount())
	if err != nil {
		doc.Close()
		return nil, err
	}
	hasText, err := pdf.NewPDFParser("").IsTextPDF(opts.PDFPath)
	if err != nil {
		doc.Close()
		return nil, err
	}
	if !hasText {
		// 扫描件没有可抽取的文字，页面会是空的
		logger.Warn("document has no extractable text", logger.String("pdf", filepath.Base(opts.PDFPath)))
	}

	s := &Session{
		id:         uuid.NewString(),
		opts:       opts,
		created:    time.Now(),
		doc:        doc,
		store:      st,
		translator: translator.NewService(registry, creds, opts.PDFPath),
		renderer: reconstruct.NewRenderer(reconstruct.Options{
			FontName:    opts.FontName,
			FontFile:    opts.FontFile,
			MinFontSize: opts.MinFontSize,
		}),
		scanned: !hasText,
	}

	logger.Info("session opened",
		logger.String("session", s.id),
		logger.String("pdf", filepath.Base(opts.PDFPath)),
		logger.Int("pages", doc.PageCount()),
		logger.String("store", opts.StorePath),
		logger.String("provider", opts.Provider))
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Options returns the resolved options.
func (s *Session) Options() Options { return s.opts }

// Scanned reports whether the first pages carry no extractable text.
func (s *Session) Scanned() bool { return s.scanned }

// PageCount returns the number of pages of the document.
func (s *Session) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	return s.doc.PageCount()
}

// PageInfo extracts page index and overlays its saved translations.
func (s *Session) PageInfo(index int) (*PageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	page, err := s.doc.ExtractPage(index)
	if err != nil {
		return nil, err
	}
	stored, err := s.store.Page(index)
	if err != nil {
		return nil, err
	}

	extracted := make([]reconcile.Block, len(page.Blocks))
	for i, b := range page.Blocks {
		extracted[i] = reconcile.Block{
			OriginalRect: b.Rect,
			Rect:         b.Rect,
			Text:         b.Text,
			FontSize:     b.FontSize,
			Color:        b.Color,
		}
	}
	blocks := reconcile.Reconcile(extracted, stored)

	logger.Debug("page info",
		logger.String("session", s.id), logger.Int("page", index),
		logger.Int("extracted", len(extracted)), logger.Int("blocks", len(blocks)))
	return &PageInfo{Blocks: blocks, Width: page.Width, Height: page.Height}, nil
}

// Translate translates one block. Empty fields of req take the session
// defaults.
func (s *Session) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	provider, model := req.Provider, req.Model
	if provider == "" {
		provider, model = s.opts.Provider, s.opts.Model
		if req.Model != "" {
			model = req.Model
		}
	}
	if provider == "" {
		return "", types.NewAppError(types.ErrInvalidInput, "no translation provider selected", nil)
	}
	extra := req.ExtraRequirements
	if extra == "" {
		extra = s.opts.ExtraRequirements
	}

	return s.translator.Translate(ctx, translator.Request{
		Text:              req.Text,
		Provider:          provider,
		Model:             model,
		TargetLanguage:    s.opts.TargetLanguage,
		ExtraRequirements: extra,
	})
}

// SaveBlock creates or updates the record keyed by (Original, Rect).
func (s *Session) SaveBlock(req store.SaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !req.Align.Valid() {
		req.Align = geom.AlignLeft
	}
	return s.store.Upsert(req)
}

// DeleteBlock removes the record keyed by (original, rect). Deleting a
// missing record succeeds.
func (s *Session) DeleteBlock(page int, rect geom.Rect, original string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return err
	}
	removed, err := s.store.Delete(page, original, rect)
	if err != nil {
		return err
	}
	logger.Debug("block deleted", logger.Int("page", page), logger.Bool("removed", removed))
	return nil
}

// Finish writes the translated document to the export path.
func (s *Session) Finish() (*reconstruct.ExportReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.renderer.Export(s.doc, s.store.Document(), s.opts.ExportPath)
}

// Preview renders page index with its translations as PNG. A non-positive
// scale uses the session default.
func (s *Session) Preview(index int, scale float64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if scale <= 0 {
		scale = s.opts.PreviewScale
	}
	page, err := s.store.Page(index)
	if err != nil {
		return nil, err
	}
	return s.renderer.Preview(s.doc, index, page.Translations, scale)
}

// Close releases the document. Later calls fail with a session error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	logger.Info("session closed",
		logger.String("session", s.id),
		logger.Int64("duration_s", int64(time.Since(s.created).Seconds())))
	return s.doc.Close()
}

func (s *Session) checkOpen() error {
	if s.closed {
		return types.NewAppErrorWithDetails(types.ErrNoSession, "session is closed", s.id, nil)
	}
	return nil
}
