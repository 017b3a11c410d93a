// Package library lists the PDFs of the configured folder together with
// their translation progress, and resolves the files served under /pdf/.
package library

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/session"
	"pdf-visual-translator/internal/store"
	"pdf-visual-translator/internal/types"
)

// Status represents the translation progress of a PDF
type Status string

const (
	// StatusPending indicates no translation has been saved yet
	StatusPending Status = "pending"
	// StatusInProgress indicates a translation store exists
	StatusInProgress Status = "in_progress"
	// StatusExported indicates the translated PDF has been written
	StatusExported Status = "exported"
)

// Entry describes one PDF of the library
type Entry struct {
	Path         string    `json:"path"` // relative to the library root, slash separated
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ModifiedAt   time.Time `json:"modified_at"`
	PageCount    int       `json:"page_count"`
	Status       Status    `json:"status"`
	Translations int       `json:"translations"`
	StorePath    string    `json:"store_path,omitempty"`
	ExportPath   string    `json:"export_path,omitempty"`
}

// Library is a folder of PDFs
type Library struct {
	root string
}

// New creates a library rooted at dir. The folder is created if missing.
func New(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "invalid pdf folder", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create pdf folder", err)
	}
	return &Library{root: abs}, nil
}

// Root returns the absolute library folder.
func (l *Library) Root() string { return l.root }

// List walks the folder and returns every source PDF sorted by path.
// Exported files (*_translated.pdf) are reported on their source entry.
func (l *Library) List() ([]*Entry, error) {
	var entries []*Entry
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isSourcePDF(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, l.describe(path, info))
		return nil
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrFileNotFound, "failed to list pdf folder", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	logger.Debug("library listed", logger.String("root", l.root), logger.Int("pdfs", len(entries)))
	return entries, nil
}

func (l *Library) describe(path string, info fs.FileInfo) *Entry {
	rel, _ := filepath.Rel(l.root, path)
	e := &Entry{
		Path:       filepath.ToSlash(rel),
		Name:       info.Name(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		Status:     StatusPending,
	}

	if n, err := pdf.PageCountFile(path); err == nil {
		e.PageCount = n
	} else {
		logger.Warn("failed to read page count", logger.String("pdf", e.Path), logger.Err(err))
	}

	storePath := session.DefaultStorePath(path)
	if n, ok := countTranslations(storePath); ok {
		e.Status = StatusInProgress
		e.Translations = n
		e.StorePath = storePath
	}
	exportPath := session.DefaultExportPath(path)
	if _, err := os.Stat(exportPath); err == nil {
		e.Status = StatusExported
		e.ExportPath = exportPath
	}
	return e
}

// countTranslations reads a store file without creating it.
func countTranslations(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	var doc store.DocumentTranslations
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("unreadable translation store", logger.String("path", path), logger.Err(err))
		return 0, true
	}
	n := 0
	for _, p := range doc.Pages {
		n += len(p.Translations)
	}
	return n, true
}

// Resolve maps a slash separated path below the library root to a file
// path. Paths escaping the root are rejected.
func (l *Library) Resolve(rel string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimLeft(rel, "/"))
	path := filepath.Join(l.root, filepath.FromSlash(clean))
	if path != l.root && !strings.HasPrefix(path, l.root+string(filepath.Separator)) {
		return "", types.NewAppErrorWithDetails(types.ErrInvalidInput, "path outside pdf folder", rel, nil)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", types.NewAppErrorWithDetails(types.ErrFileNotFound, "file not found", rel, err)
	}
	return path, nil
}

func isSourcePDF(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".pdf") && !strings.HasSuffix(lower, "_translated.pdf")
}
