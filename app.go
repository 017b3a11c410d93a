package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"pdf-visual-translator/internal/config"
	"pdf-visual-translator/internal/library"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/pdf"
	"pdf-visual-translator/internal/reconstruct"
	"pdf-visual-translator/internal/server"
	"pdf-visual-translator/internal/session"
	"pdf-visual-translator/internal/settings"
	"pdf-visual-translator/internal/store"
	"pdf-visual-translator/internal/translator"
	"pdf-visual-translator/internal/types"
)

// App wires configuration, credentials, sessions and the HTTP API. The same
// instance backs the serve, desktop and headless commands.
type App struct {
	ctx      context.Context
	config   *config.ConfigManager
	creds    *settings.Manager
	registry *translator.Registry
	sessions *session.Manager
	server   *server.Server
}

// AppOptions are the file locations given on the command line.
type AppOptions struct {
	ConfigPath      string
	CredentialsPath string
	EnvFile         string
}

// loadEnv loads a .env file into the process environment. Variables already
// set win. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// NewApp loads the environment and the configuration. Logging is not set up
// yet; call initLogger once the command knows whether to echo to stdout.
func NewApp(opts AppOptions) (*App, error) {
	if err := loadEnv(opts.EnvFile); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to load .env file", err)
	}

	cfg, err := config.NewConfigManager(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}

	credsPath := opts.CredentialsPath
	if credsPath == "" {
		credsPath = filepath.Join(filepath.Dir(cfg.GetConfigPath()), settings.CredentialsFileName)
	}
	creds, err := settings.NewManagerWithPath(credsPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to load LLM credentials", err)
	}

	registry := translator.DefaultRegistry()
	sessions := session.NewManager(registry, creds)
	return &App{
		ctx:      context.Background(),
		config:   cfg,
		creds:    creds,
		registry: registry,
		sessions: sessions,
		server:   server.New(cfg, sessions),
	}, nil
}

// initLogger sets up the global logger from the config.
func (a *App) initLogger(console bool) error {
	c := a.config.GetConfig()
	lc := logger.DefaultConfig()
	lc.LogFilePath = c.LogFile
	lc.Level = logger.ParseLevel(c.LogLevel)
	lc.EnableConsole = console
	return logger.Init(lc)
}

// startup is called when the app starts; ctx is the lifetime of the app.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up",
		logger.String("config", a.config.GetConfigPath()),
		logger.String("credentials", a.creds.GetFilePath()),
		logger.String("pdfFolder", a.config.GetPDFFolder()))
}

// shutdown closes every open session.
func (a *App) shutdown(ctx context.Context) {
	logger.Info("application shutting down")
	a.sessions.CloseAll()
}

// ListPDFs returns the PDFs of the configured folder.
func (a *App) ListPDFs() ([]*library.Entry, error) {
	lib, err := library.New(a.config.GetPDFFolder())
	if err != nil {
		return nil, err
	}
	return lib.List()
}

// GetConfig returns the current configuration.
func (a *App) GetConfig() *types.Config {
	return a.config.GetConfig()
}

// Providers lists the translation providers.
func (a *App) Providers() []translator.Provider {
	return a.registry.Providers()
}

// ExtractPage returns the blocks of one page reconciled with the store at
// storePath (default <stem>_translations.json). The store is only read.
func (a *App) ExtractPage(pdfPath, storePath string, page int) (*session.PageInfo, error) {
	if storePath == "" {
		storePath = session.DefaultStorePath(pdfPath)
	}
	if _, err := os.Stat(storePath); err != nil {
		// 没有译文文件时用临时文件，避免在书旁边留下空的 JSON
		tmp, err := os.MkdirTemp("", "pvt-extract-*")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tmp)
		storePath = filepath.Join(tmp, "translations.json")
	}

	sess, err := session.Open(session.Options{
		PDFPath:     pdfPath,
		StorePath:   storePath,
		MinFontSize: a.config.GetConfig().MinFontSize,
	}, a.registry, a.creds)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	return sess.PageInfo(page)
}

// DocumentInfo is what the info command prints.
type DocumentInfo struct {
	*pdf.PDFInfo
	HasText   bool   `json:"has_text"`
	StorePath string `json:"store_path"`
	Saved     int    `json:"saved_translations"`
}

// Info describes a PDF and the translations saved for it so far.
func (a *App) Info(pdfPath string) (*DocumentInfo, error) {
	parser := pdf.NewPDFParser("")
	info, err := parser.GetPDFInfo(pdfPath)
	if err != nil {
		return nil, err
	}
	hasText, err := parser.IsTextPDF(pdfPath)
	if err != nil {
		return nil, err
	}

	out := &DocumentInfo{PDFInfo: info, HasText: hasText, StorePath: session.DefaultStorePath(pdfPath)}
	if _, err := os.Stat(out.StorePath); err == nil {
		st, err := store.Open(out.StorePath, info.PageCount)
		if err != nil {
			return nil, err
		}
		for _, page := range st.Document().Pages {
			out.Saved += len(page.Translations)
		}
	}
	return out, nil
}

// ExportOptions are the inputs of a headless export.
type ExportOptions struct {
	PDFPath    string
	StorePath  string
	OutputPath string
	FontName   string
	FontFile   string
}

// Export reconstructs a whole document from an existing translation store.
func (a *App) Export(opts ExportOptions) (*reconstruct.ExportReport, error) {
	if opts.StorePath == "" {
		opts.StorePath = session.DefaultStorePath(opts.PDFPath)
	}
	if opts.OutputPath == "" {
		opts.OutputPath = session.DefaultExportPath(opts.PDFPath)
	}
	if _, err := os.Stat(opts.StorePath); err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "translation store not found", opts.StorePath, err)
	}

	c := a.config.GetConfig()
	doc, err := pdf.OpenDocument(opts.PDFPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	st, err := store.Open(opts.StorePath, doc.PageCount())
	if err != nil {
		return nil, err
	}

	r := reconstruct.NewRenderer(reconstruct.Options{
		FontName:    firstNonEmpty(opts.FontName, c.FontName),
		FontFile:    firstNonEmpty(opts.FontFile, c.FontFile),
		MinFontSize: c.MinFontSize,
	})
	return r.Export(doc, st.Document(), opts.OutputPath)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
