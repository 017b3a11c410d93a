// Package server exposes the translation session over HTTP.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"pdf-visual-translator/internal/config"
	"pdf-visual-translator/internal/library"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/session"
)

//go:embed static/index.html
var static embed.FS

// Server wires the HTTP routes to the session manager.
type Server struct {
	echo     *echo.Echo
	config   *config.ConfigManager
	sessions *session.Manager
}

// New creates the server and registers its routes.
func New(cfg *config.ConfigManager, sessions *session.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler

	s := &Server{echo: e, config: cfg, sessions: sessions}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Int64("latency_ms", v.Latency.Milliseconds()),
			}
			if v.Error != nil {
				logger.Warn("request failed", append(fields, logger.Err(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	}))

	e.GET("/", s.index)
	e.GET("/pdf/*", s.servePDF)

	api := e.Group("/api")
	api.GET("/get_config", s.getConfig)
	api.POST("/save_config", s.saveConfig)
	api.GET("/providers", s.providers)
	api.GET("/list_pdfs", s.listPDFs)
	api.POST("/init_translator", s.initTranslator)
	api.POST("/get_page_info", s.getPageInfo)
	api.POST("/translate_block", s.translateBlock)
	api.POST("/delete_block", s.deleteBlock)
	api.POST("/save_translation", s.saveTranslation)
	api.POST("/finish_translation", s.finishTranslation)
	api.POST("/preview", s.preview)
	api.POST("/close_translator", s.closeTranslator)

	return s
}

// Handler returns the HTTP handler, also mounted by the desktop shell.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logger.String("addr", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("HTTP server shutting down")
		return s.echo.Shutdown(shutdownCtx)
	}
}

func (s *Server) index(c echo.Context) error {
	data, err := static.ReadFile("static/index.html")
	if err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, data)
}

func (s *Server) library() (*library.Library, error) {
	return library.New(s.config.GetPDFFolder())
}
