// Package translator sends text blocks to a language model and returns the
// translation. Providers are registered once; clients are built lazily and
// cached per provider for the lifetime of a Service.
package translator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/types"
)

// Request is one translation call.
type Request struct {
	Text              string
	Provider          string
	Model             string
	TargetLanguage    string
	ExtraRequirements string
}

// Service 翻译服务，一个会话一个实例
type Service struct {
	registry *Registry
	creds    CredentialSource
	title    string

	mu      sync.Mutex
	clients map[string]Client
}

// NewService creates a service for the document at documentPath. The file
// stem is used as the book title in the system prompt.
func NewService(registry *Registry, creds CredentialSource, documentPath string) *Service {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Service{
		registry: registry,
		creds:    creds,
		title:    BookTitle(documentPath),
		clients:  make(map[string]Client),
	}
}

// Title returns the book title used in prompts.
func (s *Service) Title() string { return s.title }

// Translate sends req to its provider and returns the translation with any
// wrapping tag removed. Failures are returned as is; nothing is retried.
func (s *Service) Translate(ctx context.Context, req Request) (string, error) {
	p, ok := s.registry.Lookup(req.Provider)
	if !ok {
		return "", types.NewAppErrorWithDetails(types.ErrUnknownModel, "unknown translation provider", req.Provider, nil)
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.DefaultModel
	}

	client, err := s.client(ctx, p)
	if err != nil {
		return "", err
	}

	system := BuildSystemPrompt(s.title, req.ExtraRequirements)
	user := BuildUserPrompt(req.Text, req.TargetLanguage)

	start := time.Now()
	raw, err := client.Complete(ctx, system, user, model)
	if err != nil {
		logger.Error("translation request failed", err,
			logger.String("provider", p.ID), logger.String("model", model))
		return "", remoteError(p.ID, err)
	}
	logger.Debug("translation completed",
		logger.String("provider", p.ID),
		logger.String("model", model),
		logger.Int("input_chars", len([]rune(req.Text))),
		logger.Int64("duration_ms", time.Since(start).Milliseconds()))

	return ExtractTranslation(raw), nil
}

// client returns the cached client of p, building it on first use.
func (s *Service) client(ctx context.Context, p Provider) (Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[p.ID]; ok {
		return c, nil
	}

	var cred Credentials
	if s.creds != nil {
		cred = s.creds.Credentials(p.ID)
	}
	if p.NeedsKey && cred.APIKey == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "missing API key", p.ID, nil)
	}

	c, err := p.factory(ctx, cred)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "failed to create translation client", p.ID, err)
	}
	s.clients[p.ID] = c
	logger.Info("translation client created", logger.String("provider", p.ID))
	return c, nil
}

// remoteError classifies a provider failure.
func remoteError(provider string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppErrorWithDetails(types.ErrNetwork, "translation request cancelled", provider, err)
	}
	return types.NewAppErrorWithDetails(types.ErrAPICall, "translation request failed", provider, err)
}
