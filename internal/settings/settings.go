// Package settings manages the LLM credentials file.
// Credentials are stored in llm_credentials.json in the program directory,
// one entry per provider. Environment variables fill in missing values.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/translator"
)

const (
	// CredentialsFileName is the name of the credentials file
	CredentialsFileName = "llm_credentials.json"
)

// Manager manages the local credentials file
type Manager struct {
	filePath string
	creds    map[string]translator.Credentials
	mu       sync.RWMutex
}

// NewManager creates a credentials manager for the file next to the
// executable. The file is created empty if it does not exist.
func NewManager() (*Manager, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return NewManagerWithPath(filepath.Join(filepath.Dir(exePath), CredentialsFileName))
}

// NewManagerWithPath creates a credentials manager with a custom path
func NewManagerWithPath(filePath string) (*Manager, error) {
	m := &Manager{
		filePath: filePath,
		creds:    make(map[string]translator.Credentials),
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		logger.Info("credentials file not found, creating empty one", logger.String("path", filePath))
		if err := m.Save(); err != nil {
			return nil, err
		}
		return m, nil
	}

	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load loads credentials from the file
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.creds = make(map[string]translator.Credentials)
			return nil
		}
		return err
	}

	creds := make(map[string]translator.Credentials)
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := json.Unmarshal(data, &creds); err != nil {
			m.creds = make(map[string]translator.Credentials)
			return err
		}
	}

	// 服务商名统一小写
	m.creds = make(map[string]translator.Credentials, len(creds))
	for k, v := range creds {
		m.creds[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return nil
}

// Save saves credentials to the file
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.creds, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(m.filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(m.filePath, data, 0600)
}

// Credentials returns the credentials of provider. Empty fields fall back to
// <PROVIDER>_API_KEY and <PROVIDER>_BASE_URL.
func (m *Manager) Credentials(provider string) translator.Credentials {
	provider = strings.ToLower(strings.TrimSpace(provider))

	m.mu.RLock()
	c := m.creds[provider]
	m.mu.RUnlock()

	prefix := envPrefix(provider)
	if c.APIKey == "" {
		c.APIKey = os.Getenv(prefix + "_API_KEY")
	}
	if c.BaseURL == "" {
		c.BaseURL = os.Getenv(prefix + "_BASE_URL")
	}
	return c
}

// SetCredentials stores the credentials of provider and saves
func (m *Manager) SetCredentials(provider string, c translator.Credentials) error {
	m.mu.Lock()
	m.creds[strings.ToLower(strings.TrimSpace(provider))] = c
	m.mu.Unlock()

	return m.Save()
}

// Providers lists the providers present in the file
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.creds))
	for k := range m.creds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetFilePath returns the credentials file path
func (m *Manager) GetFilePath() string {
	return m.filePath
}

// envPrefix turns "open-router" into "OPEN_ROUTER".
func envPrefix(provider string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == ' ' {
			return '_'
		}
		return r
	}, provider))
}
