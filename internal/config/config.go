// Package config provides configuration management for the PDF visual translator.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "config.json"
	// DefaultHost is the address the HTTP API listens on
	DefaultHost = "127.0.0.1"
	// DefaultPort is the default HTTP API port
	DefaultPort = 5000
	// DefaultPDFFolder is the folder browsed by list_pdfs and served under /pdf/
	DefaultPDFFolder = "pdf"
	// DefaultTargetLanguage is the default translation target
	DefaultTargetLanguage = "中文"
	// DefaultProvider is the default translation provider
	DefaultProvider = "deepseek"
	// DefaultMinFontSize is the smallest font size the inserter shrinks to
	DefaultMinFontSize = 5.0
	// DefaultPreviewScale is the default preview rasterisation scale
	DefaultPreviewScale = 2.0
	// DefaultLogFile is the default log file name
	DefaultLogFile = "pdf-visual-translator.log"
	// DefaultLogLevel is the default log level
	DefaultLogLevel = "info"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	mu         sync.RWMutex
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, config.json in the working directory is used.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		configPath = DefaultConfigFileName
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to resolve config path", err)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", abs))
	return &ConfigManager{
		configPath: abs,
		config:     DefaultConfig(),
	}, nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *types.Config {
	return &types.Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		PDFFolder:      DefaultPDFFolder,
		TargetLanguage: DefaultTargetLanguage,
		Provider:       DefaultProvider,
		MinFontSize:    DefaultMinFontSize,
		PreviewScale:   DefaultPreviewScale,
		LogFile:        DefaultLogFile,
		LogLevel:       DefaultLogLevel,
	}
}

// Load loads configuration from the config file.
// If the file doesn't exist or is not valid JSON, defaults are used.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = DefaultConfig()
			return nil
		}
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}

	// 先填默认值再解析，文件里没有的字段保持默认
	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
		m.config = DefaultConfig()
		return nil
	}
	applyDefaults(config)
	m.config = config

	logger.Info("configuration loaded successfully",
		logger.String("path", m.configPath),
		logger.String("provider", config.Provider),
		logger.String("model", config.Model),
		logger.String("pdfFolder", config.PDFFolder))
	return nil
}

// applyDefaults fills zero values that would make the app unusable.
func applyDefaults(c *types.Config) {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.PDFFolder == "" {
		c.PDFFolder = DefaultPDFFolder
	}
	if c.MinFontSize <= 0 {
		c.MinFontSize = DefaultMinFontSize
	}
	if c.PreviewScale <= 0 {
		c.PreviewScale = DefaultPreviewScale
	}
	if c.LogFile == "" {
		c.LogFile = DefaultLogFile
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.config, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}
	return m.write(data)
}

func (m *ConfigManager) write(data []byte) error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// RawConfig returns the config file as stored. The UI owns keys the app does
// not know about, so they are passed through untouched.
func (m *ConfigManager) RawConfig() (json.RawMessage, error) {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrFileNotFound, "Config file not found", m.configPath, err)
		}
		return nil, types.NewAppError(types.ErrConfig, "failed to read config file", err)
	}
	if !json.Valid(data) {
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "invalid config file format", m.configPath, nil)
	}
	return json.RawMessage(data), nil
}

// SaveRaw replaces the config file with data and reloads it.
func (m *ConfigManager) SaveRaw(data []byte) error {
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "    "); err != nil {
		return types.NewAppError(types.ErrInvalidInput, "config is not valid JSON", err)
	}
	if err := m.write(out.Bytes()); err != nil {
		return err
	}
	return m.Load()
}

// GetConfig returns a copy of the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return DefaultConfig()
	}
	c := *m.config
	return &c
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	applyDefaults(config)
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetPDFFolder returns the PDF folder, resolved against the config file's
// directory when relative.
func (m *ConfigManager) GetPDFFolder() string {
	folder := m.GetConfig().PDFFolder
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(filepath.Dir(m.configPath), folder)
}
