package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pdf-visual-translator/internal/types"
)

func TestNewConfigManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := filepath.Join(t.TempDir(), "test-config.json")
		cm, err := NewConfigManager(customPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if cm.GetConfigPath() != customPath {
			t.Errorf("expected config path %s, got %s", customPath, cm.GetConfigPath())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		cm, err := NewConfigManager("")
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if filepath.Base(cm.GetConfigPath()) != DefaultConfigFileName {
			t.Errorf("expected %s, got %s", DefaultConfigFileName, cm.GetConfigPath())
		}
	})
}

func TestConfigManager_LoadSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.json")

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.Port != DefaultPort {
			t.Errorf("expected default port %d, got %d", DefaultPort, config.Port)
		}
		if config.MinFontSize != DefaultMinFontSize {
			t.Errorf("expected min font size %v, got %v", DefaultMinFontSize, config.MinFontSize)
		}
		if config.PreviewScale != DefaultPreviewScale {
			t.Errorf("expected preview scale %v, got %v", DefaultPreviewScale, config.PreviewScale)
		}
		if config.LogFile != DefaultLogFile {
			t.Errorf("expected log file %s, got %s", DefaultLogFile, config.LogFile)
		}
	})

	t.Run("Save creates config file", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}

		cm.SetConfig(&types.Config{
			Port:     8080,
			FontName: "china-ss",
			FontFile: "/fonts/simsun.ttf",
			Provider: "moonshot",
			Model:    "moonshot-v1-32k",
		})
		if err := cm.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			t.Error("config file was not created")
		}
	})

	t.Run("Load reads saved config", func(t *testing.T) {
		cm, err := NewConfigManager(configPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.Port != 8080 {
			t.Errorf("expected port 8080, got %d", config.Port)
		}
		if config.FontFile != "/fonts/simsun.ttf" {
			t.Errorf("expected font file '/fonts/simsun.ttf', got '%s'", config.FontFile)
		}
		if config.Model != "moonshot-v1-32k" {
			t.Errorf("expected model 'moonshot-v1-32k', got '%s'", config.Model)
		}
		// zero values were filled in by SetConfig
		if config.MinFontSize != DefaultMinFontSize {
			t.Errorf("expected min font size %v, got %v", DefaultMinFontSize, config.MinFontSize)
		}
	})

	t.Run("Load with invalid JSON uses defaults", func(t *testing.T) {
		invalidConfigPath := filepath.Join(tmpDir, "invalid-config.json")
		if err := os.WriteFile(invalidConfigPath, []byte("invalid json"), 0644); err != nil {
			t.Fatalf("failed to write invalid config: %v", err)
		}

		cm, err := NewConfigManager(invalidConfigPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if err := cm.Load(); err != nil {
			t.Fatalf("Load should not fail with invalid JSON: %v", err)
		}
		if cm.GetConfig().Port != DefaultPort {
			t.Errorf("expected default port after invalid JSON, got %d", cm.GetConfig().Port)
		}
	})
}

func TestConfigManager_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(`{"port": 6000, "target_language": "English"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cm, _ := NewConfigManager(configPath)
	if err := cm.Load(); err != nil {
		t.Fatal(err)
	}
	c := cm.GetConfig()
	if c.Port != 6000 || c.TargetLanguage != "English" {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Host != DefaultHost || c.Provider != DefaultProvider {
		t.Errorf("missing keys should keep defaults: %+v", c)
	}
}

func TestConfigManager_RawConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	cm, _ := NewConfigManager(configPath)

	_, err := cm.RawConfig()
	if types.KindOf(err) != types.KindIO {
		t.Fatalf("missing file: expected io error, got %v", err)
	}

	// 未知字段原样保留
	in := []byte(`{"port": 5001, "ui_theme": "dark"}`)
	if err := cm.SaveRaw(in); err != nil {
		t.Fatalf("SaveRaw failed: %v", err)
	}
	raw, err := cm.RawConfig()
	if err != nil {
		t.Fatalf("RawConfig failed: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["ui_theme"] != "dark" {
		t.Errorf("unknown key lost: %v", got)
	}
	if cm.GetConfig().Port != 5001 {
		t.Errorf("SaveRaw should reload, port = %d", cm.GetConfig().Port)
	}

	if err := cm.SaveRaw([]byte("{oops")); !types.IsValidation(err) {
		t.Errorf("invalid JSON: expected validation error, got %v", err)
	}
}

func TestConfigManager_GetPDFFolder(t *testing.T) {
	dir := t.TempDir()
	cm, _ := NewConfigManager(filepath.Join(dir, "config.json"))
	if got, want := cm.GetPDFFolder(), filepath.Join(dir, DefaultPDFFolder); got != want {
		t.Errorf("GetPDFFolder() = %s, want %s", got, want)
	}

	cm.SetConfig(&types.Config{PDFFolder: "/abs/books"})
	if got := cm.GetPDFFolder(); got != "/abs/books" {
		t.Errorf("GetPDFFolder() = %s, want /abs/books", got)
	}
}

func TestConfigManager_SaveCreatesDirectory(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	cm, err := NewConfigManager(configPath)
	if err != nil {
		t.Fatalf("NewConfigManager failed: %v", err)
	}
	if err := cm.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}
