package settings

import (
	"os"
	"path/filepath"
	"testing"

	"pdf-visual-translator/internal/translator"
)

func TestNewManagerWithPathCreatesFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "conf", CredentialsFileName)
	m, err := NewManagerWithPath(filePath)
	if err != nil {
		t.Fatalf("NewManagerWithPath() error = %v", err)
	}

	if m.GetFilePath() != filePath {
		t.Errorf("expected file path %s, got %s", filePath, m.GetFilePath())
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("credentials file not created: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("expected empty object, got %q", data)
	}
}

func TestSetAndGetCredentials(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), CredentialsFileName)
	m, err := NewManagerWithPath(filePath)
	if err != nil {
		t.Fatal(err)
	}

	want := translator.Credentials{APIKey: "sk-test", BaseURL: "https://example.com/v1"}
	if err := m.SetCredentials("DeepSeek", want); err != nil {
		t.Fatalf("failed to set credentials: %v", err)
	}
	if got := m.Credentials("deepseek"); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	// Reload from disk
	m2, err := NewManagerWithPath(filePath)
	if err != nil {
		t.Fatal(err)
	}
	if got := m2.Credentials("DEEPSEEK"); got != want {
		t.Errorf("after reload expected %+v, got %+v", want, got)
	}
	if p := m2.Providers(); len(p) != 1 || p[0] != "deepseek" {
		t.Errorf("Providers() = %v", p)
	}
}

func TestCredentialsEnvFallback(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), CredentialsFileName)
	if err := os.WriteFile(filePath, []byte(`{"moonshot":{"api_key":"from-file"}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MOONSHOT_API_KEY", "from-env")
	t.Setenv("MOONSHOT_BASE_URL", "https://env.example/v1")
	t.Setenv("OPEN_ROUTER_API_KEY", "router-key")

	m, err := NewManagerWithPath(filePath)
	if err != nil {
		t.Fatal(err)
	}

	got := m.Credentials("moonshot")
	if got.APIKey != "from-file" {
		t.Errorf("file value should win, got %q", got.APIKey)
	}
	if got.BaseURL != "https://env.example/v1" {
		t.Errorf("empty base URL should come from env, got %q", got.BaseURL)
	}
	if got := m.Credentials("open-router"); got.APIKey != "router-key" {
		t.Errorf("expected env key for open-router, got %q", got.APIKey)
	}
}

func TestInvalidCredentialsFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), CredentialsFileName)
	if err := os.WriteFile(filePath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewManagerWithPath(filePath); err == nil {
		t.Error("expected error for malformed credentials file")
	}
}
