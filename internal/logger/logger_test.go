package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newTestLogger creates a file logger in a temp dir and returns it with the log path.
func newTestLogger(t *testing.T, level Level, maxSize int64) (*DefaultLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	l, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: maxSize,
		MaxBackups:  3,
		Level:       level,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewDefaultLoggerCreatesFile(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024)
	defer l.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevelsAndFields(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	l.Debug("extract page", String("pdf", "book.pdf"))
	l.Info("blocks reconciled", Int("count", 42))
	l.Warn("extra block", Bool("orphan", true))
	l.Error("translate failed", errors.New("provider down"), Float64("scale", 2.5))
	l.Close()

	content := readLog(t, logPath)

	for _, want := range []string{
		"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]",
		"extract page", "blocks reconciled", "extra block", "translate failed",
		"pdf=book.pdf", "count=42", "orphan=true", "scale=2.5",
		"provider down", "Stack trace:",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q\n%s", want, content)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	l, logPath := newTestLogger(t, LevelWarn, 1024*1024)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message", nil)
	l.Close()

	content := readLog(t, logPath)
	if strings.Contains(content, "[DEBUG]") || strings.Contains(content, "[INFO]") {
		t.Error("debug and info should be filtered out")
	}
	if !strings.Contains(content, "[WARN]") || !strings.Contains(content, "[ERROR]") {
		t.Error("warn and error should be present")
	}
}

func TestSetLevel(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	l.Debug("debug before")
	l.SetLevel(LevelError)
	l.Debug("debug after")
	l.Warn("warn after")
	l.Error("error after", nil)
	l.Close()

	content := readLog(t, logPath)
	if !strings.Contains(content, "debug before") {
		t.Error("message before level change should be present")
	}
	if strings.Contains(content, "debug after") || strings.Contains(content, "warn after") {
		t.Error("messages below the new level should be filtered")
	}
	if !strings.Contains(content, "error after") {
		t.Error("error after level change should be present")
	}
}

func TestLogRotation(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 100)

	for i := 0; i < 20; i++ {
		l.Info("This is a test message that should trigger log rotation eventually")
	}
	l.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Backup log file was not created after rotation")
	}
	if _, err := os.Stat(logPath + ".5"); err == nil {
		t.Error("backups beyond MaxBackups should be removed")
	}
}

func TestFieldTypes(t *testing.T) {
	l, logPath := newTestLogger(t, LevelDebug, 1024*1024)

	l.Info("test fields",
		String("str", "hello"),
		Int64("int64", 9223372036854775807),
		Float64("float", 3.14159),
		Err(errors.New("sample error")),
		Any("any", map[string]int{"a": 1}),
	)
	l.Close()

	content := readLog(t, logPath)
	for _, want := range []string{
		"str=hello",
		"int64=9223372036854775807",
		"float=3.14159",
		`error="sample error"`,
		`any={"a":1}`,
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log output missing %q\n%s", want, content)
		}
	}
}

func TestGlobalLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "global.log")
	if err := Init(&Config{LogFilePath: logPath, MaxFileSize: 1024 * 1024, MaxBackups: 3, Level: LevelDebug}); err != nil {
		t.Fatalf("Failed to initialize global logger: %v", err)
	}

	Debug("global debug")
	Info("global info")
	Warn("global warn")
	Error("global error", errors.New("global test error"))
	Close()

	content := readLog(t, logPath)
	for _, want := range []string{"global debug", "global info", "global warn", "global error"} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	SetGlobalLogger(nil)

	Debug("test")
	Info("test")
	Warn("test")
	Error("test", nil)

	if GetLogger() == nil {
		t.Error("GetLogger should return noop logger, not nil")
	}
}

func TestLevelStringAndParse(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		str   string
	}{
		{"debug", LevelDebug, "DEBUG"},
		{"info", LevelInfo, "INFO"},
		{"warning", LevelWarn, "WARN"},
		{"ERROR", LevelError, "ERROR"},
		{"verbose", LevelInfo, "INFO"},
	}
	for _, tt := range tests {
		got := ParseLevel(tt.name)
		if got != tt.level {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.level)
		}
		if got.String() != tt.str {
			t.Errorf("Level(%d).String() = %s, want %s", got, got.String(), tt.str)
		}
	}
	if Level(99).String() != "UNKNOWN" {
		t.Error("unexpected name for out-of-range level")
	}
}

func TestErrFieldWithNil(t *testing.T) {
	field := Err(nil)
	if field.Key != "error" || field.Value != nil {
		t.Errorf("Err(nil) = %+v, want error=<nil>", field)
	}
}

func TestLogDirectoryCreation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "dir", "test.log")

	l, err := NewDefaultLogger(&Config{LogFilePath: logPath, MaxFileSize: 1024, MaxBackups: 1, Level: LevelDebug})
	if err != nil {
		t.Fatalf("Failed to create logger with nested directory: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(filepath.Dir(logPath)); os.IsNotExist(err) {
		t.Error("Nested log directory was not created")
	}
}
