package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{
		Level:      "info",
		LogDir:     tmpDir,
		MaxSizeMB:  10,
		MaxBackups: 5,
	})
	defer func() { _ = logger.Close() }()

	if logger == nil {
		t.Fatal("Expected logger to be created")
	}
}

func TestNew_InvalidDirectory(t *testing.T) {
	logger := New(Config{
		Level:  "info",
		LogDir: "/this/path/should/not/exist/and/fail",
	})

	// Should still create logger (fallback to stderr)
	if logger == nil {
		t.Fatal("Expected logger to be created even with invalid directory (fallback)")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close on fallback logger should not fail: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"Debug", "debug", zerolog.DebugLevel},
		{"Info", "info", zerolog.InfoLevel},
		{"Warn", "warn", zerolog.WarnLevel},
		{"Warning", "warning", zerolog.WarnLevel},
		{"Error", "error", zerolog.ErrorLevel},
		{"Debug uppercase", "DEBUG", zerolog.DebugLevel},
		{"Unknown", "unknown", zerolog.InfoLevel},
		{"Empty", "", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := parseLogLevel(tt.level); result != tt.expected {
				t.Errorf("Expected level %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestLogFileCreation(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{Level: "info", LogDir: tmpDir})
	defer func() { _ = logger.Close() }()

	logger.Info().Msg("Test log message")

	logFile := filepath.Join(tmpDir, DefaultFilename)
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Error("Log file should be created")
	}
}

func TestCustomFilename(t *testing.T) {
	tmpDir := t.TempDir()

	logger := New(Config{Level: "info", LogDir: tmpDir, Filename: "custom.log"})
	defer func() { _ = logger.Close() }()

	logger.Info().Msg("Test")

	if _, err := os.Stat(filepath.Join(tmpDir, "custom.log")); os.IsNotExist(err) {
		t.Error("Custom log file should be created")
	}
}

func TestConsoleOutput(t *testing.T) {
	tmpDir := t.TempDir()
	var console bytes.Buffer

	logger := New(Config{
		Level:      "debug",
		LogDir:     tmpDir,
		Console:    true,
		ConsoleOut: &console,
	})
	defer func() { _ = logger.Close() }()

	logger.Info().Msg("console line")

	if !strings.Contains(console.String(), "console line") {
		t.Errorf("console output missing message, got %q", console.String())
	}
}

func TestLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()
	var console bytes.Buffer

	logger := New(Config{
		Level:      "warn",
		LogDir:     tmpDir,
		Console:    true,
		ConsoleOut: &console,
	})
	defer func() { _ = logger.Close() }()

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := console.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be written at warn level")
	}
}

func TestWithField(t *testing.T) {
	logger := New(Config{Level: "info", LogDir: t.TempDir()})
	defer func() { _ = logger.Close() }()

	newLogger := logger.WithField("test_key", "test_value")
	if newLogger == logger {
		t.Error("WithField should return a new logger instance")
	}
}

func TestWithFields(t *testing.T) {
	logger := New(Config{Level: "info", LogDir: t.TempDir()})
	defer func() { _ = logger.Close() }()

	newLogger := logger.WithFields(map[string]interface{}{
		"key1": "value1",
		"key2": 123,
	})
	if newLogger == logger {
		t.Error("WithFields should return a new logger instance")
	}
}

func TestWithError(t *testing.T) {
	logger := New(Config{Level: "info", LogDir: t.TempDir()})
	defer func() { _ = logger.Close() }()

	if logger.WithError(errors.New("test error")) == logger {
		t.Error("WithError should return a new logger instance")
	}
	if logger.WithError(nil) == nil {
		t.Fatal("Expected logger even with nil error")
	}
}

func TestLogDirCreation(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "log", "dir")

	logger := New(Config{Level: "info", LogDir: nestedDir})
	defer func() { _ = logger.Close() }()

	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("Nested log directory should be created")
	}
}
