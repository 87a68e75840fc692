package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "nil config falls back to defaults", config: nil},
		{name: "explicit debug level", config: &Config{Level: LevelDebug, Output: &bytes.Buffer{}}},
		{name: "explicit info level", config: &Config{Level: LevelInfo, Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Fatal("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info to be filtered below LevelWarn, got: %s", buf.String())
	}

	logger.Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Fatalf("expected warning message, got: %s", buf.String())
	}
}

func TestLoggerArgsFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Info("handshake accepted", "cookie", uint64(7), "addr", "peer")
	output := buf.String()
	if !strings.Contains(output, "cookie=7") {
		t.Errorf("expected cookie=7 in output, got: %s", output)
	}
	if !strings.Contains(output, "addr=peer") {
		t.Errorf("expected addr=peer in output, got: %s", output)
	}
}

func TestLoggerPrintfStyle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Errorf("tick rejected: %s", "time regressed")
	if !strings.Contains(buf.String(), "tick rejected: time regressed") {
		t.Errorf("expected formatted error message, got: %s", buf.String())
	}

	buf.Reset()
	logger.Printf("next wake-up in %dns", 500)
	if !strings.Contains(buf.String(), "next wake-up in 500ns") {
		t.Errorf("expected formatted printf message, got: %s", buf.String())
	}
}

func TestLoggerWithCookie(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	connLogger := logger.WithCookie(42)
	connLogger.Info("established")

	output := buf.String()
	if !strings.Contains(output, "cookie=42") {
		t.Errorf("expected cookie=42 in output, got: %s", output)
	}

	buf.Reset()
	addrLogger := connLogger.WithAddr("peer")
	addrLogger.Info("forwarded")

	output = buf.String()
	if !strings.Contains(output, "cookie=42") {
		t.Errorf("expected cookie=42 to survive WithAddr, got: %s", output)
	}
	if !strings.Contains(output, "addr=peer") {
		t.Errorf("expected addr=peer in output, got: %s", output)
	}
}

func TestLoggerWithCookieLeavesParentUnchanged(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})
	_ = logger.WithCookie(7)

	logger.Info("no context")
	if strings.Contains(buf.String(), "cookie=7") {
		t.Errorf("WithCookie must not mutate the parent logger, got: %s", buf.String())
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") {
		t.Errorf("expected debug message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value, got: %s", output)
	}

	buf.Reset()
	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("expected info message, got: %s", buf.String())
	}

	buf.Reset()
	Warn("warning message")
	if !strings.Contains(buf.String(), "warning message") {
		t.Errorf("expected warning message, got: %s", buf.String())
	}

	buf.Reset()
	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("expected error message, got: %s", buf.String())
	}
}
