package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json format", config: &Config{Level: LevelInfo, Format: "json", Output: &bytes.Buffer{}}},
		{name: "text format", config: &Config{Level: LevelDebug, Format: "text", Output: &bytes.Buffer{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerWithContext(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Format: "text", Output: &buf, NoColor: true}

	logger := NewLogger(config)

	rntiLogger := logger.WithRNTI(0x46)
	rntiLogger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "rnti=0x46") {
		t.Errorf("expected rnti=0x46 in output, got: %s", output)
	}

	buf.Reset()
	ccLogger := rntiLogger.WithCarrier(1)
	ccLogger.Info("carrier message")

	output = buf.String()
	if !strings.Contains(output, "rnti=0x46") || !strings.Contains(output, "cc=1") {
		t.Errorf("expected rnti and cc fields in output, got: %s", output)
	}
}

func TestLoggerWithTTI(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf, NoColor: true})

	ttiLogger := logger.WithTTI(123)
	ttiLogger.Debug("processing tti")

	output := buf.String()
	if !strings.Contains(output, "tti=123") {
		t.Errorf("expected tti=123 in output, got: %s", output)
	}
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf, NoColor: true})

	testErr := errors.New("test error")
	errorLogger := logger.WithError(testErr)
	errorLogger.Error("operation failed")

	output := buf.String()
	if !strings.Contains(output, "test error") {
		t.Errorf("expected 'test error' in output, got: %s", output)
	}
}

func TestGlobalLoggerFunctions(t *testing.T) {
	var buf bytes.Buffer
	config := &Config{Level: LevelDebug, Output: &buf, NoColor: true}

	SetDefault(NewLogger(config))

	Debug("debug message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "debug message") || !strings.Contains(output, "key=value") {
		t.Errorf("expected debug message with key=value, got: %s", output)
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
