package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo}, // Default for unknown
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		" info ":  LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}

	for input, expected := range tests {
		if got := ParseLevel(input); got != expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Error("Expected log message to appear in CLI output")
	}
	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in CLI output")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelWarn, &buf)

	Debug("filter", "debug message")
	Info("filter", "info message")
	Warn("filter", "warn message")

	output := buf.String()
	if strings.Contains(output, "debug message") || strings.Contains(output, "info message") {
		t.Errorf("Expected debug and info messages to be filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Expected warn message in output")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer

	Init(LevelDebug, FormatJSON, &buf)

	Error("Broker", errors.New("connection refused"), "token request to %s failed", "example.com")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["subsystem"] != "Broker" {
		t.Errorf("Expected subsystem Broker, got %v", entry["subsystem"])
	}
	if entry["error"] != "connection refused" {
		t.Errorf("Expected error attribute, got %v", entry["error"])
	}
	if entry["msg"] != "token request to example.com failed" {
		t.Errorf("Unexpected message %v", entry["msg"])
	}
}

func TestLogger_CarriesSubsystem(t *testing.T) {
	var buf bytes.Buffer

	InitForCLI(LevelInfo, &buf)

	Logger("Proxy").Info("relay closed", "connection_id", "abc")

	output := buf.String()
	if !strings.Contains(output, "subsystem=Proxy") {
		t.Errorf("Expected subsystem attribute, got %q", output)
	}
	if !strings.Contains(output, "connection_id=abc") {
		t.Errorf("Expected connection_id attribute, got %q", output)
	}
}

func TestTruncateID(t *testing.T) {
	if got := TruncateID("short"); got != "short" {
		t.Errorf("TruncateID(short) = %q", got)
	}
	if got := TruncateID("0123456789abcdef"); got != "01234567..." {
		t.Errorf("TruncateID(long) = %q", got)
	}
}
