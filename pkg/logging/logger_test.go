package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelWarn {
		t.Errorf("Expected default level to be warn, got %s", cfg.Level)
	}

	if !cfg.Pretty {
		t.Error("Expected default pretty to be true for terminal use")
	}
}

func TestSetup(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		emit     func(zerolog.Logger, string)
		testMsg  string
		contains string
	}{
		{
			name:     "info_level",
			level:    LevelInfo,
			emit:     func(l zerolog.Logger, m string) { l.Info().Msg(m) },
			testMsg:  "session established",
			contains: "session established",
		},
		{
			name:     "debug_level",
			level:    LevelDebug,
			emit:     func(l zerolog.Logger, m string) { l.Debug().Msg(m) },
			testMsg:  "cache hit",
			contains: "cache hit",
		},
		{
			name:     "warn_level",
			level:    LevelWarn,
			emit:     func(l zerolog.Logger, m string) { l.Warn().Msg(m) },
			testMsg:  "cooldown started",
			contains: "cooldown started",
		},
		{
			name:     "error_level",
			level:    LevelError,
			emit:     func(l zerolog.Logger, m string) { l.Error().Msg(m) },
			testMsg:  "command failed",
			contains: "command failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := Setup(Config{Level: tt.level, Output: buf})

			tt.emit(logger, tt.testMsg)

			output := buf.String()
			if !strings.Contains(output, tt.contains) {
				t.Errorf("Expected output to contain %q, got %q", tt.contains, output)
			}
		})
	}
}

func TestSetup_UnknownLevelWarns(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: "chatty", Output: buf})

	if !strings.Contains(buf.String(), "Unknown log level") {
		t.Errorf("Expected a warning about the level, got %q", buf.String())
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
		known    bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{"INFO", zerolog.InfoLevel, true},
		{"warn", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"error", zerolog.ErrorLevel, true},
		{"trace", zerolog.TraceLevel, true},
		{"disabled", zerolog.Disabled, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, true},
		{"invalid", zerolog.InfoLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, known := ParseLevel(tt.input)
			if level != tt.expected || known != tt.known {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.input, level, known, tt.expected, tt.known)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("wizard")
	logger.Info().Msg("test message")

	output := buf.String()
	if !strings.Contains(output, `"component":"wizard"`) {
		t.Errorf("Expected output to contain the component, got %q", output)
	}
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{
		Level:  LevelWarn,
		Pretty: false,
		Output: buf,
	})

	logger := NewLogger("test")

	// These should NOT appear (below warn level)
	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")

	// These SHOULD appear (warn level and above)
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	output := buf.String()

	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered out at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered out at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message should be included at Warn level")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message should be included at Warn level")
	}
}
