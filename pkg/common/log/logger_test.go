package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf), WithLevel(LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below the level were logged: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("messages at or above the level were dropped: %q", out)
	}
}

func TestFormatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.Info("spilled %d records to %s", 42, "out.0.tmp")

	out := buf.String()
	if !strings.Contains(out, "[INFO]") {
		t.Errorf("level tag missing from output: %q", out)
	}
	if !strings.Contains(out, "spilled 42 records to out.0.tmp") {
		t.Errorf("formatted message missing from output: %q", out)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.WithField("run", 3).Info("merged")

	out := buf.String()
	if !strings.Contains(out, "run=3") {
		t.Errorf("field missing from output: %q", out)
	}

	// The parent logger must not inherit the field.
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "run=3") {
		t.Error("WithField mutated the parent logger")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStandardLogger(WithOutput(&buf))

	logger.SetLevel(LevelError)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestLevelString(t *testing.T) {
	tests := map[Level]string{
		LevelDebug: "DEBUG",
		LevelInfo:  "INFO",
		LevelWarn:  "WARN",
		LevelError: "ERROR",
		LevelFatal: "FATAL",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, expected %q", level, got, want)
		}
	}
}
