package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "warn", "json")

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "test").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line at warn level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["app"] != "pptlinks-bot" || entry["component"] != "test" || entry["message"] != "shown" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithWriter_BadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "loud", "console")
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("want info level, got %s", logger.GetLevel())
	}
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Fatalf("console output missing message: %q", buf.String())
	}
}
