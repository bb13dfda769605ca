package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readLogLines reads debug.log from dir and returns its decoded JSON entries.
func readLogLines(t *testing.T, dir string) []map[string]any {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "debug.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not valid JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Info("thread allocated", "thread_id", 3, "backend_port", 8103)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries := readLogLines(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	if entries[0]["msg"] != "thread allocated" {
		t.Errorf("msg = %v, want %q", entries[0]["msg"], "thread allocated")
	}
	if entries[0]["thread_id"] != float64(3) {
		t.Errorf("thread_id = %v, want 3", entries[0]["thread_id"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "warn")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	logger.Debug("ignored")
	logger.Info("also ignored")
	logger.Warn("health check timed out")
	logger.Error("registry write failed")
	_ = logger.Close()

	entries := readLogLines(t, dir)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries at warn level, got %d", len(entries))
	}
}

func TestWithThreadPropagatesAttribute(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, "debug")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithThread(7).WithOperation("teardown")
	child.Info("removing worktree")
	_ = logger.Close()

	entries := readLogLines(t, dir)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["thread_id"] != float64(7) {
		t.Errorf("thread_id = %v, want 7", entries[0]["thread_id"])
	}
	if entries[0]["operation"] != "teardown" {
		t.Errorf("operation = %v, want teardown", entries[0]["operation"])
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"WARN", "WARN"},
		{"Error", "ERROR"},
		{"nonsense", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input).String(); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	logger.WithThread(1).Error("also discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger returned error: %v", err)
	}
}
