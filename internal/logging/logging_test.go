package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "snipsync.log")
	logger, closeFn, err := New("info", path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("applied", zap.String("path", "a.txt"))
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), data)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "applied" || entry["path"] != "a.txt" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := New("loud", ""); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
