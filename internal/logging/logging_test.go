package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "ParseLevel(%q)", tc.in)
	}
}

func TestNewLogger_WritesJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := WithSessionID(WithComponent(newLogger(&buf, "info"), "export"), "abc123")

	logger.Info("export started")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "export started", rec["msg"])
	assert.Equal(t, "export", rec["component"])
	assert.Equal(t, "abc123", rec["session_id"])
}

func TestNewLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn")

	logger.Info("ignored")
	assert.Zero(t, buf.Len())
}

func TestSize(t *testing.T) {
	assert.Equal(t, "0 B", Size(-5))
	assert.Equal(t, "1.5 kB", Size(1500))
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "****", SanitizeToken("short"))
	assert.Equal(t, "abcd...wxyz", SanitizeToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := SanitizePath(filepath.Join(home, "Downloads", "session_a.zip"))
	assert.Equal(t, "~"+string(filepath.Separator)+filepath.Join("Downloads", "session_a.zip"), got)
	assert.Equal(t, "/opt/x", SanitizePath("/opt/x"))
}

func TestRotator_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "exporter.log")
	file := newRotator(DefaultRotation(path))
	logger := newLogger(file, "info")

	logger.Info("export saved", "size", Size(2048))
	require.NoError(t, file.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "export saved", rec["msg"])
	assert.Equal(t, "2.0 kB", rec["size"])
}
