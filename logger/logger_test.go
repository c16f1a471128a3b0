package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/vquota/config"
)

func TestInitialize_FileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcheckquota.log")

	f, err := Initialize(config.LoggingConfig{Output: path, Format: "json", Level: "info"})
	require.NoError(t, err)
	require.NotNil(t, f)
	t.Cleanup(func() { f.Close() })

	Debug("hidden")
	With("maildir", "/home/vmail/joe").Info("Quota checked", "verdict", "accept", "usage", 4096)
	require.NoError(t, f.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "Quota checked", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "/home/vmail/joe", entry["maildir"])
	assert.Equal(t, "accept", entry["verdict"])
	assert.Equal(t, 4096.0, entry["usage"])
}

func TestInitialize_DefaultsToWarn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcheckquota.log")

	f, err := Initialize(config.LoggingConfig{Output: path})
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	Get().Info("not written")
	Warn("written")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "not written")
	assert.Contains(t, string(content), "msg=written")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelWarn,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestInitialize_FallsBackToStderr(t *testing.T) {
	output := filepath.Join(t.TempDir(), "missing", "vcheckquota.log")

	f, err := Initialize(config.LoggingConfig{Output: output})
	require.Error(t, err)
	assert.Nil(t, f)
	assert.Contains(t, err.Error(), "logging to stderr")
	assert.NotNil(t, Get())
}
