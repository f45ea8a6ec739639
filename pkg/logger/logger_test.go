package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UnknownEnv(t *testing.T) {
	_, err := New(Config{Env: "staging"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown environment")
}

func TestNew_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "prod", Output: &buf})
	require.NoError(t, err)

	log.Info("upload finished", "recording_id", "r-1")

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"recording_id":"r-1"`)
}

func TestNew_TestEnvOnlyErrors(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: "test", Output: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Error("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_CLIDropsTime(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Config{Env: EnvCLI, Output: &buf})
	require.NoError(t, err)

	log.Info("hidden")
	log.Warn("upload retried", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.NotContains(t, out, "time=")
	assert.Contains(t, out, "attempt=2")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("dev", "warn"))
	assert.Equal(t, slog.LevelDebug, parseLogLevel("dev", ""))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("prod", "bogus"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel(EnvCLI, ""))
}

func TestShortenPath(t *testing.T) {
	assert.Equal(t, "recorder/engine.go", shortenPath("/src/internal/recorder/engine.go", 2))
	assert.Equal(t, "engine.go", shortenPath("engine.go", 3))
	assert.Equal(t, "/a/b", shortenPath("/a/b", 0))
}
