package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	require.NoError(t, Init(path))
	t.Cleanup(func() { _ = Close() })

	SetDebug(false)
	Debugf("hidden %d", 1)
	Infof("hello %s", "world")
	Warnf("careful")
	SetDebug(true)
	Debugf("shown %d", 2)
	SetDebug(false)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "[INFO] hello world")
	assert.Contains(t, out, "[WARN] careful")
	assert.Contains(t, out, "[DEBUG] shown 2")
	assert.NotContains(t, out, "hidden")
}

func TestInitFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.log")
	t.Setenv(envLogPath, path)
	t.Setenv(envDebug, "1")
	require.NoError(t, InitFromEnv())
	t.Cleanup(func() {
		_ = Close()
		SetDebug(false)
	})

	Debugf("from env")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[DEBUG] from env")
}

func TestCloseIsIdempotent(t *testing.T) {
	assert.NoError(t, Close())
	assert.NoError(t, Close())
	// Writes after Close must not panic.
	Infof("dropped")
}
