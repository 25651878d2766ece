package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/entity-cache/internal/storage"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(env(nil))
	require.NoError(t, err)
	assert.Equal(t, BackendSocket, cfg.Backend)
	assert.Equal(t, "cache.sock", filepath.Base(cfg.SocketPath))
	assert.Equal(t, "entity-cache", filepath.Base(filepath.Dir(cfg.BoltPath)))
	assert.Equal(t, 15*time.Minute, cfg.FetchTTL)
	assert.Equal(t, 5*time.Minute, cfg.SearchTTL)
	assert.Equal(t, time.Minute, cfg.SaveInterval)
	assert.Equal(t, 15*time.Minute, cfg.MaxTTL())
	assert.False(t, cfg.MinIO.UseSSL)
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := load(env(map[string]string{
		"ENTITY_CACHE_BACKEND":        "SQLite",
		"ENTITY_CACHE_SQLITE":         "/tmp/x.db",
		"ENTITY_CACHE_FETCH_TTL":      "90",
		"ENTITY_CACHE_SEARCH_TTL":     "1h",
		"ENTITY_CACHE_SAVE_INTERVAL":  "30s",
		"ENTITY_CACHE_MINIO_SSL":      "true",
		"ENTITY_CACHE_MINIO_ENDPOINT": "minio:9000",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, "/tmp/x.db", cfg.SQLitePath)
	assert.Equal(t, 90*time.Second, cfg.FetchTTL)
	assert.Equal(t, time.Hour, cfg.SearchTTL)
	assert.Equal(t, time.Hour, cfg.MaxTTL())
	assert.Equal(t, 30*time.Second, cfg.SaveInterval)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.Equal(t, "minio:9000", cfg.MinIO.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown backend", map[string]string{"ENTITY_CACHE_BACKEND": "redis"}},
		{"bad duration", map[string]string{"ENTITY_CACHE_FETCH_TTL": "soon"}},
		{"negative seconds", map[string]string{"ENTITY_CACHE_SEARCH_TTL": "-5"}},
		{"zero duration", map[string]string{"ENTITY_CACHE_SAVE_INTERVAL": "0s"}},
		{"bad bool", map[string]string{"ENTITY_CACHE_MINIO_SSL": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(env(tt.vars))
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
		})
	}
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()
	cfgs := map[string]Config{
		BackendMemory: {Backend: BackendMemory},
		BackendBolt:   {Backend: BackendBolt, BoltPath: filepath.Join(dir, "nested", "c.bbolt")},
		BackendDir:    {Backend: BackendDir, Dir: filepath.Join(dir, "blobs")},
		BackendSQLite: {Backend: BackendSQLite, SQLitePath: filepath.Join(dir, "sql", "c.db")},
	}
	for name, cfg := range cfgs {
		t.Run(name, func(t *testing.T) {
			b, closer, err := OpenBackend(cfg)
			require.NoError(t, err)
			defer closer.Close()

			require.NoError(t, b.Put("k", []byte("v")))
			got, err := b.Get("k")
			require.NoError(t, err)
			assert.Equal(t, "v", string(got))
		})
	}
}

func TestOpenBackend_Socket(t *testing.T) {
	b, closer, err := OpenBackend(Config{Backend: BackendSocket, SocketPath: "/nonexistent/cache.sock"})
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.IsType(t, &storage.Client{}, b)
}

func TestOpenBackend_MinIOWithoutEndpoint(t *testing.T) {
	_, _, err := OpenBackend(Config{Backend: BackendMinIO, MinIO: MinIO{Bucket: "b"}})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}

func TestOpenBackend_Unknown(t *testing.T) {
	_, _, err := OpenBackend(Config{Backend: "tape"})
	assert.Equal(t, errors.CodeInvalidConfig, errors.GetCode(err))
}
