// Package config reads process configuration from the environment and builds
// the persistence backend it selects.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"

	"github.com/leonardcser/entity-cache/internal/storage"
)

// Backend kinds accepted by ENTITY_CACHE_BACKEND.
const (
	BackendSocket = "socket"
	BackendBolt   = "bolt"
	BackendDir    = "dir"
	BackendSQLite = "sqlite"
	BackendMinIO  = "minio"
	BackendMemory = "memory"
)

type MinIO struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
	UseSSL    bool
}

type Config struct {
	Backend    string
	SocketPath string
	BoltPath   string
	Dir        string
	SQLitePath string
	MinIO      MinIO

	FetchTTL     time.Duration
	SearchTTL    time.Duration
	SaveInterval time.Duration
}

// Load reads configuration from the environment, filling in defaults under
// ~/.cache/entity-cache.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	base := defaultBaseDir()
	cfg := Config{
		Backend:    strings.ToLower(defaultString(getenv("ENTITY_CACHE_BACKEND"), BackendSocket)),
		SocketPath: defaultString(getenv("ENTITY_CACHE_SOCK"), filepath.Join(base, "cache.sock")),
		BoltPath:   defaultString(getenv("ENTITY_CACHE_DB"), filepath.Join(base, "cache.bbolt")),
		Dir:        defaultString(getenv("ENTITY_CACHE_DIR"), filepath.Join(base, "blobs")),
		SQLitePath: defaultString(getenv("ENTITY_CACHE_SQLITE"), filepath.Join(base, "cache.db")),
		MinIO: MinIO{
			Endpoint:  getenv("ENTITY_CACHE_MINIO_ENDPOINT"),
			Bucket:    defaultString(getenv("ENTITY_CACHE_MINIO_BUCKET"), "entity-cache"),
			AccessKey: getenv("ENTITY_CACHE_MINIO_ACCESS_KEY"),
			SecretKey: getenv("ENTITY_CACHE_MINIO_SECRET_KEY"),
			Prefix:    getenv("ENTITY_CACHE_MINIO_PREFIX"),
		},
	}

	var err error
	if cfg.MinIO.UseSSL, err = parseBool(getenv, "ENTITY_CACHE_MINIO_SSL"); err != nil {
		return Config{}, err
	}
	if cfg.FetchTTL, err = parseDuration(getenv, "ENTITY_CACHE_FETCH_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SearchTTL, err = parseDuration(getenv, "ENTITY_CACHE_SEARCH_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SaveInterval, err = parseDuration(getenv, "ENTITY_CACHE_SAVE_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}

	switch cfg.Backend {
	case BackendSocket, BackendBolt, BackendDir, BackendSQLite, BackendMinIO, BackendMemory:
	default:
		return Config{}, errors.WithContext(
			errors.New(errors.CodeInvalidConfig, "config: unknown backend "+cfg.Backend),
			"ENTITY_CACHE_BACKEND", cfg.Backend)
	}
	return cfg, nil
}

// MaxTTL is the longest entity lifetime; records older than it are useless.
func (c Config) MaxTTL() time.Duration {
	if c.FetchTTL > c.SearchTTL {
		return c.FetchTTL
	}
	return c.SearchTTL
}

// OpenBackend builds the backend selected by cfg.Backend. The returned closer
// releases it and is never nil.
func OpenBackend(cfg Config) (storage.Backend, io.Closer, error) {
	switch cfg.Backend {
	case BackendSocket:
		return storage.NewClient(cfg.SocketPath), nopCloser{}, nil
	case BackendBolt:
		if err := ensureParentDir(cfg.BoltPath); err != nil {
			return nil, nil, err
		}
		s, err := storage.OpenBolt(cfg.BoltPath, storage.BoltOptions{})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendDir:
		s, err := storage.NewDirStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case BackendSQLite:
		if err := ensureParentDir(cfg.SQLitePath); err != nil {
			return nil, nil, err
		}
		s, err := storage.OpenSQL(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendMinIO:
		s, err := storage.NewObjectStore(storage.ObjectConfig{
			Endpoint:  cfg.MinIO.Endpoint,
			Bucket:    cfg.MinIO.Bucket,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Prefix:    cfg.MinIO.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case BackendMemory:
		return storage.NewMemory(), nopCloser{}, nil
	}
	return nil, nil, errors.New(errors.CodeInvalidConfig, "config: unknown backend "+cfg.Backend)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func defaultBaseDir() string {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "."
	}
	return filepath.Join(home, ".cache", "entity-cache")
}

func defaultString(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func parseBool(getenv func(string) string, key string) (bool, error) {
	v := getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, invalid(err, key, v)
	}
	return b, nil
}

// parseDuration accepts Go durations ("90s", "15m") or a bare number of
// seconds.
func parseDuration(getenv func(string) string, key string, d time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return d, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, invalid(errors.New(errors.CodeInvalidConfig, "must be positive"), key, v)
		}
		return time.Duration(n) * time.Second, nil
	}
	out, err := time.ParseDuration(v)
	if err != nil {
		return 0, invalid(err, key, v)
	}
	if out <= 0 {
		return 0, invalid(errors.New(errors.CodeInvalidConfig, "must be positive"), key, v)
	}
	return out, nil
}

func invalid(err error, key, value string) error {
	return errors.WithContext(errors.Wrapf(err, errors.CodeInvalidConfig, "config: invalid %s=%q", key, value), key, value)
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "config: create "+filepath.Dir(path))
	}
	return nil
}
