package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQL(t *testing.T, path string) *SQLStore {
	t.Helper()
	s, err := OpenSQL(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLStore(t *testing.T) {
	s := openTestSQL(t, filepath.Join(t.TempDir(), "cache.db"))
	testBackend(t, s, deleteMissingFails)
}

func TestSQLStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenSQL(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("kept", []byte(`{"x":1}`)))
	require.NoError(t, s.Close())

	s = openTestSQL(t, path)
	got, err := s.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(got))
}

func TestSQLStore_EmptyBlob(t *testing.T) {
	s := openTestSQL(t, filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, s.Put("empty", nil))
	got, err := s.Get("empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}
