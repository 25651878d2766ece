package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBolt(t *testing.T, path string) *BoltStore {
	t.Helper()
	s, err := OpenBolt(path, BoltOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBoltStore(t *testing.T) {
	s := openTestBolt(t, filepath.Join(t.TempDir(), "cache.bbolt"))
	testBackend(t, s, deleteMissingSucceeds)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bbolt")
	s, err := OpenBolt(path, BoltOptions{Bucket: "custom"})
	require.NoError(t, err)
	require.NoError(t, s.Put("kept", []byte("v1")))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path, BoltOptions{Bucket: "custom"})
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestBoltStore_CloseNil(t *testing.T) {
	var s *BoltStore
	assert.NoError(t, s.Close())
}
