package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirStore_Disk(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blobs")
	s, err := NewDirStore(dir)
	require.NoError(t, err)
	testBackend(t, s, deleteMissingFails)
}

func TestDirStore_Memory(t *testing.T) {
	testBackend(t, NewMemDirStore(), deleteMissingFails)
}

func TestDirStore_OneFilePerName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewDirStore(dir)
	require.NoError(t, err)

	name := "example.com/pkg.Type"
	require.NoError(t, s.Put(name, []byte("{}")))
	assert.Equal(t, "example.com%2Fpkg.Type.dat", s.Path(name))

	data, err := os.ReadFile(filepath.Join(dir, s.Path(name)))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}
