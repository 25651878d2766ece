package storage

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDaemon serves b on a fresh Unix socket until the test ends.
func startDaemon(t *testing.T, b Backend) *Client {
	t.Helper()
	// Socket paths are length limited, so avoid the long t.TempDir() path.
	dir, err := os.MkdirTemp("", "ec")
	require.NoError(t, err)
	sock := filepath.Join(dir, "d.sock")

	l, err := net.Listen("unix", sock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, l, b) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
		_ = os.RemoveAll(dir)
	})
	return NewClient(sock)
}

func TestClientServer(t *testing.T) {
	c := startDaemon(t, NewMemory())
	require.NoError(t, c.Ping())
	testBackend(t, c, deleteMissingFails)
}

func TestClientServer_PropagatesCodes(t *testing.T) {
	c := startDaemon(t, failingBackend{})
	err := c.Put("x", []byte("y"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeDatabase, errors.GetCode(err))
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestClient_NoDaemon(t *testing.T) {
	c := NewClient(filepath.Join(t.TempDir(), "missing.sock"))
	err := c.Ping()
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))

	_, err = c.Get("x")
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
}

func TestHandle_UnknownOp(t *testing.T) {
	resp := handle(Request{Op: "list"}, NewMemory())
	assert.False(t, resp.OK)
	assert.Equal(t, string(errors.CodeInvalidInput), resp.Code)
}

type failingBackend struct{}

func (failingBackend) Put(string, []byte) error {
	return errors.New(errors.CodeDatabase, "disk on fire")
}

func (failingBackend) Get(name string) ([]byte, error) { return nil, notFound(name) }

func (failingBackend) Delete(string) error { return nil }
