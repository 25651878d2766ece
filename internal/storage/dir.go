package storage

import (
	"net/url"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// DirStore is a directory-backed Backend: every blob name maps to one file,
// <dir>/<name>.dat. Names are path-escaped so type identifiers containing
// slashes stay a single file.
type DirStore struct {
	fs billy.Filesystem
}

// NewDirStore stores blobs under dir on the local disk, creating it if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, backendError(err, "mkdir", dir)
	}
	return &DirStore{fs: osfs.New(dir)}, nil
}

// NewMemDirStore returns a DirStore over an in-memory filesystem.
func NewMemDirStore() *DirStore {
	return &DirStore{fs: memfs.New()}
}

// NewDirStoreFS wraps an existing billy filesystem.
func NewDirStoreFS(fs billy.Filesystem) *DirStore {
	return &DirStore{fs: fs}
}

// Path returns the file name used for a blob name, relative to the root.
func (d *DirStore) Path(name string) string {
	return url.PathEscape(name) + ".dat"
}

// Put writes to a temporary file first and renames it into place, so a
// reader never sees a half-written blob.
func (d *DirStore) Put(name string, data []byte) error {
	tmp, err := util.TempFile(d.fs, "", ".tmp-")
	if err != nil {
		return backendError(err, "put", name)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = d.fs.Remove(tmpName)
		return backendError(err, "put", name)
	}
	if err := tmp.Close(); err != nil {
		_ = d.fs.Remove(tmpName)
		return backendError(err, "put", name)
	}
	if err := d.fs.Rename(tmpName, d.Path(name)); err != nil {
		_ = d.fs.Remove(tmpName)
		return backendError(err, "put", name)
	}
	return nil
}

func (d *DirStore) Get(name string) ([]byte, error) {
	data, err := util.ReadFile(d.fs, d.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(name)
		}
		return nil, backendError(err, "get", name)
	}
	return data, nil
}

// Delete removes the blob's file. Unlike BoltStore, deleting a name that was
// never stored is an error.
func (d *DirStore) Delete(name string) error {
	if err := d.fs.Remove(d.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return notFound(name)
		}
		return backendError(err, "delete", name)
	}
	return nil
}
