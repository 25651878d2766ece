package storage

import (
	"github.com/jmgilman/go/errors"
)

// Backend is a named byte-blob store. Each name holds at most one blob and a
// Put overwrites whatever was stored under it before.
// Implementations must be safe for concurrent use by multiple goroutines.
type Backend interface {
	// Put durably associates data with name.
	Put(name string, data []byte) error
	// Get returns the last blob stored under name, or ErrNotFound.
	Get(name string) ([]byte, error)
	// Delete removes the blob stored under name.
	Delete(name string) error
}

// ErrNotFound is returned by Get when nothing is stored under a name.
var ErrNotFound = errors.New(errors.CodeNotFound, "storage: not found")

// notFound wraps ErrNotFound with the missing name attached.
func notFound(name string) error {
	return errors.WithContext(errors.Wrap(ErrNotFound, errors.CodeNotFound, "no blob named "+name), "name", name)
}

// backendError wraps an I/O failure of the underlying medium.
func backendError(err error, op, name string) error {
	if err == nil {
		return nil
	}
	return errors.WithContext(errors.Wrapf(err, errors.CodeDatabase, "storage: %s %s", op, name), "name", name)
}
