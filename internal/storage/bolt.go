package storage

import (
	"time"

	bolt "go.etcd.io/bbolt"
)

// BoltStore is a preference-style Backend: one bbolt bucket where every blob
// name is a single key. It is safe for concurrent use by multiple goroutines.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

type BoltOptions struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// Timeout bounds how long Open waits for the file lock.
	Timeout time.Duration
}

// OpenBolt initializes or opens a BoltStore at the given path.
func OpenBolt(path string, opts BoltOptions) (*BoltStore, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 1 * time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, backendError(err, "open", path)
	}
	bucket := []byte("entities")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, backendError(err, "create bucket", string(bucket))
	}
	return &BoltStore{db: db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) Put(name string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(name), data)
	})
	return backendError(err, "put", name)
}

func (s *BoltStore) Get(name string) ([]byte, error) {
	var out []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(name))
		if v != nil {
			// v is only valid for the life of the transaction.
			out = append([]byte{}, v...)
		}
		return nil
	}); err != nil {
		return nil, backendError(err, "get", name)
	}
	if out == nil {
		return nil, notFound(name)
	}
	return out, nil
}

// Delete removes a key. Deleting a missing key is not an error, matching the
// behavior of a preference store.
func (s *BoltStore) Delete(name string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(name))
	})
	return backendError(err, "delete", name)
}
