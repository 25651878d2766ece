package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig holds MinIO/S3 connection settings.
type ObjectConfig struct {
	// Endpoint is the MinIO server address (e.g., "localhost:9000").
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix namespaces every object key.
	Prefix string
	// Client is an optional pre-configured client; connection fields are
	// ignored when it is set.
	Client *minio.Client
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

func (c *ObjectConfig) validate() error {
	if c.Bucket == "" {
		return errors.New(errors.CodeInvalidConfig, "object store: bucket is required")
	}
	if c.Client != nil {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New(errors.CodeInvalidConfig, "object store: endpoint is required when client is not provided")
	}
	if c.AccessKey == "" || c.SecretKey == "" {
		return errors.New(errors.CodeInvalidConfig, "object store: access key and secret key are required")
	}
	return nil
}

// ObjectStore is a Backend that keeps each blob as one object,
// <prefix>/<name>.dat, in a MinIO or S3-compatible bucket.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewObjectStore connects to the configured endpoint. The bucket must exist.
func NewObjectStore(cfg ObjectConfig) (*ObjectStore, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client := cfg.Client
	if client == nil {
		var err error
		client, err = minio.New(cfg.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeNetwork, "object store: create client")
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.Prefix, "/"),
		timeout: timeout,
	}, nil
}

func (o *ObjectStore) key(name string) string {
	k := url.PathEscape(name) + ".dat"
	if o.prefix == "" {
		return k
	}
	return path.Join(o.prefix, k)
}

func (o *ObjectStore) Put(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	_, err := o.client.PutObject(ctx, o.bucket, o.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return backendError(err, "put", name)
}

func (o *ObjectStore) Get(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	obj, err := o.client.GetObject(ctx, o.bucket, o.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, o.translate(err, "get", name)
	}
	defer func() { _ = obj.Close() }()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, o.translate(err, "get", name)
	}
	return data, nil
}

// Delete removes the object. S3 deletes are idempotent, so a missing name is
// not reported.
func (o *ObjectStore) Delete(name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	err := o.client.RemoveObject(ctx, o.bucket, o.key(name), minio.RemoveObjectOptions{})
	return o.translate(err, "delete", name)
}

func (o *ObjectStore) translate(err error, op, name string) error {
	if err == nil {
		return nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return notFound(name)
	}
	return backendError(err, op, name)
}
