// Package minio provides a blobstore.Store backed by any S3-compatible
// object store via the MinIO client.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/time/rate"

	"github.com/hupe1980/seqdb/blobstore"
)

// Options configures the MinIO-backed store.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Secure    bool

	// Prefix is prepended to every blob name inside the bucket.
	Prefix string

	// PutsPerSecond rate-limits uploads; zero means unlimited. Snapshot
	// saves fan out one upload per partition, which can overwhelm small
	// endpoints.
	PutsPerSecond float64
}

// Store implements blobstore.Store on a bucket.
type Store struct {
	client  *minio.Client
	bucket  string
	prefix  string
	limiter *rate.Limiter
}

var _ blobstore.Store = (*Store)(nil)

// NewStore connects to the endpoint and ensures the bucket exists.
func NewStore(ctx context.Context, bucket string, opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect %s: %w", opts.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: create bucket %s: %w", bucket, err)
		}
	}

	var limiter *rate.Limiter
	if opts.PutsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.PutsPerSecond), 1)
	}

	return &Store{
		client:  client,
		bucket:  bucket,
		prefix:  opts.Prefix,
		limiter: limiter,
	}, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

// Put uploads a blob.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.key(name), r, size, minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("minio: put %s: %w", name, err)
	}
	return nil
}

// Open downloads a blob for sequential reading.
func (s *Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %s: %w", name, err)
	}
	// GetObject is lazy; surface missing blobs on open instead of first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, fmt.Errorf("minio: get %s: %w", name, errors.Join(err, blobstore.ErrNotFound))
		}
		return nil, fmt.Errorf("minio: get %s: %w", name, err)
	}
	return obj, nil
}
