package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

type GCSBuckets struct {
	client *gcs.Client
}

func NewGCSBuckets(ctx context.Context) (*GCSBuckets, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBuckets{client: c}, nil
}

func (b *GCSBuckets) Close() error { return b.client.Close() }

func (b *GCSBuckets) ForOrg(orgID uint) ObjectStore {
	return &gcsStore{bucket: b.client.Bucket(fmt.Sprintf("o_%d", orgID))}
}

type gcsStore struct {
	bucket *gcs.BucketHandle
}

func (s *gcsStore) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

func (s *gcsStore) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := s.bucket.Object(path).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (s *gcsStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (s *gcsStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.bucket.Object(path).Attrs(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
