package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ExportStore delivers finished result objects to the export bucket and
// serves them back for download.
type ExportStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewExportStore creates an export store on the given bucket.
func NewExportStore(client *minio.Client, bucket string, logger *zap.Logger) *ExportStore {
	return &ExportStore{client: client, bucket: bucket, logger: logger}
}

// Put uploads one finished result object.
func (s *ExportStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put export %s: %w", key, err)
	}
	s.logger.Debug("export uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}

// Reader opens a stored result object for streaming. The caller closes
// the reader; read errors surface on the first Read, not here.
func (s *ExportStore) Reader(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get export %s: %w", key, err)
	}
	return obj, nil
}

// Stat returns the stored object's size.
func (s *ExportStore) Stat(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("stat export %s: %w", key, err)
	}
	return info.Size, nil
}

// PresignedURL returns a time-limited download URL for a result object.
func (s *ExportStore) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign export %s: %w", key, err)
	}
	return u.String(), nil
}

// ListKeys lists every stored object under a key prefix.
func (s *ExportStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list exports %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// Remove deletes a result object, used by retention cleanup.
func (s *ExportStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove export %s: %w", key, err)
	}
	return nil
}

// Ping verifies the export bucket is reachable, for readiness probes.
func (s *ExportStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ping bucket %s: %w", s.bucket, err)
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}
