package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// CoverStore persists book cover images and serves them via pre-signed URLs.
type CoverStore interface {
	PutCover(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	CoverURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	DeleteCover(ctx context.Context, key string) error
}

// MinioCoverStore implements CoverStore on MinIO/S3 compatible storage.
type MinioCoverStore struct {
	client *minio.Client
	bucket string
}

// NewMinioCoverStore connects to MinIO and ensures the bucket exists.
func NewMinioCoverStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioCoverStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioCoverStore{client: client, bucket: bucket}, nil
}

// PutCover uploads a cover image, replacing any previous object at the key.
func (m *MinioCoverStore) PutCover(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put cover: %w", err)
	}
	return nil
}

// CoverURL returns a time-limited download URL for the cover.
func (m *MinioCoverStore) CoverURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	signed, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign cover: %w", err)
	}
	return signed.String(), nil
}

// DeleteCover removes the stored cover image.
func (m *MinioCoverStore) DeleteCover(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete cover: %w", err)
	}
	return nil
}
