// Package storage keeps uploaded pitch decks in S3-compatible object
// storage and hands out short-lived download links.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DeckStore is the pitch deck bucket. A nil *DeckStore is valid and reports
// itself unconfigured, so deck upload endpoints degrade cleanly when no
// object storage is wired up.
type DeckStore struct {
	client *minio.Client
	bucket string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func New(ctx context.Context, cfg Config) (*DeckStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &DeckStore{client: client, bucket: cfg.Bucket}, nil
}

func (d *DeckStore) IsConfigured() bool {
	return d != nil
}

// Upload stores a deck under the given key, overwriting any previous
// version.
func (d *DeckStore) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if d == nil {
		return fmt.Errorf("object storage not configured")
	}
	_, err := d.client.PutObject(ctx, d.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload deck %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download link. Decks are never made
// publicly readable; every download goes through a signed URL.
func (d *DeckStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if d == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	u, err := d.client.PresignedGetObject(ctx, d.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign deck %s: %w", key, err)
	}
	return u.String(), nil
}
