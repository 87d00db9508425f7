package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/deskchat/deskchat-server/internal/blob"
)

// Config holds MinIO connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool

	// PublicURL is the base URL clients use to fetch objects, e.g.
	// "https://files.example.com". Defaults to the endpoint scheme+host.
	PublicURL string
}

// Store implements blob.Store on a MinIO (or S3-compatible) bucket.
type Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// New connects to MinIO and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = scheme + "://" + cfg.Endpoint
	}

	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

// Put stores the content under a fresh uuid key, preserving the
// original file extension for content-type sniffing on download.
func (s *Store) Put(ctx context.Context, name, mime string, size int64, r io.Reader) (blob.Object, error) {
	key := uuid.NewString() + strings.ToLower(path.Ext(name))

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: mime,
	}); err != nil {
		return blob.Object{}, fmt.Errorf("put object: %w", err)
	}

	return blob.Object{
		URL:  fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key),
		Name: name,
		Mime: mime,
		Size: size,
	}, nil
}
