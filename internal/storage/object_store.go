package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"geodrop/internal/config"
	"geodrop/internal/models"
)

// ObjectStore keeps full photos in the originals bucket and thumbnails in the
// variants bucket.
type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.cfg.BucketOriginals, s.cfg.BucketVariants} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("bucket exists %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *ObjectStore) PutOriginal(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.put(ctx, s.cfg.BucketOriginals, key, r, size, contentType)
}

func (s *ObjectStore) PutThumbnail(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.put(ctx, s.cfg.BucketVariants, key, r, size, contentType)
}

func (s *ObjectStore) put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// GetOriginal streams a full photo. The caller closes the reader.
func (s *ObjectStore) GetOriginal(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.BucketOriginals, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return obj, nil
}

// RemoveAssets deletes both blobs of a photo. A missing object is not an
// error; every other failure is collected and returned together.
func (s *ObjectStore) RemoveAssets(ctx context.Context, refs models.AssetRefs) error {
	var errs []error
	remove := func(bucket, key string) {
		if key == "" {
			return
		}
		err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
		if err != nil && !IsNotFound(err) {
			errs = append(errs, fmt.Errorf("remove %s/%s: %w", bucket, key, err))
		}
	}
	remove(s.cfg.BucketOriginals, refs.ImageKey)
	remove(s.cfg.BucketVariants, refs.ThumbnailKey)
	return errors.Join(errs...)
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.cfg.BucketOriginals)
	return err
}

// URLFor returns the public URL of an asset key.
func (s *ObjectStore) URLFor(key string, thumbnail bool) string {
	bucket := s.cfg.BucketOriginals
	if thumbnail {
		bucket = s.cfg.BucketVariants
	}
	return PublicURL(s.cfg, bucket, key)
}

// PublicURL prefers the configured public base and falls back to the
// endpoint, assuming https when no scheme is given.
func PublicURL(cfg config.StorageConfig, bucket, key string) string {
	base := strings.TrimSuffix(cfg.PublicURL, "/")
	if base == "" {
		base = strings.TrimSuffix(cfg.Endpoint, "/")
		if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
			scheme := "http://"
			if cfg.UseSSL {
				scheme = "https://"
			}
			base = scheme + base
		}
	}
	return fmt.Sprintf("%s/%s/%s", base, bucket, key)
}

// ObjectKey lays originals out by upload date: 2006/01/02/<id>.<ext>.
func ObjectKey(id, ext string, now time.Time) string {
	return path.Join(now.UTC().Format("2006/01/02"), fmt.Sprintf("%s.%s", id, ext))
}

// ThumbnailKey derives the variant key from an original key. Thumbnails are
// always JPEG.
func ThumbnailKey(imageKey string) string {
	ext := path.Ext(imageKey)
	return strings.TrimSuffix(imageKey, ext) + "_thumb.jpeg"
}

// IsNotFound reports whether err is a missing-object response.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey"
	}
	return false
}
