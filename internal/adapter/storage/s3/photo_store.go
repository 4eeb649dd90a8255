// Package s3 manages listing photos in an S3 compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/config"
	"github.com/Abdurahmanit/GroupProject/classifieds-service/internal/platform/logger"
)

// DefaultPhotoLifetime is how long an uploaded photo is kept.
const DefaultPhotoLifetime = 60 * 24 * time.Hour

// uploadExpiry is how long a presigned upload URL stays valid.
const uploadExpiry = 15 * time.Minute

// PhotoSizes are the size labels a photo name may carry.
var PhotoSizes = []string{"small", "medium", "large"}

var (
	ErrInvalidPhotoName = errors.New("invalid photo name")
	ErrInvalidPhotoSize = errors.New("invalid photo size")

	photoNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\-]+$`)
)

// NewPhotoName names an object uploaded at now: "<unix>-<uuid>-<size>".
// The leading timestamp is what garbage collection reads.
func NewPhotoName(now time.Time, size string) string {
	return fmt.Sprintf("%d-%s-%s", now.Unix(), uuid.New().String(), size)
}

// ParsePhotoTime returns the upload time encoded in a photo name.
func ParsePhotoTime(name string) (time.Time, error) {
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPhotoName, name)
	}
	sec, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPhotoName, name)
	}
	return time.Unix(sec, 0), nil
}

// Expired reports whether the photo should be removed at now. Names that do
// not carry an upload time are always expired.
func Expired(name string, now time.Time, lifetime time.Duration) bool {
	uploaded, err := ParsePhotoTime(name)
	if err != nil {
		return true
	}
	return now.Sub(uploaded) > lifetime
}

type objectStore interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedPutObject(ctx context.Context, bucket, object string, expires time.Duration) (*url.URL, error)
}

// PhotoUpload is a slot a client uploads one photo into.
type PhotoUpload struct {
	Name      string    `json:"name"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type PhotoStore struct {
	client    objectStore
	bucket    string
	publicURL string
	lifetime  time.Duration
	logger    *logger.Logger
}

// NewPhotoStore connects to the bucket, creating it when missing. Photo URLs
// are rooted at publicURL, or at the store endpoint when publicURL is empty.
func NewPhotoStore(ctx context.Context, cfg config.MinIOConfig, photos config.PhotosConfig, log *logger.Logger) (*PhotoStore, error) {
	log.Info("Initializing photo store", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "use_ssl", cfg.UseSSL)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to make bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("PhotoStore: bucket created", "bucket", cfg.Bucket)
	}

	base := photos.PublicURL
	if base == "" {
		base = client.EndpointURL().String()
	}
	lifetime := photos.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultPhotoLifetime
	}
	return newPhotoStore(client, cfg.Bucket, base, lifetime, log), nil
}

func newPhotoStore(client objectStore, bucket, publicURL string, lifetime time.Duration, log *logger.Logger) *PhotoStore {
	return &PhotoStore{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		lifetime:  lifetime,
		logger:    log,
	}
}

// PublicURL returns the address a photo is served from. An empty name yields
// an empty URL.
func (s *PhotoStore) PublicURL(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	if !photoNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhotoName, name)
	}
	return s.publicURL + "/" + s.bucket + "/" + name, nil
}

// NewUpload reserves a fresh photo name of the given size and presigns a PUT
// for it. The client sends the image bytes straight to the object store.
func (s *PhotoStore) NewUpload(ctx context.Context, size string, now time.Time) (*PhotoUpload, error) {
	if !slices.Contains(PhotoSizes, size) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhotoSize, size)
	}
	name := NewPhotoName(now, size)
	u, err := s.client.PresignedPutObject(ctx, s.bucket, name, uploadExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", name, err)
	}
	public, err := s.PublicURL(name)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("PhotoStore.NewUpload: slot issued", "name", name)
	return &PhotoUpload{Name: name, UploadURL: u.String(), PublicURL: public, ExpiresAt: now.Add(uploadExpiry)}, nil
}

// CollectGarbage removes every expired photo and returns how many it removed.
// Objects already removed by a concurrent collector are skipped.
func (s *PhotoStore) CollectGarbage(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	var errs []error
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("failed to list bucket %s: %w", s.bucket, obj.Err)
		}
		if !Expired(obj.Key, now, s.lifetime) {
			continue
		}
		err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				continue
			}
			s.logger.Warn("PhotoStore.CollectGarbage: remove failed", "key", obj.Key, "error", err)
			errs = append(errs, err)
			continue
		}
		removed++
	}
	s.logger.Info("PhotoStore.CollectGarbage: done", "bucket", s.bucket, "removed", removed, "failures", len(errs))
	return removed, errors.Join(errs...)
}

// RunGC collects garbage every interval until ctx is done.
func (s *PhotoStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if _, err := s.CollectGarbage(ctx, now); err != nil {
				s.logger.Error("PhotoStore.RunGC: collection failed", "error", err)
			}
		}
	}
}
