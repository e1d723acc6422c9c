package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/logging"
	"github.com/therealutkarshpriyadarshi/sourcing/internal/metrics"
	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

// ErrObjectNotFound is returned when an object does not exist in the bucket
var ErrObjectNotFound = errors.New("object not found")

// Storage provides object storage operations for transcript files
type Storage struct {
	client        *minio.Client
	bucketName    string
	presignExpiry time.Duration
	logger        *logging.Logger
}

// New connects to the object store and creates the bucket when missing
func New(ctx context.Context, cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.BucketName, err)
		}
	}

	return newWithClient(client, cfg, logger), nil
}

func newClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func newWithClient(client *minio.Client, cfg config.StorageConfig, logger *logging.Logger) *Storage {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Storage{
		client:        client,
		bucketName:    cfg.BucketName,
		presignExpiry: expiry,
		logger:        logger,
	}
}

// ObjectKey returns the object name of a transcript file of an asset
func ObjectKey(assetID, fileName string) string {
	return path.Join("assets", assetID, path.Base(fileName))
}

// PresignedPutURL returns a time-limited URL that accepts a direct PUT of the object
func (s *Storage) PresignedPutURL(ctx context.Context, objectName string) (string, time.Time, error) {
	start := time.Now()
	u, err := s.client.PresignedPutObject(ctx, s.bucketName, objectName, s.presignExpiry)
	s.record("presign_put", objectName, 0, start, err)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate upload URL: %w", err)
	}

	return u.String(), start.Add(s.presignExpiry), nil
}

// PresignedGetURL returns a time-limited download URL for an object
func (s *Storage) PresignedGetURL(ctx context.Context, objectName string) (string, time.Time, error) {
	start := time.Now()
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.presignExpiry, nil)
	s.record("presign_get", objectName, 0, start, err)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return u.String(), start.Add(s.presignExpiry), nil
}

// ObjectURL returns the durable URL of an object, the pre-signed URL without its query
func (s *Storage) ObjectURL(objectName string) string {
	endpoint := s.client.EndpointURL()
	return fmt.Sprintf("%s://%s/%s/%s", endpoint.Scheme, endpoint.Host, s.bucketName, strings.TrimPrefix(objectName, "/"))
}

// ObjectName maps a durable object URL back to its object name
func (s *Storage) ObjectName(objectURL string) (string, bool) {
	prefix := s.ObjectURL("")
	if !strings.HasPrefix(objectURL, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(objectURL, prefix)
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	return name, name != ""
}

// Stat returns the size of an object, or ErrObjectNotFound
func (s *Storage) Stat(ctx context.Context, objectName string) (int64, error) {
	start := time.Now()
	info, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	s.record("stat", objectName, info.Size, start, err)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return 0, fmt.Errorf("%w: %s", ErrObjectNotFound, objectName)
		}
		return 0, fmt.Errorf("failed to stat object: %w", err)
	}

	return info.Size, nil
}

// Delete deletes an object from storage
func (s *Storage) Delete(ctx context.Context, objectName string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucketName, objectName, minio.RemoveObjectOptions{})
	s.record("delete", objectName, 0, start, err)
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}

	return nil
}

func (s *Storage) record(operation, objectName string, size int64, start time.Time, err error) {
	duration := time.Since(start)
	metrics.RecordStorageOperation(operation, metrics.Status(err), duration.Seconds())
	s.logger.LogStorageOperation(operation, s.bucketName, objectName, size, duration, err)
}

var contentTypes = map[string]string{
	".srt":  models.MimeTypeSubRip,
	".vtt":  "text/vtt",
	".txt":  "text/plain",
	".json": "application/json",
}

// ContentType guesses the MIME type of a transcript file from its extension
func ContentType(filePath string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(filePath))]; ok {
		return ct
	}
	return "application/octet-stream"
}
