// Package storage keeps catalog media in an S3-compatible bucket and hands
// out time-limited download links.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/adstudio/backend/internal/config"
)

// ErrEmptyKey is returned for blank object keys.
var ErrEmptyKey = errors.New("s3 storage: empty key")

// S3Storage uploads catalog assets and presigns downloads.
type S3Storage struct {
	uploader  *manager.Uploader
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
	ttl       time.Duration
}

// NewS3Storage configures a client for the object store described by cfg.
func NewS3Storage(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
	return newS3Storage(client, cfg), nil
}

func newS3Storage(client *s3.Client, cfg config.ObjectStoreConfig) *S3Storage {
	ttl := cfg.DownloadURLTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &S3Storage{
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 5 * 1024 * 1024
			u.LeavePartsOnError = false
		}),
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		baseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		ttl:       ttl,
	}
}

// Save uploads r under key. The returned location is the public URL when a
// public base URL is configured, otherwise the bare key.
func (s *S3Storage) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrEmptyKey
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("s3 storage upload %s: %w", key, err)
	}
	return s.location(key), nil
}

// SignURL returns a presigned GET link for a stored location. Locations that
// point outside the bucket are returned unchanged. A non-positive ttl uses
// the configured download TTL.
func (s *S3Storage) SignURL(ctx context.Context, location string, ttl time.Duration) (string, error) {
	key, ok := s.keyFor(location)
	if !ok {
		return location, nil
	}
	if key == "" {
		return "", ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Storage) location(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

// keyFor maps a stored location back to its object key. ok is false for
// absolute URLs that do not belong to this store.
func (s *S3Storage) keyFor(location string) (key string, ok bool) {
	location = strings.TrimSpace(location)
	if s.baseURL != "" && strings.HasPrefix(location, s.baseURL+"/") {
		return strings.TrimPrefix(location, s.baseURL+"/"), true
	}
	if strings.HasPrefix(location, "s3://") {
		rest := strings.TrimPrefix(location, "s3://")
		bucket, objectKey, _ := strings.Cut(rest, "/")
		if bucket != s.bucket {
			return "", false
		}
		return objectKey, true
	}
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return "", false
	}
	return strings.TrimLeft(location, "/"), true
}
