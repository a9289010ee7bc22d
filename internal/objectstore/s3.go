package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/teamcutter/patchr/internal/domain"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// S3 talks to AWS S3 or any compatible server (Garage, MinIO).
type S3 struct {
	client *minio.Client
	bucket string
}

func NewS3(cfg S3Config) (*S3, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)

	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// splitEndpoint accepts both "host:port" and "https://host:port".
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return endpoint, useSSL
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, useSSL
	}
	return u.Host, u.Scheme == "https"
}

func (s *S3) GetObject(ctx context.Context, key string) (*domain.Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, notFound(key, err)
	}

	// Stat issues the request and surfaces NoSuchKey before any body read.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, notFound(key, err)
	}

	return &domain.Object{
		Body:          obj,
		ContentLength: info.Size,
		ETag:          info.ETag,
	}, nil
}

func (s *S3) HeadObject(ctx context.Context, key string) (domain.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return domain.ObjectInfo{}, notFound(key, err)
	}
	return toInfo(info), nil
}

func (s *S3) ListObjects(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var out []domain.ObjectInfo
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, toInfo(info))
	}
	return out, nil
}

func toInfo(info minio.ObjectInfo) domain.ObjectInfo {
	return domain.ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

// notFound maps a missing key onto ErrNotFound so callers do not depend on
// S3 error codes.
func notFound(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}
