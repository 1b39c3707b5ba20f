// Package storage keeps uploaded files in an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/samber/lo"
)

const MaxUploadBytes = 5 << 20

var (
	LicenseContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}
	AvatarContentTypes  = []string{"image/jpeg", "image/png", "image/webp"}
)

// ObjectStore stores an object under key and returns the stored key.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects and creates the bucket when it does not exist yet.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &MinioStore{client: client, bucket: bucket}, nil
}

func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s/%s: %w", m.bucket, key, err)
	}
	return key, nil
}

// ObjectKey builds a collision-free key such as "licenses/<owner>/<uuid>.pdf".
func ObjectKey(prefix, ownerID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, ownerID, uuid.NewString()+ext)
}

// ContentType prefers the part header and falls back to the file extension.
func ContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename)))
}

// ValidateUpload checks size and content type, returning the resolved content type.
func ValidateUpload(header *multipart.FileHeader, allowed []string) (string, error) {
	if header.Size <= 0 {
		return "", fmt.Errorf("file is empty")
	}
	if header.Size > MaxUploadBytes {
		return "", fmt.Errorf("file exceeds %d MB", MaxUploadBytes>>20)
	}
	ct := ContentType(header)
	if !lo.Contains(allowed, ct) {
		return "", fmt.Errorf("unsupported file type %q", ct)
	}
	return ct, nil
}
