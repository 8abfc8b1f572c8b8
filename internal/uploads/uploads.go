package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxSize is the largest accepted upload.
const MaxSize = 10 << 20

// KeyPrefix namespaces submission attachments.
const KeyPrefix = "submissions/"

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("uploads are not configured")

// ErrUnsupportedType is returned for content types outside the allow list.
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedTypes = map[string]bool{
	"application/pdf":              true,
	"image/png":                    true,
	"image/jpeg":                   true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"text/plain":                   true,
}

// Allowed reports whether contentType may be uploaded.
func Allowed(contentType string) bool {
	return allowedTypes[baseType(contentType)]
}

// SniffLen is how many leading bytes Sniff inspects.
const SniffLen = 512

// Sniff checks the leading bytes of a file against its declared content type
// and returns the detected type to store it under. The detected type must be
// allowed and belong to the same type as the declaration.
func Sniff(head []byte, declared string) (string, error) {
	if !Allowed(declared) {
		return "", ErrUnsupportedType
	}
	detected := http.DetectContentType(head)
	if !Allowed(detected) || baseType(detected) != baseType(declared) {
		return "", fmt.Errorf("%w: content looks like %s", ErrUnsupportedType, baseType(detected))
	}
	return detected, nil
}

func baseType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ct == "application/x-zip-compressed" {
		return "application/zip"
	}
	return ct
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey builds a unique object key for an uploaded file name.
func NewKey(filename string) string {
	name := unsafeChars.ReplaceAllString(path.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > 80 {
		name = name[len(name)-80:]
	}
	return KeyPrefix + uuid.NewString() + "/" + name
}

// ValidKey reports whether key looks like one produced by NewKey.
func ValidKey(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || strings.Contains(key, "..") {
		return false
	}
	parts := strings.Split(strings.TrimPrefix(key, KeyPrefix), "/")
	if len(parts) != 2 || parts[1] == "" {
		return false
	}
	_, err := uuid.Parse(parts[0])
	return err == nil
}

// ObjectStore holds uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Minio implements ObjectStore against any S3-compatible endpoint.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to endpoint with static credentials.
func NewMinio(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Minio, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	return &Minio{client: client, bucket: bucket}, nil
}

// Put implements ObjectStore.
func (m *Minio) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// PresignGet implements ObjectStore.
func (m *Minio) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}

// Disabled is the ObjectStore used when no bucket is configured.
type Disabled struct{}

func (Disabled) Put(context.Context, string, io.Reader, int64, string) error { return ErrNotConfigured }
func (Disabled) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrNotConfigured
}
