package optimize

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

// Saver stores an optimized file and returns where it went
type Saver interface {
	Save(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// LocalSaver writes files into a directory
type LocalSaver struct {
	dir string
}

// NewLocalSaver creates the directory if needed
func NewLocalSaver(dir string) (*LocalSaver, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalSaver{dir: dir}, nil
}

func (s *LocalSaver) Save(_ context.Context, data []byte, name, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}

// MinioConfig holds S3 compatible destination settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Folder    string
	Region    string
	UseSSL    bool
}

// MinioSaver uploads files to an S3 compatible bucket
type MinioSaver struct {
	client *minio.Client
	bucket string
	folder string
}

// NewMinioSaver creates a MinIO client for the destination
func NewMinioSaver(cfg MinioConfig) (*MinioSaver, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Transport:    tr,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioSaver{client: client, bucket: cfg.Bucket, folder: cfg.Folder}, nil
}

// ObjectKey joins the configured folder and the file name
func ObjectKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	name = strings.TrimLeft(name, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

func (s *MinioSaver) Save(ctx context.Context, data []byte, name, contentType string) (string, error) {
	key := ObjectKey(s.folder, name)
	info, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		if minioErr, ok := err.(minio.ErrorResponse); ok {
			log.Error().
				Str("code", minioErr.Code).
				Str("bucket", minioErr.BucketName).
				Str("key", minioErr.Key).
				Msg(minioErr.Message)
		}
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if info.Size != int64(len(data)) {
		return "", fmt.Errorf("uploaded size mismatch for %s: expected %d, got %d", key, len(data), info.Size)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
