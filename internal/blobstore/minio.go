package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config encapsulates the connection info for the S3-compatible store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// RetryAttempts is the number of extra attempts after the first for
	// transient failures. Not-found and auth errors are never retried.
	RetryAttempts int
}

// MinioClient implements Client on top of an S3-compatible endpoint.
type MinioClient struct {
	client  *minio.Client
	bucket  string
	retries uint64
}

// NewMinioClient builds a store client from config. Credentials, endpoint and
// bucket are required; the endpoint may carry an http/https scheme, which
// overrides UseSSL.
func NewMinioClient(cfg Config) (*MinioClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("store endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("store credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("store bucket must be provided")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint, useSSL = rest, true
	} else if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, useSSL = rest, false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	retries := cfg.RetryAttempts
	if retries < 0 {
		retries = 0
	}

	return &MinioClient{
		client:  client,
		bucket:  cfg.Bucket,
		retries: uint64(retries),
	}, nil
}

// Verify checks bucket reachability before any transfer starts so that bad
// credentials fail the run up front instead of per item.
func (c *MinioClient) Verify(ctx context.Context) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return c.mapError(c.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", c.bucket)
	}
	return nil
}

// StatObject returns size metadata for a single key.
func (c *MinioClient) StatObject(ctx context.Context, key string) (ObjectInfo, error) {
	var stat minio.ObjectInfo
	err := c.withRetry(ctx, func() error {
		var err error
		stat, err = c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			return c.mapError(key, err)
		}
		return nil
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	return ObjectInfo{Key: key, Size: stat.Size}, nil
}

// ListObjects lists all objects for a given prefix.
func (c *MinioClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var results []ObjectInfo
	err := c.withRetry(ctx, func() error {
		results = results[:0]
		objects := c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		})
		for object := range objects {
			if object.Err != nil {
				return c.mapError(prefix, object.Err)
			}
			results = append(results, ObjectInfo{
				Key:  object.Key,
				Size: object.Size,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store list failed: %w", err)
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *MinioClient) DownloadObject(ctx context.Context, key string, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}

	err := c.withRetry(ctx, func() error {
		if err := c.client.FGetObject(ctx, c.bucket, key, destPath, minio.GetObjectOptions{}); err != nil {
			return c.mapError(key, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	st, err := os.Stat(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to stat downloaded file %s: %w", destPath, err)
	}
	return st.Size(), nil
}

// UploadObject uploads a local file to the given key.
func (c *MinioClient) UploadObject(ctx context.Context, srcPath string, key string) (int64, error) {
	var uploaded minio.UploadInfo
	err := c.withRetry(ctx, func() error {
		var err error
		uploaded, err = c.client.FPutObject(ctx, c.bucket, key, srcPath, minio.PutObjectOptions{
			ContentType: contentTypeFor(srcPath),
		})
		if err != nil {
			return c.mapError(key, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uploaded.Size, nil
}

var _ Client = (*MinioClient)(nil)

// withRetry runs op with exponential backoff for transient failures. Mapped
// sentinel errors and context cancellation abort immediately.
func (c *MinioClient) withRetry(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrObjectNotFound),
			errors.Is(err, ErrAccessDenied),
			errors.Is(err, context.Canceled),
			errors.Is(err, context.DeadlineExceeded):
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries),
		ctx,
	)
	return backoff.Retry(wrapped, policy)
}

// mapError converts store error responses into the package sentinel errors.
func (c *MinioClient) mapError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	case resp.Code == "AccessDenied" || resp.Code == "InvalidAccessKeyId" || resp.Code == "SignatureDoesNotMatch" || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAccessDenied, resp.Code)
	}
	return err
}

// contentTypes covers the artifact kinds this tool actually moves.
var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".json": "application/json",
}

func contentTypeFor(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}
