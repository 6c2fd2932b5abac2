package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AttachmentStore keeps chat image attachments in an S3-compatible bucket.
type AttachmentStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (publicURL string, err error)
}

type Options struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type Client struct {
	bucket        string
	publicBaseURL string
	client        *minio.Client
	logger        *slog.Logger

	mu          sync.Mutex
	bucketReady bool
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	mc, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	base := strings.TrimSpace(opts.PublicEndpoint)
	if base == "" {
		base = endpoint
	}
	if !strings.Contains(base, "://") {
		scheme := "http://"
		if opts.UseSSL {
			scheme = "https://"
		}
		base = scheme + base
	}
	return &Client{
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(base, "/"),
		client:        mc,
		logger:        logger,
	}, nil
}

func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if body == nil {
		return "", errors.New("s3: body is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if size <= 0 {
		size = -1
	}
	if _, err := c.client.PutObject(ctx, c.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	publicURL := c.objectURL(key)
	if c.logger != nil {
		c.logger.Info("attachment stored", "bucket", c.bucket, "key", key, "size", size)
	}
	return publicURL, nil
}

// Ping reports whether the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.BucketExists(ctx, c.bucket); err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	return nil
}

// ensureBucket creates the bucket on first use. A failed attempt is retried
// on the next upload.
func (c *Client) ensureBucket(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bucketReady {
		return nil
	}
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("s3: check bucket: %w", err)
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("s3: create bucket: %w", err)
		}
		if err := c.allowPublicRead(ctx); err != nil {
			return err
		}
	}
	c.bucketReady = true
	return nil
}

func (c *Client) allowPublicRead(ctx context.Context) error {
	policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, c.bucket)
	if err := c.client.SetBucketPolicy(ctx, c.bucket, policy); err != nil {
		return fmt.Errorf("s3: set bucket policy: %w", err)
	}
	return nil
}

func (c *Client) objectURL(key string) string {
	return objectURL(c.publicBaseURL, c.bucket, key)
}

func objectURL(base, bucket, key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, strings.Join(segments, "/"))
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

var _ AttachmentStore = (*Client)(nil)
