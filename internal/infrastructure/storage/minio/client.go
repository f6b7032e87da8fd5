// Package minio adapts the MinIO object store to the pipeline's two storage
// concerns: reading precomputed elaboration sets and persisting best-pose
// structures.
package minio

import (
	"context"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

var (
	// ErrClientClosed is returned for operations on a closed client.
	ErrClientClosed = errors.New(errors.ErrCodeInternal, "minio client is closed")

	// ErrConnectionFailed is returned when the endpoint cannot be reached.
	ErrConnectionFailed = errors.New(errors.ErrCodeObjectStore, "failed to connect to minio")
)

// MinIOAPI is the slice of the MinIO SDK the stores use. GetObject is
// narrowed to io.ReadCloser so fakes can stand in for object reads.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// minioAPI adapts *minio.Client to MinIOAPI.
type minioAPI struct {
	*minio.Client
}

func (a minioAPI) GetObject(ctx context.Context, bucket, object string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return a.Client.GetObject(ctx, bucket, object, opts)
}

// Client wraps one bucket on a MinIO endpoint. Both stores share it.
type Client struct {
	api    MinIOAPI
	cfg    config.MinIOConfig
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient connects to the endpoint, verifies it responds, and creates the
// configured bucket when missing.
func NewClient(cfg config.MinIOConfig, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio endpoint required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeValidation, "minio bucket required")
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 24 * time.Hour
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "create minio client")
	}

	client := &Client{
		api:    minioAPI{mc},
		cfg:    cfg,
		logger: logger.Named("minio"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := client.api.ListBuckets(ctx); err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	client.logger.Info("MinIO connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL),
	)
	return client, nil
}

// newClientWithAPI wires a prebuilt API implementation; tests use it.
func newClientWithAPI(api MinIOAPI, cfg config.MinIOConfig, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 24 * time.Hour
	}
	return &Client{api: api, cfg: cfg, logger: logger.Named("minio")}
}

// EnsureBucket creates the configured bucket when it does not exist yet. A
// concurrent create by another instance is treated as success.
func (c *Client) EnsureBucket(ctx context.Context) error {
	api, err := c.API()
	if err != nil {
		return err
	}

	exists, err := api.BucketExists(ctx, c.cfg.Bucket)
	if err != nil {
		return errors.Wrapf(err, errors.ErrCodeObjectStore, "check bucket %s", c.cfg.Bucket)
	}
	if exists {
		return nil
	}

	if err := api.MakeBucket(ctx, c.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
			return nil
		}
		return errors.Wrapf(err, errors.ErrCodeObjectStore, "create bucket %s", c.cfg.Bucket)
	}
	c.logger.Info("bucket created", logging.String("bucket", c.cfg.Bucket))
	return nil
}

// API returns the underlying SDK surface, or ErrClientClosed.
func (c *Client) API() (MinIOAPI, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	return c.api, nil
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.cfg.Bucket
}

// Ping verifies the endpoint still responds.
func (c *Client) Ping(ctx context.Context) error {
	api, err := c.API()
	if err != nil {
		return err
	}
	if _, err := api.ListBuckets(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStore, "minio ping")
	}
	return nil
}

// Close marks the client closed. The SDK holds no persistent connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
