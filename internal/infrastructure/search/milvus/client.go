// Package milvus adapts the Milvus vector store to candidate fingerprint
// indexing and similarity search. Retained candidates from completed runs are
// upserted as dense fingerprint vectors; the HTTP API queries them back by
// candidate ID or by a raw fingerprint.
package milvus

import (
	"context"
	"sync"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"

	"github.com/molforge/fragelab/internal/config"
	"github.com/molforge/fragelab/internal/infrastructure/monitoring/logging"
	"github.com/molforge/fragelab/pkg/errors"
)

// connectTimeout bounds the initial dial plus the connectivity probe.
const connectTimeout = 10 * time.Second

// ClientFactory matches client.NewClient so tests can swap the SDK
// constructor.
type ClientFactory func(ctx context.Context, cfg client.Config) (client.Client, error)

var milvusNewClient ClientFactory = client.NewClient

var (
	// ErrClientClosed is returned for operations on a closed client.
	ErrClientClosed = errors.New(errors.ErrCodeInternal, "milvus client is closed")

	// ErrConnectionFailed is returned when the vector store cannot be reached.
	ErrConnectionFailed = errors.New(errors.ErrCodeVectorIndex, "milvus connection failed")
)

// Client wraps a Milvus gRPC connection behind a closed guard. All index and
// collection operations in this package go through it.
type Client struct {
	api    client.Client
	cfg    config.MilvusConfig
	logger logging.Logger

	mu     sync.RWMutex
	closed bool
}

// NewClient dials Milvus and verifies the server answers a health probe
// before handing the connection out.
func NewClient(ctx context.Context, cfg config.MilvusConfig, logger logging.Logger) (*Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New(errors.ErrCodeValidation, "milvus: addr is required")
	}
	if cfg.DBName == "" {
		cfg.DBName = "default"
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	api, err := milvusNewClient(dialCtx, client.Config{
		Address: cfg.Addr,
		DBName:  cfg.DBName,
	})
	if err != nil {
		return nil, ErrConnectionFailed.WithCause(err)
	}

	c := &Client{api: api, cfg: cfg, logger: logger}
	if err := c.Ping(dialCtx); err != nil {
		api.Close()
		return nil, err
	}

	logger.Info("milvus connected",
		logging.String("addr", cfg.Addr),
		logging.String("db", cfg.DBName))
	return c, nil
}

// API returns the underlying SDK client, failing once the client is closed.
func (c *Client) API() (client.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClientClosed
	}
	return c.api, nil
}

// Config returns the parameters the client was built with.
func (c *Client) Config() config.MilvusConfig {
	return c.cfg
}

// Ping asks the server for its health state.
func (c *Client) Ping(ctx context.Context) error {
	api, err := c.API()
	if err != nil {
		return err
	}
	if _, err := api.CheckHealth(ctx); err != nil {
		return errors.Wrap(err, errors.ErrCodeVectorIndex, "milvus health check failed")
	}
	return nil
}

// Close releases the gRPC connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.api.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeVectorIndex, "milvus close failed")
	}
	c.logger.Info("milvus client closed")
	return nil
}
