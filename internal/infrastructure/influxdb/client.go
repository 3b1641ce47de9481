package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/graystore/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds

	// ServiceTag is added to every point so several stores can share a bucket.
	ServiceTag = "graystore"
)

// pointWriter is the part of api.WriteAPI the client uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Stats counts what happened to recorded operations.
type Stats struct {
	// Recorded is the number of points handed to the batching writer.
	Recorded int64
	// Dropped is the number of operations seen after Close.
	Dropped int64
	// Failed is the number of batch writes the server rejected.
	Failed int64
}

// Client records store operations as points in one bucket. Writes are
// batched and never block the operation that produced them. It is safe for
// concurrent use.
type Client struct {
	client influxdb2.Client
	writer pointWriter

	closed   atomic.Bool
	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64

	onError atomic.Pointer[func(error)]
}

// options derives the batching writer options from cfg.
func options(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}
	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(time.Duration(flush) * time.Second / time.Millisecond)).
		SetPrecision(time.Millisecond).
		AddDefaultTag("service", ServiceTag)
}

// Connect pings the server and starts the batching writer for cfg.Bucket.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{client: client, writer: writeAPI}
	go c.handleWriteErrors(writeAPI.Errors())
	return c, nil
}

// handleWriteErrors counts rejected batches and reports them to the
// callback set with SetOnError.
func (c *Client) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		c.failed.Add(1)
		if cb := c.onError.Load(); cb != nil {
			(*cb)(err)
		}
	}
}

// SetOnError sets a callback for batches the server rejected.
func (c *Client) SetOnError(callback func(err error)) {
	c.onError.Store(&callback)
}

// Stats returns the recorder counters.
func (c *Client) Stats() Stats {
	return Stats{
		Recorded: c.recorded.Load(),
		Dropped:  c.dropped.Load(),
		Failed:   c.failed.Load(),
	}
}

// IsConnected reports whether the client has not been closed.
func (c *Client) IsConnected() bool {
	return c.writer != nil && !c.closed.Load()
}

// Flush sends pending points. It is a no-op after Close.
func (c *Client) Flush() {
	if c.IsConnected() {
		c.writer.Flush()
	}
}

// Close flushes pending points and releases the client. Operations
// recorded afterwards are counted as dropped.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.writer != nil {
		c.writer.Flush()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() || c.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	healthy, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}
