package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"txserver/metrics"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ErrStoreNotReady is returned by store operations before the connection completes
// or after it has failed
var ErrStoreNotReady = errors.New("store not ready")

// DialFunc opens a MongoDB connection
type DialFunc func(ctx context.Context, uri, dbName string, opts MongoOptions, logger *zap.SugaredLogger) (*MongoDB, error)

// ConnectorConfig configures a Connector
type ConnectorConfig struct {
	URI         string
	Database    string
	Timeout     time.Duration
	MaxPoolSize uint64
	// Describe turns a connection error into a remediation hint for the log
	Describe func(err error) string
	// Dial overrides NewMongoDB
	Dial DialFunc
}

// Connector establishes the MongoDB connection in the background.
// Callers never wait on it: handlers check Ready and degrade instead.
type Connector struct {
	cfg    ConnectorConfig
	logger *zap.SugaredLogger

	once  sync.Once
	done  chan struct{}
	ready atomic.Bool

	mu     sync.RWMutex
	db     *MongoDB
	err    error
	closed bool
}

// NewConnector creates a connector; nothing is dialed until Connect
func NewConnector(cfg ConnectorConfig, logger *zap.SugaredLogger) *Connector {
	if cfg.Dial == nil {
		cfg.Dial = NewMongoDB
	}
	return &Connector{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Connect starts the connection attempt and returns immediately.
// The outcome is logged; a failure is recorded but never returned.
func (c *Connector) Connect(ctx context.Context) {
	c.once.Do(func() {
		metrics.StoreReady.Set(0)
		go c.run(ctx)
	})
}

func (c *Connector) run(ctx context.Context) {
	defer close(c.done)

	db, err := c.cfg.Dial(ctx, c.cfg.URI, c.cfg.Database, MongoOptions{
		Timeout:     c.cfg.Timeout,
		MaxPoolSize: c.cfg.MaxPoolSize,
	}, c.logger)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.discard(db)
		return
	}
	c.db, c.err = db, err
	if err == nil {
		c.ready.Store(true)
	}
	c.mu.Unlock()

	if err != nil {
		metrics.StoreConnectAttempts.WithLabelValues("failure").Inc()
		fields := []interface{}{"error", err}
		if c.cfg.Describe != nil {
			fields = append(fields, "hint", c.cfg.Describe(err))
		}
		c.logger.Errorw("MongoDB connection error", fields...)
		return
	}

	metrics.StoreConnectAttempts.WithLabelValues("success").Inc()
	metrics.StoreReady.Set(1)
	c.logger.Infow("Connected to MongoDB", "database", c.cfg.Database)
}

// discard disconnects a handle that arrived after Close
func (c *Connector) discard(db *MongoDB) {
	if db == nil {
		return
	}
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.Close(ctx); err != nil {
		c.logger.Warnw("Failed to disconnect late MongoDB client", "error", err)
		return
	}
	c.logger.Infow("Discarded MongoDB connection established after close")
}

// Ready reports whether the connection has been established
func (c *Connector) Ready() bool {
	return c.ready.Load()
}

// Done is closed once the connection attempt has finished, successfully or not
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Err returns the connection error, if the attempt failed
func (c *Connector) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Database returns the connected database handle
func (c *Connector) Database() (*mongo.Database, error) {
	if !c.Ready() {
		return nil, ErrStoreNotReady
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.db == nil || c.db.Database == nil {
		return nil, ErrStoreNotReady
	}
	return c.db.Database, nil
}

// HealthCheck pings the database; it fails fast while the connection is pending
func (c *Connector) HealthCheck(ctx context.Context) error {
	if !c.Ready() {
		return ErrStoreNotReady
	}
	c.mu.RLock()
	db := c.db
	c.mu.RUnlock()
	return db.HealthCheck(ctx)
}

// Close disconnects the client if one was established. A dial still in
// flight is disconnected by the connection goroutine when it returns.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	db := c.db
	c.db = nil
	c.closed = true
	c.mu.Unlock()

	c.ready.Store(false)
	metrics.StoreReady.Set(0)
	return db.Close(ctx)
}
