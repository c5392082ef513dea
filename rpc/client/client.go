package client

import (
	"context"
	"sync"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/discovery"
	"github.com/cachelink/cachelink-go/rpc/placement"
	"github.com/cachelink/cachelink-go/rpc/serializer"
	"github.com/cachelink/cachelink-go/rpc/stream"
	"github.com/cachelink/cachelink-go/rpc/transport"
)

// ----------------------------------------------------------------------------
// Client
// ----------------------------------------------------------------------------

// Client is the entry point into a cache cell. It bundles the endpoint
// directory, the unary connection pool and the streaming channel manager
// behind one handle.
//
// Unary operations check a connection out of the pool per request. Streaming
// subscriptions are multiplexed over a fixed set of long-lived channels.
type Client struct {
	config     common.ClientConfig
	serializer serializer.IRPCSerializer
	directory  discovery.IDirectory
	pool       *transport.Pool
	streams    *stream.Manager

	closeOnce sync.Once
}

// New creates a client for the configured cell using the default binary
// serializer.
func New(config common.ClientConfig) (*Client, error) {
	return NewWithSerializer(config, serializer.NewBinarySerializer())
}

// NewWithSerializer creates a client that encodes operation payloads with the
// given serializer. The serializer must match the one the cell is served
// with.
//
// The constructor opens no connections: unary connections are dialed on first
// use and streaming channels connect lazily on the first subscription. With
// HTTP discovery the endpoint snapshot is resolved once before the
// constructor returns.
func NewWithSerializer(config common.ClientConfig, ser serializer.IRPCSerializer) (*Client, error) {
	if config.Credential == "" {
		return nil, common.NewError(common.ErrCInternal, "credential is required")
	}
	if ser == nil {
		return nil, common.NewError(common.ErrCInternal, "serializer is required")
	}
	if err := common.InitLoggers(config); err != nil {
		return nil, common.NewErrorf(common.ErrCInternal, "configuring loggers: %v", err)
	}

	directory, err := discovery.NewDirectory(config)
	if err != nil {
		return nil, err
	}

	factory := transport.NewConnectionFactory(config)
	connector := transport.NewDirectoryConnector(directory, factory, config.Discovery.Zone)
	pool := transport.NewConnectionPool(connector, config)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.TimeoutSecond)*time.Second)
	defer cancel()
	streams, err := stream.NewManager(ctx, config, directory)
	if err != nil {
		if closeErr := pool.Close(); closeErr != nil {
			Logger.Debugf("closing connection pool: %v", closeErr)
		}
		directory.Close()
		return nil, err
	}

	Logger.Infof("client ready (zone %q, pool size %d, channels %d)",
		config.Discovery.Zone, config.Transport.PoolSize, config.Stream.Channels)

	return &Client{
		config:     config,
		serializer: ser,
		directory:  directory,
		pool:       pool,
		streams:    streams,
	}, nil
}

// ----------------------------------------------------------------------------
// Connection Access
// ----------------------------------------------------------------------------

// GetNextUnaryClient checks the next connection out of the pool, dialing one
// if the pool is empty. Callers must hand the connection back with
// PutUnaryClient once done; the operation helpers below do this internally.
func (c *Client) GetNextUnaryClient(ctx context.Context) (*transport.Connection, error) {
	return c.pool.Get(ctx)
}

// PutUnaryClient returns a checked-out connection to the pool. Dead
// connections are discarded instead of pooled.
func (c *Client) PutUnaryClient(conn *transport.Connection) {
	c.pool.Put(conn)
}

// ----------------------------------------------------------------------------
// Operations
// ----------------------------------------------------------------------------

// Ping round-trips a liveness probe over one pooled connection.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	conn, err := c.GetNextUnaryClient(ctx)
	if err != nil {
		return err
	}
	err = conn.Ping(ctx)
	c.PutUnaryClient(conn)
	return err
}

// ActiveSubscriptions returns the number of currently open subscriptions.
func (c *Client) ActiveSubscriptions() int64 {
	return c.streams.ActiveSubscriptions()
}

// Generation returns the current endpoint directory generation. It increments
// whenever discovery resolves a different address set.
func (c *Client) Generation() uint64 {
	return c.directory.GetGeneration()
}

// RankEndpoints ranks the current endpoint set for a key, most preferred
// first. This is the cell's placement order, so callers that shard work by
// key see the same order the servers compute. Reads the local directory
// snapshot, no I/O. Unary requests themselves are routed round robin and do
// not consult this ranking.
func (c *Client) RankEndpoints(key []byte, placementFactorDigest uint32) []string {
	addresses := c.directory.GetAddresses(c.config.Discovery.Zone)
	addrs := make([]string, len(addresses))
	for i, address := range addresses {
		addrs[i] = address.SocketAddress
	}
	return placement.RankAddresses(addrs, key, placementFactorDigest)
}

// Close releases the connection pool, the streaming channels and the
// discovery refresh task. Sessions obtained from Subscribe must be closed by
// their owners; after Close they fail their next receive and cycle through
// resubscribe attempts until closed.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.streams.Close()
		if err := c.pool.Close(); err != nil {
			Logger.Debugf("closing connection pool: %v", err)
		}
		c.directory.Close()
	})
}

// opContext applies the configured per-operation timeout unless the caller
// context already carries a deadline.
func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(c.config.TimeoutSecond)*time.Second)
}
