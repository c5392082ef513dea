package transport

import (
	"context"
	"sync/atomic"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/discovery"
)

// directoryConnector picks addresses from the directory round robin and
// delegates to the factory. Connections are deliberately load-balanced
// across endpoints; per-key placement happens at request level, not here.
type directoryConnector struct {
	directory discovery.IDirectory
	factory   IConnectionFactory
	zone      string
	seq       atomic.Uint64
}

// NewDirectoryConnector creates the pool connector backed by the given
// directory and factory. zone narrows the candidate addresses; empty means
// all zones.
func NewDirectoryConnector(directory discovery.IDirectory, factory IConnectionFactory, zone string) IPoolConnector {
	return &directoryConnector{
		directory: directory,
		factory:   factory,
		zone:      zone,
	}
}

// Connect implements IPoolConnector. One attempt, no internal retry: the
// pool owns the retry and backoff policy.
func (c *directoryConnector) Connect(ctx context.Context) (*Connection, error) {
	addresses := c.directory.GetAddresses(c.zone)

	// An empty view is worth one out-of-band refresh before giving up
	if len(addresses) == 0 {
		if err := c.directory.Refresh(ctx); err != nil {
			Logger.Warnf("out-of-band endpoint refresh failed: %v", err)
		}
		addresses = c.directory.GetAddresses(c.zone)
	}

	if len(addresses) == 0 {
		return nil, common.NewErrorf(common.ErrCNoAddresses, "no addresses available for zone %q", c.zone)
	}

	index := (c.seq.Add(1) - 1) % uint64(len(addresses))
	return c.factory.Connect(ctx, addresses[index].SocketAddress)
}
