package discovery

import (
	"context"
	"net"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// ----------------------------------------------------------------------------
// Static Directory
// ----------------------------------------------------------------------------

// staticDirectory serves a single pre-resolved endpoint. It never refreshes
// and its generation never moves.
type staticDirectory struct {
	address Address
}

// NewStaticDirectory creates a directory with a single fixed "host:port"
// endpoint and no refresh task.
func NewStaticDirectory(endpoint string) (IDirectory, error) {
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil || host == "" || port == "" {
		return nil, common.NewErrorf(common.ErrCBadAddress, "invalid static endpoint %q, expected host:port", endpoint)
	}

	return &staticDirectory{
		address: Address{SocketAddress: endpoint},
	}, nil
}

// GetAddresses implements IDirectory.
func (d *staticDirectory) GetAddresses(string) []Address {
	return []Address{d.address}
}

// GetGeneration implements IDirectory.
func (d *staticDirectory) GetGeneration() uint64 {
	return 0
}

// Refresh implements IDirectory. There is nothing to resolve.
func (d *staticDirectory) Refresh(context.Context) error {
	return nil
}

// Close implements IDirectory.
func (d *staticDirectory) Close() {}
