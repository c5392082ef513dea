package transport

import (
	"context"
)

// --------------------------------------------------------------------------
// Connection Factory
// --------------------------------------------------------------------------

// IConnectionFactory opens one authenticated connection to one explicit
// address. Implementations dispatch the configured security mode (TLS,
// unverified TLS, plaintext) and perform the Authenticate handshake before
// returning; a returned Connection is always ready for operations.
type IConnectionFactory interface {
	// Connect establishes and authenticates a single connection to the
	// given "host:port" address. All failure modes surface as one typed
	// error; a partial connection is never returned.
	Connect(ctx context.Context, address string) (*Connection, error)
}

// --------------------------------------------------------------------------
// Pool Connector
// --------------------------------------------------------------------------

// IPoolConnector supplies the connection pool with new connections. Unlike
// the factory it chooses the target address itself, typically from the
// endpoint directory.
type IPoolConnector interface {
	// Connect establishes one connection to an address of the
	// implementation's choosing. Single attempt; the pool owns retries.
	Connect(ctx context.Context) (*Connection, error)
}
