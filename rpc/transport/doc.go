// Package transport implements the unary connection layer of the Cachelink
// client: framing, connection establishment across security modes,
// authentication and pooling.
//
// The package focuses on:
//   - A compact binary frame format with client-assigned message IDs
//   - Connections that survive caller deadlines (late responses drain
//     instead of poisoning the stream)
//   - One authenticated connection per pool slot, exclusively owned while
//     checked out
//   - Directory-driven, round-robin connection placement
//
// Key Components:
//
//   - Connection: a live authenticated channel to one server. A reader
//     goroutine correlates response frames to waiting callers by message
//     ID.
//
//   - IConnectionFactory: opens one transport (TLS, unverified TLS or
//     plaintext TCP), applies socket tuning and performs the mandatory
//     Authenticate handshake.
//
//   - IPoolConnector: picks the next address round robin from the endpoint
//     directory and delegates to the factory. Triggers an out-of-band
//     directory refresh when the candidate view is empty.
//
//   - Pool: fixed-capacity connection pool with exclusive checkout,
//     lazy dialing and exponential backoff on failed connection attempts.
//
// Thread Safety:
//
//	All exported types are safe for concurrent use. Exclusive use of a
//	checked-out Connection is a pool contract, not a lock: callers must
//	not share a connection between concurrent unary calls.
package transport
