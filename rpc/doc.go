// Package rpc contains the communication layers of the Cachelink client. It
// covers everything between an application call and the wire: endpoint
// discovery, connection management, payload encoding and the two protocols
// the service speaks.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the client,
//     including the Message protocol, configuration structures, error codes,
//     logging and metrics.
//
//   - discovery: Resolution of cell endpoints via the HTTP discovery service
//     or a static address, with background refresh and change tracking.
//
//   - placement: Rendezvous hashing for spreading keyed work over the
//     resolved endpoints.
//
//   - serializer: Message serialization with multiple format options
//     (Binary, JSON, GOB) for converting between Message objects and byte
//     arrays.
//
//   - transport: The pooled binary RPC connection layer used by all unary
//     operations (framing, handshake, pipelining, retries).
//
//   - stream: The gRPC streaming layer used by topic subscriptions
//     (channel multiplexing, admission, resumable sessions).
//
//   - client: The user-facing Client tying the layers together, with one
//     method per cache and topic operation.
package rpc
