// Package common provides core data structures and utilities shared across
// the Cachelink client. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for the binary unary protocol
//   - Configuration structures for discovery, transport and streaming
//   - Typed errors with stable error codes
//   - Named structured logging and client-side metrics
//
// Key Components:
//
//   - Message: Core data structure for all unary operation payloads, with a
//     flexible structure that adapts to different operation types. Includes
//     factory methods for creating the request and response messages.
//
//   - ControlCode / MessageType: Enumerations defining the frame-level
//     message kinds (Authenticate, Op, Error, ...) and the operation types
//     carried inside Op frames.
//
//   - ClientConfig: Configuration for the client, controlling discovery,
//     connection parameters, security mode, timeouts and streaming limits.
//
//   - Error / ErrCode: Typed error surfaced by the connection, discovery and
//     protocol layers so callers can branch on codes instead of messages.
//
//   - GetLogger: Named logger factory providing consistent structured
//     logging across the client.
package common
