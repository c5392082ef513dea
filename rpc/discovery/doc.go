// Package discovery resolves and tracks the candidate cache endpoints of a
// Cachelink cell. It maintains an availability-zone keyed snapshot of
// addresses, refreshed on a timer from the cell's HTTP discovery endpoint,
// and exposes a change-generation counter so other layers can detect
// membership changes cheaply.
//
// The package focuses on:
//   - Periodic, fault-tolerant endpoint resolution over HTTP
//   - Zone-filtered address views with a union fallback
//   - Change detection on the resolved address set, not on ordering
//   - Deterministic shutdown of the background refresh task
//
// Key Components:
//
//   - IDirectory: the interface consumed by the connection layer. Two
//     implementations exist.
//
//   - httpDirectory: polls GET {base}/endpoints on a fixed interval,
//     authorizing with the data-plane credential. Refresh failures are
//     logged and counted; the stale snapshot keeps serving until the next
//     successful refresh.
//
//   - staticDirectory: a fixed single endpoint with no refresh task, for
//     development setups and tests.
//
// Thread Safety:
//
//	The snapshot is read-mostly and guarded by a read/write lock. Writes
//	happen only when the resolved address set genuinely changed. All
//	IDirectory methods are safe for concurrent use.
package discovery
