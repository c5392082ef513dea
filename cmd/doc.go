// Package cmd implements the command-line interface of the Cachelink client.
// It provides a hierarchical command structure for interacting with a
// Cachelink cell from the shell.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for cache operations (get, set, delete, etc.) and the
//     perf benchmark tool
//   - topic: Commands for topic operations (publish, subscribe)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All connection flags can also be set via CACHELINK_* environment variables
// (e.g. CACHELINK_CREDENTIAL, CACHELINK_DISCOVERY_URL), optionally loaded
// from a .env file.
//
// See cachelink -help for a list of all commands.
package cmd
